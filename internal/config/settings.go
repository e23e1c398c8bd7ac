package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sha1n/mcp-lineage-server/internal/materialize"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Log level constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// ImportSettings configuration for archive import
type ImportSettings struct {
	BaseDir           string        `mapstructure:"base_dir"`
	VaultDir          string        `mapstructure:"vault_dir"`
	NotesFolder       string        `mapstructure:"notes_folder"`
	MediaFolder       string        `mapstructure:"media_folder"`
	Archives          []string      `mapstructure:"archives"`
	DecompressTimeout time.Duration `mapstructure:"decompress_timeout"`
	LockTimeout       time.Duration `mapstructure:"lock_timeout"`
	Overwrite         bool          `mapstructure:"overwrite"`
	MaxResults        int           `mapstructure:"max_results"`
	WatchDir          string        `mapstructure:"watch_dir"`

	// AliasPairs holds raw "canonical=custom" pairs as configured.
	AliasPairs []string `mapstructure:"property_aliases"`

	// PropertyAliases is parsed from AliasPairs.
	PropertyAliases map[string]string `mapstructure:"-"`
}

// MetricsSettings configuration for the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool `mapstructure:"enabled"`
}

// Settings application settings
type Settings struct {
	Transport string          `mapstructure:"transport"`
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	Import    ImportSettings  `mapstructure:"import"`
	Metrics   MetricsSettings `mapstructure:"metrics"`
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", LogLevelInfo)

	// Import defaults
	v.SetDefault("import.base_dir", defaultBaseDir())
	v.SetDefault("import.notes_folder", "Genealogy/Notes")
	v.SetDefault("import.media_folder", "Genealogy/Media")
	v.SetDefault("import.decompress_timeout", 30*time.Second)
	v.SetDefault("import.lock_timeout", 60*time.Second)
	v.SetDefault("import.overwrite", false)
	v.SetDefault("import.max_results", 20)
	v.SetDefault("metrics.enabled", false)

	// Environment variables
	v.SetEnvPrefix("LINEAGE_MCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Import env var bindings
	_ = v.BindEnv("import.base_dir", "LINEAGE_MCP_IMPORT_BASE_DIR")
	_ = v.BindEnv("import.vault_dir", "LINEAGE_MCP_IMPORT_VAULT_DIR")
	_ = v.BindEnv("import.notes_folder", "LINEAGE_MCP_IMPORT_NOTES_FOLDER")
	_ = v.BindEnv("import.media_folder", "LINEAGE_MCP_IMPORT_MEDIA_FOLDER")
	_ = v.BindEnv("import.archives", "LINEAGE_MCP_IMPORT_ARCHIVES")
	_ = v.BindEnv("import.decompress_timeout", "LINEAGE_MCP_IMPORT_DECOMPRESS_TIMEOUT")
	_ = v.BindEnv("import.lock_timeout", "LINEAGE_MCP_IMPORT_LOCK_TIMEOUT")
	_ = v.BindEnv("import.overwrite", "LINEAGE_MCP_IMPORT_OVERWRITE")
	_ = v.BindEnv("import.property_aliases", "LINEAGE_MCP_IMPORT_PROPERTY_ALIASES")
	_ = v.BindEnv("import.max_results", "LINEAGE_MCP_IMPORT_MAX_RESULTS")
	_ = v.BindEnv("import.watch_dir", "LINEAGE_MCP_IMPORT_WATCH_DIR")
	_ = v.BindEnv("metrics.enabled", "LINEAGE_MCP_METRICS_ENABLED")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		_ = v.BindPFlag("transport", flags.Lookup("transport"))
		_ = v.BindPFlag("host", flags.Lookup("host"))
		_ = v.BindPFlag("port", flags.Lookup("port"))
		_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

		// Import CLI flags
		_ = v.BindPFlag("import.base_dir", flags.Lookup("base-dir"))
		_ = v.BindPFlag("import.vault_dir", flags.Lookup("vault-dir"))
		_ = v.BindPFlag("import.notes_folder", flags.Lookup("notes-folder"))
		_ = v.BindPFlag("import.media_folder", flags.Lookup("media-folder"))
		_ = v.BindPFlag("import.archives", flags.Lookup("archives"))
		_ = v.BindPFlag("import.decompress_timeout", flags.Lookup("decompress-timeout"))
		_ = v.BindPFlag("import.lock_timeout", flags.Lookup("lock-timeout"))
		_ = v.BindPFlag("import.overwrite", flags.Lookup("overwrite"))
		_ = v.BindPFlag("import.property_aliases", flags.Lookup("property-aliases"))
		_ = v.BindPFlag("import.max_results", flags.Lookup("max-results"))
		_ = v.BindPFlag("import.watch_dir", flags.Lookup("watch-dir"))
		_ = v.BindPFlag("metrics.enabled", flags.Lookup("metrics-enabled"))
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))

	// Handle explicit parsing of comma-separated env lists
	settings.Import.Archives = splitEnvList("LINEAGE_MCP_IMPORT_ARCHIVES", settings.Import.Archives)
	settings.Import.AliasPairs = splitEnvList("LINEAGE_MCP_IMPORT_PROPERTY_ALIASES", settings.Import.AliasPairs)

	aliases, err := ParsePropertyAliases(settings.Import.AliasPairs)
	if err != nil {
		return nil, err
	}
	settings.Import.PropertyAliases = aliases

	// Expand home directory in paths
	settings.Import.BaseDir = expandHomeDir(settings.Import.BaseDir)
	settings.Import.VaultDir = expandHomeDir(settings.Import.VaultDir)
	settings.Import.WatchDir = expandHomeDir(settings.Import.WatchDir)
	for i := range settings.Import.Archives {
		settings.Import.Archives[i] = expandHomeDir(settings.Import.Archives[i])
	}

	return &settings, nil
}

// ParsePropertyAliases parses "canonical=custom" pairs into a map.
func ParsePropertyAliases(pairs []string) (map[string]string, error) {
	aliases := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("invalid property alias %q, expected canonical=custom", pair)
		}
		aliases[key] = value
	}
	return aliases, nil
}

// splitEnvList splits a comma-separated env var when viper delivered it as
// a single element, then trims and drops empty entries.
func splitEnvList(envName string, values []string) []string {
	if raw := os.Getenv(envName); raw != "" {
		if len(values) == 0 || (len(values) == 1 && strings.Contains(values[0], ",")) {
			values = strings.Split(raw, ",")
		}
	}
	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}
	return filterEmptyStrings(values)
}

// defaultBaseDir returns the default state directory
func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lineage-mcp"
	}
	return filepath.Join(home, ".lineage-mcp")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for invalid or incomplete configuration.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	switch s.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, "":
		// valid
	default:
		return errors.New("log-level must be one of debug, info, warn, error, got: " + s.LogLevel)
	}

	return validateImportSettings(&s.Import)
}

// validateImportSettings validates the import configuration
func validateImportSettings(i *ImportSettings) error {
	if i.BaseDir == "" {
		return errors.New("base-dir cannot be empty")
	}

	if i.DecompressTimeout <= 0 {
		return errors.New("decompress-timeout must be positive")
	}

	if i.LockTimeout <= 0 {
		return errors.New("lock-timeout must be positive")
	}

	if i.MaxResults <= 0 {
		return errors.New("max-results must be positive")
	}

	if strings.TrimSpace(i.NotesFolder) == "" {
		return errors.New("notes-folder cannot be empty")
	}

	if strings.TrimSpace(i.MediaFolder) == "" {
		return errors.New("media-folder cannot be empty")
	}

	if (len(i.Archives) > 0 || i.WatchDir != "") && i.VaultDir == "" {
		return errors.New("archives and watch-dir require vault-dir")
	}

	return materialize.Aliases(i.PropertyAliases).Validate()
}
