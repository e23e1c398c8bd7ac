package config

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == "sse" {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
		logger.InfoContext(ctx, "Config: metrics.enabled", "value", s.Metrics.Enabled)
	}
	logger.InfoContext(ctx, "Config: log_level", "value", s.LogLevel)

	logger.InfoContext(ctx, "Config: import.base_dir", "value", s.Import.BaseDir)
	if s.Import.VaultDir == "" {
		logger.InfoContext(ctx, "Config: import.vault_dir", "value", "(unset, import disabled)")
		return
	}
	logger.InfoContext(ctx, "Config: import.vault_dir", "value", s.Import.VaultDir)
	logger.InfoContext(ctx, "Config: import.notes_folder", "value", s.Import.NotesFolder)
	logger.InfoContext(ctx, "Config: import.media_folder", "value", s.Import.MediaFolder)
	logger.InfoContext(ctx, "Config: import.archives", "count", len(s.Import.Archives))
	logger.InfoContext(ctx, "Config: import.overwrite", "value", s.Import.Overwrite)
	if len(s.Import.PropertyAliases) > 0 {
		logger.InfoContext(ctx, "Config: import.property_aliases", "value", formatAliases(s.Import.PropertyAliases))
	}
	if s.Import.WatchDir != "" {
		logger.InfoContext(ctx, "Config: import.watch_dir", "value", s.Import.WatchDir)
	}
}

// ImportSettingsLogValue returns a slog.Value for ImportSettings
func ImportSettingsLogValue(s ImportSettings) slog.Value {
	return slog.GroupValue(
		slog.String("base_dir", s.BaseDir),
		slog.String("vault_dir", s.VaultDir),
		slog.String("notes_folder", s.NotesFolder),
		slog.String("media_folder", s.MediaFolder),
		slog.Int("archives", len(s.Archives)),
		slog.Duration("decompress_timeout", s.DecompressTimeout),
		slog.Duration("lock_timeout", s.LockTimeout),
		slog.Bool("overwrite", s.Overwrite),
		slog.String("property_aliases", formatAliases(s.PropertyAliases)),
	)
}

// SettingsLogValue returns a slog.Value for Settings
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.String("log_level", s.LogLevel),
		slog.Any("import", ImportSettingsLogValue(s.Import)),
	)
}

// ParseLevel maps a log level name to a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// formatAliases renders aliases as sorted "k=v" pairs
func formatAliases(aliases map[string]string) string {
	pairs := make([]string, 0, len(aliases))
	for k, v := range aliases {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}
