package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sha1n/mcp-lineage-server/internal/config"
	"github.com/sha1n/mcp-lineage-server/internal/importer"
	mcputil "github.com/sha1n/mcp-lineage-server/internal/mcp"
	"github.com/sha1n/mcp-lineage-server/internal/vault"
	"github.com/spf13/pflag"
)

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*mcp.Server, *config.Settings, prometheus.Gatherer) error
	CreateServer      func(*config.Settings, prometheus.Registerer) (*mcp.Server, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO

	// Registry collects the import metrics. A fresh registry is used when nil.
	Registry *prometheus.Registry
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
		Registry:       prometheus.NewRegistry(),
	}
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := loadValidSettings(params.LoadSettings, params.ValidSettings, flags)
	if err != nil {
		return err
	}

	slog.Info("Starting MCP lineage server", "version", version)
	config.Log(settings)

	registry := params.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	mcpServer, cleanup, err := params.CreateServer(settings, registry)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	// Start server
	if settings.Transport == "stdio" {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return mcpServer.Run(ctx, transport)
	}

	slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
	return params.StartSSEServer(mcpServer, settings, registry)
}

// loadValidSettings loads and validates settings and installs the default
// logger at the configured level.
func loadValidSettings(
	load func(*pflag.FlagSet) (*config.Settings, error),
	validate func(*config.Settings) error,
	flags *pflag.FlagSet,
) (*config.Settings, error) {
	settings, err := load(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if err := validate(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Always log to stderr, stdout carries the stdio transport
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLevel(settings.LogLevel)})
	slog.SetDefault(slog.New(handler))

	return settings, nil
}

// CreateMCPServer creates the MCP server with registered tools
func CreateMCPServer(settings *config.Settings, reg prometheus.Registerer) (*mcp.Server, func(), error) {
	var importSvc *importer.Service
	var cleanup func()

	if settings.Import.VaultDir == "" {
		slog.Warn("No vault directory configured, import tools disabled")
	} else {
		svc, err := newImportService(&settings.Import, importer.NewMetrics(reg))
		if err != nil {
			return nil, nil, err
		}

		// Initialize in background context (not tied to request context)
		if err := svc.Initialize(context.Background()); err != nil {
			slog.Error("Import service initialization failed", "error", err)
			// Close service on initialization failure and continue without it
			if closeErr := svc.Close(); closeErr != nil {
				slog.Error("Failed to close import service", "error", closeErr)
			}
		} else {
			importSvc = svc
			stopWatcher := startWatcher(svc, settings.Import.WatchDir)
			cleanup = func() {
				stopWatcher()
				if err := svc.Close(); err != nil {
					slog.Error("Failed to close import service", "error", err)
				}
			}
		}
	}

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:      "lineage-mcp",
		Version:   "1.0.0",
		ImportSvc: importSvc,
	})

	return server, cleanup, nil
}

// newImportService opens the vault and creates the import service.
func newImportService(settings *config.ImportSettings, metrics *importer.Metrics) (*importer.Service, error) {
	v, err := vault.NewDir(settings.VaultDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}

	svc, err := importer.NewService(settings, v, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create import service: %w", err)
	}
	return svc, nil
}

// startWatcher watches dir for new archives in the background and returns
// a function that stops it. It is a no-op when dir is empty.
func startWatcher(svc *importer.Service, dir string) func() {
	if dir == "" {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	watcher := importer.NewWatcher(dir, importer.DefaultDebounce, func(ctx context.Context, path string) error {
		summary, err := svc.Import(ctx, path, importer.ImportOptions{Overwrite: svc.GetSettings().Overwrite})
		if err != nil {
			return err
		}
		slog.Info("Inbox archive imported", "archive", path, "skipped", summary.Skipped, "notes", summary.Notes, "failed", summary.Failed)
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := watcher.Run(ctx); err != nil {
			slog.Error("Inbox watcher stopped", "dir", dir, "error", err)
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}
