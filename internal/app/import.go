package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sha1n/mcp-lineage-server/internal/config"
	"github.com/sha1n/mcp-lineage-server/internal/importer"
	"github.com/spf13/pflag"
)

// ImportParams contains dependencies for the one-shot import
type ImportParams struct {
	LoadSettings  func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings func(*config.Settings) error
	Output        io.Writer
}

// DefaultImportParams returns production dependencies
func DefaultImportParams() ImportParams {
	return ImportParams{
		LoadSettings:  config.LoadSettingsWithFlags,
		ValidSettings: config.ValidateSettings,
		Output:        os.Stdout,
	}
}

// RunImport imports the given archives, or the configured startup archives
// when none are given, and writes one summary per archive to the output.
func RunImport(ctx context.Context, params ImportParams, flags *pflag.FlagSet, archives []string) error {
	settings, err := loadValidSettings(params.LoadSettings, params.ValidSettings, flags)
	if err != nil {
		return err
	}

	if settings.Import.VaultDir == "" {
		return errors.New("vault-dir is required for import")
	}
	if len(archives) == 0 {
		archives = settings.Import.Archives
	}
	if len(archives) == 0 {
		return errors.New("no archives to import")
	}

	var folder string
	if flags != nil {
		folder, _ = flags.GetString("folder")
	}

	svc, err := newImportService(&settings.Import, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Error("Failed to close import service", "error", err)
		}
	}()

	out := params.Output
	if out == nil {
		out = io.Discard
	}

	failed := 0
	for _, archivePath := range archives {
		summary, err := svc.Import(ctx, archivePath, importer.ImportOptions{
			Folder:    folder,
			Overwrite: settings.Import.Overwrite,
		})
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(out, "Failed to import %s: %v\n\n", archivePath, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\n\n", summary)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d archive import(s) failed", failed, len(archives))
	}
	return nil
}
