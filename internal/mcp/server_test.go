package mcp

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sha1n/mcp-lineage-server/internal/config"
	"github.com/sha1n/mcp-lineage-server/internal/importer"
	"github.com/sha1n/mcp-lineage-server/internal/vault"
)

func newImportService(t *testing.T) *importer.Service {
	t.Helper()
	settings := &config.ImportSettings{
		BaseDir:           filepath.Join(t.TempDir(), "state"),
		NotesFolder:       "Genealogy/Notes",
		MediaFolder:       "Genealogy/Media",
		DecompressTimeout: 5 * time.Second,
		LockTimeout:       5 * time.Second,
		MaxResults:        20,
	}

	svc, err := importer.NewService(settings, vault.NewMemory(), nil)
	if err != nil {
		t.Fatalf("Failed to create import service: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Close(); err != nil {
			t.Errorf("Failed to close service: %v", err)
		}
	})
	return svc
}

func TestCreateServer(t *testing.T) {
	cfg := ServerConfig{
		Name:    "test-server",
		Version: "1.0.0",
	}

	server := CreateServer(cfg)
	if server == nil {
		t.Fatal("Expected server to be created")
	}
}

func TestCreateServer_EmptyConfig(t *testing.T) {
	server := CreateServer(ServerConfig{})
	if server == nil {
		t.Fatal("Expected server to be created even with empty config")
	}
}

func TestCreateServer_WithImportService(t *testing.T) {
	svc := newImportService(t)
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	server := CreateServer(ServerConfig{
		Name:      "lineage-mcp",
		Version:   "1.0.0",
		ImportSvc: svc,
	})
	if server == nil {
		t.Fatal("Expected server to be created with import service")
	}
}
