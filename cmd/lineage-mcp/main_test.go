package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExecute_Version(t *testing.T) {
	err := Execute("1.0.0", "abc123", "lineage-mcp", []string{"--version"})
	if err != nil {
		t.Errorf("Expected no error for --version, got: %v", err)
	}
}

func TestExecute_Help(t *testing.T) {
	err := Execute("1.0.0", "abc123", "lineage-mcp", []string{"--help"})
	if err != nil {
		t.Errorf("Expected no error for --help, got: %v", err)
	}
}

func TestExecute_ImportHelp(t *testing.T) {
	err := Execute("1.0.0", "abc123", "lineage-mcp", []string{"import", "--help"})
	if err != nil {
		t.Errorf("Expected no error for import --help, got: %v", err)
	}
}

func TestExecute_InvalidFlag(t *testing.T) {
	err := Execute("1.0.0", "abc123", "lineage-mcp", []string{"--invalid-flag"})
	if err == nil {
		t.Error("Expected error for invalid flag")
	}
}

func TestExecute_InvalidTransport(t *testing.T) {
	err := Execute("1.0.0", "abc123", "lineage-mcp", []string{"--transport", "invalid"})
	if err == nil {
		t.Fatal("Expected error for invalid transport")
	}
	if !strings.Contains(err.Error(), "transport") {
		t.Errorf("Expected error about transport, got: %v", err)
	}
}

func TestExecute_ImportRequiresVault(t *testing.T) {
	t.Setenv("LINEAGE_MCP_IMPORT_VAULT_DIR", "")
	err := Execute("1.0.0", "abc123", "lineage-mcp", []string{
		"import",
		"--base-dir", t.TempDir(),
		filepath.Join(t.TempDir(), "family.gpkg"),
	})
	if err == nil || !strings.Contains(err.Error(), "vault-dir") {
		t.Errorf("Expected vault-dir error, got: %v", err)
	}
}

func TestExecute_ImportMissingArchive(t *testing.T) {
	vaultDir := filepath.Join(t.TempDir(), "vault")
	err := Execute("1.0.0", "abc123", "lineage-mcp", []string{
		"import",
		"--base-dir", t.TempDir(),
		"--vault-dir", vaultDir,
		filepath.Join(t.TempDir(), "missing.gpkg"),
	})
	if err == nil || !strings.Contains(err.Error(), "1 of 1 archive import(s) failed") {
		t.Errorf("Expected import failure, got: %v", err)
	}
	if _, statErr := os.Stat(vaultDir); statErr != nil {
		t.Errorf("Expected vault directory to be created: %v", statErr)
	}
}

func TestRunMain_Success(t *testing.T) {
	exitCode := -1
	mockExit := func(code int) {
		exitCode = code
	}

	// --help should succeed
	runMain([]string{"lineage-mcp", "--help"}, mockExit)

	if exitCode != -1 {
		t.Errorf("Expected no exit call for --help, got exit code: %d", exitCode)
	}
}

func TestRunMain_Failure(t *testing.T) {
	exitCode := -1
	mockExit := func(code int) {
		exitCode = code
	}

	runMain([]string{"lineage-mcp", "--invalid"}, mockExit)

	if exitCode != 1 {
		t.Errorf("Expected exit code 1 for invalid flag, got: %d", exitCode)
	}
}
