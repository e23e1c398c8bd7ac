package importer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	// ManifestVersion is the current schema version
	ManifestVersion = 1

	// ManifestFilename is the default manifest filename
	ManifestFilename = "manifest.json"
)

// Manifest records the outcome of every archive import, keyed by the
// archive's absolute path.
type Manifest struct {
	Version    int                    `json:"version"`
	LastImport time.Time              `json:"last_import"`
	Imports    map[string]ImportState `json:"imports"`
	mu         sync.RWMutex           `json:"-"`
}

// ImportState is the recorded outcome of the latest import of one archive.
type ImportState struct {
	Archive     string    `json:"archive"`
	Fingerprint string    `json:"fingerprint"`
	Folder      string    `json:"folder"`
	ImportedAt  time.Time `json:"imported_at"`
	Notes       int       `json:"notes"`
	Failed      int       `json:"failed"`
	Attachments int       `json:"attachments"`
	Error       string    `json:"error,omitempty"`
}

// NewManifest creates a new empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Version: ManifestVersion,
		Imports: make(map[string]ImportState),
	}
}

// LoadManifest reads a manifest from disk, or creates a new one if it doesn't exist.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(), nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if manifest.Imports == nil {
		manifest.Imports = make(map[string]ImportState)
	}
	return &manifest, nil
}

// Save writes the manifest to disk through a temp file and rename.
func (m *Manifest) Save(path string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create manifest temp file: %w", err)
	}
	tempPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write manifest temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to close manifest temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}
	return nil
}

// Get returns the recorded state of an archive.
func (m *Manifest) Get(archive string) (ImportState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.Imports[archive]
	return state, ok
}

// Record stores the state of an archive and bumps LastImport.
func (m *Manifest) Record(state ImportState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Imports[state.Archive] = state
	m.LastImport = state.ImportedAt
}

// RecordError stores a failed import, keeping the previous fingerprint so
// a later retry of unchanged content is not mistaken for a success.
func (m *Manifest) RecordError(archive, folder string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.Imports[archive]
	state.Archive = archive
	state.Folder = folder
	state.ImportedAt = time.Now()
	state.Error = err.Error()
	m.Imports[archive] = state
}

// IsCurrent reports whether archive was already imported without error
// into folder with content matching fingerprint.
func (m *Manifest) IsCurrent(archive, fingerprint, folder string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.Imports[archive]
	return ok && state.Error == "" && state.Fingerprint == fingerprint && state.Folder == folder
}

// Archives returns the recorded archive paths in sorted order.
func (m *Manifest) Archives() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	archives := make([]string, 0, len(m.Imports))
	for archive := range m.Imports {
		archives = append(archives, archive)
	}
	sort.Strings(archives)
	return archives
}

// Errors returns the archives whose latest import failed.
func (m *Manifest) Errors() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]string)
	for archive, state := range m.Imports {
		if state.Error != "" {
			result[archive] = state.Error
		}
	}
	return result
}
