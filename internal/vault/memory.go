package vault

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// Ensure Memory implements the interface.
var _ Vault = (*Memory)(nil)

// Memory is an in-memory Vault.
type Memory struct {
	mu      sync.RWMutex
	files   map[string][]byte
	folders map[string]bool
}

// NewMemory creates an empty in-memory vault.
func NewMemory() *Memory {
	return &Memory{
		files:   make(map[string][]byte),
		folders: make(map[string]bool),
	}
}

func (m *Memory) Exists(p string) bool {
	clean, err := CleanPath(p)
	if err != nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, isFile := m.files[clean]
	return isFile || m.folders[clean]
}

func (m *Memory) CreateFolder(p string) error {
	clean, err := CleanPath(p)
	if err != nil {
		return fmt.Errorf("%w: %q", err, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addFolders(clean)
	return nil
}

func (m *Memory) Create(p, content string) error {
	clean, err := CleanPath(p)
	if err != nil {
		return fmt.Errorf("%w: %q", err, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[clean]; ok || m.folders[clean] {
		return fmt.Errorf("%w: %s", ErrExists, p)
	}
	m.addFolders(path.Dir(clean))
	m.files[clean] = []byte(content)
	return nil
}

func (m *Memory) Modify(p, content string) error {
	clean, err := CleanPath(p)
	if err != nil {
		return fmt.Errorf("%w: %q", err, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[clean]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	m.files[clean] = []byte(content)
	return nil
}

func (m *Memory) WriteBinary(p string, data []byte) error {
	clean, err := CleanPath(p)
	if err != nil {
		return fmt.Errorf("%w: %q", err, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addFolders(path.Dir(clean))
	m.files[clean] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Read(p string) ([]byte, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, p)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[clean]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return append([]byte(nil), data...), nil
}

// Files returns the sorted paths of all stored files under prefix.
func (m *Memory) Files(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for p := range m.files {
		if prefix == "" || p == prefix || strings.HasPrefix(p, strings.TrimSuffix(prefix, "/")+"/") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// addFolders marks p and all of its parents as folders. Callers hold mu.
func (m *Memory) addFolders(p string) {
	for p != "." && p != "/" && p != "" {
		m.folders[p] = true
		p = path.Dir(p)
	}
}
