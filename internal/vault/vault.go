// Package vault stores materialized notes and attachments under
// slash-separated, vault-relative paths.
package vault

import (
	"errors"
	"path"
	"strings"
)

var (
	// ErrNotFound indicates the requested entry does not exist.
	ErrNotFound = errors.New("vault entry not found")

	// ErrExists indicates Create was called for an existing entry.
	ErrExists = errors.New("vault entry already exists")

	// ErrUnsafePath indicates a path that is absolute or escapes the vault root.
	ErrUnsafePath = errors.New("unsafe vault path")
)

// Vault is the persistence and existence collaborator for materialization.
type Vault interface {
	// Exists reports whether a file or folder exists at p.
	Exists(p string) bool

	// CreateFolder creates p and any missing parents.
	CreateFolder(p string) error

	// Create writes a new text file. It fails with ErrExists if p is taken.
	Create(p, content string) error

	// Modify replaces the content of an existing text file.
	// It fails with ErrNotFound if p does not exist.
	Modify(p, content string) error

	// WriteBinary creates or replaces a binary file, creating parent folders.
	WriteBinary(p string, data []byte) error

	// Read returns the content of a file.
	Read(p string) ([]byte, error)
}

// CleanPath normalizes a vault-relative path and rejects absolute paths and
// paths that climb above the vault root.
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" {
		return "", ErrUnsafePath
	}
	if strings.HasPrefix(p, "/") || (len(p) > 1 && p[1] == ':') {
		return "", ErrUnsafePath
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrUnsafePath
	}
	return clean, nil
}
