package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Ensure Dir implements the interface.
var _ Vault = (*Dir)(nil)

// Dir is a Vault rooted at a directory on the local filesystem.
type Dir struct {
	root string
}

// NewDir creates a filesystem vault rooted at root, creating it if needed.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault root: %w", err)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute vault root directory.
func (d *Dir) Root() string {
	return d.root
}

// Resolve maps a vault-relative path to an absolute path inside the root.
func (d *Dir) Resolve(p string) (string, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, p)
	}

	target := filepath.Join(d.root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(d.root, target)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, p)
	}
	return target, nil
}

func (d *Dir) Exists(p string) bool {
	target, err := d.Resolve(p)
	if err != nil {
		return false
	}
	_, err = os.Stat(target)
	return err == nil
}

func (d *Dir) CreateFolder(p string) error {
	target, err := d.Resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", p, err)
	}
	return nil
}

func (d *Dir) Create(p, content string) error {
	target, err := d.Resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", p, err)
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, p)
		}
		return fmt.Errorf("failed to create %s: %w", p, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return f.Close()
}

func (d *Dir) Modify(p, content string) error {
	target, err := d.Resolve(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return fmt.Errorf("failed to stat %s: %w", p, err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot modify folder %s", p)
	}
	return writeAtomic(target, []byte(content))
}

func (d *Dir) WriteBinary(p string, data []byte) error {
	target, err := d.Resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", p, err)
	}
	return writeAtomic(target, data)
}

func (d *Dir) Read(p string) ([]byte, error) {
	target, err := d.Resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// writeAtomic writes to a uniquely named temporary sibling and renames it
// into place, so concurrent writers of one target never share a temp file.
func writeAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, target); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
