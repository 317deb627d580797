// Package artifacts stores uploaded proof files (shipment and payment
// proofs) on the local file system. Uploads happen outside the loan
// transaction; the core records the returned reference and, on rollback,
// asks this store to delete the file again.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is the interface for proof-artifact operations.
type Store interface {
	// Write atomically stores content under ref (relative to the root).
	Write(ref string, content []byte) error
	// Read returns the raw bytes of the artifact at ref.
	Read(ref string) ([]byte, error)
	// Delete removes the artifact at ref. Used as a compensating action.
	Delete(ref string) error
	// Exists reports whether ref is present.
	Exists(ref string) bool
}

// FS implements Store backed by the local file system.
type FS struct {
	root string // absolute path to the artifacts directory
}

// Verify *FS satisfies Store at compile time.
var _ Store = (*FS)(nil)

// NewFS creates a new FS store rooted at the given directory, creating it
// if needed.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("artifacts: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create root: %w", err)
	}
	return &FS{root: abs}, nil
}

// safePath resolves a relative ref against the root and rejects any result
// that escapes it (directory traversal).
func (f *FS) safePath(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("artifacts: empty ref")
	}
	cleaned := filepath.Clean(ref)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("artifacts: absolute refs not allowed: %s", ref)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("artifacts: resolve ref: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("artifacts: ref escapes root: %s", ref)
	}
	return abs, nil
}

// Write atomically writes content: tmp file, fsync, rename.
func (f *FS) Write(ref string, content []byte) error {
	abs, err := f.safePath(ref)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifacts: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".fehu-tmp-*")
	if err != nil {
		return fmt.Errorf("artifacts: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("artifacts: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("artifacts: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifacts: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("artifacts: rename: %w", err)
	}
	success = true
	return nil
}

// Read returns the raw bytes of an artifact.
func (f *FS) Read(ref string) ([]byte, error) {
	abs, err := f.safePath(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("artifacts: read %s: %w", ref, err)
	}
	return data, nil
}

// Delete removes an artifact.
func (f *FS) Delete(ref string) error {
	abs, err := f.safePath(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("artifacts: delete %s: %w", ref, err)
	}
	return nil
}

// Exists reports whether an artifact is present.
func (f *FS) Exists(ref string) bool {
	abs, err := f.safePath(ref)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}
