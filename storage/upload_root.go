package storage

import (
	"cursed-archive/contract"
	"cursed-archive/errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UploadRoot is the single directory every received file lands in.
// Only base names are accepted so nothing is written outside of it.
type UploadRoot struct {
	dir string
}

func NewUploadRoot(dir string) *UploadRoot {
	return &UploadRoot{dir: filepath.Clean(dir)}
}

func (r *UploadRoot) Dir() string {
	return r.dir
}

// Ensure creates the root directory if it's missing.
func (r *UploadRoot) Ensure() error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating upload root %s: %v", errors.ErrStorageWrite, r.dir, err)
	}
	return nil
}

func (r *UploadRoot) Path(baseName string) (string, error) {
	if baseName == "" || baseName == "." || baseName == ".." ||
		strings.ContainsAny(baseName, `/\`) {
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidFileName, baseName)
	}
	return filepath.Join(r.dir, baseName), nil
}

// Create truncates or creates <root>/<baseName>. Writes go straight to the final
// path, an interrupted transfer leaves a partial file behind.
func (r *UploadRoot) Create(baseName string) (contract.Destination, string, error) {
	path, err := r.Path(baseName)
	if err != nil {
		return nil, "", err
	}
	if err := r.Ensure(); err != nil {
		return nil, "", err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errors.ErrStorageWrite, err)
	}
	return f, path, nil
}
