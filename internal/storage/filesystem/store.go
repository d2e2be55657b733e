// Package filesystem persists the workspace as one YAML document.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/apiary/internal/storage"
	"github.com/spf13/afero"
)

// DefaultFileName is the workspace document inside the data directory.
const DefaultFileName = "workspace.yaml"

// Store saves snapshots to a YAML file through an afero filesystem.
type Store struct {
	fs   afero.Fs
	path string
}

// New creates a store for dir on fs, creating the directory if needed.
func New(fs afero.Fs, dir string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Store{
		fs:   fs,
		path: filepath.Join(dir, DefaultFileName),
	}, nil
}

// NewOS creates a store on the operating system filesystem.
func NewOS(dir string) (*Store, error) {
	return New(afero.NewOsFs(), dir)
}

// Path returns the location of the workspace document.
func (s *Store) Path() string {
	return s.path
}

// Load reads the workspace document. A missing file yields (nil, nil). A
// document that cannot be parsed is moved aside so that the next save does
// not overwrite it, and the decode error is returned.
func (s *Store) Load(ctx context.Context) (*storage.Snapshot, error) {
	content, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace file: %w", err)
	}

	snap, err := storage.DecodeYAML(content)
	if err != nil {
		backup := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
		if renameErr := s.fs.Rename(s.path, backup); renameErr != nil {
			return nil, fmt.Errorf("%w (backup failed: %v)", err, renameErr)
		}
		return nil, fmt.Errorf("%w (moved to %s)", err, backup)
	}
	return snap, nil
}

// Save writes the snapshot atomically.
func (s *Store) Save(ctx context.Context, snap *storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := storage.EncodeYAML(snap)
	if err != nil {
		return err
	}

	if err := s.atomicWriteFile(content, 0644); err != nil {
		return fmt.Errorf("failed to write workspace file: %w", err)
	}
	return nil
}

// atomicWriteFile writes to a temp file in the same directory and renames it
// over the target.
func (s *Store) atomicWriteFile(data []byte, perm os.FileMode) error {
	f, err := afero.TempFile(s.fs, filepath.Dir(s.path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	success := false
	defer func() {
		if !success {
			s.fs.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := s.fs.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := s.fs.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}
