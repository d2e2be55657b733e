// Package logging builds the leveled loggers used across apiary.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
)

const (
	// maxLogSize is the size at which a log file is rotated (5 MB).
	maxLogSize = 5 * 1024 * 1024
	// maxLogBackups is the number of rotated log files kept.
	maxLogBackups = 3
)

// Options configures New.
type Options struct {
	// Name is the root logger name.
	Name string
	// Debug lowers the level to DEBUG; the default is INFO.
	Debug bool
	// JSON switches to JSON lines.
	JSON bool
	// File, when set, appends to this path instead of writing to Output.
	File string
	// Output defaults to stderr.
	Output io.Writer
	// Fs is the filesystem holding File; defaults to the OS.
	Fs afero.Fs
}

// New builds a logger. The returned close function releases the log file
// and is never nil.
func New(opts Options) (hclog.Logger, func() error, error) {
	level := hclog.Info
	if opts.Debug {
		level = hclog.Debug
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	closer := func() error { return nil }

	if opts.File != "" {
		fs := opts.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		if err := fs.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, closer, fmt.Errorf("failed to create log directory: %w", err)
		}
		if err := rotateIfNeeded(fs, opts.File); err != nil {
			return nil, closer, fmt.Errorf("failed to rotate log file: %w", err)
		}
		f, err := fs.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closer, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		out = f
		closer = f.Close
	}

	name := opts.Name
	if name == "" {
		name = "apiary"
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:            name,
		Level:           level,
		Output:          out,
		JSONFormat:      opts.JSON,
		IncludeLocation: opts.Debug,
	})
	return logger, closer, nil
}

// rotateIfNeeded shifts path to path.1, path.1 to path.2 and so on once
// path exceeds maxLogSize.
func rotateIfNeeded(fs afero.Fs, path string) error {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() < maxLogSize {
		return nil
	}

	for i := maxLogBackups; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", path, i)
		if i == maxLogBackups {
			_ = fs.Remove(src)
			continue
		}
		if _, err := fs.Stat(src); err == nil {
			if err := fs.Rename(src, fmt.Sprintf("%s.%d", path, i+1)); err != nil {
				return err
			}
		}
	}
	return fs.Rename(path, path+".1")
}
