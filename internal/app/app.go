// Package app wires configuration, logging, persistence, the executor and
// the workspace store into one container.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/exporter"
	"github.com/artpar/apiary/internal/ident"
	"github.com/artpar/apiary/internal/importer"
	"github.com/artpar/apiary/internal/logging"
	httpclient "github.com/artpar/apiary/internal/protocol/http"
	"github.com/artpar/apiary/internal/storage"
	"github.com/artpar/apiary/internal/storage/filesystem"
	"github.com/artpar/apiary/internal/storage/sqlite"
	"github.com/artpar/apiary/internal/workspace"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// SQLiteFileName is the snapshot database inside the data directory.
const SQLiteFileName = "workspace.db"

// App is the main application container with dependency injection.
type App struct {
	config    Config
	logger    hclog.Logger
	alloc     ident.Allocator
	fs        afero.Fs
	persister storage.Persister
	executor  workspace.Executor
	store     *workspace.Store
	importers *importer.Registry
	exporters *exporter.Registry
	closers   []func() error
}

// Option is a function that configures the App.
type Option func(*App)

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger hclog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithAllocator sets the id allocator shared by the store and importers.
func WithAllocator(alloc ident.Allocator) Option {
	return func(a *App) {
		a.alloc = alloc
	}
}

// WithFs sets the filesystem used by the yaml backend.
func WithFs(fs afero.Fs) Option {
	return func(a *App) {
		a.fs = fs
	}
}

// WithPersister replaces the backend selected by the configuration.
func WithPersister(p storage.Persister) Option {
	return func(a *App) {
		a.persister = p
	}
}

// WithExecutor replaces the HTTP client.
func WithExecutor(e workspace.Executor) Option {
	return func(a *App) {
		a.executor = e
	}
}

// New validates cfg, builds every collaborator that was not injected and
// opens the workspace.
func New(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	a.alloc = ident.OrDefault(a.alloc)
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}

	if a.logger == nil {
		logger, closeLog, err := logging.New(logging.Options{
			Name:  "apiary",
			Debug: cfg.Debug,
			File:  cfg.LogFile,
			Fs:    a.fs,
		})
		if err != nil {
			return nil, err
		}
		a.logger = logger
		a.closers = append(a.closers, closeLog)
	}

	if a.persister == nil {
		p, err := a.openPersister()
		if err != nil {
			a.closeAll()
			return nil, err
		}
		a.persister = p
	}

	if a.executor == nil {
		a.executor = httpclient.NewClient(httpclient.WithTimeout(cfg.Timeout))
	}

	a.store = workspace.New(
		workspace.WithAllocator(a.alloc),
		workspace.WithLogger(a.logger.Named("workspace")),
		workspace.WithPersister(a.persister),
		workspace.WithExecutor(a.executor),
		workspace.WithSaveDebounce(cfg.SaveDebounce),
	)
	if err := a.store.Open(ctx); err != nil {
		a.closeAll()
		return nil, err
	}

	a.importers = importer.NewDefaultRegistry(a.alloc)
	a.exporters = exporter.NewDefaultRegistry()

	a.logger.Debug("app ready", "backend", cfg.Backend, "data_dir", cfg.DataDir)
	return a, nil
}

func (a *App) openPersister() (storage.Persister, error) {
	switch a.config.Backend {
	case BackendSQLite:
		if err := a.fs.MkdirAll(a.config.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		db, err := sqlite.New(filepath.Join(a.config.DataDir, SQLiteFileName), a.config.HistoryLimit)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return db, nil
	case BackendMemory:
		return storage.NewMemory(), nil
	default:
		return filesystem.New(a.fs, a.config.DataDir)
	}
}

// Config returns the application configuration.
func (a *App) Config() Config {
	return a.config
}

// Logger returns the root logger.
func (a *App) Logger() hclog.Logger {
	return a.logger
}

// Store returns the workspace store.
func (a *App) Store() *workspace.Store {
	return a.store
}

// Persister returns the active persistence backend.
func (a *App) Persister() storage.Persister {
	return a.persister
}

// Importers returns the importer registry.
func (a *App) Importers() *importer.Registry {
	return a.importers
}

// Exporters returns the exporter registry.
func (a *App) Exporters() *exporter.Registry {
	return a.exporters
}

// Import converts content and adds the result to the workspace as the
// active project. An empty format auto-detects.
func (a *App) Import(ctx context.Context, format importer.Format, content []byte) (*importer.ImportResult, string, error) {
	result, err := a.importers.Import(ctx, format, content)
	if err != nil {
		return nil, "", err
	}
	id := a.store.ImportProject(result.Project)
	a.logger.Info("imported project",
		"format", result.SourceFormat,
		"requests", result.RequestCount,
		"folders", result.FolderCount)
	return result, id, nil
}

// Export converts a project. An empty id exports the active project.
func (a *App) Export(ctx context.Context, format exporter.Format, projectID string) (*exporter.ExportResult, error) {
	st := a.store.State()
	var p *core.Project
	if projectID == "" {
		p = st.ActiveProject()
	} else {
		p = st.Project(projectID)
	}
	if p == nil {
		return nil, fmt.Errorf("project %q: %w", projectID, workspace.ErrNotFound)
	}
	return a.exporters.Export(ctx, format, p)
}

// Close flushes the workspace and releases every resource.
func (a *App) Close(ctx context.Context) error {
	var result *multierror.Error
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := a.closeAll(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (a *App) closeAll() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.closers = nil
	return result.ErrorOrNil()
}
