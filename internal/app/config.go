package app

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/artpar/apiary/internal/storage/sqlite"
	"github.com/artpar/apiary/internal/workspace"
)

// Backend selects where the workspace is persisted.
type Backend string

const (
	BackendYAML   Backend = "yaml"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Config holds application-wide configuration.
type Config struct {
	// DataDir holds workspace.yaml or workspace.db.
	DataDir string

	Backend Backend

	// SaveDebounce is the delay between a change and the save it triggers.
	SaveDebounce time.Duration

	// Timeout bounds every request the executor sends.
	Timeout time.Duration

	// Debug enables debug logging
	Debug bool

	// LogFile, when set, receives the log instead of stderr.
	LogFile string

	// HistoryLimit is how many snapshots the sqlite backend keeps.
	HistoryLimit int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:      DefaultDataDir(),
		Backend:      BackendYAML,
		SaveDebounce: workspace.DefaultSaveDebounce,
		Timeout:      30 * time.Second,
		HistoryLimit: sqlite.DefaultHistoryLimit,
	}
}

// DefaultDataDir returns ~/.apiary, or .apiary when there is no home directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".apiary"
	}
	return filepath.Join(home, ".apiary")
}

// ConfigFromEnv overlays APIARY_* environment variables on the defaults.
// Values that do not parse are ignored.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if dir := os.Getenv("APIARY_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if backend := os.Getenv("APIARY_BACKEND"); backend != "" {
		cfg.Backend = Backend(backend)
	}
	if d, ok := envDuration("APIARY_SAVE_DEBOUNCE"); ok {
		cfg.SaveDebounce = d
	}
	if d, ok := envDuration("APIARY_TIMEOUT"); ok {
		cfg.Timeout = d
	}
	if debugStr := os.Getenv("APIARY_DEBUG"); debugStr != "" {
		if debug, err := strconv.ParseBool(debugStr); err == nil {
			cfg.Debug = debug
		}
	}
	if logFile := os.Getenv("APIARY_LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}
	if limit := os.Getenv("APIARY_HISTORY_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			cfg.HistoryLimit = n
		}
	}

	return cfg
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DataDir, validation.When(c.Backend != BackendMemory, validation.Required)),
		validation.Field(&c.Backend, validation.Required, validation.In(BackendYAML, BackendSQLite, BackendMemory)),
		validation.Field(&c.SaveDebounce, validation.Min(time.Duration(0))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.HistoryLimit, validation.Min(0)),
	)
}
