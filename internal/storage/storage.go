// Package storage defines how a workspace snapshot is persisted.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/artpar/apiary/internal/core"
)

var (
	// ErrInvalidDocument is returned when stored data cannot be decoded at all.
	ErrInvalidDocument = errors.New("invalid workspace document")
)

// Snapshot is the full serialized workspace: every project plus selection state.
type Snapshot struct {
	Projects        []*core.Project
	ActiveProjectID string
	ActiveRequestID string
	SelectedItemID  string
	Dirty           []string
	Clipboard       *core.Clipboard
	SavedAt         time.Time
}

// Persister loads and saves whole snapshots.
type Persister interface {
	// Load returns the stored snapshot, or nil when nothing has been stored yet.
	Load(ctx context.Context) (*Snapshot, error)
	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap *Snapshot) error
}

// Memory is an in-process Persister. Snapshots are stored encoded so that
// loads never alias saved state.
type Memory struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemory creates an empty in-memory persister.
func NewMemory() *Memory {
	return &Memory{}
}

// Load decodes the last saved snapshot.
func (m *Memory) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return nil, nil
	}
	return DecodeJSON(m.data)
}

// Save encodes and stores the snapshot.
func (m *Memory) Save(ctx context.Context, snap *Snapshot) error {
	data, err := EncodeJSON(snap)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
