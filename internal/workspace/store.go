// Package workspace owns the workspace aggregate: projects, selection, the
// dirty set and the clipboard. Every change produces a new State that is
// swapped in atomically.
package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/ident"
	"github.com/artpar/apiary/internal/storage"
	"github.com/artpar/apiary/internal/tree"
	"github.com/hashicorp/go-hclog"
)

// DefaultSaveDebounce is how long the store waits after a change before saving.
const DefaultSaveDebounce = 500 * time.Millisecond

var (
	// ErrNotFound is returned when an id does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("workspace is closed")
)

// Store holds the current workspace State.
type Store struct {
	mu     sync.Mutex
	state  *State
	engine *tree.Engine
	alloc  ident.Allocator
	logger hclog.Logger

	persister storage.Persister
	executor  Executor
	debounce  time.Duration

	subMu       sync.Mutex
	subscribers map[int]func(*State)
	nextSub     int

	saveMu    sync.Mutex
	saveTimer *time.Timer
	writeMu   sync.Mutex

	sendSeq map[string]uint64
	closed  bool
}

// Option configures a Store.
type Option func(*Store)

// WithAllocator sets the id allocator. Defaults to UUIDs.
func WithAllocator(alloc ident.Allocator) Option {
	return func(s *Store) {
		s.alloc = alloc
	}
}

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithPersister enables loading and saving through p.
func WithPersister(p storage.Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithExecutor sets the collaborator used by Send.
func WithExecutor(e Executor) Option {
	return func(s *Store) {
		s.executor = e
	}
}

// WithSaveDebounce sets the delay between a change and the save it triggers.
// Zero saves synchronously after every change.
func WithSaveDebounce(d time.Duration) Option {
	return func(s *Store) {
		s.debounce = d
	}
}

// New creates a store holding a single empty project.
func New(opts ...Option) *Store {
	s := &Store{
		debounce:    DefaultSaveDebounce,
		subscribers: make(map[int]func(*State)),
		sendSeq:     make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.alloc = ident.OrDefault(s.alloc)
	if s.logger == nil {
		s.logger = hclog.NewNullLogger()
	}
	s.engine = tree.NewEngine(s.alloc)

	st := newState()
	p := core.NewProject(s.alloc, DefaultProjectName)
	st.Projects = []*core.Project{p}
	st.ActiveProjectID = p.ID
	s.state = st

	return s
}

// State returns the current snapshot.
func (s *Store) State() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to receive every new snapshot. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn func(*State)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

// update applies fn to a copy of the current state. If fn reports a change
// the copy becomes current, subscribers are notified and a save is scheduled.
func (s *Store) update(op string, fn func(st *State) bool) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	next := s.state.Clone()
	if !fn(next) {
		s.mu.Unlock()
		return false
	}
	next.Version++
	s.state = next
	s.mu.Unlock()

	s.logger.Debug("workspace updated", "op", op, "version", next.Version)
	s.notify(next)
	s.scheduleSave()
	return true
}

// replace installs a whole new state, used after loading.
func (s *Store) replace(st *State) {
	s.mu.Lock()
	st.Version = s.state.Version + 1
	s.state = st
	s.mu.Unlock()

	s.notify(st)
}

func (s *Store) notify(st *State) {
	s.subMu.Lock()
	subs := make([]func(*State), 0, len(s.subscribers))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subscribers[i]; ok {
			subs = append(subs, fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

// Open loads the persisted workspace and repairs it. A snapshot that cannot be
// loaded is logged and the workspace starts empty.
func (s *Store) Open(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	snap, err := s.persister.Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Error("failed to load workspace, starting empty", "error", err)
		return nil
	}
	if snap == nil {
		s.logger.Debug("no stored workspace")
		return nil
	}

	st, repairs := Repair(snap, s.alloc)
	for _, r := range repairs {
		s.logger.Warn("repaired workspace", "fix", r)
	}
	s.replace(st)
	s.logger.Info("workspace loaded", "projects", len(st.Projects))

	if len(repairs) > 0 {
		s.scheduleSave()
	}
	return nil
}

// Restore replaces the whole workspace with a stored snapshot, repairing it
// the way Open does. The restored state is saved as the newest version.
func (s *Store) Restore(snap *storage.Snapshot) error {
	if snap == nil {
		return ErrNotFound
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	st, repairs := Repair(snap, s.alloc)
	for _, r := range repairs {
		s.logger.Warn("repaired workspace", "fix", r)
	}
	s.replace(st)
	s.logger.Info("workspace restored", "projects", len(st.Projects))
	s.scheduleSave()
	return nil
}

func (s *Store) scheduleSave() {
	if s.persister == nil {
		return
	}
	if s.debounce <= 0 {
		if err := s.save(context.Background()); err != nil {
			s.logger.Error("failed to save workspace", "error", err)
		}
		return
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.AfterFunc(s.debounce, func() {
		if err := s.save(context.Background()); err != nil {
			s.logger.Error("failed to save workspace", "error", err)
		}
	})
}

// save writes the current state. Writes are serialized so a slow save never
// overwrites a newer one.
func (s *Store) save(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	st := s.state
	s.mu.Unlock()

	snap := st.toSnapshot()
	snap.SavedAt = time.Now()
	return s.persister.Save(ctx, snap)
}

// Flush cancels any pending debounced save and saves synchronously.
func (s *Store) Flush(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	s.saveMu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	s.saveMu.Unlock()

	return s.save(ctx)
}

// Close flushes the workspace and rejects further changes.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Flush(ctx)
}
