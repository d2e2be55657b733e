package workspace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/ident"
	"github.com/artpar/apiary/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPersister struct {
	loadErr error
}

func (f failingPersister) Load(ctx context.Context) (*storage.Snapshot, error) {
	return nil, f.loadErr
}

func (f failingPersister) Save(ctx context.Context, snap *storage.Snapshot) error {
	return errors.New("disk full")
}

func TestPersistence_OpenLoadsAndRepairs(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()

	sample := storage.SampleSnapshot()
	sample.Projects[0].Environments = nil
	require.NoError(t, mem.Save(ctx, sample))

	s := newTestStore(WithPersister(mem))
	var notified *State
	s.Subscribe(func(st *State) { notified = st })

	require.NoError(t, s.Open(ctx))

	st := s.State()
	assert.Same(t, st, notified)
	require.Len(t, st.Projects, 1)
	assert.Equal(t, "Billing API", st.Projects[0].Name)
	assert.Len(t, st.Projects[0].Environments, 1)
	assert.Equal(t, sample.ActiveRequestID, st.ActiveRequestID)
	assert.NoError(t, Validate(st))
	assert.Equal(t, 2, mem.Saves(), "a repaired workspace is written back")
}

func TestPersistence_SavesEveryChange(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	s := newTestStore(WithPersister(mem))

	id := s.AddProject("Saved")
	s.Rename("missing", "x")
	assert.Equal(t, 1, mem.Saves())

	snap, err := mem.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Projects, 2)
	assert.Equal(t, id, snap.ActiveProjectID)

	reopened := New(WithPersister(mem), WithAllocator(ident.NewSequence("x")))
	require.NoError(t, reopened.Open(ctx))
	assert.Equal(t, "Saved", reopened.State().ActiveProject().Name)
}

func TestPersistence_Debounced(t *testing.T) {
	mem := storage.NewMemory()
	s := New(WithPersister(mem), WithSaveDebounce(50*time.Millisecond))

	for i := 0; i < 5; i++ {
		s.AddProject("p")
	}
	assert.Equal(t, 0, mem.Saves())
	assert.Eventually(t, func() bool { return mem.Saves() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPersistence_FlushAndClose(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	s := New(WithPersister(mem), WithSaveDebounce(time.Hour))

	s.AddProject("Pending")
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 1, mem.Saves())

	require.NoError(t, s.Close(ctx))
	assert.Equal(t, 2, mem.Saves())
	require.NoError(t, s.Close(ctx))

	assert.Empty(t, s.AddProject("Rejected"))
}

func TestPersistence_SendAfterClose(t *testing.T) {
	ctx := context.Background()
	s, req := setupSend(t, ExecutorFunc(func(context.Context, core.RequestDefinition) (*core.Response, error) {
		return &core.Response{Status: 200}, nil
	}))
	require.NoError(t, s.Close(ctx))

	_, err := s.Send(ctx, req)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPersistence_LoadFailureStartsEmpty(t *testing.T) {
	s := newTestStore(WithPersister(failingPersister{loadErr: storage.ErrInvalidDocument}))
	require.NoError(t, s.Open(context.Background()))
	assert.Len(t, s.State().Projects, 1)

	assert.Error(t, s.Flush(context.Background()))
}

func TestPersistence_NoPersister(t *testing.T) {
	s := newTestStore()
	assert.NoError(t, s.Open(context.Background()))
	assert.NoError(t, s.Flush(context.Background()))
	assert.NoError(t, s.Close(context.Background()))
}

func TestPersistence_Restore(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	s := newTestStore(WithPersister(mem))
	s.AddProject("Current")

	sample := storage.SampleSnapshot()
	sample.Projects[0].Environments = nil
	var notified *State
	s.Subscribe(func(st *State) { notified = st })

	require.NoError(t, s.Restore(sample))

	st := s.State()
	assert.Same(t, st, notified)
	require.Len(t, st.Projects, 1)
	assert.Equal(t, "Billing API", st.Projects[0].Name)
	assert.Len(t, st.Projects[0].Environments, 1)
	assert.NoError(t, Validate(st))

	saved, err := mem.Load(ctx)
	require.NoError(t, err)
	require.Len(t, saved.Projects, 1)
	assert.Equal(t, "Billing API", saved.Projects[0].Name)

	t.Run("nil snapshot", func(t *testing.T) {
		assert.ErrorIs(t, s.Restore(nil), ErrNotFound)
	})

	t.Run("closed store", func(t *testing.T) {
		require.NoError(t, s.Close(ctx))
		assert.ErrorIs(t, s.Restore(storage.SampleSnapshot()), ErrClosed)
	})
}
