package ident

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID(t *testing.T) {
	t.Run("returns parseable uuids", func(t *testing.T) {
		id := NewUUID().NewID()
		_, err := uuid.Parse(id)
		require.NoError(t, err)
	})

	t.Run("generates unique IDs", func(t *testing.T) {
		alloc := NewUUID()
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id := alloc.NewID()
			assert.False(t, seen[id])
			seen[id] = true
		}
	})
}

func TestSequence(t *testing.T) {
	t.Run("counts from one", func(t *testing.T) {
		seq := NewSequence("n")
		assert.Equal(t, "n-1", seq.NewID())
		assert.Equal(t, "n-2", seq.NewID())
	})

	t.Run("is safe for concurrent use", func(t *testing.T) {
		seq := NewSequence("c")
		var mu sync.Mutex
		seen := make(map[string]bool)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					id := seq.NewID()
					mu.Lock()
					seen[id] = true
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Len(t, seen, 800)
	})
}

func TestOrDefault(t *testing.T) {
	assert.IsType(t, UUID{}, OrDefault(nil))
	seq := NewSequence("x")
	assert.Same(t, seq, OrDefault(seq))
}
