// Package ident issues the opaque identifiers carried by every workspace node.
package ident

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Allocator issues identifiers that are unique for the lifetime of the process.
type Allocator interface {
	NewID() string
}

// UUID allocates random (version 4) UUID strings.
type UUID struct{}

// NewUUID returns the production allocator.
func NewUUID() UUID {
	return UUID{}
}

// NewID returns a fresh UUID string.
func (UUID) NewID() string {
	return uuid.New().String()
}

// Sequence allocates prefix-1, prefix-2, ... and is safe for concurrent use.
// It produces deterministic ids for fixtures and tests.
type Sequence struct {
	prefix string
	next   atomic.Uint64
}

// NewSequence creates a sequence allocator with the given prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// NewID returns the next id in the sequence.
func (s *Sequence) NewID() string {
	n := s.next.Add(1)
	return s.prefix + "-" + strconv.FormatUint(n, 10)
}

// OrDefault returns alloc, or the UUID allocator when alloc is nil.
func OrDefault(alloc Allocator) Allocator {
	if alloc == nil {
		return UUID{}
	}
	return alloc
}
