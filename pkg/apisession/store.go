// Package apisession keeps small per-client state for API handlers,
// keyed by an opaque session id the client sends with each request.
// The replay endpoint uses it for scrub cursors: the watch UI pages
// through a recording chunk by chunk and the server remembers where
// each client stopped.
package apisession

import (
	"sync"
	"time"
)

// Get triggers a sweep of idle entries once per this many calls, so
// abandoned sessions disappear without a background goroutine.
const sweepEvery = 128

type entry[T any] struct {
	value    *T
	lastSeen time.Time
}

// Store maps session ids to one T each, created on first access.
// Entries idle longer than the TTL are evicted.
type Store[T any] struct {
	mu     sync.Mutex
	active map[string]*entry[T]
	ttl    time.Duration
	newFn  func() *T
	gets   int
}

// New creates a Store evicting sessions idle longer than ttl. newFn
// builds the initial state for an unseen session id.
func New[T any](ttl time.Duration, newFn func() *T) *Store[T] {
	return &Store[T]{
		active: make(map[string]*entry[T]),
		ttl:    ttl,
		newFn:  newFn,
	}
}

// Get returns the state for id, creating it if needed, and refreshes
// its idle timer.
func (s *Store[T]) Get(id string) *T {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets++
	if s.gets%sweepEvery == 0 {
		s.sweepLocked()
	}

	e, ok := s.active[id]
	if !ok {
		e = &entry[T]{value: s.newFn()}
		s.active[id] = e
	}
	e.lastSeen = time.Now()
	return e.value
}

// Sweep evicts every session idle longer than the TTL.
func (s *Store[T]) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
}

func (s *Store[T]) sweepLocked() {
	cutoff := time.Now().Add(-s.ttl)
	for id, e := range s.active {
		if e.lastSeen.Before(cutoff) {
			delete(s.active, id)
		}
	}
}

// Len returns the number of live sessions.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
