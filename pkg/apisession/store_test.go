package apisession

import (
	"sync"
	"testing"
	"time"
)

type cursor struct {
	Name  string
	Index int
}

func TestGetOrCreate(t *testing.T) {
	s := New(time.Minute, func() *cursor { return &cursor{} })

	a := s.Get("watch-1")
	if a == nil {
		t.Fatal("Get returned nil")
	}
	a.Name = "zip_20260825-101500.json"
	a.Index = 40

	if a2 := s.Get("watch-1"); a2 != a {
		t.Error("same session id should return the same pointer")
	}

	b := s.Get("watch-2")
	if b == a {
		t.Error("different session ids should return different pointers")
	}
	if b.Index != 0 || b.Name != "" {
		t.Errorf("new session should start zeroed, got %+v", b)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestSweepEvictsIdle(t *testing.T) {
	s := New(50*time.Millisecond, func() *cursor { return &cursor{} })

	s.Get("ephemeral")
	time.Sleep(80 * time.Millisecond)
	s.Sweep()

	if s.Len() != 0 {
		t.Errorf("Len() = %d after TTL expiry, want 0", s.Len())
	}
}

func TestSweepKeepsActive(t *testing.T) {
	s := New(50*time.Millisecond, func() *cursor { return &cursor{} })

	s.Get("keep")
	time.Sleep(30 * time.Millisecond)
	s.Get("keep")
	time.Sleep(30 * time.Millisecond)

	s.Sweep()
	if s.Len() != 1 {
		t.Errorf("refreshed session should survive the sweep, Len() = %d", s.Len())
	}
}

func TestLazySweep(t *testing.T) {
	s := New(10*time.Millisecond, func() *cursor { return &cursor{} })

	s.Get("old")
	time.Sleep(30 * time.Millisecond)

	// Enough calls to cross the sweep threshold.
	for i := 1; i < sweepEvery; i++ {
		s.Get("busy")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want only the busy session", s.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New(time.Minute, func() *cursor { return &cursor{} })
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Get("shared")
		}()
	}
	wg.Wait()

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}
