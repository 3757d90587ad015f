package metrics

import (
	"sync"
	"testing"
)

func TestRecorder(t *testing.T) {
	r := New()

	// Test Initial State
	stats := r.Snapshot()
	if len(stats) != 0 {
		t.Errorf("Expected empty stats, got %d", len(stats))
	}

	// Test Tracking
	r.Track(ComponentRecorder, OutcomeOK, 2048)
	r.Track(ComponentRecorder, OutcomeError, 0)
	r.Track(ComponentRecorder, OutcomeSkip, 0)
	r.TrackOK(ComponentSampler)

	// Verify Snapshot
	stats = r.Snapshot()
	rec, ok := stats[ComponentRecorder]
	if !ok {
		t.Fatalf("Expected stats for component %s", ComponentRecorder)
	}

	if rec.Operations != 1 {
		t.Errorf("Expected 1 operation, got %d", rec.Operations)
	}
	if rec.Errors != 1 {
		t.Errorf("Expected 1 error, got %d", rec.Errors)
	}
	if rec.Skipped != 1 {
		t.Errorf("Expected 1 skipped, got %d", rec.Skipped)
	}
	if rec.Bytes != 2048 {
		t.Errorf("Expected 2048 bytes, got %d", rec.Bytes)
	}

	if stats[ComponentSampler].Operations != 1 {
		t.Errorf("Expected 1 sampler operation, got %d", stats[ComponentSampler].Operations)
	}
}

func TestRecorderConcurrent(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Track(ComponentStream, OutcomeOK, 1)
			}
		}()
	}
	wg.Wait()

	stats := r.Snapshot()
	if stats[ComponentStream].Operations != 800 {
		t.Errorf("Expected 800 operations, got %d", stats[ComponentStream].Operations)
	}
	if stats[ComponentStream].Bytes != 800 {
		t.Errorf("Expected 800 bytes, got %d", stats[ComponentStream].Bytes)
	}
}
