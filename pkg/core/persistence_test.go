package core

import (
	"testing"
	"time"

	"ridetrace/pkg/model"
	"ridetrace/pkg/tracker"
)

func TestSessionPersistenceJobSaves(t *testing.T) {
	f := setupScheduler(t)

	if _, err := f.mgr.Start(f.ctx, model.RideDrop); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.mgr.Offer(f.ctx, tracker.Motion{Time: f.base, Altitude: 100})

	job := NewSessionPersistenceJob(f.mgr, 30*time.Second)
	tel := &model.Telemetry{}

	if !job.ShouldFire(tel) {
		t.Fatal("first evaluation should fire")
	}
	job.Run(f.ctx, tel)

	if _, found := f.st.GetState(f.ctx, "session_snapshot"); !found {
		t.Error("snapshot should be written")
	}

	// Interval not elapsed: no refire.
	if job.ShouldFire(tel) {
		t.Error("job should wait out the interval")
	}
}

func TestSessionPersistenceJobIdle(t *testing.T) {
	f := setupScheduler(t)

	job := NewSessionPersistenceJob(f.mgr, 30*time.Second)
	job.Run(f.ctx, &model.Telemetry{})

	if _, found := f.st.GetState(f.ctx, "session_snapshot"); found {
		t.Error("no snapshot should be written without a session")
	}
}
