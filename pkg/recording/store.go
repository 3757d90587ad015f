// Package recording persists ride sample series as JSON files and keeps
// a sqlite index over them for fast listing.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ridetrace/pkg/metrics"
	"ridetrace/pkg/model"
	"ridetrace/pkg/store"
)

// ErrNotFound reports a recording that exists neither on disk nor in
// the index.
var ErrNotFound = errors.New("recording not found")

// Store owns the recordings directory and its index.
type Store struct {
	dir     string
	idx     store.RecordingStore
	metrics *metrics.Recorder
}

// NewStore creates the recordings directory if needed and returns a
// store over it.
func NewStore(dir string, idx store.RecordingStore, m *metrics.Recorder) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	return &Store{dir: dir, idx: idx, metrics: m}, nil
}

// Dir returns the recordings directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute path of a recording file name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Flush normalizes, writes and indexes one recording, returning the
// file name it was stored under. Names derive from the session start
// time; an existing file of the same name gets a numeric suffix rather
// than being overwritten.
func (s *Store) Flush(ctx context.Context, rec *model.Recording) (string, error) {
	if len(rec.Samples) == 0 {
		return "", fmt.Errorf("refusing to flush empty recording")
	}

	Normalize(rec.RideType, rec.Samples)
	data, err := Marshal(rec.Samples)
	if err != nil {
		s.metrics.TrackError(metrics.ComponentRecorder)
		return "", fmt.Errorf("encode recording: %w", err)
	}

	name := FileName(rec.RideType, rec.StartedAt)
	for n := 2; fileExists(filepath.Join(s.dir, name)); n++ {
		name = suffixedFileName(rec.RideType, rec.StartedAt, n)
	}

	if err := writeFileAtomic(filepath.Join(s.dir, name), data); err != nil {
		s.metrics.TrackError(metrics.ComponentRecorder)
		return "", fmt.Errorf("write recording: %w", err)
	}

	if err := s.idx.SaveRecording(ctx, infoFor(name, rec, int64(len(data)))); err != nil {
		// The file is on disk; the next reindex heals the index row.
		slog.Error("Recording: index update failed", "name", name, "error", err)
	}

	s.metrics.Track(metrics.ComponentRecorder, metrics.OutcomeOK, int64(len(data)))
	slog.Info("Recording: flushed", "name", name, "session", rec.ID, "samples", len(rec.Samples), "bytes", len(data))
	return name, nil
}

// Load reads a recording back from disk and revalidates sample order.
// Identity fields come from the file name and the index row.
func (s *Store) Load(ctx context.Context, name string) (*model.Recording, error) {
	rideType, startedAt, err := ParseFileName(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read recording %s: %w", name, err)
	}

	samples, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", name, err)
	}

	rec := &model.Recording{
		RideType:  rideType,
		StartedAt: startedAt,
		Samples:   samples,
	}
	if info, err := s.idx.GetRecording(ctx, name); err == nil && info != nil {
		rec.VenueCell = info.VenueCell
		rec.StartedAt = info.StartedAt
	}
	return rec, nil
}

// Info returns the indexed metadata for one recording.
func (s *Store) Info(ctx context.Context, name string) (*model.RecordingInfo, error) {
	info, err := s.idx.GetRecording(ctx, name)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return info, nil
}

// List returns indexed recordings, sorted by "date", "name" or "size".
func (s *Store) List(ctx context.Context, sortKey, order string) ([]*model.RecordingInfo, error) {
	return s.idx.ListRecordings(ctx, sortKey, order)
}

// Delete removes the file and its index row. A missing file is not an
// error: the point is that the name stops existing.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete recording %s: %w", name, err)
	}
	if err := s.idx.DeleteRecording(ctx, name); err != nil {
		return fmt.Errorf("deindex recording %s: %w", name, err)
	}
	slog.Info("Recording: deleted", "name", name)
	return nil
}

// Reindex recomputes the index row for one file on disk.
func (s *Store) Reindex(ctx context.Context, name string) error {
	rec, err := s.Load(ctx, name)
	if err != nil {
		return err
	}
	fi, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("stat recording %s: %w", name, err)
	}
	return s.idx.SaveRecording(ctx, infoFor(name, rec, fi.Size()))
}

func infoFor(name string, rec *model.Recording, size int64) *model.RecordingInfo {
	stats := model.ComputeStats(rec.Samples)
	return &model.RecordingInfo{
		Name:        name,
		RideType:    rec.RideType,
		StartedAt:   rec.StartedAt,
		Samples:     stats.Samples,
		Duration:    stats.Duration,
		MaxAltitude: stats.MaxAltitude,
		VenueCell:   rec.VenueCell,
		SizeBytes:   size,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// writeFileAtomic writes data to a temp file in the target directory,
// fsyncs it, and renames it into place so readers never observe a
// partial recording.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
