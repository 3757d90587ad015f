// Package maintenance reconciles the sqlite index with the recordings
// directory at startup.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ridetrace/pkg/recording"
	"ridetrace/pkg/store"
)

const recordingsDirStateKey = "recordings_dir_mtime"

// Run executes all maintenance tasks: reindexing the recordings
// directory and pruning index rows whose files are gone. It blocks
// until completion. Failures are logged, not fatal; the daemon can
// serve with a partially stale index.
func Run(ctx context.Context, s store.Store, recStore *recording.Store) error {
	slog.Info("Starting database maintenance...")

	changed, mtime, err := dirChanged(ctx, s, recStore.Dir())
	if err != nil {
		return err
	}
	if !changed {
		slog.Info("Recordings index up to date")
		return nil
	}

	if err := reindex(ctx, recStore); err != nil {
		slog.Error("Reindex failed", "error", err)
	}
	if err := pruneIndex(ctx, s, recStore); err != nil {
		slog.Error("Index pruning failed", "error", err)
	}

	if err := s.SetState(ctx, recordingsDirStateKey, mtime); err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}
	slog.Info("Database maintenance completed")
	return nil
}

// dirChanged compares the recordings directory mtime against the
// stored marker. New and deleted files both touch the directory, so an
// unchanged mtime means the index needs no work.
func dirChanged(ctx context.Context, s store.StateStore, dir string) (bool, string, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("failed to stat recordings dir: %w", err)
	}

	mtime := info.ModTime().UTC().Format(time.RFC3339Nano)
	stored, found := s.GetState(ctx, recordingsDirStateKey)
	if found && stored == mtime {
		return false, mtime, nil
	}
	return true, mtime, nil
}

// reindex walks the recordings directory and refreshes the index row
// for every well-named file. A file the recorder did not write (wrong
// name, unparseable) is skipped, not deleted.
func reindex(ctx context.Context, recStore *recording.Store) error {
	entries, err := os.ReadDir(recStore.Dir())
	if err != nil {
		return fmt.Errorf("failed to read recordings dir: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, _, err := recording.ParseFileName(name); err != nil {
			continue
		}
		if err := recStore.Reindex(ctx, name); err != nil {
			slog.Warn("Maintenance: could not reindex", "name", name, "error", err)
			continue
		}
		count++
	}

	slog.Info("Reindexed recordings", "count", count)
	return nil
}

// pruneIndex drops index rows whose backing files are gone.
func pruneIndex(ctx context.Context, s store.RecordingStore, recStore *recording.Store) error {
	infos, err := s.ListRecordings(ctx, "", "")
	if err != nil {
		return fmt.Errorf("failed to list index: %w", err)
	}

	pruned := 0
	for _, info := range infos {
		if _, err := os.Stat(recStore.Path(info.Name)); !os.IsNotExist(err) {
			continue
		}
		if err := s.DeleteRecording(ctx, info.Name); err != nil {
			slog.Warn("Maintenance: could not prune index row", "name", info.Name, "error", err)
			continue
		}
		pruned++
	}

	if pruned > 0 {
		slog.Info("Pruned orphan index rows", "count", pruned)
	}
	return nil
}
