package recording

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ridetrace/pkg/logging"
	"ridetrace/pkg/metrics"
	"ridetrace/pkg/model"
	"ridetrace/pkg/store"
)

// Mirrorer copies flushed recordings into the paired device directory
// and keeps a ledger of verified copies. Work arrives through a small
// in-memory queue: scans feed it with not-yet-mirrored files, manual
// requests jump the line.
type Mirrorer struct {
	mu    sync.Mutex
	queue []string

	maxSize int
	src     *Store
	dstDir  string
	ledger  store.MirrorStore
	metrics *metrics.Recorder
}

// NewMirrorer creates a mirrorer targeting dstDir. An empty dstDir
// disables mirroring; Scan and Drain become no-ops.
func NewMirrorer(src *Store, dstDir string, queueSize int, ledger store.MirrorStore, m *metrics.Recorder) *Mirrorer {
	if queueSize <= 0 {
		queueSize = 32
	}
	return &Mirrorer{
		maxSize: queueSize,
		src:     src,
		dstDir:  dstDir,
		ledger:  ledger,
		metrics: m,
	}
}

// Enabled reports whether a paired directory is configured.
func (m *Mirrorer) Enabled() bool {
	return m.dstDir != ""
}

// Enqueue queues one recording for mirroring. Priority requests go to
// the front of the queue; duplicates are coalesced; a full queue drops
// non-priority work (the next scan re-offers it).
func (m *Mirrorer) Enqueue(name string, priority bool) {
	if !m.Enabled() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, queued := range m.queue {
		if queued != name {
			continue
		}
		if priority && i > 0 {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			m.queue = append([]string{name}, m.queue...)
		}
		return
	}

	if len(m.queue) >= m.maxSize && !priority {
		slog.Info("Mirror: queue full, dropping", "name", name)
		m.metrics.Track(metrics.ComponentMirror, metrics.OutcomeSkip, 0)
		return
	}

	if priority {
		m.queue = append([]string{name}, m.queue...)
	} else {
		m.queue = append(m.queue, name)
	}
}

// Pending returns the queue length.
func (m *Mirrorer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Mirrorer) pop() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return "", false
	}
	name := m.queue[0]
	m.queue = m.queue[1:]
	return name, true
}

// Scan walks the recordings directory and queues every file the ledger
// has no verified copy of. Failed copies are picked up again on the
// next scan.
func (m *Mirrorer) Scan(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}

	mirrored, err := m.ledger.ListMirrors(ctx)
	if err != nil {
		return fmt.Errorf("list mirror ledger: %w", err)
	}

	entries, err := os.ReadDir(m.src.Dir())
	if err != nil {
		return fmt.Errorf("scan recordings dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, _, err := ParseFileName(name); err != nil {
			continue
		}
		if _, done := mirrored[name]; done {
			continue
		}
		m.Enqueue(name, false)
	}
	return nil
}

// Drain copies queued recordings until the queue is empty or the
// context is cancelled.
func (m *Mirrorer) Drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		name, ok := m.pop()
		if !ok {
			return
		}
		if err := m.mirrorOne(ctx, name); err != nil {
			slog.Error("Mirror: copy failed", "name", name, "error", err)
			m.metrics.TrackError(metrics.ComponentMirror)
		}
	}
}

// mirrorOne copies a single recording to the paired directory, then
// reads the copy back and verifies its digest before recording it in
// the ledger.
func (m *Mirrorer) mirrorOne(ctx context.Context, name string) error {
	data, err := os.ReadFile(m.src.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			// Deleted between scan and drain. Nothing to mirror.
			return nil
		}
		return fmt.Errorf("read source: %w", err)
	}

	if err := os.MkdirAll(m.dstDir, 0o755); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}

	dst := filepath.Join(m.dstDir, name)
	if err := writeFileAtomic(dst, data); err != nil {
		return fmt.Errorf("write mirror copy: %w", err)
	}

	copied, err := os.ReadFile(dst)
	if err != nil {
		return fmt.Errorf("read back mirror copy: %w", err)
	}
	if !bytes.Equal(digest(data), digest(copied)) {
		return fmt.Errorf("digest mismatch after copy of %s", name)
	}

	info := &model.MirrorInfo{
		Name:       name,
		Digest:     hex.EncodeToString(digest(data)),
		SizeBytes:  int64(len(data)),
		MirroredAt: time.Now(),
	}
	if err := m.ledger.SaveMirror(ctx, info); err != nil {
		return fmt.Errorf("update mirror ledger: %w", err)
	}

	m.metrics.Track(metrics.ComponentMirror, metrics.OutcomeOK, info.SizeBytes)
	logging.LogEvent(&model.RideEvent{
		Type:    model.EventMirror,
		Title:   name,
		Summary: fmt.Sprintf("copied to paired directory (%d bytes)", info.SizeBytes),
	})
	return nil
}

func digest(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
