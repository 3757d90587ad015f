package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"ridetrace/pkg/sensor"
	"ridetrace/pkg/store"
)

// DirWritable checks that a directory exists (creating it if needed)
// and accepts writes. An empty path skips the check.
func DirWritable(name, dir string, critical bool) Probe {
	return Probe{
		Name:     name,
		Critical: critical,
		Check: func(ctx context.Context) error {
			if dir == "" {
				return ErrSkip
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
			f, err := os.CreateTemp(dir, ".probe-*")
			if err != nil {
				return fmt.Errorf("write to %s: %w", dir, err)
			}
			path := f.Name()
			f.Close()
			return os.Remove(path)
		},
	}
}

// StateStore checks that the persistent store answers a full
// write/read/delete round trip.
func StateStore(st store.StateStore) Probe {
	return Probe{
		Name:     "state store",
		Critical: true,
		Check: func(ctx context.Context) error {
			const key = "probe_marker"
			if err := st.SetState(ctx, key, time.Now().Format(time.RFC3339Nano)); err != nil {
				return err
			}
			if _, ok := st.GetState(ctx, key); !ok {
				return errors.New("marker not readable after write")
			}
			return st.DeleteState(ctx, key)
		},
	}
}

// SensorResponding checks that the motion provider answers at all.
// A provider that is still warming up passes; the daemon runs in the
// disconnected state until readings arrive.
func SensorResponding(src sensor.Provider) Probe {
	return Probe{
		Name: "sensor provider",
		Check: func(ctx context.Context) error {
			_, err := src.Read(ctx)
			if err != nil && !errors.Is(err, sensor.ErrNotReady) {
				return err
			}
			return nil
		},
	}
}
