package api

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ridetrace/pkg/config"
	"ridetrace/pkg/db"
	"ridetrace/pkg/metrics"
	"ridetrace/pkg/model"
	"ridetrace/pkg/recording"
	"ridetrace/pkg/session"
	"ridetrace/pkg/store"
	"ridetrace/pkg/tracker"
)

// apiFixture wires real stores behind the handlers; only the sensor
// feed is absent.
type apiFixture struct {
	ctx      context.Context
	cfg      *config.Config
	provider *config.UnifiedProvider
	st       store.Store
	rec      *recording.Store
	mirrorer *recording.Mirrorer
	sessions *session.Manager
	metrics  *metrics.Recorder
}

func newFixture(t *testing.T, mutate func(cfg *config.Config)) *apiFixture {
	t.Helper()
	dir := t.TempDir()

	database, err := db.Init(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	st := store.NewSQLiteStore(database)
	t.Cleanup(func() { st.Close() })

	m := metrics.New()
	rec, err := recording.NewStore(filepath.Join(dir, "recordings"), st, m)
	if err != nil {
		t.Fatalf("recording.NewStore: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Mirror.Dir = filepath.Join(dir, "mirror")
	if mutate != nil {
		mutate(cfg)
	}

	provider := config.NewProvider(cfg, st)
	mirrorer := recording.NewMirrorer(rec, cfg.Mirror.Dir, cfg.Mirror.QueueSize, st, m)
	sessions := session.NewManager(provider, rec, tracker.New(), st, m)

	return &apiFixture{
		ctx:      context.Background(),
		cfg:      cfg,
		provider: provider,
		st:       st,
		rec:      rec,
		mirrorer: mirrorer,
		sessions: sessions,
		metrics:  m,
	}
}

// flushRecording writes one recording straight through the store and
// returns the file name it landed under.
func (f *apiFixture) flushRecording(t *testing.T, rideType model.RideType, startedAt time.Time, samples []model.Sample) string {
	t.Helper()
	name, err := f.rec.Flush(f.ctx, &model.Recording{
		ID:        "fixture",
		RideType:  rideType,
		StartedAt: startedAt,
		Samples:   samples,
	})
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return name
}

func dropSamples(base time.Time, n int) []model.Sample {
	samples := make([]model.Sample, n)
	for i := range samples {
		samples[i] = model.Sample{
			Time:     base.Add(time.Duration(i) * 250 * time.Millisecond),
			Altitude: float64(i) * 3,
			Rate:     60,
		}
	}
	return samples
}

func zipSamples(base time.Time, n int) []model.Sample {
	samples := make([]model.Sample, n)
	for i := range samples {
		samples[i] = model.Sample{
			Time:     base.Add(time.Duration(i) * 250 * time.Millisecond),
			Altitude: 100 - float64(i),
			Rate:     -240,
			Speed:    model.Float64(20 + float64(i)),
			Lat:      model.Float64(35.0312 + float64(i)*0.0001),
			Lon:      model.Float64(-84.3716 + float64(i)*0.0001),
		}
	}
	return samples
}
