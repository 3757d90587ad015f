package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ridetrace/internal/api"
	"ridetrace/pkg/config"
	"ridetrace/pkg/core"
	"ridetrace/pkg/db"
	"ridetrace/pkg/db/maintenance"
	"ridetrace/pkg/logging"
	"ridetrace/pkg/metrics"
	"ridetrace/pkg/model"
	"ridetrace/pkg/probe"
	"ridetrace/pkg/recording"
	"ridetrace/pkg/sensor"
	"ridetrace/pkg/sensor/mockride"
	"ridetrace/pkg/sensor/replay"
	"ridetrace/pkg/session"
	"ridetrace/pkg/store"
	"ridetrace/pkg/tracker"
	"ridetrace/pkg/version"
)

var (
	configPath   = flag.String("config", "configs/ridetrace.yaml", "Path to the configuration file")
	initConfig   = flag.Bool("init-config", false, "Generate default config file and exit")
	providerSpec = flag.String("provider", "", "Override sensor.provider (mock:<profile> or replay:<file>)")
	listenAddr   = flag.String("addr", "", "Override server.address")
)

func main() {
	flag.Parse()

	// A .env next to the binary supplies the RIDETRACE_* fallbacks read
	// during config loading. A missing file is fine.
	_ = godotenv.Load()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *providerSpec != "" {
		appCfg.Sensor.Provider = *providerSpec
	}
	if *listenAddr != "" {
		appCfg.Server.Address = *listenAddr
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("RideTrace started", "version", version.Version, "provider", appCfg.Sensor.Provider)

	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbConn.Close()
	st := store.NewSQLiteStore(dbConn)

	m := metrics.New()
	recStore, err := recording.NewStore(appCfg.Data.RecordingsDir, st, m)
	if err != nil {
		return fmt.Errorf("failed to open recordings dir: %w", err)
	}

	if err := maintenance.Run(ctx, st, recStore); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	src, err := initSensor(appCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize sensor provider: %w", err)
	}
	defer src.Close()

	results := probe.Run(ctx, []probe.Probe{
		probe.DirWritable("recordings dir", appCfg.Data.RecordingsDir, true),
		probe.StateStore(st),
		probe.SensorResponding(src),
		probe.DirWritable("mirror dir", appCfg.Mirror.Dir, false),
	})
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	provider := config.NewProvider(appCfg, st)

	// The scheduler and the session manager share one tracker, so the
	// altitude baseline survives a restore.
	trk := tracker.New()
	sessionMgr := session.NewManager(provider, recStore, trk, st, m)
	mirrorer := recording.NewMirrorer(recStore, appCfg.Mirror.Dir, appCfg.Mirror.QueueSize, st, m)

	if session.TryRestore(ctx, st, sessionMgr, time.Duration(appCfg.Session.RestoreMaxAge)) {
		slog.Info("Resumed interrupted session")
	}

	// The telemetry handler must exist before the scheduler starts
	// ticking so the first sample has a sink.
	telH := api.NewTelemetryHandler()
	streamH := api.NewStreamHandler(telH, provider, m)
	go streamH.Run(ctx)

	sched := core.NewScheduler(provider, src, trk, sessionMgr, telH, m)
	sched.AddJob(core.NewSessionPersistenceJob(sessionMgr, time.Duration(appCfg.Session.SnapshotInterval)))
	sched.AddJob(core.NewMirrorJob(mirrorer, provider, time.Duration(appCfg.Mirror.Interval)))
	sched.AddJob(core.NewConfigReloadJob(provider, configPath, 10*time.Second))
	// Files copied into or deleted from the recordings directory while
	// the daemon runs show up in listings without a restart. The mtime
	// marker keeps the idle-case cost at one stat per pass.
	sched.AddJob(core.NewTimeJob("IndexSync", time.Minute, func(c context.Context, t model.Telemetry) {
		if err := maintenance.Run(c, st, recStore); err != nil {
			slog.Warn("Maintenance: reindex failed", "error", err)
		}
	}))
	go sched.Start(ctx)

	err = runServer(ctx, appCfg, provider, st, m, telH, streamH, sessionMgr, recStore, mirrorer)

	// The watch may be mid-ride when the daemon goes down; a last
	// snapshot lets the session resume after the restart.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if perr := sessionMgr.PersistSnapshot(saveCtx); perr != nil {
		slog.Error("Final session snapshot failed", "error", perr)
	}
	saveCancel()

	logMetricsSummary(m)
	return err
}

// initSensor builds the motion source named by sensor.provider, either
// a simulated ride ("mock:<profile>") or a flushed recording played
// back at its recorded cadence ("replay:<file>").
func initSensor(cfg *config.Config) (sensor.Provider, error) {
	spec := cfg.Sensor.Provider
	kind, arg, _ := strings.Cut(spec, ":")
	switch kind {
	case "mock":
		if arg == "" {
			arg = "drop"
		}
		p, err := mockride.New(arg, cfg.Sensor.Mock)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "replay":
		if arg == "" {
			return nil, fmt.Errorf("replay provider needs a file: replay:<path>")
		}
		p, err := replay.New(arg, 1.0)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown sensor provider %q (want mock:<profile> or replay:<file>)", spec)
	}
}

func runServer(ctx context.Context, cfg *config.Config, provider config.Provider, st store.Store, m *metrics.Recorder, telH *api.TelemetryHandler, streamH *api.StreamHandler, sessionMgr *session.Manager, recStore *recording.Store, mirrorer *recording.Mirrorer) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		telH,
		api.NewSessionHandler(sessionMgr, provider),
		api.NewRecordingsHandler(recStore, mirrorer),
		api.NewConfigHandler(st, provider),
		api.NewStatsHandler(m, sessionMgr, streamH, mirrorer),
		streamH,
		m,
		shutdownFunc,
	)

	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func logMetricsSummary(m *metrics.Recorder) {
	snap := m.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := snap[name]
		slog.Info("Metrics: "+name, "operations", s.Operations, "errors", s.Errors, "skipped", s.Skipped, "bytes", s.Bytes)
	}
}
