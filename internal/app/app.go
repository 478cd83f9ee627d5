package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/valentindosimont/spoolmanager/internal/config"
	"github.com/valentindosimont/spoolmanager/internal/daemon"
	"github.com/valentindosimont/spoolmanager/internal/events"
	"github.com/valentindosimont/spoolmanager/internal/feed"
	"github.com/valentindosimont/spoolmanager/internal/inventory"
	"github.com/valentindosimont/spoolmanager/internal/logging"
	"github.com/valentindosimont/spoolmanager/internal/metrics"
	"github.com/valentindosimont/spoolmanager/internal/store"
	"github.com/valentindosimont/spoolmanager/internal/tools"
	"github.com/valentindosimont/spoolmanager/internal/tracker"
	"github.com/valentindosimont/spoolmanager/internal/tui"
	"github.com/valentindosimont/spoolmanager/internal/usage"
)

// LoadConfig loads the configuration file (defaults when it is missing).
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

// DefaultLogFile is where the monitor logs when no file is configured,
// next to the database.
func DefaultLogFile(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Database.Path), "spoolmanager.log")
}

// App is the main application
type App struct {
	config    *config.Config
	logger    zerolog.Logger
	logCloser io.Closer

	store       *store.Store
	bus         *events.Bus
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	assignments *tools.Assignments
	tracker     *tracker.Tracker
	inventory   *inventory.Service
	usage       *usage.Collector
	flusher     *daemon.Flusher

	metricsServer *http.Server
	usageCancel   context.CancelFunc
	usageDone     chan struct{}
}

// New creates a new App. logOutput receives the log when no log file is
// configured.
func New(cfg *config.Config, logOutput io.Writer) (*App, error) {
	logger, logCloser, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Output: logOutput,
	})
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Database.Path, logger)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	// Restore tool selections from the last run
	assignments := tools.NewAssignments()
	persisted, err := st.LoadToolAssignments(context.Background())
	if err != nil {
		_ = st.Close()
		_ = logCloser.Close()
		return nil, err
	}
	loaded := make(map[int]int64, len(persisted))
	for _, a := range persisted {
		loaded[a.Tool] = a.SpoolID
	}
	assignments.Load(loaded)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	bus := events.NewBus(logger)

	tr := tracker.New(tracker.Config{
		DefaultDiameter: cfg.Tracker.DefaultDiameterMM,
		DefaultDensity:  cfg.Tracker.DefaultDensity,
		LowWeightGrams:  cfg.Tracker.LowWeightGrams,
		AutoCommitMM:    cfg.Tracker.AutoCommitMM,
		CommitRetries:   cfg.Tracker.CommitRetries,
	}, tracker.Deps{
		Repo:        st,
		Assignments: assignments,
		Persist:     st,
		Bus:         bus,
		Metrics:     m,
		Logger:      logger,
	})

	inv := inventory.NewService(st, bus, assignments, logger, "")

	logger.Debug().
		Str("db", cfg.Database.Path).
		Int("tools", len(loaded)).
		Str("session", tr.SessionID()).
		Msg("spoolmanager started")

	return &App{
		config:      cfg,
		logger:      logger,
		logCloser:   logCloser,
		store:       st,
		bus:         bus,
		registry:    registry,
		metrics:     m,
		assignments: assignments,
		tracker:     tr,
		inventory:   inv,
		usage:       usage.NewCollector(inv, logger),
		flusher:     daemon.NewFlusher(tr, cfg.FlushInterval(), logger),
	}, nil
}

func (a *App) Config() *config.Config { return a.config }

func (a *App) Logger() zerolog.Logger { return a.logger }

func (a *App) Store() *store.Store { return a.store }

func (a *App) Tracker() *tracker.Tracker { return a.tracker }

func (a *App) Inventory() *inventory.Service { return a.inventory }

func (a *App) Assignments() *tools.Assignments { return a.assignments }

// SessionReport stops the usage collector once every event published so far
// has been folded in, and returns its report.
func (a *App) SessionReport() usage.Report {
	if a.usageCancel != nil {
		a.usageCancel()
		<-a.usageDone
		a.usageCancel = nil
	}
	return a.usage.Report()
}

// Start launches the background workers: the usage collector, the periodic
// flusher and, when configured, the metrics endpoint.
func (a *App) Start(ctx context.Context) error {
	usageCtx, cancel := context.WithCancel(ctx)
	evts, err := a.bus.Subscribe(usageCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe usage collector: %w", err)
	}
	a.usageCancel, a.usageDone = cancel, make(chan struct{})
	go func() {
		defer close(a.usageDone)
		a.usage.Run(ctx, evts)
	}()

	a.flusher.Start(ctx)

	if addr := a.config.Monitor.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(a.registry))
		a.metricsServer = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
			}
		}()
		a.logger.Info().Str("addr", addr).Msg("serving metrics")
	}
	return nil
}

// Replay feeds a G-code file through the tracker and commits the result.
func (a *App) Replay(ctx context.Context, path string) (int, error) {
	n, err := feed.Replay(ctx, path, a.tracker)
	if err != nil {
		return n, err
	}
	a.logger.Info().Str("file", path).Int("lines", n).Msg("replay finished")
	return n, a.tracker.Commit(ctx)
}

// Watch tails the command log at path and runs the monitor UI until the
// user quits.
func (a *App) Watch(ctx context.Context, path string, fromStart bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var opts []feed.TailerOption
	if fromStart {
		opts = append(opts, feed.FromStart())
	}
	tailer := feed.NewTailer(path, a.tracker, a.config.PollInterval(), a.logger, opts...)

	tailErr := make(chan error, 1)
	go func() {
		tailErr <- tailer.Run(ctx)
	}()

	evts, err := a.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe monitor: %w", err)
	}

	model := tui.New(a.tracker, a.inventory, evts, path, a.config.PollInterval(), a.config.Tracker.LowWeightGrams)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}

	cancel()
	if err := <-tailErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info().Int64("lines", tailer.Lines()).Msg("monitor stopped")
	return nil
}

// WriteMetrics writes the current metrics to a textfile-collector file.
func (a *App) WriteMetrics(path string) error {
	return metrics.WriteFile(path, a.registry)
}

// Close commits pending consumption and releases resources.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := a.flusher.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("final commit: %w", err))
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.usageCancel != nil {
		a.usageCancel()
		<-a.usageDone
		a.usageCancel = nil
	}
	if err := a.bus.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.logCloser.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
