package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/idlelock/idlelock/internal/api"
	"github.com/idlelock/idlelock/internal/app/guard"
	"github.com/idlelock/idlelock/internal/domain"
	"github.com/idlelock/idlelock/internal/health"
	"github.com/idlelock/idlelock/internal/infra/sqlite"
)

const pruneEvery = 24 * time.Hour

// Daemon is the running idle guard with its supporting services.
type Daemon struct {
	Config   Config
	Guard    *guard.Loop
	DB       *sqlite.DB       // nil when the journal is disabled
	Recorder *sqlite.Recorder // nil when the journal is disabled
	Health   *health.Checker
	Server   *api.Server

	home string
	addr string
	log  *logrus.Entry
}

// New wires a daemon around platform p for the given thresholds.
func New(cfg Config, p domain.Platform, idleSeconds, graceSeconds int, version string) (*Daemon, error) {
	d := &Daemon{
		Config: cfg,
		home:   Home(),
		log:    logrus.WithField("component", "daemon"),
	}

	gc, problems := cfg.GuardSettings(idleSeconds, graceSeconds)
	for _, err := range problems {
		d.log.WithError(err).Warn("invalid config value, using default")
	}

	var journal domain.Journal
	if cfg.Journal.Enabled {
		db, err := sqlite.Open(d.home)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		d.DB = db
		d.Recorder = sqlite.NewRecorder(db, logrus.WithField("component", "journal"))
		journal = d.Recorder
	}

	d.Guard = guard.NewLoop(gc, p, journal)

	var pinger health.Pinger
	if d.DB != nil {
		pinger = d.DB
	}
	d.Health = health.NewChecker(d.Guard, pinger, d.home)

	d.Server = api.NewServer(d.Guard, version)
	d.Server.SetHealth(d.Health)
	if d.DB != nil {
		d.Server.SetHistory(d.DB)
	}
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}
	return d, nil
}

// Addr returns the status server's listen address once Serve has started it.
func (d *Daemon) Addr() string { return d.addr }

// Serve runs the guard until ctx is cancelled or the process is signalled.
// It returns the guard's error, if any, after every service has stopped.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			d.log.WithField("signal", sig.String()).Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	go d.Health.Run(ctx)

	if d.Recorder != nil {
		if retention := d.Config.Retention(); retention > 0 {
			go d.prune(ctx, d.Recorder, retention)
		}
	}

	var httpServer *http.Server
	if d.Config.API.Enabled {
		var err error
		httpServer, err = d.listen()
		if err != nil {
			// The guard works without its status API.
			d.log.WithError(err).Warn("status API unavailable")
		}
	}

	err := d.Guard.Run(ctx)

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}
	d.Close()
	return err
}

func (d *Daemon) listen() (*http.Server, error) {
	addr := net.JoinHostPort(d.Config.API.Host, fmt.Sprint(d.Config.API.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	d.addr = ln.Addr().String()

	httpServer := &http.Server{
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.WithError(err).Error("status API stopped")
		}
	}()

	entry := d.log.WithField("addr", "http://"+d.addr)
	if d.Config.Telemetry.Prometheus {
		entry = entry.WithField("metrics", "http://"+d.addr+"/metrics")
	}
	entry.Info("status API listening")
	return httpServer, nil
}

func (d *Daemon) prune(ctx context.Context, rec *sqlite.Recorder, retention time.Duration) {
	rec.PruneOlderThan(retention)
	ticker := time.NewTicker(pruneEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rec.PruneOlderThan(retention)
		}
	}
}

// Close flushes the journal and releases the database. The guard must
// have stopped first.
func (d *Daemon) Close() {
	if d.Recorder != nil {
		d.Recorder.Close()
		d.Recorder = nil
	}
	if d.DB != nil {
		_ = d.DB.Close()
		d.DB = nil
	}
}
