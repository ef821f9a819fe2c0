package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"CashBreakout/pkg/config"
	xhttp "CashBreakout/pkg/http"
	applogger "CashBreakout/pkg/logger"
)

type closer struct {
	name string
	fn   func() error
}

// App is a long-running daemon: one blocking main loop, an optional ops
// HTTP server, and a set of resources to close on the way down.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	main       func(ctx context.Context) error
	httpServer *xhttp.Server
	closers    []closer
}

// New creates an App around its blocking main loop.
func New(cfg *config.Config, log *applogger.Logger, main func(ctx context.Context) error) *App {
	return &App{cfg: cfg, log: log, main: main}
}

// SetHTTPServer attaches the ops HTTP surface.
func (a *App) SetHTTPServer(s *xhttp.Server) { a.httpServer = s }

// AddCloser registers a resource to close during shutdown, last added first.
func (a *App) AddCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the main loop and blocks until a signal arrives or the loop
// fails on its own, then shuts everything down.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			return err
		}
		a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.main(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		a.log.Info("shutdown signal received", applogger.String("signal", sig.String()))
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("main loop failed", applogger.Error(err))
			runErr = err
		}
	}

	a.shutdown(context.Background())
	return runErr
}

func (a *App) shutdown(ctx context.Context) {
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.log.Warn("http shutdown error", applogger.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.log.Warn("close error",
				applogger.String("resource", c.name), applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}

// Job is a one-shot task with the same signal handling as App: an interrupt
// cancels the context and the task winds down on its own.
type Job struct {
	log *applogger.Logger
	fn  func(ctx context.Context) error
}

// NewJob creates a one-shot job.
func NewJob(log *applogger.Logger, fn func(ctx context.Context) error) *Job {
	return &Job{log: log, fn: fn}
}

// Run executes the job to completion or first signal.
func (j *Job) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	return j.fn(ctx)
}
