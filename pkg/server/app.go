package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"AutoEye/internal/domain/models"
	"AutoEye/internal/usecase"
	"AutoEye/pkg/config"
	xhttp "AutoEye/pkg/http"
	applogger "AutoEye/pkg/logger"
)

// App owns the engine components and the infrastructure clients they share.
type App struct {
	cfg        *config.Config
	runner     *usecase.Runner
	backtester *usecase.Backtester
	httpServer *xhttp.Server
	l          *applogger.Logger
	closers    []namedCloser
	closeOnce  sync.Once
}

type namedCloser struct {
	name string
	c    io.Closer
}

func New(
	cfg *config.Config,
	runner *usecase.Runner,
	backtester *usecase.Backtester,
	httpServer *xhttp.Server,
	l *applogger.Logger,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, runner: runner, backtester: backtester, httpServer: httpServer, l: l}
}

// AddCloser registers a client to close on shutdown. Closers run in reverse order.
func (a *App) AddCloser(name string, c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, namedCloser{name: name, c: c})
	}
}

// RunOnce executes a single full cycle.
func (a *App) RunOnce(ctx context.Context, force bool) (*models.CycleSummary, error) {
	return a.runner.RunOnce(ctx, force)
}

// Backtest replays a historical window.
func (a *App) Backtest(ctx context.Context, p usecase.BacktestParams) (*models.BacktestSummary, error) {
	return a.backtester.Run(ctx, p)
}

// Run drives the scheduler loop, the HTTP API or both until ctx ends. The first
// component to fail cancels the other.
func (a *App) Run(ctx context.Context, loop, serve bool) error {
	if !loop && !serve {
		return errors.New("nothing to run: enable the loop or the http server")
	}
	if serve && a.httpServer == nil {
		return errors.New("http server is not configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				errs <- fmt.Errorf("%s: %w", name, err)
			}
			cancel()
		}()
	}

	if loop {
		start("scheduler", a.runner.Loop)
	}
	if serve {
		start("http", a.httpServer.Run)
	}
	wg.Wait()
	close(errs)

	var out error
	for err := range errs {
		a.l.Error("component stopped", applogger.Error(err))
		out = errors.Join(out, err)
	}
	return out
}

// Close releases every registered client once.
func (a *App) Close() error {
	var out error
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			nc := a.closers[i]
			if err := nc.c.Close(); err != nil {
				a.l.Warn("close failed", applogger.String("component", nc.name), applogger.Error(err))
				out = errors.Join(out, fmt.Errorf("%s: %w", nc.name, err))
			}
		}
		a.l.Info("shutdown complete")
	})
	return out
}
