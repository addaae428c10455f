// Package app wires the resolution engine together with its configuration
// and an isolated logger. The CLI builds an App per invocation; tests build
// one per case with a captured log writer and a fake script invoker.
package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/vk/planforge/internal/ctxlog"
	"github.com/vk/planforge/internal/engine"
	"github.com/vk/planforge/internal/script"
)

// App encapsulates the tool's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	engine *engine.Engine
}

// NewApp constructs a fully initialized App with its own logger. The invoker
// is optional; nil runs build scripts as real subprocesses.
func NewApp(outW io.Writer, cfg *Config, invoker script.Invoker) (*App, error) {
	logger := newLogger(cfg, outW)
	logger.Debug("logger configured")

	eng, err := engine.New(engine.Options{
		BuildFile: cfg.BuildFile,
		Target:    cfg.Target,
		Workers:   cfg.Workers,
		CacheSize: cfg.CacheSize,
		Invoker:   invoker,
	})
	if err != nil {
		return nil, err
	}
	return &App{outW: outW, logger: logger, config: cfg, engine: eng}, nil
}

// Logger returns the app's logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Run performs one build resolution.
func (a *App) Run(ctx context.Context) (*engine.Result, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	return a.engine.Run(ctx)
}
