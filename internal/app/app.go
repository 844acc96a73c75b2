// Package app assembles a complete engine from configuration: bus,
// durable event log, watchers, executor, and the four reactive
// pipelines. Hosts supply the storage callbacks and text generator; app
// owns the wiring order and lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/reflex/internal/bus"
	"github.com/roach88/reflex/internal/config"
	"github.com/roach88/reflex/internal/engine"
	"github.com/roach88/reflex/internal/llm"
	"github.com/roach88/reflex/internal/react"
	"github.com/roach88/reflex/internal/store"
	"github.com/roach88/reflex/internal/watch"
)

// Hooks are the host-owned collaborators the pipelines need. Generator
// is required when Flywheel or Reactor hooks are set; everything else is
// optional and disables its pipeline when zero.
type Hooks struct {
	Flywheel *react.FlywheelDeps
	Closer   *react.CloserDeps
	Feedback *react.FeedbackDeps
	Reactor  *react.ReactorDeps

	// Rules and Context feed declarative rule evaluation for every
	// registered pipeline. Optional.
	Rules   engine.RuleSource
	Context engine.ContextSource

	// OnRulesFired lets the host persist cooldown timestamps.
	OnRulesFired engine.FiredFunc
}

// App is a fully wired engine instance.
type App struct {
	Bus      *bus.Bus
	Watchers *watch.Watchers
	Executor *engine.Executor
	Logger   *slog.Logger

	store  *store.Store
	detach bus.Unsubscribe
}

// New builds an engine from configuration. The returned App owns the
// store handle; call Close when done.
func New(cfg *config.Config, gen llm.Generator, hooks Hooks) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	logger := newLogger(cfg.Logging)

	b := bus.New(
		bus.WithCapacity(cfg.Bus.HistoryCapacity),
		bus.WithLogger(logger),
	)

	app := &App{
		Bus:    b,
		Logger: logger,
		Watchers: watch.New(b,
			watch.WithEngagementThreshold(cfg.Watchers.EngagementThreshold),
			watch.WithDriftThreshold(cfg.Watchers.DriftThreshold),
		),
		Executor: engine.New(b, engine.WithLogger(logger)),
	}

	if cfg.Store.Path != "" {
		s, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		app.store = s
		app.detach = store.Attach(b, s)
	}

	if err := app.register(cfg, gen, hooks); err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

func (a *App) register(cfg *config.Config, gen llm.Generator, hooks Hooks) error {
	type spec struct {
		name    string
		kind    string
		action  engine.Action
		cadence int
	}

	var specs []spec
	if hooks.Flywheel != nil {
		deps := *hooks.Flywheel
		if deps.Generator == nil {
			deps.Generator = gen
		}
		if deps.Generator == nil {
			return fmt.Errorf("app: flywheel requires a generator")
		}
		specs = append(specs, spec{"flywheel", react.KindThresholdReached, react.Flywheel(deps), cfg.Cadence.FlywheelMinutes})
	}
	if hooks.Closer != nil {
		specs = append(specs, spec{"closer", react.KindEngagementCollected, react.Closer(*hooks.Closer), 0})
	}
	if hooks.Feedback != nil {
		specs = append(specs, spec{"feedback", react.KindDeliveryCompleted, react.Feedback(*hooks.Feedback), 0})
	}
	if hooks.Reactor != nil {
		if hooks.Reactor.GenerateContent == nil {
			return fmt.Errorf("app: reactor requires a GenerateContent hook")
		}
		specs = append(specs, spec{"reactor", react.KindDriftDetected, react.Reactor(*hooks.Reactor), cfg.Cadence.ReactorMinutes})
	}

	for _, s := range specs {
		_, err := a.Executor.Register(engine.Pipeline{
			Name:           s.name,
			EventKind:      s.kind,
			Action:         s.action,
			Rules:          hooks.Rules,
			Context:        hooks.Context,
			CadenceMinutes: s.cadence,
			OnRulesFired:   hooks.OnRulesFired,
		})
		if err != nil {
			return fmt.Errorf("app: register %s: %w", s.name, err)
		}
	}

	return nil
}

// Close detaches the durable log and closes the store.
func (a *App) Close() error {
	if a.detach != nil {
		a.detach()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// EventLog returns persisted events for a tenant, oldest first. Returns
// an error when the app was built without a store path.
func (a *App) EventLog(ctx context.Context, tenantID, kind string) ([]store.Record, error) {
	if a.store == nil {
		return nil, fmt.Errorf("app: no store configured")
	}
	return a.store.Events(ctx, tenantID, kind)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
