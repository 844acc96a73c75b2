// Package engine subscribes named pipelines to event kinds and gates each
// dispatch through cadence throttling and tenant-scoped rule evaluation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/reflex/internal/bus"
	"github.com/roach88/reflex/internal/rules"
	"github.com/roach88/reflex/internal/value"
)

// RuleSource supplies a tenant's active rules. Called fresh per dispatch;
// no caching contract is assumed.
type RuleSource func(ctx context.Context, tenantID string) ([]rules.Rule, error)

// ContextSource supplies a tenant's ambient context (channel groups and
// similar) for rule field resolution.
type ContextSource func(ctx context.Context, tenantID string) (value.Map, error)

// Action is a pipeline's reactive computation, invoked with the triggering
// event and the configuration overrides accumulated from matching rules.
type Action func(ctx context.Context, ev bus.Event, overrides value.Map) error

// FiredFunc notifies the host which rules matched for a tenant so it can
// persist their lastFiredAt cooldown timestamps. The engine never owns
// that state.
type FiredFunc func(ctx context.Context, tenantID string, ruleIDs []string) error

// Pipeline declares one named reactive pipeline.
type Pipeline struct {
	Name      string
	EventKind string
	Action    Action

	// Rules and Context are optional; a pipeline without a rule source
	// dispatches unconditionally (subject to cadence).
	Rules   RuleSource
	Context ContextSource

	// CadenceMinutes is the minimum gap between dispatches for the same
	// tenant. Zero disables throttling.
	CadenceMinutes int

	// OnRulesFired is optional; failures are logged, never fatal.
	OnRulesFired FiredFunc
}

// Executor wires pipelines onto a bus. All mutable state (the cadence
// gate) is instance-scoped behind this constructor; there is no
// process-wide registry.
type Executor struct {
	bus    *bus.Bus
	clock  Clock
	gate   *CadenceGate
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock sets the time source for cadence windows and rule cooldowns.
func WithClock(c Clock) Option {
	return func(e *Executor) {
		e.clock = c
		e.gate = NewCadenceGate(c)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an Executor over the given bus.
func New(b *bus.Bus, opts ...Option) *Executor {
	e := &Executor{
		bus:    b,
		clock:  SystemClock{},
		logger: slog.Default(),
	}
	e.gate = NewCadenceGate(e.clock)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register subscribes a pipeline to its event kind. Returns the
// unsubscribe capability and an error for structurally invalid pipelines.
func (e *Executor) Register(p Pipeline) (bus.Unsubscribe, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("register pipeline: name is required")
	}
	if p.EventKind == "" {
		return nil, fmt.Errorf("register pipeline %s: event kind is required", p.Name)
	}
	if p.Action == nil {
		return nil, fmt.Errorf("register pipeline %s: action is required", p.Name)
	}

	off := e.bus.On(p.EventKind, func(ctx context.Context, ev bus.Event) error {
		return e.dispatch(ctx, p, ev)
	})

	e.logger.Info("pipeline registered",
		"pipeline", p.Name,
		"event_kind", p.EventKind,
		"cadence_minutes", p.CadenceMinutes,
	)
	return off, nil
}

// dispatch runs one pipeline attempt for one event.
//
// Order matters: the cadence check happens before any rule evaluation (a
// throttled attempt has no side effects at all), rule gating happens
// before the slot is consumed (a gated attempt does not burn the window),
// and the slot is consumed before the action runs (a failing action does
// not reclaim it).
func (e *Executor) dispatch(ctx context.Context, p Pipeline, ev bus.Event) error {
	key := cadenceKey(p.Name, ev.TenantID)
	window := time.Duration(p.CadenceMinutes) * time.Minute

	if window > 0 && !e.gate.Ready(key, window) {
		e.logger.Debug("pipeline throttled by cadence",
			"pipeline", p.Name,
			"tenant_id", ev.TenantID,
			"event_id", ev.ID,
		)
		return nil
	}

	overrides := value.Map{}
	if p.Rules != nil {
		ruleSet, err := p.Rules(ctx, ev.TenantID)
		if err != nil {
			return fmt.Errorf("pipeline %s: fetch rules for tenant %s: %w", p.Name, ev.TenantID, err)
		}

		var ambient value.Map
		if p.Context != nil {
			ambient, err = p.Context(ctx, ev.TenantID)
			if err != nil {
				return fmt.Errorf("pipeline %s: fetch context for tenant %s: %w", p.Name, ev.TenantID, err)
			}
		}

		outcome := rules.Evaluate(ruleSet, ev.Payload, ambient, e.clock.Now())

		if len(outcome.Matched) > 0 && p.OnRulesFired != nil {
			if err := p.OnRulesFired(ctx, ev.TenantID, outcome.Matched); err != nil {
				e.logger.Warn("fired-rule notification failed",
					"error", err,
					"pipeline", p.Name,
					"tenant_id", ev.TenantID,
				)
			}
		}

		if outcome.Gated {
			e.logger.Info("pipeline gated by rule",
				"pipeline", p.Name,
				"tenant_id", ev.TenantID,
				"event_id", ev.ID,
				"rule_id", outcome.GatedBy,
			)
			return nil
		}
		overrides = outcome.Overrides
	}

	if window > 0 {
		e.gate.Consume(key)
	}

	if err := p.Action(ctx, ev, overrides); err != nil {
		return fmt.Errorf("pipeline %s: action for event %s: %w", p.Name, ev.ID, err)
	}

	e.logger.Debug("pipeline dispatched",
		"pipeline", p.Name,
		"tenant_id", ev.TenantID,
		"event_id", ev.ID,
	)
	return nil
}

// Gate returns the cadence gate. Used for diagnostics and testing.
func (e *Executor) Gate() *CadenceGate {
	return e.gate
}

func cadenceKey(pipeline, tenantID string) string {
	return pipeline + "|" + tenantID
}
