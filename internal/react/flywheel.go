package react

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/reflex/internal/bus"
	"github.com/roach88/reflex/internal/engine"
	"github.com/roach88/reflex/internal/llm"
	"github.com/roach88/reflex/internal/optimize"
	"github.com/roach88/reflex/internal/value"
)

// PromptVersion is the host's view of a stored prompt.
type PromptVersion struct {
	ID     string
	Prompt string
	Score  float64
}

// CandidateVersion is a new prompt version the flywheel asks the host to
// persist. ParentID records the lineage back to the prompt it evolved
// from; versions are append-only and never mutated.
type CandidateVersion struct {
	Prompt       string
	ParentID     string
	QualityScore float64
}

// FlywheelDeps are the injected collaborators of the content flywheel.
type FlywheelDeps struct {
	Generator llm.Generator

	// GetActivePrompt returns the tenant+channel's active prompt, or nil
	// when the channel has none.
	GetActivePrompt func(ctx context.Context, tenantID, channel string) (*PromptVersion, error)

	// GetPopulation returns recent prompt versions as optimization seeds.
	// Optional: without it only the gradient cycle contributes.
	GetPopulation func(ctx context.Context, tenantID, channel string) ([]optimize.Candidate, error)

	// StoreCandidate persists one candidate as a new prompt version.
	StoreCandidate func(ctx context.Context, tenantID string, cand CandidateVersion) error
}

// Flywheel reacts to an engagement threshold being reached by evolving the
// channel's active prompt and storing the best candidate as a new version.
func Flywheel(deps FlywheelDeps) engine.Action {
	return func(ctx context.Context, ev bus.Event, overrides value.Map) error {
		channel, ok := value.AsString(ev.Payload[KeyChannel])
		if !ok {
			slog.Debug("flywheel skipped: event carries no channel", "event_id", ev.ID)
			return nil
		}

		active, err := deps.GetActivePrompt(ctx, ev.TenantID, channel)
		if err != nil {
			return fmt.Errorf("flywheel: load active prompt: %w", err)
		}
		if active == nil {
			slog.Debug("flywheel skipped: no active prompt",
				"tenant_id", ev.TenantID,
				"channel", channel,
			)
			return nil
		}

		strategy := optimize.StrategyHybrid
		if s, ok := value.AsString(overrides[OverrideStrategy]); ok {
			strategy = optimize.Strategy(s)
		}

		var population []optimize.Candidate
		if deps.GetPopulation != nil {
			population, err = deps.GetPopulation(ctx, ev.TenantID, channel)
			if err != nil {
				return fmt.Errorf("flywheel: load population: %w", err)
			}
		}

		sampleOutput, _ := value.AsString(ev.Payload[KeySampleOutput])
		goal, _ := value.AsString(ev.Payload[KeyGoal])

		res := optimize.RunCycle(ctx, deps.Generator, optimize.CycleInput{
			Prompt:       active.Prompt,
			SampleOutput: sampleOutput,
			Goal:         goal,
			Population:   population,
			Strategy:     strategy,
		})

		candidates := res.Candidates()
		if len(candidates) == 0 {
			slog.Info("flywheel produced no candidates",
				"tenant_id", ev.TenantID,
				"channel", channel,
				"strategy", string(strategy),
			)
			return nil
		}

		best := candidates[0]
		if err := deps.StoreCandidate(ctx, ev.TenantID, CandidateVersion{
			Prompt:       best.Prompt,
			ParentID:     active.ID,
			QualityScore: best.Score,
		}); err != nil {
			return fmt.Errorf("flywheel: store candidate: %w", err)
		}

		slog.Info("flywheel stored evolved prompt",
			"tenant_id", ev.TenantID,
			"channel", channel,
			"parent_id", active.ID,
			"quality_score", best.Score,
			"strategy", string(strategy),
		)
		return nil
	}
}
