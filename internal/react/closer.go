package react

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/reflex/internal/bandit"
	"github.com/roach88/reflex/internal/bus"
	"github.com/roach88/reflex/internal/engine"
	"github.com/roach88/reflex/internal/value"
)

// Lineage ties a piece of content back to the experiment arm that
// produced it.
type Lineage struct {
	ExperimentID string
	ArmIndex     int
}

// CloserDeps are the injected collaborators of the experiment closer.
type CloserDeps struct {
	// GetLineage resolves content to its experiment arm, nil when the
	// content is not part of an experiment.
	GetLineage func(ctx context.Context, tenantID, contentID string) (*Lineage, error)

	// ChannelMedian returns the channel's median engagement score, the
	// bar a score must clear to count as a success.
	ChannelMedian func(ctx context.Context, tenantID, channel string) (float64, error)

	// RewardArm applies one binary reward to the arm and returns the
	// experiment's updated arm states.
	RewardArm func(ctx context.Context, tenantID, experimentID string, arm int, success bool) ([]bandit.Arm, error)

	// CloseExperiment declares the winner and closes the experiment.
	CloseExperiment func(ctx context.Context, tenantID, experimentID string, winner int, confidence float64) error
}

// Closer reacts to collected engagement by rewarding the content's
// experiment arm and closing the experiment once it converges.
func Closer(deps CloserDeps) engine.Action {
	return func(ctx context.Context, ev bus.Event, overrides value.Map) error {
		contentID, ok := value.AsString(ev.Payload[KeyContentID])
		if !ok {
			slog.Debug("closer skipped: event carries no content id", "event_id", ev.ID)
			return nil
		}

		lineage, err := deps.GetLineage(ctx, ev.TenantID, contentID)
		if err != nil {
			return fmt.Errorf("closer: resolve lineage for %s: %w", contentID, err)
		}
		if lineage == nil {
			return nil
		}

		score, _ := value.AsNum(ev.Payload[KeyScore])
		channel, _ := value.AsString(ev.Payload[KeyChannel])

		median, err := deps.ChannelMedian(ctx, ev.TenantID, channel)
		if err != nil {
			return fmt.Errorf("closer: channel median for %s: %w", channel, err)
		}

		success := score > median
		arms, err := deps.RewardArm(ctx, ev.TenantID, lineage.ExperimentID, lineage.ArmIndex, success)
		if err != nil {
			return fmt.Errorf("closer: reward arm %d of %s: %w", lineage.ArmIndex, lineage.ExperimentID, err)
		}

		conv, converged := bandit.CheckConvergence(arms)
		if !converged {
			return nil
		}

		if err := deps.CloseExperiment(ctx, ev.TenantID, lineage.ExperimentID, conv.Winner, conv.Confidence); err != nil {
			return fmt.Errorf("closer: close experiment %s: %w", lineage.ExperimentID, err)
		}

		slog.Info("experiment converged",
			"tenant_id", ev.TenantID,
			"experiment_id", lineage.ExperimentID,
			"winner", conv.Winner,
			"confidence", conv.Confidence,
		)
		return nil
	}
}
