package react

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/reflex/internal/bus"
	"github.com/roach88/reflex/internal/engine"
	"github.com/roach88/reflex/internal/value"
)

// Delivery outcome score deltas. Unknown outcomes score zero.
var outcomeDeltas = map[string]float64{
	"engaged":      +10,
	"ignored":      -2,
	"bounced":      -15,
	"unsubscribed": -25,
}

// Account temperature levels derived from the total behavioral score.
const (
	LevelHot  = "hot"
	LevelWarm = "warm"
	LevelCold = "cold"
)

// LevelFor buckets a total score into the three-tier account level.
func LevelFor(total float64) string {
	switch {
	case total >= 80:
		return LevelHot
	case total >= 40:
		return LevelWarm
	default:
		return LevelCold
	}
}

// FeedbackDeps are the injected collaborators of the signal feedback
// pipeline.
type FeedbackDeps struct {
	// AdjustScore applies a delta to the account's behavioral score and
	// returns the updated total.
	AdjustScore func(ctx context.Context, tenantID, accountID string, delta float64) (float64, error)

	// SetLevel records the account's recomputed level.
	SetLevel func(ctx context.Context, tenantID, accountID, level string) error
}

// Feedback reacts to a completed delivery by scoring the outcome against
// the target account and recomputing its level.
func Feedback(deps FeedbackDeps) engine.Action {
	return func(ctx context.Context, ev bus.Event, overrides value.Map) error {
		accountID, ok := value.AsString(ev.Payload[KeyAccountID])
		if !ok {
			slog.Debug("feedback skipped: delivery has no target account", "event_id", ev.ID)
			return nil
		}

		outcome, _ := value.AsString(ev.Payload[KeyOutcome])
		delta := outcomeDeltas[outcome]

		total, err := deps.AdjustScore(ctx, ev.TenantID, accountID, delta)
		if err != nil {
			return fmt.Errorf("feedback: adjust score for %s: %w", accountID, err)
		}

		level := LevelFor(total)
		if err := deps.SetLevel(ctx, ev.TenantID, accountID, level); err != nil {
			return fmt.Errorf("feedback: set level for %s: %w", accountID, err)
		}

		slog.Debug("account scored",
			"tenant_id", ev.TenantID,
			"account_id", accountID,
			"outcome", outcome,
			"delta", delta,
			"total", total,
			"level", level,
		)
		return nil
	}
}
