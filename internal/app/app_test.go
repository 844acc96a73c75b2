package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reflex/internal/app"
	"github.com/roach88/reflex/internal/config"
	"github.com/roach88/reflex/internal/react"
	"github.com/roach88/reflex/internal/watch"
)

func feedbackHooks(scores map[string]float64, levels map[string]string) *react.FeedbackDeps {
	return &react.FeedbackDeps{
		AdjustScore: func(_ context.Context, _, accountID string, delta float64) (float64, error) {
			scores[accountID] += delta
			return scores[accountID], nil
		},
		SetLevel: func(_ context.Context, _, accountID, level string) error {
			levels[accountID] = level
			return nil
		},
	}
}

func TestNew_WiresFeedbackPipeline(t *testing.T) {
	scores := map[string]float64{}
	levels := map[string]string{}

	a, err := app.New(config.Default(), nil, app.Hooks{
		Feedback: feedbackHooks(scores, levels),
	})
	require.NoError(t, err)
	defer a.Close()

	a.Watchers.DeliveryCompleted(context.Background(), "acme", watch.Delivery{
		AccountID: "acct-1",
		Channel:   "email",
		Outcome:   "engaged",
	})

	assert.NotZero(t, scores["acct-1"])
	assert.NotEmpty(t, levels["acct-1"])
}

func TestNew_StorePersistsWatcherEvents(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "events.db")

	a, err := app.New(cfg, nil, app.Hooks{})
	require.NoError(t, err)
	defer a.Close()

	a.Watchers.DeliveryCompleted(context.Background(), "acme", watch.Delivery{
		Channel: "email",
		Outcome: "bounced",
	})

	records, err := a.EventLog(context.Background(), "acme", "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, react.KindDeliveryCompleted, records[0].Kind)
}

func TestNew_NoStoreConfigured(t *testing.T) {
	a, err := app.New(config.Default(), nil, app.Hooks{})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.EventLog(context.Background(), "acme", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no store configured")
}

func TestNew_FlywheelRequiresGenerator(t *testing.T) {
	_, err := app.New(config.Default(), nil, app.Hooks{
		Flywheel: &react.FlywheelDeps{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flywheel requires a generator")
}

func TestNew_ReactorRequiresHook(t *testing.T) {
	_, err := app.New(config.Default(), nil, app.Hooks{
		Reactor: &react.ReactorDeps{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GenerateContent")
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Bus.HistoryCapacity = 0

	_, err := app.New(cfg, nil, app.Hooks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history_capacity")
}
