// Package watch provides the typed entry points the host calls to publish
// domain events. Watchers are thin: they translate business observations
// into bus events and, where a derived condition holds, a second derived
// event. Each call returns once the event has been fully dispatched,
// including every pipeline run it triggered.
package watch

import (
	"context"

	"github.com/roach88/reflex/internal/bus"
	"github.com/roach88/reflex/internal/drift"
	"github.com/roach88/reflex/internal/react"
	"github.com/roach88/reflex/internal/value"
)

// DefaultEngagementThreshold is the engagement score at or above which a
// derived threshold-reached event fires, when the caller supplies none.
const DefaultEngagementThreshold = 0.7

// Watchers publishes domain events onto a bus.
type Watchers struct {
	bus                 *bus.Bus
	engagementThreshold float64
	driftThreshold      float64
}

// Option configures Watchers.
type Option func(*Watchers)

// WithEngagementThreshold overrides the default derived-event threshold.
func WithEngagementThreshold(t float64) Option {
	return func(w *Watchers) { w.engagementThreshold = t }
}

// WithDriftThreshold overrides the drift detector's z-score threshold.
func WithDriftThreshold(t float64) Option {
	return func(w *Watchers) { w.driftThreshold = t }
}

// New creates Watchers over the given bus.
func New(b *bus.Bus, opts ...Option) *Watchers {
	w := &Watchers{
		bus:                 b,
		engagementThreshold: DefaultEngagementThreshold,
		driftThreshold:      drift.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Engagement is one collected content-engagement observation.
type Engagement struct {
	ContentID    string
	Channel      string
	Score        float64
	SampleOutput string
	Goal         string

	// Threshold overrides the watcher-level engagement threshold for
	// this observation. Nil means use the configured default; an explicit
	// zero fires the derived event on any engagement.
	Threshold *float64
}

// EngagementCollected publishes an engagement.collected event and, when
// the score clears the threshold, a derived engagement.threshold_reached
// event that drives the content flywheel.
func (w *Watchers) EngagementCollected(ctx context.Context, tenantID string, e Engagement) {
	payload := value.Map{
		react.KeyContentID: value.String(e.ContentID),
		react.KeyChannel:   value.String(e.Channel),
		react.KeyScore:     value.Num(e.Score),
	}
	if e.SampleOutput != "" {
		payload[react.KeySampleOutput] = value.String(e.SampleOutput)
	}
	if e.Goal != "" {
		payload[react.KeyGoal] = value.String(e.Goal)
	}

	w.bus.Emit(ctx, tenantID, react.KindEngagementCollected, payload)

	threshold := w.engagementThreshold
	if e.Threshold != nil {
		threshold = *e.Threshold
	}
	if e.Score >= threshold {
		derived := value.Merge(payload, value.Map{"threshold": value.Num(threshold)})
		w.bus.Emit(ctx, tenantID, react.KindThresholdReached, derived)
	}
}

// Delivery is one completed delivery result.
type Delivery struct {
	AccountID string
	ContentID string
	Channel   string
	Outcome   string
}

// DeliveryCompleted publishes a delivery.completed event.
func (w *Watchers) DeliveryCompleted(ctx context.Context, tenantID string, d Delivery) {
	payload := value.Map{
		react.KeyChannel: value.String(d.Channel),
		react.KeyOutcome: value.String(d.Outcome),
	}
	if d.AccountID != "" {
		payload[react.KeyAccountID] = value.String(d.AccountID)
	}
	if d.ContentID != "" {
		payload[react.KeyContentID] = value.String(d.ContentID)
	}

	w.bus.Emit(ctx, tenantID, react.KindDeliveryCompleted, payload)
}

// SentimentWindows carries a baseline window and a current window of
// sentiment scores plus the themes observed in the current window.
type SentimentWindows struct {
	Baseline []float64
	Current  []float64
	Themes   []string
}

// SentimentShift runs drift detection over the windows and, when a
// significant shift is found, publishes a derived sentiment.drift_detected
// event that drives the strategic reactor. Returns the drift result, nil
// when no significant drift was found (and no event was published).
func (w *Watchers) SentimentShift(ctx context.Context, tenantID string, s SentimentWindows) *drift.Result {
	res := drift.Detect(s.Baseline, s.Current, w.driftThreshold)
	if res == nil {
		return nil
	}

	themes := make(value.List, len(s.Themes))
	for i, th := range s.Themes {
		themes[i] = value.String(th)
	}

	payload := value.Map{
		react.KeyDirection: value.String(string(res.Direction)),
		react.KeyZScore:    value.Num(res.ZScore),
		react.KeyThemes:    themes,
		"baselineMean":     value.Num(res.BaselineMean),
		"currentMean":      value.Num(res.CurrentMean),
	}
	if res.Unbounded {
		payload["unbounded"] = value.Bool(true)
	}

	w.bus.Emit(ctx, tenantID, react.KindDriftDetected, payload)
	return res
}
