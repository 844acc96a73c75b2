// Package react implements the four reactive pipelines: content flywheel,
// experiment closer, signal feedback, and strategic reactor.
//
// Each pipeline is an action function parameterized by host-injected
// callbacks, so the engine has no direct storage coupling. Durable state
// (prompt versions, arm posteriors, account scores) is owned by the host;
// the pipelines assume at-least-once delivery of their callback calls and
// do not retry on the host's behalf.
package react

// Event kinds the pipelines subscribe to and payload keys they read.
const (
	KindEngagementCollected = "engagement.collected"
	KindThresholdReached    = "engagement.threshold_reached"
	KindDeliveryCompleted   = "delivery.completed"
	KindDriftDetected       = "sentiment.drift_detected"

	KeyChannel      = "channel"
	KeyContentID    = "contentId"
	KeyAccountID    = "accountId"
	KeyOutcome      = "outcome"
	KeyScore        = "score"
	KeyGoal         = "goal"
	KeySampleOutput = "sampleOutput"
	KeyDirection    = "direction"
	KeyThemes       = "themes"
	KeyZScore       = "zScore"

	// Configuration override keys set by modify rules.
	OverrideStrategy = "strategy"
	OverrideTone     = "tone"
	OverrideChannels = "channels"
	OverrideKeywords = "keywords"
)
