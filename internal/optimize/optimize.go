// Package optimize evolves prompts against a text-generation capability.
//
// Three independent operator families are composable per cycle: a
// gradient-style critique-and-rewrite loop (loss -> gradient -> application),
// genetic crossover/mutation, and a differential-evolution mutation. Every
// capability call may fail; operators degrade to conservative fallbacks
// rather than aborting the caller.
package optimize

// Candidate is an ephemeral prompt produced by an optimization operator.
// The host persists accepted candidates as new versioned records with a
// parent reference; candidates are never mutated after creation.
type Candidate struct {
	Prompt string  `json:"prompt"`
	Score  float64 `json:"score"` // in [0,1]
}

// Strategy selects which operator families a cycle runs.
type Strategy string

const (
	StrategyTextgrad Strategy = "textgrad"
	StrategyGA       Strategy = "ga"
	StrategyDE       Strategy = "de"
	StrategyHybrid   Strategy = "hybrid" // all three
)

// FailureMarker is the fixed analysis/gradient text substituted when a
// capability call fails or returns an unusable response. Downstream phases
// recognize it and refuse to compound a failed critique into a rewrite.
const FailureMarker = "OPTIMIZATION_FAILED"

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
