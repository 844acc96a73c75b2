// Package drift detects statistically significant shifts in mean sentiment
// between a historical baseline window and a recent window.
package drift

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultThreshold is the z-score magnitude below which a shift is noise.
const DefaultThreshold = 2.0

// UnboundedZScore is the z-score magnitude recorded when the baseline has
// zero deviation but the means differ. It is finite so results survive
// JSON encoding, and larger than any usable threshold.
const UnboundedZScore = math.MaxFloat64

// Direction of a detected drift.
type Direction string

const (
	Positive Direction = "positive"
	Negative Direction = "negative"
)

// Result is a derived drift measurement. It is computed fresh from two
// numeric samples per invocation and never stored by the engine.
type Result struct {
	ZScore       float64   `json:"z_score"`
	Direction    Direction `json:"direction"`
	BaselineMean float64   `json:"baseline_mean"`
	CurrentMean  float64   `json:"current_mean"`

	// Unbounded marks a zero-deviation baseline whose mean shifted; the
	// z-score is then the UnboundedZScore sentinel, not a real statistic.
	Unbounded bool `json:"unbounded,omitempty"`
}

// Detect compares a current sample window against a baseline window and
// returns a Result when the shift in means is significant at the given
// z-score threshold. A threshold <= 0 uses DefaultThreshold.
//
// Requires at least 2 baseline samples and 1 current sample; below that a
// z-score is statistically meaningless and Detect returns nil rather than
// a misleading result.
//
// Zero baseline deviation is special-cased instead of propagating NaN/Inf
// through a division: equal means is no drift, unequal means is an
// unbounded shift recorded as the signed UnboundedZScore sentinel, which
// clears any threshold and, unlike an infinity, survives JSON encoding.
func Detect(baseline, current []float64, threshold float64) *Result {
	if len(baseline) < 2 || len(current) < 1 {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	baselineMean := stat.Mean(baseline, nil)
	baselineStdDev := stat.StdDev(baseline, nil)
	currentMean := stat.Mean(current, nil)

	var z float64
	var unbounded bool
	switch {
	case baselineStdDev == 0 && currentMean == baselineMean:
		return nil
	case baselineStdDev == 0:
		unbounded = true
		z = UnboundedZScore
		if currentMean < baselineMean {
			z = -UnboundedZScore
		}
	default:
		z = (currentMean - baselineMean) / baselineStdDev
	}

	if math.Abs(z) < threshold {
		return nil
	}

	dir := Positive
	if z < 0 {
		dir = Negative
	}
	return &Result{
		ZScore:       z,
		Direction:    dir,
		BaselineMean: baselineMean,
		CurrentMean:  currentMean,
		Unbounded:    unbounded,
	}
}

// Sentiment classification buckets for a score in [-1, 1].
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ClassifySentiment buckets a sentiment score in [-1, 1] into
// positive/neutral/negative at the +-0.25 boundaries.
func ClassifySentiment(score float64) Sentiment {
	switch {
	case score > 0.25:
		return SentimentPositive
	case score < -0.25:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
