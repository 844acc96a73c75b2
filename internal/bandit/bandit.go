// Package bandit implements Thompson-sampling experiment arms.
//
// Each arm tracks a Beta-distribution posterior over its success rate.
// SelectArm draws one sample per arm and recommends the best draw (posterior
// sampling); AllocateTraffic is the separate, deterministic steady-state
// split proportional to posterior means. The two intentionally disagree in
// the short run - they serve different callers.
package bandit

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Arm is the Beta-posterior state of one experiment variant. Alpha and
// Beta are pseudo-counts of success and failure; both start at 1
// (uniform prior).
type Arm struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// NewArm returns an arm with the uniform Beta(1,1) prior.
func NewArm() Arm {
	return Arm{Alpha: 1, Beta: 1}
}

// Trials returns the number of reward observations, excluding the prior.
func (a Arm) Trials() float64 {
	return a.Alpha + a.Beta - 2
}

// Mean returns the posterior mean success rate alpha/(alpha+beta).
func (a Arm) Mean() float64 {
	return a.Alpha / (a.Alpha + a.Beta)
}

// Update returns the arm after observing one reward. This is the conjugate
// Bayesian update for a Bernoulli likelihood with a Beta prior: success
// increments alpha, failure increments beta. No other update rule is valid
// for this representation.
func Update(a Arm, success bool) Arm {
	if success {
		a.Alpha++
	} else {
		a.Beta++
	}
	return a
}

// Sampler draws from arm posteriors. Randomness is instance-scoped so
// tests can seed it; there is no package-level sampler.
type Sampler struct {
	src rand.Source
}

// NewSampler creates a sampler from a random source. A nil source falls
// back to a fresh PCG stream.
func NewSampler(src rand.Source) *Sampler {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Sampler{src: src}
}

// SelectArm draws one sample from each arm's Beta posterior and returns
// the index of the maximum draw. Wide posteriors (few observations) get
// occasional high draws and so keep being explored; well-observed strong
// arms concentrate near their true rate and win most draws.
func (s *Sampler) SelectArm(arms []Arm) (int, error) {
	if len(arms) == 0 {
		return 0, fmt.Errorf("select arm: no arms")
	}

	best := 0
	bestDraw := -1.0
	for i, a := range arms {
		dist := distuv.Beta{Alpha: a.Alpha, Beta: a.Beta, Src: s.src}
		if draw := dist.Rand(); draw > bestDraw {
			bestDraw = draw
			best = i
		}
	}
	return best, nil
}

// AllocateTraffic returns per-arm traffic fractions proportional to each
// arm's posterior mean, normalized to sum to 1. Deterministic, unlike
// SelectArm's single stochastic draw.
func AllocateTraffic(arms []Arm) []float64 {
	if len(arms) == 0 {
		return nil
	}

	fractions := make([]float64, len(arms))
	total := 0.0
	for i, a := range arms {
		fractions[i] = a.Mean()
		total += fractions[i]
	}
	if total == 0 {
		// All-zero means cannot happen with valid Beta parameters, but an
		// even split is the safe answer.
		for i := range fractions {
			fractions[i] = 1 / float64(len(arms))
		}
		return fractions
	}
	for i := range fractions {
		fractions[i] /= total
	}
	return fractions
}

// Convergence thresholds: an experiment converges when every arm has
// accumulated MinTrialsPerArm observations and the leading arm's win rate
// exceeds the runner-up's by more than WinRateMargin.
const (
	MinTrialsPerArm = 100
	WinRateMargin   = 0.05
)

// Convergence describes a converged experiment.
type Convergence struct {
	Winner     int     `json:"winner"`
	Confidence float64 `json:"confidence"` // leading arm's posterior mean
}

// CheckConvergence reports whether the experiment can be closed. Requires
// at least two arms; single-arm experiments never converge.
func CheckConvergence(arms []Arm) (Convergence, bool) {
	if len(arms) < 2 {
		return Convergence{}, false
	}

	leader, runnerUp := 0, -1
	for i, a := range arms {
		if a.Trials() < MinTrialsPerArm {
			return Convergence{}, false
		}
		if i == 0 {
			continue
		}
		switch {
		case a.Mean() > arms[leader].Mean():
			runnerUp = leader
			leader = i
		case runnerUp < 0 || a.Mean() > arms[runnerUp].Mean():
			runnerUp = i
		}
	}

	if arms[leader].Mean()-arms[runnerUp].Mean() <= WinRateMargin {
		return Convergence{}, false
	}
	return Convergence{Winner: leader, Confidence: arms[leader].Mean()}, true
}
