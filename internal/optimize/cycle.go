package optimize

import (
	"context"
	"log/slog"

	"github.com/roach88/reflex/internal/llm"
)

// Population guards: GA needs a crossover pair, DE needs the best prompt
// plus two distinct donors.
const (
	minPopulationGA = 2
	minPopulationDE = 3
)

// CycleInput parameterizes one optimization cycle.
type CycleInput struct {
	// Prompt is the active prompt the gradient cycle critiques.
	Prompt string
	// SampleOutput is a representative output the prompt produced.
	SampleOutput string
	// Goal describes what the prompt is supposed to achieve.
	Goal string
	// Population seeds the GA and DE operators.
	Population []Candidate
	// Strategy selects operator families; empty defaults to hybrid.
	Strategy Strategy
}

// CycleResult aggregates a cycle's output.
type CycleResult struct {
	// TextgradPrompt is the gradient cycle's final prompt, nil when the
	// strategy did not run textgrad.
	TextgradPrompt *string
	// Children is the flat list of all GA and DE offspring.
	Children []Candidate
	// Loss is the gradient cycle's numeric loss (0 when textgrad not run).
	Loss float64
	// Gradient is the gradient cycle's change description.
	Gradient string
}

// Candidates returns the cycle's output as one ordered candidate list:
// the textgrad rewrite first (scored by 1-loss), then the children.
func (r CycleResult) Candidates() []Candidate {
	var out []Candidate
	if r.TextgradPrompt != nil {
		out = append(out, Candidate{Prompt: *r.TextgradPrompt, Score: clamp01(1 - r.Loss)})
	}
	return append(out, r.Children...)
}

// RunCycle executes the operator families selected by the strategy tag.
// Individual operator failures degrade (children are skipped, the gradient
// cycle falls back to the original prompt); RunCycle itself never fails.
func RunCycle(ctx context.Context, g llm.Generator, in CycleInput) CycleResult {
	strategy := in.Strategy
	if strategy == "" {
		strategy = StrategyHybrid
	}

	runTextgrad := strategy == StrategyTextgrad || strategy == StrategyHybrid
	runGA := strategy == StrategyGA || strategy == StrategyHybrid
	runDE := strategy == StrategyDE || strategy == StrategyHybrid

	var res CycleResult

	if runTextgrad {
		loss := ComputeLoss(ctx, g, in.Prompt, in.SampleOutput, in.Goal)
		grad := ComputeGradient(ctx, g, in.Prompt, loss.Analysis)
		rewritten := ApplyGradient(ctx, g, in.Prompt, grad)

		res.TextgradPrompt = &rewritten
		res.Loss = loss.Value
		res.Gradient = grad.Description
	}

	if runGA && len(in.Population) >= minPopulationGA {
		res.Children = append(res.Children, gaChildren(ctx, g, in.Population)...)
	}

	if runDE && len(in.Population) >= minPopulationDE {
		if child, ok := deChild(ctx, g, in.Population); ok {
			res.Children = append(res.Children, child)
		}
	}

	return res
}

// gaChildren produces one crossover child of the top two parents and one
// mutant of the best parent. Failed operator calls are skipped.
func gaChildren(ctx context.Context, g llm.Generator, population []Candidate) []Candidate {
	parents := SelectParents(population, 2)

	var children []Candidate
	if child, err := Crossover(ctx, g, parents[0].Prompt, parents[1].Prompt); err != nil {
		slog.Debug("crossover skipped", "error", err)
	} else {
		children = append(children, Candidate{
			Prompt: child,
			Score:  (parents[0].Score + parents[1].Score) / 2,
		})
	}

	if mutant, err := Mutate(ctx, g, parents[0].Prompt); err != nil {
		slog.Debug("mutation skipped", "error", err)
	} else {
		children = append(children, Candidate{Prompt: mutant, Score: parents[0].Score})
	}

	return children
}

// deChild mutates the best candidate using the next two as donors.
func deChild(ctx context.Context, g llm.Generator, population []Candidate) (Candidate, bool) {
	top := SelectParents(population, 3)

	child, err := DEMutate(ctx, g, top[0].Prompt, top[1].Prompt, top[2].Prompt)
	if err != nil {
		slog.Debug("de mutation skipped", "error", err)
		return Candidate{}, false
	}
	return Candidate{Prompt: child, Score: top[0].Score}, true
}
