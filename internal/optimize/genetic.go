package optimize

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/reflex/internal/llm"
)

// SelectParents performs truncation selection: the top-n candidates by
// score, ties broken by original order. The population is not mutated.
func SelectParents(population []Candidate, n int) []Candidate {
	if n <= 0 {
		return nil
	}

	ordered := make([]Candidate, len(population))
	copy(ordered, population)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	if n > len(ordered) {
		n = len(ordered)
	}
	return ordered[:n]
}

// Crossover asks the capability to merge the best elements of two prompts
// into one.
func Crossover(ctx context.Context, g llm.Generator, p1, p2 string) (string, error) {
	req := fmt.Sprintf(`Merge the best elements of these two prompts into a single prompt.

Prompt A:
%s

Prompt B:
%s

Respond with the merged prompt only, no commentary.`, p1, p2)

	child, err := g.GenerateText(ctx, req, llm.Options{})
	if err != nil {
		return "", fmt.Errorf("crossover: %w", err)
	}
	return child, nil
}

// Mutate asks the capability for a creative variation that preserves the
// prompt's intent.
func Mutate(ctx context.Context, g llm.Generator, p string) (string, error) {
	req := fmt.Sprintf(`Produce a creative variation of this prompt. Preserve its intent and
constraints but vary structure, emphasis, and wording.

Prompt:
%s

Respond with the varied prompt only, no commentary.`, p)

	mutant, err := g.GenerateText(ctx, req, llm.Options{Temperature: 0.9})
	if err != nil {
		return "", fmt.Errorf("mutate: %w", err)
	}
	return mutant, nil
}
