package optimize

import (
	"context"
	"fmt"

	"github.com/roach88/reflex/internal/llm"
)

// DEMutate is the linguistic analogue of the numeric differential-evolution
// mutation target + F*(donor1 - donor2): the capability identifies what
// donor1 has that donor2 lacks, then applies that delta to the target.
func DEMutate(ctx context.Context, g llm.Generator, target, donor1, donor2 string) (string, error) {
	req := fmt.Sprintf(`Two donor prompts differ in quality. Identify what the stronger donor
has that the weaker one lacks, then apply that difference to the target prompt.

Stronger donor:
%s

Weaker donor:
%s

Target prompt:
%s

Respond with the modified target prompt only, no commentary.`, donor1, donor2, target)

	child, err := g.GenerateText(ctx, req, llm.Options{})
	if err != nil {
		return "", fmt.Errorf("de mutate: %w", err)
	}
	return child, nil
}
