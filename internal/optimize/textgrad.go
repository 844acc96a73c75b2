package optimize

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/reflex/internal/llm"
)

// Loss is the result of the loss phase: how far a prompt's output falls
// short of its goal, with a natural-language analysis of the shortcomings.
type Loss struct {
	Value    float64 // 1 - rated quality, in [0,1]
	Analysis string
}

// Gradient is the result of the gradient phase: a natural-language change
// description and a suggested rewrite. Failed marks a phase that could not
// produce a usable critique.
type Gradient struct {
	Description string
	Suggestion  string
	Failed      bool
}

const lossSystemPrompt = "You evaluate marketing prompts. Respond with strict JSON only, no prose."

// ComputeLoss asks the capability to rate the output's quality against the
// goal in [0,1] and explain its shortcomings. A failed or malformed call
// yields the worst-case loss of 1 with the failure marker as analysis -
// degraded, not silently ignored.
func ComputeLoss(ctx context.Context, g llm.Generator, prompt, output, goal string) Loss {
	req := fmt.Sprintf(`Rate how well the output below serves its goal.

Goal: %s

Prompt that produced the output:
%s

Output:
%s

Respond with JSON: {"score": <quality 0.0-1.0>, "analysis": "<what falls short and why>"}`,
		goal, prompt, output)

	var resp struct {
		Score    float64 `json:"score"`
		Analysis string  `json:"analysis"`
	}
	if err := llm.GenerateJSON(ctx, g, req, &resp, llm.Options{SystemPrompt: lossSystemPrompt}); err != nil {
		slog.Debug("loss phase degraded to worst case", "error", err)
		return Loss{Value: 1, Analysis: FailureMarker}
	}

	return Loss{Value: clamp01(1 - resp.Score), Analysis: resp.Analysis}
}

// ComputeGradient asks the capability for a change description and a
// suggested rewrite addressing the loss analysis. On failure it returns
// the failure marker as the gradient and echoes the original prompt as
// the suggestion.
func ComputeGradient(ctx context.Context, g llm.Generator, prompt, lossAnalysis string) Gradient {
	req := fmt.Sprintf(`A prompt underperformed. Critique says:
%s

Current prompt:
%s

Describe the change that would fix it and suggest a rewrite.
Respond with JSON: {"change": "<what to change and why>", "rewrite": "<suggested new prompt>"}`,
		lossAnalysis, prompt)

	var resp struct {
		Change  string `json:"change"`
		Rewrite string `json:"rewrite"`
	}
	if err := llm.GenerateJSON(ctx, g, req, &resp, llm.Options{SystemPrompt: lossSystemPrompt}); err != nil {
		slog.Debug("gradient phase failed", "error", err)
		return Gradient{Description: FailureMarker, Suggestion: prompt, Failed: true}
	}

	return Gradient{Description: resp.Change, Suggestion: resp.Rewrite}
}

// ApplyGradient asks the capability for the rewritten prompt. When the
// gradient phase signaled failure the original prompt is returned
// unchanged: applying a failed critique would compound it into a spurious
// rewrite. A failed application call also falls back to the original.
func ApplyGradient(ctx context.Context, g llm.Generator, current string, grad Gradient) string {
	if grad.Failed {
		return current
	}

	req := fmt.Sprintf(`Rewrite the prompt below, applying this change:
%s

Current prompt:
%s

Respond with the rewritten prompt only, no commentary.`,
		grad.Description, current)

	rewritten, err := g.GenerateText(ctx, req, llm.Options{})
	if err != nil || rewritten == "" {
		slog.Debug("gradient application degraded to original prompt", "error", err)
		return current
	}
	return rewritten
}
