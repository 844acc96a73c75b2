// Package llm defines the text-generation capability consumed by the
// optimization operators and reactive pipelines. Providers are opaque:
// given a prompt and optional system instruction, return text, fallibly.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Options tune a single generation call. Zero values defer to the
// provider's defaults.
type Options struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Model        string
}

// Generator is the minimal interface the engine needs from a
// text-generation provider.
type Generator interface {
	GenerateText(ctx context.Context, prompt string, opts Options) (string, error)
}

// GenerateJSON requests a text response, strips any Markdown code-fence
// wrapping, and decodes it into out. Decode failure propagates to the
// caller: silently coercing a wrong-shaped object risks corrupting
// downstream state, so shape mismatch is fatal to the call.
func GenerateJSON(ctx context.Context, g Generator, prompt string, out any, opts Options) error {
	text, err := g.GenerateText(ctx, prompt, opts)
	if err != nil {
		return fmt.Errorf("generate json: %w", err)
	}

	cleaned := StripFences(text)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("generate json: decode response: %w", err)
	}
	return nil
}

// StripFences removes a surrounding Markdown code fence (``` or ```json)
// if present. Unfenced text is returned trimmed.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	// Drop a language tag on the opening fence line.
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		first := strings.TrimSpace(trimmed[:idx])
		if first == "" || !strings.ContainsAny(first, "{}[]") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
