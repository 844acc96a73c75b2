package react

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/reflex/internal/bus"
	"github.com/roach88/reflex/internal/drift"
	"github.com/roach88/reflex/internal/engine"
	"github.com/roach88/reflex/internal/value"
)

// Default tones and channel sets per drift direction, used when no modify
// rule overrides them.
const (
	ToneEmpathetic  = "empathetic"
	ToneCelebratory = "celebratory"
)

var (
	defaultNegativeChannels = []string{"email", "social"}
	defaultPositiveChannels = []string{"social", "blog"}
)

// Brief is the reactive content request handed to the host.
type Brief struct {
	Tone     string
	Channels []string
	Keywords []string
}

// ReactorDeps are the injected collaborators of the strategic reactor.
type ReactorDeps struct {
	// GenerateContent requests reactive content with the resolved brief.
	GenerateContent func(ctx context.Context, tenantID string, brief Brief) error
}

// Reactor reacts to detected sentiment drift by assembling a content
// brief - tone, target channels, and keywords resolved from overrides
// with direction-dependent defaults - and requesting generation.
func Reactor(deps ReactorDeps) engine.Action {
	return func(ctx context.Context, ev bus.Event, overrides value.Map) error {
		direction, _ := value.AsString(ev.Payload[KeyDirection])
		negative := direction == string(drift.Negative)

		tone, ok := value.AsString(overrides[OverrideTone])
		if !ok {
			if negative {
				tone = ToneEmpathetic
			} else {
				tone = ToneCelebratory
			}
		}

		channels := value.Strings(overrides[OverrideChannels])
		if len(channels) == 0 {
			if negative {
				channels = defaultNegativeChannels
			} else {
				channels = defaultPositiveChannels
			}
		}

		keywords := normalizeKeywords(append(
			value.Strings(ev.Payload[KeyThemes]),
			value.Strings(overrides[OverrideKeywords])...,
		))

		brief := Brief{Tone: tone, Channels: channels, Keywords: keywords}
		if err := deps.GenerateContent(ctx, ev.TenantID, brief); err != nil {
			return fmt.Errorf("reactor: generate content: %w", err)
		}

		slog.Info("reactive brief issued",
			"tenant_id", ev.TenantID,
			"direction", direction,
			"tone", tone,
			"channels", channels,
			"keywords", len(keywords),
		)
		return nil
	}
}

// normalizeKeywords NFC-normalizes keywords and deduplicates them,
// preserving first-seen order. Themes arrive from scraped text; composed
// and decomposed forms of the same keyword must collapse.
func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		normalized := norm.NFC.String(kw)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}
