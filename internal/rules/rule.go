package rules

import (
	"time"

	"github.com/roach88/reflex/internal/value"
)

// Operator identifies a condition comparison.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
	OpContains Operator = "contains"
	OpBetween  Operator = "between"

	// Group-membership operators bypass generic field resolution: they
	// look up the event's "channel" field against a named channel group
	// in the ambient context instead of the payload.
	OpInGroup    Operator = "in_group"
	OpNotInGroup Operator = "not_in_group"
)

// Condition is one field/operator/value tuple. A rule matches only when
// every condition holds (logical AND).
type Condition struct {
	Field string      `json:"field"`
	Op    Operator    `json:"operator"`
	Value value.Value `json:"value"`
}

// Action is a sealed interface over rule action variants.
// Only Gate, Modify, Notify, Route, and Generate implement it; the
// evaluator switches over the variants exhaustively.
type Action interface {
	action() // Sealed - only these types implement it
}

// Gate vetoes the pipeline run outright. Evaluation short-circuits: no
// later rule is evaluated or reported for this event.
type Gate struct {
	Reason string
}

func (Gate) action() {}

// Modify merges key/value overrides into the pipeline configuration.
// Overrides from multiple matching rules accumulate via shallow merge;
// later-evaluated rules (higher priority number) win on key collision.
type Modify struct {
	Set value.Map
}

func (Modify) action() {}

// Notify is a side-channel signal collected by the evaluator but not
// auto-acted on by the executor.
type Notify struct {
	Target string
	Params value.Map
}

func (Notify) action() {}

// Route is a side-channel routing signal, collected but not auto-acted on.
type Route struct {
	Target string
	Params value.Map
}

func (Route) action() {}

// Generate is a side-channel content-generation signal, collected but not
// auto-acted on.
type Generate struct {
	Params value.Map
}

func (Generate) action() {}

// Rule is one declarative, tenant-scoped reaction rule. Rules are
// evaluated in ascending Priority order. LastFiredAt is host-owned state:
// the engine reads it for cooldown checks and reports fired rules back to
// the host, which persists the timestamp.
type Rule struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Priority        int         `json:"priority"`
	CooldownMinutes int         `json:"cooldown_minutes"`
	Conditions      []Condition `json:"conditions"`
	Actions         []Action    `json:"actions"`
	Scope           value.Map   `json:"scope,omitempty"`
	LastFiredAt     *time.Time  `json:"last_fired_at,omitempty"`
}

// InCooldown reports whether the rule is still within its cooldown window
// at the given instant.
func (r Rule) InCooldown(now time.Time) bool {
	if r.LastFiredAt == nil || r.CooldownMinutes <= 0 {
		return false
	}
	return now.Before(r.LastFiredAt.Add(time.Duration(r.CooldownMinutes) * time.Minute))
}
