package rules

import (
	"sort"
	"strings"
	"time"

	"github.com/roach88/reflex/internal/value"
)

// ContextKeyChannelGroups is the ambient-context key holding named channel
// groups: a Map of group name to List of channel names.
const ContextKeyChannelGroups = "channelGroups"

// Signal is a side-channel action emission (notify/route/generate)
// attributed to the rule that produced it.
type Signal struct {
	RuleID string
	Target string
	Params value.Map
}

// Outcome is the result of evaluating a rule set against one event.
type Outcome struct {
	// Matched lists IDs of rules whose conditions all held, in
	// evaluation order.
	Matched []string

	// Gated is true when a gate action fired. GatedBy names the rule.
	Gated   bool
	GatedBy string

	// Overrides accumulates modify actions via shallow merge.
	Overrides value.Map

	Notifications []Signal
	Routes        []Signal
	Generates     []Signal
}

// Evaluate applies an ordered rule set to an event payload and ambient
// context. Pure: inputs are never mutated and no clock is consulted
// beyond the supplied now.
//
// Rules are evaluated in ascending priority order. A rule still within
// its cooldown window is skipped. A rule matches when every condition
// holds. The first gate action short-circuits evaluation entirely: later
// rules are neither evaluated nor reported.
func Evaluate(ruleSet []Rule, payload, ctx value.Map, now time.Time) Outcome {
	ordered := make([]Rule, len(ruleSet))
	copy(ordered, ruleSet)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	out := Outcome{Overrides: value.Map{}}

	for _, rule := range ordered {
		if rule.InCooldown(now) {
			continue
		}
		if !matches(rule, payload, ctx) {
			continue
		}

		out.Matched = append(out.Matched, rule.ID)

		for _, act := range rule.Actions {
			switch a := act.(type) {
			case Gate:
				out.Gated = true
				out.GatedBy = rule.ID
				return out
			case Modify:
				out.Overrides = value.Merge(out.Overrides, a.Set)
			case Notify:
				out.Notifications = append(out.Notifications, Signal{RuleID: rule.ID, Target: a.Target, Params: a.Params})
			case Route:
				out.Routes = append(out.Routes, Signal{RuleID: rule.ID, Target: a.Target, Params: a.Params})
			case Generate:
				out.Generates = append(out.Generates, Signal{RuleID: rule.ID, Params: a.Params})
			}
		}
	}

	return out
}

// matches reports whether every condition of the rule holds.
func matches(rule Rule, payload, ctx value.Map) bool {
	for _, cond := range rule.Conditions {
		if !holds(cond, payload, ctx) {
			return false
		}
	}
	return true
}

// holds evaluates a single condition. Field resolution first checks the
// payload directly by exact key, then falls back to dotted-path traversal
// into a merged view of payload and context (payload wins on collision).
func holds(cond Condition, payload, ctx value.Map) bool {
	if cond.Op == OpInGroup || cond.Op == OpNotInGroup {
		return holdsGroup(cond, payload, ctx)
	}

	actual, ok := resolveField(cond.Field, payload, ctx)
	if !ok {
		return false
	}

	switch cond.Op {
	case OpEq:
		return value.Equal(actual, cond.Value)
	case OpNeq:
		return !value.Equal(actual, cond.Value)
	case OpGt, OpGte, OpLt, OpLte:
		return holdsNumeric(cond.Op, actual, cond.Value)
	case OpIn:
		list, ok := cond.Value.(value.List)
		if !ok {
			return false
		}
		for _, elem := range list {
			if value.Equal(actual, elem) {
				return true
			}
		}
		return false
	case OpContains:
		return holdsContains(actual, cond.Value)
	case OpBetween:
		return holdsBetween(actual, cond.Value)
	default:
		return false
	}
}

func resolveField(field string, payload, ctx value.Map) (value.Value, bool) {
	if v, ok := payload[field]; ok {
		return v, true
	}
	return value.Resolve(value.Merge(ctx, payload), field)
}

func holdsNumeric(op Operator, actual, expected value.Value) bool {
	a, ok := value.AsNum(actual)
	if !ok {
		return false
	}
	e, ok := value.AsNum(expected)
	if !ok {
		return false
	}
	switch op {
	case OpGt:
		return a > e
	case OpGte:
		return a >= e
	case OpLt:
		return a < e
	case OpLte:
		return a <= e
	}
	return false
}

// holdsContains covers both substring and array containment, dispatching
// on the resolved field's type.
func holdsContains(actual, expected value.Value) bool {
	switch av := actual.(type) {
	case value.String:
		sub, ok := value.AsString(expected)
		return ok && strings.Contains(string(av), sub)
	case value.List:
		for _, elem := range av {
			if value.Equal(elem, expected) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func holdsBetween(actual, expected value.Value) bool {
	a, ok := value.AsNum(actual)
	if !ok {
		return false
	}
	bounds, ok := expected.(value.List)
	if !ok || len(bounds) != 2 {
		return false
	}
	lo, ok := value.AsNum(bounds[0])
	if !ok {
		return false
	}
	hi, ok := value.AsNum(bounds[1])
	if !ok {
		return false
	}
	return a >= lo && a <= hi
}

// holdsGroup resolves the event's channel against a named channel group in
// the context. A missing group or missing channel field means the channel
// is not a member: in_group fails and not_in_group holds.
func holdsGroup(cond Condition, payload, ctx value.Map) bool {
	member := false

	channel, chOK := value.AsString(payload["channel"])
	groupName, gnOK := value.AsString(cond.Value)
	if chOK && gnOK {
		if groups, ok := ctx[ContextKeyChannelGroups].(value.Map); ok {
			for _, name := range value.Strings(groups[groupName]) {
				if name == channel {
					member = true
					break
				}
			}
		}
	}

	if cond.Op == OpNotInGroup {
		return !member
	}
	return member
}
