// Package compiler parses declarative CUE rule sources into rule values
// the engine can evaluate. Rules are authored as a single `rules` struct
// keyed by rule ID:
//
//	rules: {
//		"gate-negative-email": {
//			name:     "Hold email sends during negative drift"
//			priority: 10
//			cooldown: 30
//			when: [
//				{field: "channel", op: "eq", value: "email"},
//				{field: "score", op: "lt", value: 0.2},
//			]
//			then: [
//				{gate: {reason: "negative drift"}},
//			]
//		}
//	}
//
// Compilation uses the CUE SDK's Go API directly (not a CLI subprocess).
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/reflex/internal/rules"
	"github.com/roach88/reflex/internal/value"
)

// CompileString compiles CUE source text into rules, sorted by ascending
// priority. The filename is used only for error positions.
func CompileString(src, filename string) ([]rules.Rule, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileRules(v)
}

// CompileDir compiles every .cue file in a directory and merges the
// results. Rule IDs must be unique across files.
func CompileDir(dir string) ([]rules.Rule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rules dir: %w", err)
	}

	seen := make(map[string]string) // rule ID -> defining file
	var all []rules.Rule
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".cue" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		compiled, err := CompileString(string(src), path)
		if err != nil {
			return nil, err
		}
		for _, r := range compiled {
			if prev, dup := seen[r.ID]; dup {
				return nil, fmt.Errorf("rule %q defined in both %s and %s", r.ID, prev, path)
			}
			seen[r.ID] = path
		}
		all = append(all, compiled...)
	}

	sortByPriority(all)
	return all, nil
}

// CompileRules extracts the `rules` struct from a compiled CUE value and
// parses each entry. Results are sorted by ascending priority; ties break
// by ID so output is deterministic regardless of CUE field order.
func CompileRules(v cue.Value) ([]rules.Rule, error) {
	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil, &CompileError{
			Field:   "rules",
			Message: "top-level 'rules' struct is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := rulesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var compiled []rules.Rule
	for iter.Next() {
		rule, err := CompileRule(iter.Value())
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, *rule)
	}

	sortByPriority(compiled)
	return compiled, nil
}

// CompileRule parses a single CUE rule struct. The rule ID comes from the
// struct label, e.g. `rules: "quiet-hours": {...}` has ID "quiet-hours".
func CompileRule(v cue.Value) (*rules.Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rule := &rules.Rule{}

	// The ID may be quoted in CUE, extract it.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		rule.ID = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		rule.Name = name
	}
	if rule.Name == "" {
		rule.Name = rule.ID
	}

	priorityVal := v.LookupPath(cue.ParsePath("priority"))
	if !priorityVal.Exists() {
		return nil, &CompileError{
			Field:   "priority",
			Message: "priority is required",
			Pos:     v.Pos(),
		}
	}
	priority, err := priorityVal.Int64()
	if err != nil {
		return nil, &CompileError{
			Field:   "priority",
			Message: "priority must be an integer",
			Pos:     priorityVal.Pos(),
		}
	}
	rule.Priority = int(priority)

	cooldownVal := v.LookupPath(cue.ParsePath("cooldown"))
	if cooldownVal.Exists() {
		cooldown, err := cooldownVal.Int64()
		if err != nil {
			return nil, &CompileError{
				Field:   "cooldown",
				Message: "cooldown must be an integer number of minutes",
				Pos:     cooldownVal.Pos(),
			}
		}
		rule.CooldownMinutes = int(cooldown)
	}

	rule.Conditions, err = parseConditions(v)
	if err != nil {
		return nil, err
	}

	rule.Actions, err = parseActions(v)
	if err != nil {
		return nil, err
	}

	scopeVal := v.LookupPath(cue.ParsePath("scope"))
	if scopeVal.Exists() {
		scope, err := decodeMap(scopeVal)
		if err != nil {
			return nil, err
		}
		rule.Scope = scope
	}

	return rule, nil
}

// parseConditions extracts the when clause, a list of
// {field, op, value} structs.
func parseConditions(v cue.Value) ([]rules.Condition, error) {
	whenVal := v.LookupPath(cue.ParsePath("when"))
	if !whenVal.Exists() {
		return nil, nil
	}

	iter, err := whenVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "when",
			Message: "when must be a list of conditions",
			Pos:     whenVal.Pos(),
		}
	}

	var conditions []rules.Condition
	for iter.Next() {
		cond, err := parseCondition(iter.Value())
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}
	return conditions, nil
}

func parseCondition(v cue.Value) (rules.Condition, error) {
	fieldVal := v.LookupPath(cue.ParsePath("field"))
	if !fieldVal.Exists() {
		return rules.Condition{}, &CompileError{
			Field:   "when.field",
			Message: "condition requires 'field'",
			Pos:     v.Pos(),
		}
	}
	field, err := fieldVal.String()
	if err != nil {
		return rules.Condition{}, formatCUEError(err)
	}

	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return rules.Condition{}, &CompileError{
			Field:   "when.op",
			Message: "condition requires 'op'",
			Pos:     v.Pos(),
		}
	}
	op, err := opVal.String()
	if err != nil {
		return rules.Condition{}, formatCUEError(err)
	}
	if !validOperators[rules.Operator(op)] {
		return rules.Condition{}, &CompileError{
			Field:   "when.op",
			Message: fmt.Sprintf("unknown operator %q", op),
			Pos:     opVal.Pos(),
		}
	}

	cond := rules.Condition{Field: field, Op: rules.Operator(op)}

	valueVal := v.LookupPath(cue.ParsePath("value"))
	if valueVal.Exists() {
		val, err := decodeValue(valueVal)
		if err != nil {
			return rules.Condition{}, err
		}
		cond.Value = val
	}

	return cond, nil
}

// parseActions extracts the then clause, a list of single-key structs
// naming the action variant: {gate: {...}}, {modify: {...}}, and so on.
func parseActions(v cue.Value) ([]rules.Action, error) {
	thenVal := v.LookupPath(cue.ParsePath("then"))
	if !thenVal.Exists() {
		return nil, &CompileError{
			Field:   "then",
			Message: "then clause is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := thenVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "then",
			Message: "then must be a list of actions",
			Pos:     thenVal.Pos(),
		}
	}

	var actions []rules.Action
	for iter.Next() {
		action, err := parseAction(iter.Value())
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	if len(actions) == 0 {
		return nil, &CompileError{
			Field:   "then",
			Message: "then clause requires at least one action",
			Pos:     thenVal.Pos(),
		}
	}
	return actions, nil
}

func parseAction(v cue.Value) (rules.Action, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if !iter.Next() {
		return nil, &CompileError{
			Field:   "then",
			Message: "action struct must name a variant",
			Pos:     v.Pos(),
		}
	}
	variant := iter.Label()
	body := iter.Value()
	if iter.Next() {
		return nil, &CompileError{
			Field:   "then",
			Message: fmt.Sprintf("action struct must name exactly one variant, found %q and %q", variant, iter.Label()),
			Pos:     v.Pos(),
		}
	}

	switch variant {
	case "gate":
		reason, err := optionalString(body, "reason")
		if err != nil {
			return nil, err
		}
		return rules.Gate{Reason: reason}, nil

	case "modify":
		setVal := body.LookupPath(cue.ParsePath("set"))
		if !setVal.Exists() {
			return nil, &CompileError{
				Field:   "then.modify",
				Message: "modify requires a 'set' struct",
				Pos:     body.Pos(),
			}
		}
		set, err := decodeMap(setVal)
		if err != nil {
			return nil, err
		}
		return rules.Modify{Set: set}, nil

	case "notify":
		target, params, err := targetAndParams(body, "then.notify")
		if err != nil {
			return nil, err
		}
		return rules.Notify{Target: target, Params: params}, nil

	case "route":
		target, params, err := targetAndParams(body, "then.route")
		if err != nil {
			return nil, err
		}
		return rules.Route{Target: target, Params: params}, nil

	case "generate":
		params, err := optionalParams(body)
		if err != nil {
			return nil, err
		}
		return rules.Generate{Params: params}, nil

	default:
		return nil, &CompileError{
			Field:   "then",
			Message: fmt.Sprintf("unknown action variant %q", variant),
			Pos:     v.Pos(),
		}
	}
}

func targetAndParams(v cue.Value, field string) (string, value.Map, error) {
	targetVal := v.LookupPath(cue.ParsePath("target"))
	if !targetVal.Exists() {
		return "", nil, &CompileError{
			Field:   field,
			Message: "requires a 'target' string",
			Pos:     v.Pos(),
		}
	}
	target, err := targetVal.String()
	if err != nil {
		return "", nil, formatCUEError(err)
	}
	params, err := optionalParams(v)
	if err != nil {
		return "", nil, err
	}
	return target, params, nil
}

func optionalParams(v cue.Value) (value.Map, error) {
	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if !paramsVal.Exists() {
		return nil, nil
	}
	return decodeMap(paramsVal)
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// decodeValue converts a concrete CUE value into a tagged value.
func decodeValue(v cue.Value) (value.Value, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	switch v.Kind() {
	case cue.NullKind:
		return value.Null{}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.String(s), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Bool(b), nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Num(f), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var list value.List
		for iter.Next() {
			item, err := decodeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	case cue.StructKind:
		return decodeMap(v)
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported value kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func decodeMap(v cue.Value) (value.Map, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	m := make(value.Map)
	for iter.Next() {
		item, err := decodeValue(iter.Value())
		if err != nil {
			return nil, err
		}
		m[iter.Label()] = item
	}
	return m, nil
}

var validOperators = map[rules.Operator]bool{
	rules.OpEq:         true,
	rules.OpNeq:        true,
	rules.OpGt:         true,
	rules.OpGte:        true,
	rules.OpLt:         true,
	rules.OpLte:        true,
	rules.OpIn:         true,
	rules.OpContains:   true,
	rules.OpBetween:    true,
	rules.OpInGroup:    true,
	rules.OpNotInGroup: true,
}

func sortByPriority(rs []rules.Rule) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Priority != rs[j].Priority {
			return rs[i].Priority < rs[j].Priority
		}
		return rs[i].ID < rs[j].ID
	})
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
