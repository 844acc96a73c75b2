package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/reflex/internal/rules"
	"github.com/roach88/reflex/internal/value"
)

// Validation error codes (E100-E199)
const (
	// Rule-level errors (E100-E109)
	ErrEmptyRuleID      = "E100" // rule ID is required
	ErrDuplicateRuleID  = "E101" // duplicate rule ID
	ErrNegativePriority = "E102" // priority must be non-negative
	ErrNegativeCooldown = "E103" // cooldown must be non-negative
	ErrNoActions        = "E104" // at least one action required
	ErrGateNotLast      = "E105" // actions after a gate are unreachable

	// Condition errors (E110-E119)
	ErrEmptyConditionField = "E110" // condition field is required
	ErrUnknownOperator     = "E111" // unknown operator
	ErrBadOperandShape     = "E112" // operand shape does not fit operator
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Rule    string `json:"rule"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("[%s] rule %q: %s: %s", e.Code, e.Rule, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled rules against schema constraints the CUE
// parser cannot express. Returns all errors found (does not fail-fast),
// so authors can fix a rule file in one pass.
func Validate(rs []rules.Rule) []ValidationError {
	var errs []ValidationError

	seen := make(map[string]bool)
	for _, r := range rs {
		if strings.TrimSpace(r.ID) == "" {
			errs = append(errs, ValidationError{
				Field:   "id",
				Message: "rule ID is required and must be non-empty",
				Code:    ErrEmptyRuleID,
			})
		}
		if seen[r.ID] {
			errs = append(errs, ValidationError{
				Rule:    r.ID,
				Field:   "id",
				Message: fmt.Sprintf("duplicate rule ID: %q", r.ID),
				Code:    ErrDuplicateRuleID,
			})
		}
		seen[r.ID] = true

		errs = append(errs, validateRule(r)...)
	}

	return errs
}

func validateRule(r rules.Rule) []ValidationError {
	var errs []ValidationError

	if r.Priority < 0 {
		errs = append(errs, ValidationError{
			Rule:    r.ID,
			Field:   "priority",
			Message: fmt.Sprintf("priority must be non-negative, got %d", r.Priority),
			Code:    ErrNegativePriority,
		})
	}

	if r.CooldownMinutes < 0 {
		errs = append(errs, ValidationError{
			Rule:    r.ID,
			Field:   "cooldown",
			Message: fmt.Sprintf("cooldown must be non-negative, got %d", r.CooldownMinutes),
			Code:    ErrNegativeCooldown,
		})
	}

	if len(r.Actions) == 0 {
		errs = append(errs, ValidationError{
			Rule:    r.ID,
			Field:   "then",
			Message: "at least one action is required",
			Code:    ErrNoActions,
		})
	}

	// A gate short-circuits evaluation, so any action after it in the
	// same rule can never run.
	for i, a := range r.Actions {
		if _, isGate := a.(rules.Gate); isGate && i != len(r.Actions)-1 {
			errs = append(errs, ValidationError{
				Rule:    r.ID,
				Field:   fmt.Sprintf("then[%d]", i),
				Message: "actions after a gate are unreachable",
				Code:    ErrGateNotLast,
			})
		}
	}

	for i, c := range r.Conditions {
		errs = append(errs, validateCondition(r.ID, i, c)...)
	}

	return errs
}

func validateCondition(ruleID string, i int, c rules.Condition) []ValidationError {
	var errs []ValidationError
	fieldPath := fmt.Sprintf("when[%d]", i)

	if strings.TrimSpace(c.Field) == "" {
		errs = append(errs, ValidationError{
			Rule:    ruleID,
			Field:   fieldPath + ".field",
			Message: "condition field is required",
			Code:    ErrEmptyConditionField,
		})
	}

	if !validOperators[c.Op] {
		errs = append(errs, ValidationError{
			Rule:    ruleID,
			Field:   fieldPath + ".op",
			Message: fmt.Sprintf("unknown operator %q", c.Op),
			Code:    ErrUnknownOperator,
		})
		return errs
	}

	// Operand shape per operator.
	switch c.Op {
	case rules.OpIn:
		if _, ok := c.Value.(value.List); !ok {
			errs = append(errs, ValidationError{
				Rule:    ruleID,
				Field:   fieldPath + ".value",
				Message: "'in' requires a list operand",
				Code:    ErrBadOperandShape,
			})
		}
	case rules.OpBetween:
		list, ok := c.Value.(value.List)
		if !ok || len(list) != 2 {
			errs = append(errs, ValidationError{
				Rule:    ruleID,
				Field:   fieldPath + ".value",
				Message: "'between' requires a two-element [low, high] list",
				Code:    ErrBadOperandShape,
			})
		}
	case rules.OpInGroup, rules.OpNotInGroup:
		if _, ok := c.Value.(value.String); !ok {
			errs = append(errs, ValidationError{
				Rule:    ruleID,
				Field:   fieldPath + ".value",
				Message: fmt.Sprintf("%q requires a group-name string operand", c.Op),
				Code:    ErrBadOperandShape,
			})
		}
	}

	return errs
}
