package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reflex/internal/rules"
	"github.com/roach88/reflex/internal/value"
)

func validRule(id string) rules.Rule {
	return rules.Rule{
		ID:       id,
		Name:     id,
		Priority: 10,
		Conditions: []rules.Condition{
			{Field: "channel", Op: rules.OpEq, Value: value.String("email")},
		},
		Actions: []rules.Action{rules.Gate{Reason: "test"}},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_ValidRules(t *testing.T) {
	errs := Validate([]rules.Rule{validRule("a"), validRule("b")})
	assert.Empty(t, errs)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	bad := rules.Rule{
		ID:              "",
		Priority:        -1,
		CooldownMinutes: -5,
	}

	errs := Validate([]rules.Rule{bad})
	assert.ElementsMatch(t, []string{
		ErrEmptyRuleID,
		ErrNegativePriority,
		ErrNegativeCooldown,
		ErrNoActions,
	}, codes(errs))
}

func TestValidate_DuplicateID(t *testing.T) {
	errs := Validate([]rules.Rule{validRule("dup"), validRule("dup")})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateRuleID, errs[0].Code)
	assert.Contains(t, errs[0].Error(), `duplicate rule ID: "dup"`)
}

func TestValidate_GateMustBeLast(t *testing.T) {
	r := validRule("gated")
	r.Actions = []rules.Action{
		rules.Gate{Reason: "stop"},
		rules.Notify{Target: "slack"},
	}

	errs := Validate([]rules.Rule{r})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrGateNotLast, errs[0].Code)
	assert.Equal(t, "then[0]", errs[0].Field)
}

func TestValidate_OperandShapes(t *testing.T) {
	tests := []struct {
		name     string
		cond     rules.Condition
		wantCode string
	}{
		{
			name:     "in requires list",
			cond:     rules.Condition{Field: "channel", Op: rules.OpIn, Value: value.String("email")},
			wantCode: ErrBadOperandShape,
		},
		{
			name:     "between requires pair",
			cond:     rules.Condition{Field: "score", Op: rules.OpBetween, Value: value.List{value.Num(1)}},
			wantCode: ErrBadOperandShape,
		},
		{
			name:     "in_group requires string",
			cond:     rules.Condition{Field: "channel", Op: rules.OpInGroup, Value: value.Num(3)},
			wantCode: ErrBadOperandShape,
		},
		{
			name:     "unknown operator",
			cond:     rules.Condition{Field: "x", Op: "matches", Value: value.String("y")},
			wantCode: ErrUnknownOperator,
		},
		{
			name:     "empty field",
			cond:     rules.Condition{Field: "  ", Op: rules.OpEq, Value: value.String("y")},
			wantCode: ErrEmptyConditionField,
		},
		{
			name: "valid between",
			cond: rules.Condition{Field: "score", Op: rules.OpBetween,
				Value: value.List{value.Num(0), value.Num(1)}},
		},
		{
			name: "valid in_group",
			cond: rules.Condition{Field: "channel", Op: rules.OpInGroup, Value: value.String("outbound")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule("r")
			r.Conditions = []rules.Condition{tt.cond}

			errs := Validate([]rules.Rule{r})
			if tt.wantCode == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantCode, errs[0].Code)
		})
	}
}
