package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reflex/internal/rules"
	"github.com/roach88/reflex/internal/value"
)

const sampleRules = `
rules: {
	"gate-negative-email": {
		name:     "Hold email sends during negative drift"
		priority: 10
		cooldown: 30
		when: [
			{field: "channel", op: "eq", value: "email"},
			{field: "score", op: "lt", value: 0.2},
		]
		then: [
			{gate: {reason: "negative drift"}},
		]
	}
	"empathetic-tone": {
		priority: 20
		when: [
			{field: "direction", op: "eq", value: "negative"},
			{field: "channel", op: "in_group", value: "outbound"},
		]
		then: [
			{modify: {set: {tone: "empathetic", maxLength: 280}}},
			{notify: {target: "slack", params: {severity: "warn"}}},
		]
	}
}
`

func TestCompileString_ParsesRules(t *testing.T) {
	compiled, err := CompileString(sampleRules, "sample.cue")
	require.NoError(t, err)
	require.Len(t, compiled, 2)

	// Sorted ascending by priority.
	gate := compiled[0]
	assert.Equal(t, "gate-negative-email", gate.ID)
	assert.Equal(t, "Hold email sends during negative drift", gate.Name)
	assert.Equal(t, 10, gate.Priority)
	assert.Equal(t, 30, gate.CooldownMinutes)

	require.Len(t, gate.Conditions, 2)
	assert.Equal(t, rules.Condition{Field: "channel", Op: rules.OpEq, Value: value.String("email")}, gate.Conditions[0])
	assert.Equal(t, rules.Condition{Field: "score", Op: rules.OpLt, Value: value.Num(0.2)}, gate.Conditions[1])

	require.Len(t, gate.Actions, 1)
	assert.Equal(t, rules.Gate{Reason: "negative drift"}, gate.Actions[0])

	tone := compiled[1]
	assert.Equal(t, "empathetic-tone", tone.ID)
	// Name falls back to the ID when omitted.
	assert.Equal(t, "empathetic-tone", tone.Name)
	assert.Equal(t, 0, tone.CooldownMinutes)

	require.Len(t, tone.Actions, 2)
	modify, ok := tone.Actions[0].(rules.Modify)
	require.True(t, ok)
	assert.True(t, value.Equal(value.Map{
		"tone":      value.String("empathetic"),
		"maxLength": value.Num(280),
	}, modify.Set))

	notify, ok := tone.Actions[1].(rules.Notify)
	require.True(t, ok)
	assert.Equal(t, "slack", notify.Target)
	assert.True(t, value.Equal(value.Map{"severity": value.String("warn")}, notify.Params))
}

func TestCompileString_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantSub string
	}{
		{
			name:    "missing rules struct",
			src:     `other: {}`,
			wantSub: "'rules' struct is required",
		},
		{
			name: "missing priority",
			src: `rules: "r1": {
				then: [{gate: {}}]
			}`,
			wantSub: "priority is required",
		},
		{
			name: "missing then clause",
			src: `rules: "r1": {
				priority: 1
			}`,
			wantSub: "then clause is required",
		},
		{
			name: "empty then clause",
			src: `rules: "r1": {
				priority: 1
				then: []
			}`,
			wantSub: "at least one action",
		},
		{
			name: "unknown operator",
			src: `rules: "r1": {
				priority: 1
				when: [{field: "x", op: "matches", value: "y"}]
				then: [{gate: {}}]
			}`,
			wantSub: `unknown operator "matches"`,
		},
		{
			name: "unknown action variant",
			src: `rules: "r1": {
				priority: 1
				then: [{teleport: {}}]
			}`,
			wantSub: `unknown action variant "teleport"`,
		},
		{
			name: "two variants in one action",
			src: `rules: "r1": {
				priority: 1
				then: [{gate: {}, notify: {target: "x"}}]
			}`,
			wantSub: "exactly one variant",
		},
		{
			name: "modify without set",
			src: `rules: "r1": {
				priority: 1
				then: [{modify: {}}]
			}`,
			wantSub: "modify requires a 'set' struct",
		},
		{
			name: "notify without target",
			src: `rules: "r1": {
				priority: 1
				then: [{notify: {params: {a: 1}}}]
			}`,
			wantSub: "requires a 'target' string",
		},
		{
			name: "non-integer priority",
			src: `rules: "r1": {
				priority: 1.5
				then: [{gate: {}}]
			}`,
			wantSub: "priority must be an integer",
		},
		{
			name:    "malformed cue",
			src:     `rules: {`,
			wantSub: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.src, tt.name+".cue")
			require.Error(t, err)
			if tt.wantSub != "" {
				assert.Contains(t, err.Error(), tt.wantSub)
			}
		})
	}
}

func TestCompileString_DecodesValueShapes(t *testing.T) {
	src := `
rules: "shapes": {
	priority: 1
	when: [
		{field: "channel", op: "in", value: ["email", "social"]},
		{field: "score", op: "between", value: [0.2, 0.8]},
		{field: "enabled", op: "eq", value: true},
	]
	then: [
		{generate: {params: {nested: {depth: 2}, tags: ["a", "b"]}}},
	]
}
`
	compiled, err := CompileString(src, "shapes.cue")
	require.NoError(t, err)
	require.Len(t, compiled, 1)

	conds := compiled[0].Conditions
	require.Len(t, conds, 3)
	assert.Equal(t, value.List{value.String("email"), value.String("social")}, conds[0].Value)
	assert.Equal(t, value.List{value.Num(0.2), value.Num(0.8)}, conds[1].Value)
	assert.Equal(t, value.Bool(true), conds[2].Value)

	gen, ok := compiled[0].Actions[0].(rules.Generate)
	require.True(t, ok)
	assert.True(t, value.Equal(value.Map{
		"nested": value.Map{"depth": value.Num(2)},
		"tags":   value.List{value.String("a"), value.String("b")},
	}, gen.Params))
}

func TestCompileString_TiesSortByID(t *testing.T) {
	src := `
rules: {
	"zeta":  {priority: 5, then: [{gate: {}}]}
	"alpha": {priority: 5, then: [{gate: {}}]}
}
`
	compiled, err := CompileString(src, "ties.cue")
	require.NoError(t, err)
	require.Len(t, compiled, 2)
	assert.Equal(t, "alpha", compiled[0].ID)
	assert.Equal(t, "zeta", compiled[1].ID)
}

func TestCompileDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"),
		[]byte(`rules: "first": {priority: 2, then: [{gate: {}}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cue"),
		[]byte(`rules: "second": {priority: 1, then: [{gate: {}}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"),
		[]byte("ignored"), 0o644))

	compiled, err := CompileDir(dir)
	require.NoError(t, err)
	require.Len(t, compiled, 2)
	assert.Equal(t, "second", compiled[0].ID)
	assert.Equal(t, "first", compiled[1].ID)
}

func TestCompileDir_DuplicateIDAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"),
		[]byte(`rules: "dup": {priority: 1, then: [{gate: {}}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cue"),
		[]byte(`rules: "dup": {priority: 2, then: [{gate: {}}]}`), 0o644))

	_, err := CompileDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `rule "dup" defined in both`)
}
