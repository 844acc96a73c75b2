package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"string", "hello", String("hello")},
		{"bool", true, Bool(true)},
		{"int", 42, Num(42)},
		{"int64", int64(7), Num(7)},
		{"float64", 0.5, Num(0.5)},
		{"nil", nil, Null{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAny_Nested(t *testing.T) {
	got, err := FromAny(map[string]any{
		"channel": "email",
		"metrics": map[string]any{"score": 0.82},
		"tags":    []any{"launch", "q3"},
	})
	require.NoError(t, err)

	m, ok := got.(Map)
	require.True(t, ok)
	assert.Equal(t, String("email"), m["channel"])
	assert.Equal(t, Num(0.82), m["metrics"].(Map)["score"])
	assert.Equal(t, List{String("launch"), String("q3")}, m["tags"])
}

func TestFromAny_Unsupported(t *testing.T) {
	_, err := FromAny(struct{ X int }{1})
	require.Error(t, err)
}

func TestResolve_DottedPath(t *testing.T) {
	m := MustMap(map[string]any{
		"channel": "email",
		"account": map[string]any{
			"score": 75.0,
			"tier":  map[string]any{"name": "warm"},
		},
	})

	v, ok := Resolve(m, "channel")
	require.True(t, ok)
	assert.Equal(t, String("email"), v)

	v, ok = Resolve(m, "account.score")
	require.True(t, ok)
	assert.Equal(t, Num(75), v)

	v, ok = Resolve(m, "account.tier.name")
	require.True(t, ok)
	assert.Equal(t, String("warm"), v)

	_, ok = Resolve(m, "account.missing")
	assert.False(t, ok)

	// Traversing into a scalar fails rather than panicking.
	_, ok = Resolve(m, "channel.sub")
	assert.False(t, ok)
}

func TestMerge_LaterWins(t *testing.T) {
	a := Map{"tone": String("neutral"), "keep": Num(1)}
	b := Map{"tone": String("urgent")}

	merged := Merge(a, b)
	assert.Equal(t, String("urgent"), merged["tone"])
	assert.Equal(t, Num(1), merged["keep"])

	// Inputs untouched.
	assert.Equal(t, String("neutral"), a["tone"])
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(String("a"), String("a")))
	assert.False(t, Equal(String("a"), Num(1)))
	assert.True(t, Equal(List{Num(1), Num(2)}, List{Num(1), Num(2)}))
	assert.False(t, Equal(List{Num(1)}, List{Num(2)}))
	assert.True(t, Equal(
		Map{"k": Map{"n": Num(1)}},
		Map{"k": Map{"n": Num(1)}},
	))
	assert.True(t, Equal(Null{}, Null{}))
}

func TestMap_JSONRoundTrip(t *testing.T) {
	orig := MustMap(map[string]any{
		"outcome": "engaged",
		"score":   0.9,
		"nested":  map[string]any{"ok": true},
		"list":    []any{"a", 1.5},
	})

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var back Map
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, Equal(orig, back))
}
