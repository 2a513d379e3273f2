package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/template"
)

func evalCtx() map[string]any {
	return map[string]any{
		"age":     20,
		"name":    "Ann",
		"vip":     true,
		"answer":  "yes",
		"tags":    []any{"beta", "trial"},
		"profile": map[string]any{"city": "Riga"},
	}
}

func TestEvaluate_Comparisons(t *testing.T) {
	ctx := evalCtx()

	cases := map[string]bool{
		"age >= 18":              true,
		"age < 18":               false,
		"age == 20":              true,
		"age != 20":              false,
		"name == 'Ann'":          true,
		"name != 'Bob'":          true,
		"profile.city == 'Riga'": true,
		"vip == true":            true,
		"answer == \"yes\"":      true,
	}
	for expr, want := range cases {
		got, err := Evaluate(expr, ctx)
		require.NoError(t, err, "expr %s", expr)
		assert.Equal(t, want, got, "expr %s", expr)
	}
}

func TestEvaluate_Containment(t *testing.T) {
	ctx := evalCtx()

	cases := map[string]bool{
		"tags contains 'beta'":  true,
		"tags contains 'alpha'": false,
		"'beta' in tags":        true,
		"name in 'Ann Bob'":     true,
		"answer in 'yes no'":    true,
	}
	for expr, want := range cases {
		got, err := Evaluate(expr, ctx)
		require.NoError(t, err, "expr %s", expr)
		assert.Equal(t, want, got, "expr %s", expr)
	}
}

func TestEvaluate_Existence(t *testing.T) {
	ctx := evalCtx()

	cases := map[string]bool{
		"exists name":         true,
		"exists missing":      false,
		"!exists missing":     true,
		"exists profile.city": true,
		"exists tags[1]":      true,
		"exists tags[5]":      false,
	}
	for expr, want := range cases {
		got, err := Evaluate(expr, ctx)
		require.NoError(t, err, "expr %s", expr)
		assert.Equal(t, want, got, "expr %s", expr)
	}
}

func TestEvaluate_BooleanComposition(t *testing.T) {
	ctx := evalCtx()

	cases := map[string]bool{
		"age >= 18 && vip":                true,
		"age < 18 || name == 'Ann'":       true,
		"!(age < 18) && exists tags":      true,
		"(age < 18 || vip) && exists age": true,
		"age < 18 && name == 'Ann'":       false,
	}
	for expr, want := range cases {
		got, err := Evaluate(expr, ctx)
		require.NoError(t, err, "expr %s", expr)
		assert.Equal(t, want, got, "expr %s", expr)
	}
}

func TestEvaluate_MissingPathIsFalsyNotError(t *testing.T) {
	ctx := evalCtx()

	got, err := Evaluate("missing >= 18", ctx)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = Evaluate("missing", ctx)
	require.NoError(t, err)
	assert.False(t, got)

	// Absence is inequality.
	got, err = Evaluate("missing != 'x'", ctx)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluate_SentinelCountsAsAbsent(t *testing.T) {
	ctx := evalCtx()
	ctx["faulted"] = template.Unresolved("user_name")

	got, err := Evaluate("exists faulted", ctx)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = Evaluate("faulted == 'Ann'", ctx)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluate_ParseErrors(t *testing.T) {
	ctx := evalCtx()

	_, err := Evaluate("age >= ", ctx)
	assert.Error(t, err)

	_, err = Evaluate("(age >= 18", ctx)
	assert.Error(t, err)

	_, err = Evaluate("name == 'unterminated", ctx)
	assert.Error(t, err)
}

func TestChooseBranch_FirstMatchWins(t *testing.T) {
	branches := []domain.Branch{
		{When: "age >= 18", To: "adult"},
		{When: "age >= 0", To: "minor"},
	}

	got := ChooseBranch(branches, "invalid", map[string]any{"age": 20})
	assert.Equal(t, "adult", got, "first truthy condition wins even when later ones also match")

	got = ChooseBranch(branches, "invalid", map[string]any{"age": 7})
	assert.Equal(t, "minor", got)

	got = ChooseBranch(branches, "invalid", map[string]any{"age": -1})
	assert.Equal(t, "invalid", got)
}

func TestChooseBranch_UnparseableConditionIsSkipped(t *testing.T) {
	branches := []domain.Branch{
		{When: "age >= ", To: "broken"},
		{When: "age >= 18", To: "adult"},
	}

	got := ChooseBranch(branches, "fallback", map[string]any{"age": 30})
	assert.Equal(t, "adult", got)
}
