package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContext() map[string]any {
	return map[string]any{
		"user_name": "Ann",
		"age":       20,
		"items": []any{
			map[string]any{"name": "Book", "price": 12.5},
			map[string]any{"name": "Pen"},
		},
		"profile": map[string]any{
			"city": "Riga",
			"tags": []any{"vip", "beta"},
		},
	}
}

func TestResolveString_Basic(t *testing.T) {
	ctx := sampleContext()

	got := ResolveString("Hi {user_name}, buy {items[0].name}", ctx)
	assert.Equal(t, "Hi Ann, buy Book", got)
}

func TestResolveString_BothSyntaxesIdentical(t *testing.T) {
	ctx := sampleContext()

	single := ResolveString("Hello {user_name}", ctx)
	double := ResolveString("Hello {{user_name}}", ctx)
	assert.Equal(t, single, double)
	assert.Equal(t, "Hello Ann", single)
}

func TestResolveString_DottedAndIndexedPaths(t *testing.T) {
	ctx := sampleContext()

	cases := map[string]string{
		"{profile.city}":    "Riga",
		"{items.0.name}":    "Book",
		"{items[1].name}":   "Pen",
		"{profile.tags[0]}": "vip",
	}
	for tmpl, want := range cases {
		got := ResolveString(tmpl, ctx)
		assert.Equal(t, want, got, "template %s", tmpl)
	}
}

func TestResolveString_WholePlaceholderPreservesType(t *testing.T) {
	ctx := sampleContext()

	got := ResolveString("{age}", ctx)
	assert.Equal(t, 20, got)

	got = ResolveString("{items[0]}", ctx)
	m, ok := got.(map[string]any)
	require.True(t, ok, "expected map, got %T", got)
	assert.Equal(t, "Book", m["name"])
}

func TestResolveString_MissingKeyFaultsSentinel(t *testing.T) {
	ctx := sampleContext()

	got := ResolveString("Hi {nобody}", ctx)
	// Invalid path characters pass through untouched.
	assert.Equal(t, "Hi {nобody}", got)

	got = ResolveString("Hi {nickname}", ctx)
	assert.Equal(t, "Hi "+Unresolved("nickname"), got)
	assert.True(t, IsUnresolved(got))

	// Whole-string placeholder misses fault the sentinel too.
	got = ResolveString("{missing.deep[3]}", ctx)
	assert.True(t, IsUnresolved(got))
}

func TestResolveString_Idempotent(t *testing.T) {
	ctx := sampleContext()

	first := ResolveString("Hi {nickname} and {user_name}", ctx)
	second := ResolveString(first.(string), ctx)
	assert.Equal(t, first, second, "resolution must be idempotent")
}

func TestResolve_RecursesContainers(t *testing.T) {
	ctx := sampleContext()

	params := map[string]any{
		"text": "Hello {user_name}",
		"meta": map[string]any{
			"first_item": "{items[0].name}",
			"count":      3,
		},
		"list": []any{"{profile.city}", 42},
	}

	resolved := Resolve(params, ctx).(map[string]any)
	assert.Equal(t, "Hello Ann", resolved["text"])
	assert.Equal(t, "Book", resolved["meta"].(map[string]any)["first_item"])
	assert.Equal(t, 3, resolved["meta"].(map[string]any)["count"])
	assert.Equal(t, "Riga", resolved["list"].([]any)[0])
	assert.Equal(t, 42, resolved["list"].([]any)[1])

	// Source must be untouched.
	assert.Equal(t, "Hello {user_name}", params["text"])
	assert.Equal(t, "{items[0].name}", params["meta"].(map[string]any)["first_item"])
}

func TestResolve_DoesNotMutateContext(t *testing.T) {
	ctx := sampleContext()

	_ = Resolve("Hi {user_name} {missing}", ctx)
	if _, ok := ctx["missing"]; ok {
		t.Fatal("resolution must not write into the context it reads from")
	}
	assert.Equal(t, "Ann", ctx["user_name"])
}

func TestStringify_Floats(t *testing.T) {
	ctx := map[string]any{"price": 12.0, "rate": 0.25}

	assert.Equal(t, "12 at 0.25", ResolveString("{price} at {rate}", ctx))
}

func TestLookup(t *testing.T) {
	ctx := sampleContext()

	v, ok := Lookup("items[1].name", ctx)
	require.True(t, ok)
	assert.Equal(t, "Pen", v)

	_, ok = Lookup("items[5]", ctx)
	assert.False(t, ok)

	_, ok = Lookup("", ctx)
	assert.False(t, ok)

	_, ok = Lookup("profile.city.zip", ctx)
	assert.False(t, ok, "indexing through a scalar must miss, not panic")
}
