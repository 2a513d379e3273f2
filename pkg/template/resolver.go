// Package template implements placeholder resolution for step parameters.
//
// Two syntaxes are recognized and resolve identically: {name} and {{name}}.
// Paths address nested context through dots ({a.b.c}) and sequences through
// numeric segments ({items[0]} or {items.0}). Resolution is pure: it never
// mutates the context it reads from, and resolving the same value twice
// against an unchanged context yields identical output.
//
// An unresolvable placeholder never raises. It is replaced by a sentinel
// ({{unresolved:<path>}}) that handlers and branch conditions can detect
// via IsUnresolved, instead of silently producing an empty string.
package template

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	sentinelPrefix = "{{unresolved:"
	sentinelSuffix = "}}"
)

// Unresolved builds the sentinel text for a missing path.
func Unresolved(path string) string {
	return sentinelPrefix + path + sentinelSuffix
}

// IsUnresolved reports whether a value is, or contains, an unresolved
// placeholder sentinel.
func IsUnresolved(v any) bool {
	s, ok := v.(string)
	return ok && strings.Contains(s, sentinelPrefix)
}

// Resolve substitutes placeholders in every string leaf of value,
// recursing through maps and slices. Non-container, non-string values are
// returned unchanged. The input is never mutated.
func Resolve(value any, ctx map[string]any) any {
	switch v := value.(type) {
	case string:
		return ResolveString(v, ctx)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Resolve(item, ctx)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Resolve(item, ctx)
		}
		return out
	default:
		return value
	}
}

// ResolveMap resolves every value of a parameter bag.
func ResolveMap(params map[string]any, ctx map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = Resolve(v, ctx)
	}
	return out
}

// ResolveString substitutes all placeholders in s. A string that consists of
// exactly one placeholder resolves to the underlying context value,
// preserving its type; mixed text stringifies each substitution.
func ResolveString(s string, ctx map[string]any) any {
	spans := scan(s)
	if len(spans) == 0 {
		return s
	}

	// Whole-string single placeholder: return the raw value.
	if len(spans) == 1 && spans[0].start == 0 && spans[0].end == len(s) {
		return lookupOrSentinel(spans[0].path, ctx)
	}

	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(s[last:sp.start])
		b.WriteString(stringify(lookupOrSentinel(sp.path, ctx)))
		last = sp.end
	}
	b.WriteString(s[last:])
	return b.String()
}

func lookupOrSentinel(path string, ctx map[string]any) any {
	// Sentinels re-resolve to themselves so resolution stays idempotent.
	if strings.HasPrefix(path, "unresolved:") {
		return Unresolved(strings.TrimPrefix(path, "unresolved:"))
	}
	if v, ok := Lookup(path, ctx); ok {
		return v
	}
	return Unresolved(path)
}

// Lookup resolves a dotted, optionally indexed path against the context.
// Numeric segments index into slices; everything else keys into maps.
func Lookup(path string, ctx map[string]any) (any, bool) {
	segs, ok := splitPath(path)
	if !ok {
		return nil, false
	}

	var cur any = ctx
	for _, seg := range segs {
		switch c := cur.(type) {
		case map[string]any:
			v, exists := c[seg]
			if !exists {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, false
			}
			cur = c[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// splitPath turns "items[0].name" or "items.0.name" into ["items","0","name"].
func splitPath(path string) ([]string, bool) {
	if path == "" {
		return nil, false
	}
	var segs []string
	for _, part := range strings.Split(path, ".") {
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				break
			}
			closing := strings.IndexByte(part, ']')
			if closing < open {
				return nil, false
			}
			if open > 0 {
				segs = append(segs, part[:open])
			}
			segs = append(segs, part[open+1:closing])
			part = part[closing+1:]
		}
		if part != "" {
			segs = append(segs, part)
		}
	}
	if len(segs) == 0 {
		return nil, false
	}
	return segs, true
}

type span struct {
	start, end int // byte offsets of the full placeholder, braces included
	path       string
}

// scan finds placeholder spans in s. Double braces are matched before
// single so that {{name}} and {name} name the same key.
func scan(s string) []span {
	var spans []span
	i := 0
	for i < len(s) {
		if s[i] != '{' {
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '{' {
			closing := strings.Index(s[i+2:], "}}")
			if closing < 0 {
				i++
				continue
			}
			inner := strings.TrimSpace(s[i+2 : i+2+closing])
			end := i + 2 + closing + 2
			if validPath(inner) {
				spans = append(spans, span{start: i, end: end, path: inner})
				i = end
				continue
			}
			i++
			continue
		}
		closing := strings.IndexByte(s[i+1:], '}')
		if closing < 0 {
			i++
			continue
		}
		inner := strings.TrimSpace(s[i+1 : i+1+closing])
		end := i + 1 + closing + 1
		if validPath(inner) {
			spans = append(spans, span{start: i, end: end, path: inner})
			i = end
			continue
		}
		i++
	}
	return spans
}

// validPath rejects inner text that is clearly not a context path (spaces,
// nested braces, empty) so prose with stray braces passes through intact.
func validPath(inner string) bool {
	if inner == "" {
		return false
	}
	for _, r := range inner {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '-', r == '.', r == '[', r == ']', r == ':':
		default:
			return false
		}
	}
	return true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
