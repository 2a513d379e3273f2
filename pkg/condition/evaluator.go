// Package condition evaluates branch expressions against a session context.
//
// Expressions address context by the same dotted/indexed paths the template
// resolver uses and support equality and ordering comparisons, containment
// (contains, in), existence checks (exists p, !exists p) and boolean
// composition (&&, ||, !, parentheses):
//
//	age >= 18
//	profile.city == 'Riga' && exists items[0]
//	answer in 'yes no maybe' || _reprompt > 2
//
// A reference to a non-existent path evaluates to falsy, never to an error;
// existence checks are the idiomatic way to test for absence.
package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/template"
)

// Evaluate parses and evaluates one expression against the context.
// Parse errors are returned so callers can decide to log and treat the
// branch as falsy.
func Evaluate(expr string, ctx map[string]any) (bool, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return false, err
	}
	p := &parser{toks: toks, ctx: ctx}
	v, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if !p.eof() {
		return false, fmt.Errorf("condition %q: unexpected token %q", expr, p.peek().text)
	}
	return v, nil
}

// ChooseBranch walks an ordered condition list and returns the target of
// the first truthy expression, or def if none match. Order is significant:
// first match wins, not best match.
func ChooseBranch(branches []domain.Branch, def string, ctx map[string]any) string {
	for _, b := range branches {
		ok, err := Evaluate(b.When, ctx)
		if err != nil {
			// Unparseable conditions are falsy; the engine logs them.
			continue
		}
		if ok {
			return b.To
		}
	}
	return def
}

type tokKind int

const (
	tokPath tokKind = iota
	tokString
	tokNumber
	tokBool
	tokNull
	tokOp     // == != >= <= > < contains in
	tokAnd    // &&
	tokOr     // ||
	tokNot    // !
	tokExists // exists
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
	num  float64
	b    bool
}

func tokenize(expr string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen})
			i++
		case strings.HasPrefix(expr[i:], "&&"):
			toks = append(toks, token{kind: tokAnd})
			i += 2
		case strings.HasPrefix(expr[i:], "||"):
			toks = append(toks, token{kind: tokOr})
			i += 2
		case strings.HasPrefix(expr[i:], "=="), strings.HasPrefix(expr[i:], "!="),
			strings.HasPrefix(expr[i:], ">="), strings.HasPrefix(expr[i:], "<="):
			toks = append(toks, token{kind: tokOp, text: expr[i : i+2]})
			i += 2
		case c == '>' || c == '<':
			toks = append(toks, token{kind: tokOp, text: string(c)})
			i++
		case c == '!':
			toks = append(toks, token{kind: tokNot})
			i++
		case c == '\'' || c == '"':
			end := strings.IndexByte(expr[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("condition %q: unterminated string", expr)
			}
			toks = append(toks, token{kind: tokString, text: expr[i+1 : i+1+end]})
			i += end + 2
		default:
			j := i
			for j < len(expr) && isWordByte(expr[j]) {
				j++
			}
			if j == i {
				return nil, fmt.Errorf("condition %q: unexpected character %q", expr, c)
			}
			word := expr[i:j]
			i = j
			switch word {
			case "exists":
				toks = append(toks, token{kind: tokExists})
			case "contains", "in":
				toks = append(toks, token{kind: tokOp, text: word})
			case "true", "false":
				toks = append(toks, token{kind: tokBool, b: word == "true"})
			case "null", "nil":
				toks = append(toks, token{kind: tokNull})
			default:
				if n, err := strconv.ParseFloat(word, 64); err == nil {
					toks = append(toks, token{kind: tokNumber, num: n})
				} else {
					toks = append(toks, token{kind: tokPath, text: word})
				}
			}
		}
	}
	return toks, nil
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '.' || c == '[' || c == ']' || c == '-'
}

type parser struct {
	toks []token
	pos  int
	ctx  map[string]any
}

func (p *parser) eof() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) advance() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) parseOr() (bool, error) {
	left, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for !p.eof() && p.peek().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		left = left || right
	}
	return left, nil
}

func (p *parser) parseAnd() (bool, error) {
	left, err := p.parseUnary()
	if err != nil {
		return false, err
	}
	for !p.eof() && p.peek().kind == tokAnd {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return false, err
		}
		left = left && right
	}
	return left, nil
}

func (p *parser) parseUnary() (bool, error) {
	if p.eof() {
		return false, fmt.Errorf("unexpected end of condition")
	}
	switch p.peek().kind {
	case tokNot:
		p.advance()
		v, err := p.parseUnary()
		return !v, err
	case tokLParen:
		p.advance()
		v, err := p.parseOr()
		if err != nil {
			return false, err
		}
		if p.eof() || p.peek().kind != tokRParen {
			return false, fmt.Errorf("missing closing parenthesis")
		}
		p.advance()
		return v, nil
	case tokExists:
		p.advance()
		if p.eof() || p.peek().kind != tokPath {
			return false, fmt.Errorf("exists requires a context path")
		}
		path := p.advance().text
		v, ok := template.Lookup(path, p.ctx)
		return ok && !template.IsUnresolved(v), nil
	default:
		return p.parseComparison()
	}
}

func (p *parser) parseComparison() (bool, error) {
	left, leftOK, err := p.parseOperand()
	if err != nil {
		return false, err
	}
	if p.eof() || p.peek().kind != tokOp {
		// Bare operand: its truthiness.
		return leftOK && truthy(left), nil
	}
	op := p.advance().text
	right, rightOK, err := p.parseOperand()
	if err != nil {
		return false, err
	}
	// A comparison touching an absent operand is falsy, not an error,
	// except != which treats absence as inequality.
	if !leftOK || !rightOK {
		return op == "!=" && (leftOK || rightOK), nil
	}
	return compare(op, left, right), nil
}

// parseOperand returns the operand value and whether it is present.
func (p *parser) parseOperand() (any, bool, error) {
	if p.eof() {
		return nil, false, fmt.Errorf("unexpected end of condition")
	}
	t := p.advance()
	switch t.kind {
	case tokString:
		return t.text, true, nil
	case tokNumber:
		return t.num, true, nil
	case tokBool:
		return t.b, true, nil
	case tokNull:
		return nil, true, nil
	case tokPath:
		v, ok := template.Lookup(t.text, p.ctx)
		if !ok || template.IsUnresolved(v) {
			return nil, false, nil
		}
		return v, true, nil
	default:
		return nil, false, fmt.Errorf("unexpected token in operand position")
	}
}

func compare(op string, left, right any) bool {
	switch op {
	case "==":
		return equal(left, right)
	case "!=":
		return !equal(left, right)
	case ">", ">=", "<", "<=":
		ln, lok := toNumber(left)
		rn, rok := toNumber(right)
		if !lok || !rok {
			return false
		}
		switch op {
		case ">":
			return ln > rn
		case ">=":
			return ln >= rn
		case "<":
			return ln < rn
		default:
			return ln <= rn
		}
	case "contains":
		return contains(left, right)
	case "in":
		return contains(right, left)
	}
	return false
}

func equal(a, b any) bool {
	if an, ok := toNumber(a); ok {
		if bn, ok := toNumber(b); ok {
			return an == bn
		}
	}
	if a == nil || b == nil {
		return a == b
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func contains(container, needle any) bool {
	switch c := container.(type) {
	case string:
		return strings.Contains(c, fmt.Sprintf("%v", needle))
	case []any:
		for _, item := range c {
			if equal(item, needle) {
				return true
			}
		}
	case map[string]any:
		_, ok := c[fmt.Sprintf("%v", needle)]
		return ok
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && !strings.EqualFold(t, "false") && t != "0"
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		if n, ok := toNumber(v); ok {
			return n != 0
		}
		return true
	}
}
