package platform

import (
	"fmt"
	"strings"
)

// Predicate is a parsed cfg() expression. The zero value is unusable; obtain
// one from ParsePredicate.
type Predicate struct {
	expr predExpr
	raw  string
}

// Always is the predicate that matches every platform, used for ungated
// edges.
var Always = Predicate{expr: boolExpr(true), raw: ""}

// ParsePredicate parses a cfg() expression such as
//
//	cfg(unix)
//	cfg(target_os = "linux")
//	cfg(all(target_family = "unix", not(target_os = "darwin")))
//
// An empty string parses to Always.
func ParsePredicate(raw string) (Predicate, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Always, nil
	}
	toks, err := lex(trimmed)
	if err != nil {
		return Predicate{}, err
	}
	p := &predParser{toks: toks}
	if !p.accept(tokCfg) {
		return Predicate{}, fmt.Errorf("platform predicate %q: expected cfg(...)", raw)
	}
	if !p.accept(tokLParen) {
		return Predicate{}, fmt.Errorf("platform predicate %q: expected '(' after cfg", raw)
	}
	expr, err := p.parseExpr()
	if err != nil {
		return Predicate{}, fmt.Errorf("platform predicate %q: %w", raw, err)
	}
	if !p.accept(tokRParen) || p.pos != len(p.toks) {
		return Predicate{}, fmt.Errorf("platform predicate %q: trailing input", raw)
	}
	return Predicate{expr: expr, raw: trimmed}, nil
}

// MustParsePredicate is ParsePredicate for static expressions; it panics on
// malformed input.
func MustParsePredicate(raw string) Predicate {
	p, err := ParsePredicate(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Matches evaluates the predicate against a target platform.
func (p Predicate) Matches(target Platform) bool {
	if p.expr == nil {
		return true
	}
	return p.expr.eval(target)
}

func (p Predicate) String() string {
	if p.raw == "" {
		return "always"
	}
	return p.raw
}

// --- expression tree ---

type predExpr interface {
	eval(Platform) bool
}

type boolExpr bool

func (b boolExpr) eval(Platform) bool { return bool(b) }

type identExpr string

func (e identExpr) eval(p Platform) bool {
	_, ok := p.lookup(string(e))
	return ok
}

type equalExpr struct {
	key   string
	value string
}

func (e equalExpr) eval(p Platform) bool {
	v, ok := p.lookup(e.key)
	return ok && v == e.value
}

type notExpr struct{ inner predExpr }

func (e notExpr) eval(p Platform) bool { return !e.inner.eval(p) }

type anyExpr []predExpr

func (e anyExpr) eval(p Platform) bool {
	for _, sub := range e {
		if sub.eval(p) {
			return true
		}
	}
	return false
}

type allExpr []predExpr

func (e allExpr) eval(p Platform) bool {
	for _, sub := range e {
		if !sub.eval(p) {
			return false
		}
	}
	return true
}

// --- lexer ---

type tokKind int

const (
	tokLParen tokKind = iota
	tokRParen
	tokComma
	tokEqual
	tokString
	tokIdent
	tokAny
	tokAll
	tokNot
	tokCfg
)

type token struct {
	kind tokKind
	val  string
}

func lex(raw string) ([]token, error) {
	var toks []token
	emitWord := func(word string) {
		switch word {
		case "":
		case "any":
			toks = append(toks, token{kind: tokAny})
		case "all":
			toks = append(toks, token{kind: tokAll})
		case "not":
			toks = append(toks, token{kind: tokNot})
		case "cfg":
			toks = append(toks, token{kind: tokCfg})
		default:
			toks = append(toks, token{kind: tokIdent, val: word})
		}
	}
	start := 0
	inString := false
	for i, r := range raw {
		switch {
		case inString:
			if r == '"' {
				toks = append(toks, token{kind: tokString, val: raw[start:i]})
				inString = false
				start = i + 1
			}
		case r == '"':
			start = i + 1
			inString = true
		case r == '(' || r == ')' || r == ',' || r == '=' || r == ' ' || r == '\t':
			emitWord(raw[start:i])
			start = i + 1
			switch r {
			case '(':
				toks = append(toks, token{kind: tokLParen})
			case ')':
				toks = append(toks, token{kind: tokRParen})
			case ',':
				toks = append(toks, token{kind: tokComma})
			case '=':
				toks = append(toks, token{kind: tokEqual})
			}
		}
	}
	if inString {
		return nil, fmt.Errorf("unterminated string literal")
	}
	emitWord(raw[start:])
	return toks, nil
}

// --- parser ---

type predParser struct {
	toks []token
	pos  int
}

func (p *predParser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *predParser) accept(kind tokKind) bool {
	if t, ok := p.peek(); ok && t.kind == kind {
		p.pos++
		return true
	}
	return false
}

func (p *predParser) parseExpr() (predExpr, error) {
	t, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	p.pos++
	switch t.kind {
	case tokIdent:
		if p.accept(tokEqual) {
			s, ok := p.peek()
			if !ok || s.kind != tokString {
				return nil, fmt.Errorf("expected string after %q =", t.val)
			}
			p.pos++
			return equalExpr{key: t.val, value: s.val}, nil
		}
		return identExpr(t.val), nil
	case tokNot:
		if !p.accept(tokLParen) {
			return nil, fmt.Errorf("expected '(' after not")
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.accept(tokRParen) {
			return nil, fmt.Errorf("expected ')' after not(...)")
		}
		return notExpr{inner: inner}, nil
	case tokAny, tokAll:
		if !p.accept(tokLParen) {
			return nil, fmt.Errorf("expected '(' after any/all")
		}
		var args []predExpr
		if p.accept(tokRParen) {
			// any() is false, all() is true.
			if t.kind == tokAny {
				return anyExpr(nil), nil
			}
			return allExpr(nil), nil
		}
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.accept(tokRParen) {
				break
			}
			if !p.accept(tokComma) {
				return nil, fmt.Errorf("expected ',' or ')' in argument list")
			}
		}
		if t.kind == tokAny {
			return anyExpr(args), nil
		}
		return allExpr(args), nil
	default:
		return nil, fmt.Errorf("unexpected token in expression")
	}
}
