package logic

import (
	"fmt"
	"strconv"
	"strings"

	"demski/internal/registry"
	"demski/internal/types"
)

var binaryOps = map[string]Op{
	"and":     OpAnd,
	"or":      OpOr,
	"xor":     OpXor,
	"implies": OpImplies,
	"=":       OpIff,
	"==":      OpIff,
	"iff":     OpIff,
	"!=":      OpNotEqual,
	"<>":      OpNotEqual,
	"<":       OpLess,
	">":       OpGreater,
	"<=":      OpLessEq,
	">=":      OpGreaterEq,
}

// Tokenize pads parentheses with whitespace and splits on whitespace.
func Tokenize(sentence string) []string {
	return strings.Fields(strings.NewReplacer("(", " ( ", ")", " ) ").Replace(sentence))
}

// ParseSentence parses a whole sentence into a boolean expression.
//
// There is no operator precedence: a binary operator takes everything that
// remains at its nesting level as its right operand, so "A and B or C" is
// A and (B or C). Parentheses are the only way to group differently.
func ParseSentence(sentence string, vars registry.Lookup) (*Expr, error) {
	tokens := Tokenize(sentence)
	if len(tokens) == 0 {
		return nil, &types.ParseError{Sentence: sentence, Position: -1, Reason: "empty sentence"}
	}
	if err := checkBalanced(tokens); err != nil {
		err.Sentence = sentence
		return nil, err
	}

	p := &parser{tokens: tokens, vars: vars, sentence: sentence}
	e, next, err := p.parse(0)
	if err != nil {
		return nil, err
	}
	if next < len(tokens) {
		return nil, p.errorAt(next, "unexpected trailing tokens")
	}
	if e.Sort() != SortBool {
		return nil, &types.ParseError{Sentence: sentence, Position: -1, Reason: "sentence is an integer term, not a statement"}
	}
	return e, nil
}

// ParseTokens parses tokens starting at pos and returns the expression and
// the index of the next unconsumed token. It does not check that the result
// is boolean, nor that the tokens are balanced.
func ParseTokens(tokens []string, pos int, vars registry.Lookup) (*Expr, int, error) {
	p := &parser{tokens: tokens, vars: vars}
	return p.parse(pos)
}

type parser struct {
	tokens   []string
	vars     registry.Lookup
	sentence string
}

func (p *parser) errorAt(pos int, format string, args ...interface{}) *types.ParseError {
	tok := ""
	if pos >= 0 && pos < len(p.tokens) {
		tok = p.tokens[pos]
	}
	return &types.ParseError{
		Sentence: p.sentence,
		Token:    tok,
		Position: pos,
		Reason:   fmt.Sprintf(format, args...),
	}
}

// parse handles one nesting level. cur is the operand seen so far.
func (p *parser) parse(pos int) (*Expr, int, error) {
	var cur *Expr
	for pos < len(p.tokens) {
		at := pos
		tok := p.tokens[pos]
		pos++

		if v, ok := p.vars.Lookup(tok); ok {
			if cur != nil {
				return nil, 0, p.errorAt(at, "unexpected operand")
			}
			cur = Var(v)
			continue
		}

		word := strings.ToLower(tok)
		switch {
		case word == "not":
			if cur != nil {
				return nil, 0, p.errorAt(at, "unexpected operator")
			}
			sub, next, err := p.parse(pos)
			if err != nil {
				return nil, 0, err
			}
			if sub == nil {
				return nil, 0, p.errorAt(at, "missing operand")
			}
			if sub.Sort() != SortBool {
				return nil, 0, p.errorAt(at, "operand of not must be boolean")
			}
			return Not(sub), next, nil

		case tok == "(":
			if cur != nil {
				return nil, 0, p.errorAt(at, "unexpected parenthesis")
			}
			sub, next, err := p.parse(pos)
			if err != nil {
				return nil, 0, err
			}
			if sub == nil {
				return nil, 0, p.errorAt(at, "empty parentheses")
			}
			cur, pos = sub, next

		case tok == ")":
			return cur, pos, nil

		default:
			if op, ok := binaryOps[word]; ok {
				if cur == nil {
					return nil, 0, p.errorAt(at, "missing left operand")
				}
				right, next, err := p.parse(pos)
				if err != nil {
					return nil, 0, err
				}
				if right == nil {
					return nil, 0, p.errorAt(at, "missing right operand")
				}
				if err := checkSorts(op, cur, right); err != nil {
					return nil, 0, p.errorAt(at, "%s", err)
				}
				return Binary(op, cur, right), next, nil
			}
			n, err := strconv.Atoi(tok)
			if err != nil {
				return nil, 0, p.errorAt(at, "neither variable nor operator")
			}
			if cur != nil {
				return nil, 0, p.errorAt(at, "unexpected operand")
			}
			cur = Int(n)
		}
	}
	return cur, pos, nil
}

func checkSorts(op Op, l, r *Expr) error {
	ls, rs := l.Sort(), r.Sort()
	switch {
	case op == OpIff || op == OpNotEqual:
		if ls != rs {
			return fmt.Errorf("cannot compare %s with %s", ls, rs)
		}
	case op.IsComparison():
		if ls != SortInt || rs != SortInt {
			return fmt.Errorf("%s needs integer operands, got %s and %s", op, ls, rs)
		}
	default:
		if ls != SortBool || rs != SortBool {
			return fmt.Errorf("%s needs boolean operands, got %s and %s", op, ls, rs)
		}
	}
	return nil
}

func checkBalanced(tokens []string) *types.ParseError {
	depth := 0
	for i, tok := range tokens {
		switch tok {
		case "(":
			depth++
		case ")":
			depth--
			if depth < 0 {
				return &types.ParseError{Token: tok, Position: i, Reason: "unmatched closing parenthesis"}
			}
		}
	}
	if depth != 0 {
		return &types.ParseError{Position: -1, Reason: "unbalanced parentheses"}
	}
	return nil
}
