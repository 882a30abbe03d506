// Package rule defines the author-level production rule: a tag, a single
// non-terminal left-hand side, an ordered right-hand side of one or more
// symbols, and a semantic function computing the rule's denotation from its
// children's denotations.
package rule

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/nlparse/semparse/internal/xerrors"
	"github.com/nlparse/semparse/symbol"
)

// Semantics maps the denotations of a rule's children, in rhs order, to the
// rule's own denotation. It must be pure with respect to its arguments.
type Semantics func(children []any) any

// Rule is an author-level production. Rules are immutable once constructed.
type Rule struct {
	tag       string
	lhs       string
	rhs       []string
	semantics Semantics
}

// New constructs a Rule. rhs may be given as a single whitespace-separated
// string or as an explicit slice of symbol strings; it is split on
// whitespace either way. lhs must be a non-terminal symbol and rhs must be
// non-empty, or New returns semparse.Error with code semparse.InvalidRule.
func New(tag, lhs string, rhs []string, semantics Semantics) (*Rule, error) {
	if !symbol.IsNonTerminal(lhs) {
		return nil, invalidRuleError("lhs %q is not a non-terminal", lhs)
	}

	symbols := splitSymbols(rhs)
	if len(symbols) == 0 {
		return nil, invalidRuleError("rule %q has empty rhs", tag)
	}
	if semantics == nil {
		return nil, invalidRuleError("rule %q has no semantics function", tag)
	}

	return &Rule{tag: tag, lhs: lhs, rhs: symbols, semantics: semantics}, nil
}

// NewFromString constructs a Rule whose rhs is given as a single
// whitespace-separated string, e.g. "$Num plus $Num".
func NewFromString(tag, lhs, rhs string, semantics Semantics) (*Rule, error) {
	return New(tag, lhs, strings.Fields(rhs), semantics)
}

func splitSymbols(rhs []string) []string {
	symbols := make([]string, 0, len(rhs))
	for _, s := range rhs {
		symbols = append(symbols, strings.Fields(s)...)
	}
	return symbols
}

func invalidRuleError(format string, args ...any) error {
	return errors.WithStack(xerrors.FormatError(xerrors.InvalidRule, format, args...))
}

// Tag returns the rule's free-form tag.
func (r *Rule) Tag() string { return r.tag }

// Lhs returns the rule's non-terminal left-hand side.
func (r *Rule) Lhs() string { return r.lhs }

// Rhs returns the rule's right-hand side symbols, in order.
func (r *Rule) Rhs() []string { return r.rhs }

// Semantics returns the rule's semantic function.
func (r *Rule) Semantics() Semantics { return r.semantics }

// Arity returns len(Rhs()).
func (r *Rule) Arity() int { return len(r.rhs) }

// IsUnary reports whether the rule has exactly one rhs symbol.
func (r *Rule) IsUnary() bool { return r.Arity() == 1 }

// IsBinary reports whether the rule has exactly two rhs symbols.
func (r *Rule) IsBinary() bool { return r.Arity() == 2 }

// IsNary reports whether the rule has more than two rhs symbols.
func (r *Rule) IsNary() bool { return r.Arity() > 2 }

// IsLexical reports whether every rhs symbol is a terminal.
func (r *Rule) IsLexical() bool {
	for _, s := range r.rhs {
		if symbol.IsNonTerminal(symbol.StripOptional(s)) {
			return false
		}
	}
	return true
}

// IsCategorical reports whether every rhs symbol is a non-terminal.
func (r *Rule) IsCategorical() bool {
	for _, s := range r.rhs {
		if symbol.IsTerminal(symbol.StripOptional(s)) {
			return false
		}
	}
	return true
}

// IsMixed reports whether the rhs mixes terminals and non-terminals.
func (r *Rule) IsMixed() bool {
	return !r.IsLexical() && !r.IsCategorical()
}

// HasOptionals reports whether any rhs symbol carries the optional marker.
func (r *Rule) HasOptionals() bool {
	for _, s := range r.rhs {
		if symbol.IsOptional(s) {
			return true
		}
	}
	return false
}

// String renders the rule in "lhs -> rhs (tag)" form, for debugging.
func (r *Rule) String() string {
	return fmt.Sprintf("%s -> %s (%s)", r.lhs, strings.Join(r.rhs, " "), r.tag)
}
