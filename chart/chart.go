// Package chart implements a bottom-up CYK-style parser over a normalized
// grammar. It fills a triangular table of cells keyed by half-open token
// index intervals, integrating sub-parser output, lexical rule matches,
// binary rule combinations, and a single unary pass per cell.
package chart

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"

	"github.com/nlparse/semparse/internal/xerrors"
	"github.com/nlparse/semparse/grammar"
	"github.com/nlparse/semparse/rule"

	"github.com/pkg/errors"
)

// Derivation is an immutable parse tree node: the rule or sub-parser that
// produced it, the verbatim input span it covers, and its children. Its
// denotation is not computed until ComputeDenotation is called, so a
// misbehaving semantics function cannot fail a parse.
type Derivation struct {
	Tag      string
	Category string
	Span     string
	Children []*Derivation

	semantics rule.Semantics
}

// NewDerivation constructs a Derivation. Sub-parsers use this to emit
// derivations whose category need not belong to the host grammar.
func NewDerivation(tag, category, span string, children []*Derivation, semantics rule.Semantics) *Derivation {
	return &Derivation{
		Tag:       tag,
		Category:  category,
		Span:      span,
		Children:  children,
		semantics: semantics,
	}
}

// ComputeDenotation evaluates the derivation's semantics bottom-up. A panic
// raised by a user-supplied semantics function is recovered and reported as
// semparse.Error with code semparse.EvaluationError.
func (d *Derivation) ComputeDenotation() (denotation any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WithStack(xerrors.FormatError(xerrors.EvaluationError,
				"semantics for tag %q panicked: %v", d.Tag, r))
		}
	}()

	children := make([]any, len(d.Children))
	for i, c := range d.Children {
		den, cerr := c.ComputeDenotation()
		if cerr != nil {
			return nil, cerr
		}
		children[i] = den
	}
	return d.semantics(children), nil
}

// SubParser produces derivations over a verbatim substring of the
// utterance. Its output categories are opaque to the chart parser but
// composable: they may feed unary or binary rules whose rhs references
// them.
type SubParser interface {
	Parse(s string) ([]*Derivation, error)
}

// Parser is a configured chart parser: a normalized grammar plus zero or
// more sub-parsers. A Parser is read-only after construction.
type Parser struct {
	grammar    *grammar.Grammar
	subParsers []SubParser
	debug      bool
}

// New constructs a Parser over g, invoking subParsers (in order) on every
// cell's span during Parse.
func New(g *grammar.Grammar, subParsers ...SubParser) *Parser {
	return &Parser{grammar: g, subParsers: subParsers}
}

// SetDebug toggles a per-cell dump of derivations to stdout via go-spew.
func (p *Parser) SetDebug(on bool) {
	p.debug = on
}

// Parse tokenizes s and fills the chart bottom-up, returning every
// derivation spanning the whole utterance whose category is in the
// effective root set: roots if given, else the grammar's own roots, or
// every such derivation if both are empty. Tokenizer failures propagate
// unchanged.
func (p *Parser) Parse(s string, roots ...string) ([]*Derivation, error) {
	toks, err := p.grammar.Tokenizer().Tokenize(s)
	if err != nil {
		return nil, err
	}
	t := len(toks)
	if t == 0 {
		return nil, nil
	}

	table := make([][][]*Derivation, t)
	for i := range table {
		table[i] = make([][]*Derivation, t+1)
	}

	for length := 1; length <= t; length++ {
		for i := 0; i+length <= t; i++ {
			j := i + length
			span := s[toks[i].Start:toks[j-1].End]

			texts := make([]string, length)
			for k := i; k < j; k++ {
				texts[k-i] = toks[k].Text
			}
			key := grammar.CanonicalKey(texts)

			var cell []*Derivation

			for _, sp := range p.subParsers {
				derivs, err := sp.Parse(span)
				if err != nil {
					return nil, err
				}
				cell = append(cell, derivs...)
			}

			for _, r := range p.grammar.LexicalRules(key) {
				cell = append(cell, NewDerivation(r.Tag(), r.Lhs(), span, nil, r.Semantics()))
			}

			for k := i + 1; k < j; k++ {
				left := table[i][k]
				right := table[k][j]
				for _, l := range left {
					for _, rr := range right {
						for _, br := range p.grammar.BinaryRules(l.Category, rr.Category) {
							cell = append(cell, NewDerivation(br.Tag(), br.Lhs(), span, []*Derivation{l, rr}, br.Semantics()))
						}
					}
				}
			}

			base := len(cell)
			for idx := 0; idx < base; idx++ {
				parent := cell[idx]
				for _, ur := range p.grammar.UnaryRules(parent.Category) {
					cell = append(cell, NewDerivation(ur.Tag(), ur.Lhs(), span, []*Derivation{parent}, ur.Semantics()))
				}
			}

			table[i][j] = cell

			if p.debug {
				fmt.Printf("chart[%d,%d) %q (%d derivations):\n", i, j, span, len(cell))
				spew.Dump(cell)
			}
		}
	}

	return p.filterRoots(table[0][t], roots), nil
}

func (p *Parser) filterRoots(derivs []*Derivation, overrideRoots []string) []*Derivation {
	if len(overrideRoots) > 0 {
		set := make(map[string]bool, len(overrideRoots))
		for _, r := range overrideRoots {
			set[r] = true
		}
		var result []*Derivation
		for _, d := range derivs {
			if set[d.Category] {
				result = append(result, d)
			}
		}
		return result
	}

	if len(p.grammar.Roots()) == 0 {
		return derivs
	}

	rootSet := p.grammar.RootSet()
	var result []*Derivation
	for _, d := range derivs {
		id, ok := p.grammar.CategoryID(d.Category)
		if ok && rootSet.Contains(id) {
			result = append(result, d)
		}
	}
	return result
}
