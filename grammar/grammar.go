// Package grammar normalizes author rules into the three lookup tables a
// chart parser consumes: lexical rules keyed by token sequence, unary rules
// keyed by a single non-terminal child, and binary rules keyed by a pair of
// non-terminal children. Normalization eliminates optional symbols, lifts
// mixed terminal/non-terminal rules to purely categorical form, and
// binarizes categorical rules wider than two symbols, via an iterative
// work-queue rewrite.
package grammar

import (
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/pkg/errors"

	"github.com/nlparse/semparse/internal/xerrors"
	"github.com/nlparse/semparse/internal/bmap"
	"github.com/nlparse/semparse/internal/idxset"
	"github.com/nlparse/semparse/internal/queue"
	"github.com/nlparse/semparse/rule"
	"github.com/nlparse/semparse/symbol"
	"github.com/nlparse/semparse/token"
)

// Reserved name fragments the normalizer uses to synthesize new symbols and
// table keys. None of these may appear in author-supplied symbols.
const (
	// SyntheticPrefix marks a non-terminal synthesized to lift a terminal
	// out of a mixed rule: "$@" + the terminal's canonical token key.
	SyntheticPrefix = "$@"
	// BinarizationSeparator joins two symbols into an intermediate
	// binarization category's name.
	BinarizationSeparator = "_"
	// LexicalKeySeparator joins canonical token texts into a lexical
	// table key, and a terminal's own tokens into its lift key.
	LexicalKeySeparator = "-"
)

// nullaryProduction is the degenerate result of omitting the sole symbol of
// a unary rule whose symbol was optional. It has no rhs, so it can never
// match a chart span (spans are always non-empty); it exists only so that
// the included/omitted round-trip documented for Normalize is observable,
// via Grammar.NullaryProduction.
type nullaryProduction struct {
	tag       string
	lhs       string
	semantics rule.Semantics
}

// Grammar is the normalized form of a set of author rules, ready for use by
// a chart parser.
type Grammar struct {
	tokenizer token.Tokenizer
	roots     []string

	lexicalRules *bmap.BMap[[]*rule.Rule]
	unaryRules   map[string][]*rule.Rule
	binaryRules  map[binaryKey][]*rule.Rule
	nullary      map[string]*nullaryProduction

	categoryIDs   map[string]int
	categoryNames []string
	rootSet       *idxset.Set
}

type binaryKey struct {
	left, right string
}

// Normalize compiles rules into a Grammar. tok tokenizes rhs terminals and
// input utterances consistently. roots names the categories Parse treats as
// default derivation roots; an empty roots list means "no default filter".
// Normalize returns semparse.Error with code semparse.InvalidGrammar if it
// cannot classify some rewritten rule.
func Normalize(rules []*rule.Rule, tok token.Tokenizer, roots ...string) (*Grammar, error) {
	g := &Grammar{
		tokenizer:    tok,
		roots:        append([]string{}, roots...),
		lexicalRules: bmap.New[[]*rule.Rule](len(rules)),
		unaryRules:   make(map[string][]*rule.Rule),
		binaryRules:  make(map[binaryKey][]*rule.Rule),
		nullary:      make(map[string]*nullaryProduction),
		categoryIDs:  make(map[string]int),
	}

	q := queue.New[*rule.Rule](rules...)
	genLex := hashset.New()
	genBin := hashset.New()

	for !q.IsEmpty() {
		r, _ := q.First()
		if err := g.classify(q, r, genLex, genBin); err != nil {
			return nil, err
		}
	}

	for _, root := range g.roots {
		g.internCategory(root)
	}
	g.rootSet = idxset.NewSet()
	for _, root := range g.roots {
		g.rootSet.Add(g.categoryIDs[root])
	}

	return g, nil
}

func (g *Grammar) classify(q *queue.Queue[*rule.Rule], r *rule.Rule, genLex, genBin *hashset.Set) error {
	if r.HasOptionals() {
		return g.classifyOptional(q, r)
	}
	if r.IsMixed() {
		return g.classifyMixed(q, r, genLex)
	}
	if r.IsNary() && r.IsCategorical() {
		return g.classifyNary(q, r, genBin)
	}
	return g.install(r)
}

func (g *Grammar) classifyOptional(q *queue.Queue[*rule.Rule], r *rule.Rule) error {
	rhs := r.Rhs()
	idx := -1
	for i, s := range rhs {
		if symbol.IsOptional(s) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return invalidGrammarError("rule %q reports optionals but none found", r.Tag())
	}
	word := symbol.StripOptional(rhs[idx])

	includedRhs := append([]string{}, rhs...)
	includedRhs[idx] = word
	included, err := rule.New(r.Tag()+"_"+word, r.Lhs(), includedRhs, r.Semantics())
	if err != nil {
		return invalidGrammarError("rule %q: included optional variant: %v", r.Tag(), err)
	}
	q.Append(included)

	omittedRhs := make([]string, 0, len(rhs)-1)
	omittedRhs = append(omittedRhs, rhs[:idx]...)
	omittedRhs = append(omittedRhs, rhs[idx+1:]...)

	if len(omittedRhs) == 0 {
		semantics := r.Semantics()
		g.nullary[r.Lhs()] = &nullaryProduction{
			tag: r.Tag() + "_~" + word,
			lhs: r.Lhs(),
			semantics: func(children []any) any {
				return semantics([]any{nil})
			},
		}
		return nil
	}

	semantics := r.Semantics()
	omitted, err := rule.New(r.Tag()+"_~"+word, r.Lhs(), omittedRhs, func(children []any) any {
		args := make([]any, 0, len(rhs))
		args = append(args, children[:idx]...)
		args = append(args, nil)
		args = append(args, children[idx:]...)
		return semantics(args)
	})
	if err != nil {
		return invalidGrammarError("rule %q: omitted optional variant: %v", r.Tag(), err)
	}
	q.Append(omitted)
	return nil
}

func (g *Grammar) classifyMixed(q *queue.Queue[*rule.Rule], r *rule.Rule, genLex *hashset.Set) error {
	rhs := r.Rhs()
	newRhs := make([]string, len(rhs))
	for i, s := range rhs {
		if symbol.IsTerminal(s) {
			key, err := g.canonicalKey([]string{s})
			if err != nil {
				return invalidGrammarError("rule %q: tokenizing terminal %q: %v", r.Tag(), s, err)
			}
			synth := SyntheticPrefix + key
			newRhs[i] = synth

			if !genLex.Contains(key) {
				genLex.Add(key)
				word := s
				lexRule, err := rule.New(r.Tag()+"_lex_"+key, synth, []string{word}, func(children []any) any {
					return word
				})
				if err != nil {
					return invalidGrammarError("rule %q: lifting terminal %q: %v", r.Tag(), word, err)
				}
				q.Append(lexRule)
			}
		} else {
			newRhs[i] = s
		}
	}

	lifted, err := rule.New(r.Tag(), r.Lhs(), newRhs, r.Semantics())
	if err != nil {
		return invalidGrammarError("rule %q: lifted rewrite: %v", r.Tag(), err)
	}
	q.Append(lifted)
	return nil
}

func (g *Grammar) classifyNary(q *queue.Queue[*rule.Rule], r *rule.Rule, genBin *hashset.Set) error {
	rhs := r.Rhs()
	a, b := rhs[0], rhs[1]
	synthCat := a + BinarizationSeparator + b

	if !genBin.Contains(synthCat) {
		genBin.Add(synthCat)
		pairRule, err := rule.New(r.Tag()+"_bin", synthCat, []string{a, b}, func(children []any) any {
			return binPair{children[0], children[1]}
		})
		if err != nil {
			return invalidGrammarError("rule %q: binarization pair: %v", r.Tag(), err)
		}
		q.Append(pairRule)
	}

	restRhs := append([]string{synthCat}, rhs[2:]...)
	semantics := r.Semantics()
	residual, err := rule.New(r.Tag(), r.Lhs(), restRhs, func(children []any) any {
		p := children[0].(binPair)
		args := make([]any, 0, len(rhs)-1)
		args = append(args, p.a, p.b)
		args = append(args, children[1:]...)
		return semantics(args)
	})
	if err != nil {
		return invalidGrammarError("rule %q: binarization residual: %v", r.Tag(), err)
	}
	q.Append(residual)
	return nil
}

type binPair struct {
	a, b any
}

func (g *Grammar) install(r *rule.Rule) error {
	g.internCategory(r.Lhs())

	switch {
	case r.IsLexical():
		key, err := g.canonicalKey(r.Rhs())
		if err != nil {
			return invalidGrammarError("rule %q: tokenizing lexical rhs: %v", r.Tag(), err)
		}
		bkey := []byte(key)
		existing, _ := g.lexicalRules.Get(bkey)
		g.lexicalRules.Set(bkey, append(existing, r))
	case r.IsUnary():
		g.internCategory(r.Rhs()[0])
		g.unaryRules[r.Rhs()[0]] = append(g.unaryRules[r.Rhs()[0]], r)
	case r.IsBinary():
		g.internCategory(r.Rhs()[0])
		g.internCategory(r.Rhs()[1])
		key := binaryKey{r.Rhs()[0], r.Rhs()[1]}
		g.binaryRules[key] = append(g.binaryRules[key], r)
	default:
		return invalidGrammarError("rule %q could not be classified as lexical, unary, or binary", r.Tag())
	}
	return nil
}

func (g *Grammar) canonicalKey(words []string) (string, error) {
	texts := make([]string, 0, len(words))
	for _, w := range words {
		toks, err := g.tokenizer.Tokenize(w)
		if err != nil {
			return "", errors.WithStack(err)
		}
		for _, tok := range toks {
			texts = append(texts, tok.Text)
		}
	}
	return CanonicalKey(texts), nil
}

func (g *Grammar) internCategory(name string) int {
	if id, ok := g.categoryIDs[name]; ok {
		return id
	}
	id := len(g.categoryNames)
	g.categoryIDs[name] = id
	g.categoryNames = append(g.categoryNames, name)
	return id
}

func invalidGrammarError(format string, args ...any) error {
	return errors.WithStack(xerrors.FormatError(xerrors.InvalidGrammar, format, args...))
}

// LexicalRules returns the rules whose canonical token-sequence key matches
// key, or nil if there are none.
func (g *Grammar) LexicalRules(key string) []*rule.Rule {
	rules, _ := g.lexicalRules.Get([]byte(key))
	return rules
}

// CanonicalKey computes the lexical table key for a sequence of token
// texts, joined by LexicalKeySeparator. Callers driving a chart parser use
// this to look up LexicalRules for a span of input tokens.
func CanonicalKey(tokenTexts []string) string {
	key := ""
	for i, t := range tokenTexts {
		if i > 0 {
			key += LexicalKeySeparator
		}
		key += t
	}
	return key
}

// UnaryRules returns the rules whose sole rhs symbol is child.
func (g *Grammar) UnaryRules(child string) []*rule.Rule {
	return g.unaryRules[child]
}

// BinaryRules returns the rules whose rhs is exactly (left, right).
func (g *Grammar) BinaryRules(left, right string) []*rule.Rule {
	return g.binaryRules[binaryKey{left, right}]
}

// NullaryProduction reports whether lhs has a nullary production from
// eliminating a sole optional symbol, and its semantics evaluated with a
// single nil child denotation, if so.
func (g *Grammar) NullaryProduction(lhs string) (rule.Semantics, bool) {
	np, ok := g.nullary[lhs]
	if !ok {
		return nil, false
	}
	return np.semantics, true
}

// Roots returns the grammar's default root categories.
func (g *Grammar) Roots() []string {
	return append([]string{}, g.roots...)
}

// RootSet returns the interned category ids of Roots, for O(1) membership
// tests against a derivation's category.
func (g *Grammar) RootSet() *idxset.Set {
	return g.rootSet
}

// CategoryID returns the interned id for a non-terminal category name, and
// whether it has been interned (i.e. appears somewhere in the grammar).
func (g *Grammar) CategoryID(name string) (int, bool) {
	id, ok := g.categoryIDs[name]
	return id, ok
}

// Tokenizer returns the tokenizer the grammar was normalized with.
func (g *Grammar) Tokenizer() token.Tokenizer {
	return g.tokenizer
}
