package semparse

import (
	"github.com/nlparse/semparse/chart"
	"github.com/nlparse/semparse/feature"
	"github.com/nlparse/semparse/grammar"
	"github.com/nlparse/semparse/rank"
	"github.com/nlparse/semparse/rule"
	"github.com/nlparse/semparse/token"
)

// Engine ties a normalized grammar, a chart parser, and a ranker together
// for single-call parsing and training. It is the typical entry point for
// an application; using grammar, chart, and rank directly is also
// supported for finer control.
type Engine struct {
	grammar *grammar.Grammar
	parser  *chart.Parser
	ranker  rank.Ranker
}

// Option configures an Engine at construction time.
type Option func(*engineConfig)

type engineConfig struct {
	tokenizer  token.Tokenizer
	subParsers []chart.SubParser
	roots      []string
	featurizer feature.Featurizer
	rankerKind rankerKind
}

type rankerKind int

const (
	rankerConstant rankerKind = iota
	rankerLinear
	rankerSoftmax
)

// WithTokenizer overrides the default tokenizer.
func WithTokenizer(tok token.Tokenizer) Option {
	return func(c *engineConfig) { c.tokenizer = tok }
}

// WithSubParsers registers sub-parsers consulted at every chart cell.
func WithSubParsers(subParsers ...chart.SubParser) Option {
	return func(c *engineConfig) { c.subParsers = subParsers }
}

// WithRoots sets the grammar's default root categories.
func WithRoots(roots ...string) Option {
	return func(c *engineConfig) { c.roots = roots }
}

// WithFeaturizer overrides the default featurizer (feature.ParseCounts)
// used by the Linear and Softmax rankers.
func WithFeaturizer(f feature.Featurizer) Option {
	return func(c *engineConfig) { c.featurizer = f }
}

// WithLinearRanker selects the structured-margin ranker (the default).
func WithLinearRanker() Option {
	return func(c *engineConfig) { c.rankerKind = rankerLinear }
}

// WithSoftmaxRanker selects the marginal-likelihood ranker.
func WithSoftmaxRanker() Option {
	return func(c *engineConfig) { c.rankerKind = rankerSoftmax }
}

// WithConstantRanker selects the no-op ranker.
func WithConstantRanker() Option {
	return func(c *engineConfig) { c.rankerKind = rankerConstant }
}

// New normalizes rules into a grammar, builds a chart parser over it, and
// attaches a ranker (structured-margin by default). It returns
// semparse.Error with code semparse.InvalidGrammar if rules cannot be
// normalized.
func New(rules []*rule.Rule, opts ...Option) (*Engine, error) {
	cfg := engineConfig{
		tokenizer:  token.Default(),
		featurizer: feature.ParseCounts(),
		rankerKind: rankerLinear,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	g, err := grammar.Normalize(rules, cfg.tokenizer, cfg.roots...)
	if err != nil {
		return nil, err
	}
	parser := chart.New(g, cfg.subParsers...)

	var ranker rank.Ranker
	switch cfg.rankerKind {
	case rankerConstant:
		ranker = rank.NewConstantRanker(parser)
	case rankerSoftmax:
		ranker = rank.NewSoftmaxRanker(parser, cfg.featurizer)
	default:
		ranker = rank.NewLinearRanker(parser, cfg.featurizer)
	}

	return &Engine{grammar: g, parser: parser, ranker: ranker}, nil
}

// Grammar returns the engine's normalized grammar.
func (e *Engine) Grammar() *grammar.Grammar {
	return e.grammar
}

// Parser returns the engine's chart parser.
func (e *Engine) Parser() *chart.Parser {
	return e.parser
}

// Ranker returns the engine's ranker.
func (e *Engine) Ranker() rank.Ranker {
	return e.ranker
}

// Parse returns the derivations of s spanning the whole utterance, filtered
// against the effective root set, in parser enumeration order
// (unranked).
func (e *Engine) Parse(s string, roots ...string) ([]*chart.Derivation, error) {
	return e.parser.Parse(s, roots...)
}

// Fit trains the engine's ranker against labeled data.
func (e *Engine) Fit(utterances []string, denotations []any) error {
	return e.ranker.Fit(utterances, denotations)
}

// TopDenotation returns the engine's ranker's highest-scoring denotation
// for s, or nil if s has no parse.
func (e *Engine) TopDenotation(s string) (any, error) {
	return e.ranker.TopDenotation(s)
}

// TopParse returns the engine's ranker's highest-scoring parse for s, or
// nil if s has no parse.
func (e *Engine) TopParse(s string) (*chart.Derivation, error) {
	return e.ranker.TopParse(s)
}
