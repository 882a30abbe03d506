/*
Package semparse is a small, domain-general semantic parsing engine.

It converts natural-language utterances into executable interpretations
("denotations"). An application supplies a grammar (production rules with
attached semantic functions), a tokenizer, and optionally pluggable
sub-parsers; semparse returns a ranked collection of derivations, each of
which can be evaluated to a denotation.

Consists of subpackages:
  - symbol: terminal / non-terminal / optional symbol classification;
  - rule: production rules with attached semantic callbacks;
  - grammar: normalizes author rules into lexical/unary/binary tables;
  - chart: CYK-style bottom-up chart parser, integrating sub-parsers;
  - feature: derivation featurizers;
  - rank: derivation rankers (constant, structured-margin linear, softmax);
  - token: the tokenizer contract and a default implementation.

Typical usage is:

 1. Build a grammar: write a set of rule.Rule values, each with a tag, a
    single non-terminal lhs, one or more rhs symbols, and a semantics
    function mapping child denotations to this rule's denotation.
 2. Construct an Engine from the grammar (and optionally sub-parsers), then
    call Parse to get the derivations in parser order, TopParse or
    TopDenotation for the ranker's best result, or Fit to train the ranker
    against labeled (utterance, denotation) pairs.
*/
package semparse

import (
	"github.com/nlparse/semparse/internal/xerrors"
)

// Error classes used by subpackages, each class contains up to 99 error codes.
const (
	SymbolErrors  = xerrors.SymbolErrors  // used by symbol
	RuleErrors    = xerrors.RuleErrors    // used by rule
	GrammarErrors = xerrors.GrammarErrors // used by grammar
	ChartErrors   = xerrors.ChartErrors   // used by chart
	RankErrors    = xerrors.RankErrors    // used by rank
	TokenErrors   = xerrors.TokenErrors   // used by token
)

// Error is the error type used by semparse and its subpackages.
type Error = xerrors.Error

// NewError creates a new Error.
func NewError(code int, msg string, cause error) *Error {
	return xerrors.NewError(code, msg, cause)
}

// FormatError creates an Error with no underlying cause.
// params are applied to msg using fmt.Sprintf, if any are given.
func FormatError(code int, msg string, params ...any) *Error {
	return xerrors.FormatError(code, msg, params...)
}

// WrapError creates an Error wrapping cause.
// params are applied to msg using fmt.Sprintf, if any are given.
func WrapError(code int, cause error, msg string, params ...any) *Error {
	return xerrors.WrapError(code, cause, msg, params...)
}

// Error kinds raised by the core, see spec §7.
const (
	// InvalidSymbol: a symbol violates terminal/non-terminal rules where one is required.
	InvalidSymbol = xerrors.InvalidSymbol

	// InvalidRule: rule construction preconditions violated.
	InvalidRule = xerrors.InvalidRule

	// InvalidGrammar: a rule could not be normalized (shape not recognized after expansion).
	InvalidGrammar = xerrors.InvalidGrammar

	// TokenizationError: surfaced from the tokenizer unchanged.
	TokenizationError = xerrors.TokenizationError

	// LengthMismatch: ranker Fit given unequal-length utterance/denotation lists.
	LengthMismatch = xerrors.LengthMismatch

	// EvaluationError: raised by a user-supplied semantics function when
	// computeDenotation is called; propagated to the caller of computeDenotation,
	// never surfaced during parsing.
	EvaluationError = xerrors.EvaluationError
)
