// Package token defines the tokenizer contract used by chart and a default
// implementation: drop punctuation, split on whitespace, lowercase.
package token

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/nlparse/semparse/internal/xerrors"
)

// Token is a single lexical unit: its canonical text, and the half-open
// byte span [Start, End) in the original utterance that produced it.
// s[Start:End] equals the pre-normalized source of the token.
type Token struct {
	Text  string
	Start int
	End   int
}

// Tokenizer splits an utterance into Tokens. A Tokenizer failure propagates
// as semparse.Error with code semparse.TokenizationError.
type Tokenizer interface {
	Tokenize(s string) ([]Token, error)
}

// TokenizerFunc adapts a plain function to the Tokenizer interface.
type TokenizerFunc func(s string) ([]Token, error)

// Tokenize calls f(s).
func (f TokenizerFunc) Tokenize(s string) ([]Token, error) {
	return f(s)
}

var wordOrPunct = regexp.MustCompile(`[\p{L}\p{N}]+|[^\s\p{L}\p{N}]`)

// Default returns a Tokenizer that splits s on runs of letters/digits versus
// single punctuation runes, drops standalone punctuation, and lowercases
// the remaining token text. It is not required by the core; applications
// may supply their own Tokenizer.
func Default() Tokenizer {
	return TokenizerFunc(defaultTokenize)
}

func defaultTokenize(s string) ([]Token, error) {
	matches := wordOrPunct.FindAllStringIndex(s, -1)
	tokens := make([]Token, 0, len(matches))
	for _, m := range matches {
		start, end := m[0], m[1]
		text := s[start:end]
		if isPunct(text) {
			continue
		}
		tokens = append(tokens, Token{
			Text:  strings.ToLower(text),
			Start: start,
			End:   end,
		})
	}
	return tokens, nil
}

func isPunct(text string) bool {
	r, size := utf8.DecodeRuneInString(text)
	if size != len(text) {
		return false
	}
	return !(unicode.IsLetter(r) || unicode.IsNumber(r))
}

// WrapError wraps a tokenizer-internal failure as a semparse.Error with
// code semparse.TokenizationError.
func WrapError(cause error, format string, args ...any) error {
	return errors.WithStack(xerrors.WrapError(xerrors.TokenizationError, cause, format, args...))
}
