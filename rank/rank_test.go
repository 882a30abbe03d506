package rank

import (
	"testing"

	"github.com/nlparse/semparse/chart"
	"github.com/nlparse/semparse/feature"
	"github.com/nlparse/semparse/grammar"
	"github.com/nlparse/semparse/rule"
	"github.com/nlparse/semparse/token"
)

func buildNumberGrammar(t *testing.T) *grammar.Grammar {
	t.Helper()
	one, err := rule.NewFromString("num_one", "$Num", "one", func(c []any) any { return 1 })
	if err != nil {
		t.Fatal(err)
	}
	two, err := rule.NewFromString("num_two", "$Num", "two", func(c []any) any { return 2 })
	if err != nil {
		t.Fatal(err)
	}
	wrap, err := rule.NewFromString("wrap", "$Expr", "$Num", func(c []any) any { return c[0] })
	if err != nil {
		t.Fatal(err)
	}
	g, err := grammar.Normalize([]*rule.Rule{one, two, wrap}, token.Default(), "$Expr")
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestConstantRankerLengthMismatch(t *testing.T) {
	g := buildNumberGrammar(t)
	r := NewConstantRanker(chart.New(g))
	err := r.Fit([]string{"one"}, nil)
	if err == nil {
		t.Fatal("expected LengthMismatch error")
	}
}

func TestConstantRankerZeroScores(t *testing.T) {
	g := buildNumberGrammar(t)
	r := NewConstantRanker(chart.New(g))

	scored, err := r.ScoresAndParses("one")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, sp := range scored {
		if sp.Score != 0 {
			t.Errorf("expected score 0, got %v", sp.Score)
		}
	}

	den, err := r.TopDenotation("one")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if den != 1 {
		t.Errorf("expected top denotation 1, got %v", den)
	}
}

func TestLinearRankerLengthMismatch(t *testing.T) {
	g := buildNumberGrammar(t)
	r := NewLinearRanker(chart.New(g), feature.ParseCounts())
	err := r.Fit([]string{"one", "two"}, []any{1})
	if err == nil {
		t.Fatal("expected LengthMismatch error")
	}
}

func TestLinearRankerLearnsPreference(t *testing.T) {
	g := buildNumberGrammar(t)
	p := chart.New(g)
	r := NewLinearRanker(p, feature.ParseCounts())

	utterances := []string{"one", "two"}
	denotations := []any{1, 2}
	if err := r.Fit(utterances, denotations); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, u := range utterances {
		got, err := r.TopDenotation(u)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != denotations[i] {
			t.Errorf("utterance %q: got top denotation %v, want %v", u, got, denotations[i])
		}
	}
}

func TestSoftmaxRankerLengthMismatch(t *testing.T) {
	g := buildNumberGrammar(t)
	r := NewSoftmaxRanker(chart.New(g), feature.ParseCounts())
	err := r.Fit([]string{"one"}, []any{1, 2})
	if err == nil {
		t.Fatal("expected LengthMismatch error")
	}
}

func TestSoftmaxRankerProbabilitiesSumToOne(t *testing.T) {
	g := buildNumberGrammar(t)
	r := NewSoftmaxRanker(chart.New(g), feature.ParseCounts())

	scored, err := r.ScoresAndParses("one")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sum float64
	for _, sp := range scored {
		sum += sp.Score
	}
	if len(scored) > 0 && (sum < 0.999 || sum > 1.001) {
		t.Errorf("expected probabilities to sum to ~1, got %v", sum)
	}
}

func TestSoftmaxRankerLearnsPreference(t *testing.T) {
	g := buildNumberGrammar(t)
	p := chart.New(g)
	r := NewSoftmaxRanker(p, feature.ParseCounts())

	utterances := []string{"one", "two"}
	denotations := []any{1, 2}
	if err := r.Fit(utterances, denotations); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, u := range utterances {
		got, err := r.TopDenotation(u)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != denotations[i] {
			t.Errorf("utterance %q: got top denotation %v, want %v", u, got, denotations[i])
		}
	}
}

func TestEmptyUtteranceHasNoTopParse(t *testing.T) {
	g := buildNumberGrammar(t)
	r := NewConstantRanker(chart.New(g))
	parse, err := r.TopParse("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parse != nil {
		t.Errorf("expected nil top parse for empty utterance, got %v", parse)
	}
}
