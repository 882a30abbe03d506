package grammar

import (
	"testing"

	"github.com/nlparse/semparse/rule"
	"github.com/nlparse/semparse/token"
)

func must(t *testing.T, r *rule.Rule, err error) *rule.Rule {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return r
}

func ident(children []any) any {
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

func TestInstallsLexicalUnaryBinary(t *testing.T) {
	lexRule, lexErr := rule.NewFromString("num_one", "$Num", "one", func(c []any) any { return 1 })
	lex := must(t, lexRule, lexErr)
	unRule, unErr := rule.NewFromString("wrap", "$Expr", "$Num", ident)
	un := must(t, unRule, unErr)
	binRule, binErr := rule.NewFromString("add", "$Expr", "$Expr plus $Expr", func(c []any) any {
		return c[0].(int) + 2
	})
	bin := must(t, binRule, binErr)

	g, err := Normalize([]*rule.Rule{lex, un, bin}, token.Default(), "$Expr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rules := g.LexicalRules("one"); len(rules) != 1 {
		t.Fatalf("expected one lexical rule for %q, got %d", "one", len(rules))
	}
	if rules := g.UnaryRules("$Num"); len(rules) != 1 {
		t.Fatalf("expected one unary rule for $Num, got %d", len(rules))
	}
	if rules := g.BinaryRules("$Expr", "$Expr"); len(rules) != 0 {
		t.Fatalf("bin rule has a mixed rhs (plus is terminal); expected it lifted, not installed directly, got %d", len(rules))
	}
	if id, ok := g.CategoryID("$Expr"); !ok || id < 0 {
		t.Fatalf("expected $Expr to be interned")
	}
}

func TestOptionalExpansionIncludedAndOmitted(t *testing.T) {
	rRule, rErr := rule.NewFromString("greet", "$Greeting", "?$Hello $Name", func(c []any) any {
		return c[1]
	})
	r := must(t, rRule, rErr)

	g, err := Normalize([]*rule.Rule{r}, token.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	includedFound := false
	omittedFound := false
	for _, rr := range g.binaryRules {
		for _, inst := range rr {
			if inst.Lhs() == "$Greeting" {
				if inst.Rhs()[0] == "$Hello" {
					includedFound = true
				}
			}
		}
	}
	for _, rr := range g.unaryRules {
		for _, inst := range rr {
			if inst.Lhs() == "$Greeting" && inst.Rhs()[0] == "$Name" {
				omittedFound = true
			}
		}
	}
	if !includedFound {
		t.Errorf("expected an included-optional binary rule $Greeting -> $Hello $Name")
	}
	if !omittedFound {
		t.Errorf("expected an omitted-optional unary rule $Greeting -> $Name")
	}
}

func TestOptionalSoleSymbolProducesNullary(t *testing.T) {
	rRule, rErr := rule.NewFromString("maybe", "$Maybe", "?$Thing", func(c []any) any {
		return c[0]
	})
	r := must(t, rRule, rErr)

	g, err := Normalize([]*rule.Rule{r}, token.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	semantics, ok := g.NullaryProduction("$Maybe")
	if !ok {
		t.Fatalf("expected a nullary production for $Maybe")
	}
	if got := semantics(nil); got != nil {
		t.Errorf("expected nullary semantics to see a nil child denotation, got %v", got)
	}

	if rules := g.UnaryRules("$Thing"); len(rules) != 1 {
		t.Fatalf("expected the included variant $Maybe -> $Thing to remain, got %d rules", len(rules))
	}
}

func TestMixedRuleLiftsTerminal(t *testing.T) {
	rRule, rErr := rule.NewFromString("whatis", "$Query", "what is $Num", func(c []any) any {
		return c[1]
	})
	r := must(t, rRule, rErr)

	g, err := Normalize([]*rule.Rule{r}, token.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rules := g.LexicalRules("what"); len(rules) != 1 {
		t.Fatalf("expected a lifted lexical rule for %q, got %d", "what", len(rules))
	}
	if rules := g.LexicalRules("is"); len(rules) != 1 {
		t.Fatalf("expected a lifted lexical rule for %q, got %d", "is", len(rules))
	}
}

func TestNaryRuleBinarizes(t *testing.T) {
	rRule, rErr := rule.NewFromString("three", "$All", "$A $B $C", func(c []any) any {
		return c
	})
	r := must(t, rRule, rErr)

	g, err := Normalize([]*rule.Rule{r}, token.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rules := g.BinaryRules("$A", "$B"); len(rules) != 1 {
		t.Fatalf("expected a synthesized $A $B pair rule, got %d", len(rules))
	}
	if rules := g.BinaryRules("$A_$B", "$C"); len(rules) != 1 {
		t.Fatalf("expected a residual rule over the synthesized category and $C, got %d", len(rules))
	}
}

func TestNaryBinarizationDedup(t *testing.T) {
	r1Rule, r1Err := rule.NewFromString("r1", "$X", "$A $B $C", func(c []any) any { return nil })
	r1 := must(t, r1Rule, r1Err)
	r2Rule, r2Err := rule.NewFromString("r2", "$Y", "$A $B $D", func(c []any) any { return nil })
	r2 := must(t, r2Rule, r2Err)

	g, err := Normalize([]*rule.Rule{r1, r2}, token.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rules := g.BinaryRules("$A", "$B"); len(rules) != 1 {
		t.Fatalf("expected the $A $B pair rule to be generated exactly once, got %d", len(rules))
	}
}

func TestDeclaredRootInternedWithoutRules(t *testing.T) {
	g, err := Normalize(nil, token.Default(), "$Root")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id, ok := g.CategoryID("$Root"); !ok {
		t.Fatalf("expected an explicitly declared root to be interned even with no rules, got id=%d", id)
	}
	if !g.RootSet().Contains(mustID(t, g, "$Root")) {
		t.Fatalf("expected root set to contain $Root's id")
	}
}

func mustID(t *testing.T, g *Grammar, name string) int {
	t.Helper()
	id, ok := g.CategoryID(name)
	if !ok {
		t.Fatalf("expected %q to be interned", name)
	}
	return id
}
