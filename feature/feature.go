// Package feature extracts sparse numeric features from a derivation tree,
// for consumption by the rank package's rankers.
package feature

import (
	"fmt"

	"github.com/nlparse/semparse/chart"
)

// Featurizer maps a derivation to a sparse feature-name -> value mapping.
type Featurizer interface {
	Featurize(d *chart.Derivation) map[string]float64
}

// FeaturizerFunc adapts a plain function to the Featurizer interface.
type FeaturizerFunc func(d *chart.Derivation) map[string]float64

// Featurize calls f(d).
func (f FeaturizerFunc) Featurize(d *chart.Derivation) map[string]float64 {
	return f(d)
}

// ParseCounts counts, for every node in d's tree, how many times each rule
// tag occurs.
func ParseCounts() Featurizer {
	return FeaturizerFunc(func(d *chart.Derivation) map[string]float64 {
		counts := make(map[string]float64)
		walkPreorder(d, func(node *chart.Derivation) {
			counts[node.Tag]++
		})
		return counts
	})
}

// ParsePrecedence counts, for each node with tag t, one occurrence of
// "a>t" for every ancestor tag a on the path from the root to that node.
// The ancestor set is forked (copied) at every recursive descent, so a
// node's siblings do not see each other's ancestors.
func ParsePrecedence() Featurizer {
	return FeaturizerFunc(func(d *chart.Derivation) map[string]float64 {
		features := make(map[string]float64)
		var walk func(node *chart.Derivation, ancestors []string)
		walk = func(node *chart.Derivation, ancestors []string) {
			for _, a := range ancestors {
				features[a+">"+node.Tag]++
			}
			childAncestors := append(append([]string{}, ancestors...), node.Tag)
			for _, c := range node.Children {
				walk(c, childAncestors)
			}
		}
		walk(d, nil)
		return features
	})
}

// ParseDepths records, for each tag, the minimum depth at which a node with
// that tag appears in d's tree. The root is depth 0.
func ParseDepths() Featurizer {
	return FeaturizerFunc(func(d *chart.Derivation) map[string]float64 {
		depths := make(map[string]float64)
		var walk func(node *chart.Derivation, depth int)
		walk = func(node *chart.Derivation, depth int) {
			if existing, ok := depths[node.Tag]; !ok || float64(depth) < existing {
				depths[node.Tag] = float64(depth)
			}
			for _, c := range node.Children {
				walk(c, depth+1)
			}
		}
		walk(d, 0)
		return depths
	})
}

// ParseLengths records, for each tag, the maximum byte length of Span
// across all nodes with that tag in d's tree.
func ParseLengths() Featurizer {
	return FeaturizerFunc(func(d *chart.Derivation) map[string]float64 {
		lengths := make(map[string]float64)
		walkPreorder(d, func(node *chart.Derivation) {
			l := float64(len(node.Span))
			if existing, ok := lengths[node.Tag]; !ok || l > existing {
				lengths[node.Tag] = l
			}
		})
		return lengths
	})
}

// Concat runs every featurizer in fs over d and merges their outputs,
// namespacing each featurizer's keys with a "_i" suffix (i being its index
// in fs) so that featurizers sharing key names cannot collide.
func Concat(fs ...Featurizer) Featurizer {
	return FeaturizerFunc(func(d *chart.Derivation) map[string]float64 {
		merged := make(map[string]float64)
		for i, f := range fs {
			suffix := fmt.Sprintf("_%d", i)
			for k, v := range f.Featurize(d) {
				merged[k+suffix] = v
			}
		}
		return merged
	})
}

func walkPreorder(d *chart.Derivation, visit func(*chart.Derivation)) {
	visit(d)
	for _, c := range d.Children {
		walkPreorder(c, visit)
	}
}
