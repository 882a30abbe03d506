// Package rank scores and ranks a derivation chart's parses and
// denotations. It provides a no-op ConstantRanker, a structured-margin
// LinearRanker, and a marginal-likelihood SoftmaxRanker, each trainable
// via Fit against labeled (utterance, denotation) pairs.
package rank

import (
	"math"
	"math/rand"
	"reflect"
	"sort"

	"github.com/pkg/errors"

	"github.com/nlparse/semparse/internal/xerrors"
	"github.com/nlparse/semparse/chart"
	"github.com/nlparse/semparse/feature"
)

// ScoredParse pairs a derivation with its score under some ranker.
type ScoredParse struct {
	Score float64
	Parse *chart.Derivation
}

// ScoredDenotation pairs a denotation with its aggregated score under some
// ranker. Equivalent denotations (reflect.DeepEqual) are merged.
type ScoredDenotation struct {
	Score      float64
	Denotation any
}

// Ranker scores and ranks the parses of an utterance, and trains against
// labeled data.
type Ranker interface {
	Fit(utterances []string, denotations []any) error
	ScoresAndParses(s string) ([]ScoredParse, error)
	ScoresAndDenotations(s string) ([]ScoredDenotation, error)
	TopParse(s string) (*chart.Derivation, error)
	TopDenotation(s string) (any, error)
}

func lengthMismatchError(utterances, denotations int) error {
	return errors.WithStack(xerrors.FormatError(xerrors.LengthMismatch,
		"utterances length %d != denotations length %d", utterances, denotations))
}

func denotationsEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func dotProduct(phi, weights map[string]float64) float64 {
	var sum float64
	for f, v := range phi {
		sum += v * weights[f]
	}
	return sum
}

func topParse(scored []ScoredParse) *chart.Derivation {
	if len(scored) == 0 {
		return nil
	}
	return scored[0].Parse
}

func topDenotation(scored []ScoredDenotation) any {
	if len(scored) == 0 {
		return nil
	}
	return scored[0].Denotation
}

// aggregateMax merges scored parses into per-denotation scores by taking
// the maximum score among parses sharing a denotation. Used by
// ConstantRanker and LinearRanker.
func aggregateMax(scored []ScoredParse) ([]ScoredDenotation, error) {
	var result []ScoredDenotation
	for _, sp := range scored {
		den, err := sp.Parse.ComputeDenotation()
		if err != nil {
			return nil, err
		}
		merged := false
		for i := range result {
			if denotationsEqual(result[i].Denotation, den) {
				if sp.Score > result[i].Score {
					result[i].Score = sp.Score
				}
				merged = true
				break
			}
		}
		if !merged {
			result = append(result, ScoredDenotation{Score: sp.Score, Denotation: den})
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Score > result[j].Score })
	return result, nil
}

// aggregateSum merges scored parses into per-denotation scores by summing
// scores of parses sharing a denotation. Used by SoftmaxRanker, whose
// scores are parse probabilities.
func aggregateSum(scored []ScoredParse) ([]ScoredDenotation, error) {
	var result []ScoredDenotation
	for _, sp := range scored {
		den, err := sp.Parse.ComputeDenotation()
		if err != nil {
			return nil, err
		}
		merged := false
		for i := range result {
			if denotationsEqual(result[i].Denotation, den) {
				result[i].Score += sp.Score
				merged = true
				break
			}
		}
		if !merged {
			result = append(result, ScoredDenotation{Score: sp.Score, Denotation: den})
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Score > result[j].Score })
	return result, nil
}

// lazyRegularizer applies L2 weight decay lazily: a feature's decay is
// deferred until it is next touched, at which point it is applied for
// every step since its last update. This avoids an O(features) pass per
// training sample.
type lazyRegularizer struct {
	eta, lambda float64
	lastUpdate  map[string]int
}

func newLazyRegularizer(eta, lambda float64) *lazyRegularizer {
	return &lazyRegularizer{eta: eta, lambda: lambda, lastUpdate: make(map[string]int)}
}

func (lr *lazyRegularizer) touch(weights map[string]float64, f string, step int) {
	last := lr.lastUpdate[f]
	gap := step - last
	if gap > 0 {
		weights[f] *= math.Pow(1-lr.eta*lr.lambda, float64(gap))
	}
	lr.lastUpdate[f] = step
}

// flush applies pending decay to every feature currently in weights, as of
// step. Call at the end of each training epoch.
func (lr *lazyRegularizer) flush(weights map[string]float64, step int) {
	for f := range weights {
		lr.touch(weights, f, step)
	}
}

func softmaxProbs(logits []float64) []float64 {
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		if l > maxLogit {
			maxLogit = l
		}
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		e := math.Exp(l - maxLogit)
		probs[i] = e
		sum += e
	}
	if sum == 0 {
		return probs
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func shuffledIndices(n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rand.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	return indices
}

// ConstantRanker assigns every parse a score of 0. Fit is a no-op beyond
// the length check. ScoresAndDenotations preserves parser order among
// distinct denotations.
type ConstantRanker struct {
	parser *chart.Parser
}

// NewConstantRanker constructs a ConstantRanker over parser.
func NewConstantRanker(parser *chart.Parser) *ConstantRanker {
	return &ConstantRanker{parser: parser}
}

// Fit validates utterances and denotations have equal length; it otherwise
// does nothing.
func (r *ConstantRanker) Fit(utterances []string, denotations []any) error {
	if len(utterances) != len(denotations) {
		return lengthMismatchError(len(utterances), len(denotations))
	}
	return nil
}

// ScoresAndParses returns every parse of s with score 0, in parser order.
func (r *ConstantRanker) ScoresAndParses(s string) ([]ScoredParse, error) {
	derivs, err := r.parser.Parse(s)
	if err != nil {
		return nil, err
	}
	scored := make([]ScoredParse, len(derivs))
	for i, d := range derivs {
		scored[i] = ScoredParse{Score: 0, Parse: d}
	}
	return scored, nil
}

// ScoresAndDenotations returns each distinct denotation of s with score 0,
// preserving the order in which it was first produced by the parser.
func (r *ConstantRanker) ScoresAndDenotations(s string) ([]ScoredDenotation, error) {
	scored, err := r.ScoresAndParses(s)
	if err != nil {
		return nil, err
	}
	return aggregateMax(scored)
}

// TopParse returns the first parse of s, or nil if there are none.
func (r *ConstantRanker) TopParse(s string) (*chart.Derivation, error) {
	scored, err := r.ScoresAndParses(s)
	if err != nil {
		return nil, err
	}
	return topParse(scored), nil
}

// TopDenotation returns the first denotation of s, or nil if there are
// none.
func (r *ConstantRanker) TopDenotation(s string) (any, error) {
	scored, err := r.ScoresAndDenotations(s)
	if err != nil {
		return nil, err
	}
	return topDenotation(scored), nil
}

// Linear training hyperparameters, fixed by design.
const (
	linearMaxEpochs = 100
	linearTol       = 1e-2
	linearEta       = 1e-2
	linearLambda    = 1e-2
	linearAlpha     = 1.0
)

// LinearRanker is a structured-margin ranker: a parse's score is the dot
// product of its featurization with a learned weight map.
type LinearRanker struct {
	parser     *chart.Parser
	featurizer feature.Featurizer
	weights    map[string]float64
}

// NewLinearRanker constructs a LinearRanker with zero initial weights.
func NewLinearRanker(parser *chart.Parser, featurizer feature.Featurizer) *LinearRanker {
	return &LinearRanker{parser: parser, featurizer: featurizer, weights: make(map[string]float64)}
}

// Weights exposes the ranker's current weight map, for inspection or
// persistence by the caller.
func (r *LinearRanker) Weights() map[string]float64 {
	return r.weights
}

type featurizedParse struct {
	parse *chart.Derivation
	phi   map[string]float64
	score float64
}

// Fit trains the ranker's weights against labeled data using the
// structured-margin update: per epoch, shuffle samples; for each, find the
// top-scoring correct parse, form the violator set of incorrect parses
// within margin linearAlpha, and apply a perceptron-style update with lazy
// L2 regularization. Stops when the epoch loss changes by at most
// linearTol, or after linearMaxEpochs.
func (r *LinearRanker) Fit(utterances []string, denotations []any) error {
	if len(utterances) != len(denotations) {
		return lengthMismatchError(len(utterances), len(denotations))
	}
	if len(utterances) == 0 {
		return nil
	}

	reg := newLazyRegularizer(linearEta, linearLambda)
	step := 0
	prevLoss := math.Inf(1)

	for epoch := 0; epoch < linearMaxEpochs; epoch++ {
		epochLoss := 0.0

		for _, idx := range shuffledIndices(len(utterances)) {
			step++
			derivs, err := r.parser.Parse(utterances[idx])
			if err != nil {
				return err
			}
			if len(derivs) == 0 {
				continue
			}

			fps := make([]featurizedParse, len(derivs))
			for i, d := range derivs {
				phi := r.featurizer.Featurize(d)
				fps[i] = featurizedParse{parse: d, phi: phi, score: dotProduct(phi, r.weights)}
			}

			labeled := denotations[idx]
			bestIdx := -1
			bestScore := math.Inf(-1)
			for i, fp := range fps {
				den, derr := fp.parse.ComputeDenotation()
				if derr != nil || !denotationsEqual(den, labeled) {
					continue
				}
				if fp.score > bestScore {
					bestScore = fp.score
					bestIdx = i
				}
			}
			if bestIdx < 0 {
				continue
			}
			pStar := fps[bestIdx]
			sStar := pStar.score

			var violators []featurizedParse
			for i, fp := range fps {
				if i == bestIdx {
					continue
				}
				den, derr := fp.parse.ComputeDenotation()
				if derr == nil && denotationsEqual(den, labeled) {
					continue
				}
				if sStar-fp.score < linearAlpha {
					violators = append(violators, fp)
				}
			}

			for _, v := range violators {
				loss := v.score + linearAlpha - sStar
				if loss > 0 {
					epochLoss += loss
				}
			}

			for _, v := range violators {
				features := make(map[string]bool, len(v.phi)+len(pStar.phi))
				for f := range v.phi {
					features[f] = true
				}
				for f := range pStar.phi {
					features[f] = true
				}
				for f := range features {
					reg.touch(r.weights, f, step)
					r.weights[f] -= linearEta * (v.phi[f] - pStar.phi[f])
				}
			}
		}

		reg.flush(r.weights, step)

		if math.Abs(epochLoss-prevLoss) <= linearTol {
			break
		}
		prevLoss = epochLoss
	}
	return nil
}

// ScoresAndParses returns every parse of s scored by dot product with the
// current weights, sorted descending.
func (r *LinearRanker) ScoresAndParses(s string) ([]ScoredParse, error) {
	derivs, err := r.parser.Parse(s)
	if err != nil {
		return nil, err
	}
	scored := make([]ScoredParse, len(derivs))
	for i, d := range derivs {
		scored[i] = ScoredParse{Score: dotProduct(r.featurizer.Featurize(d), r.weights), Parse: d}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored, nil
}

// ScoresAndDenotations aggregates ScoresAndParses by denotation, taking the
// maximum score per denotation.
func (r *LinearRanker) ScoresAndDenotations(s string) ([]ScoredDenotation, error) {
	scored, err := r.ScoresAndParses(s)
	if err != nil {
		return nil, err
	}
	return aggregateMax(scored)
}

// TopParse returns the highest-scoring parse of s, or nil if there are
// none.
func (r *LinearRanker) TopParse(s string) (*chart.Derivation, error) {
	scored, err := r.ScoresAndParses(s)
	if err != nil {
		return nil, err
	}
	return topParse(scored), nil
}

// TopDenotation returns the highest-scoring denotation of s, or nil if
// there are none.
func (r *LinearRanker) TopDenotation(s string) (any, error) {
	scored, err := r.ScoresAndDenotations(s)
	if err != nil {
		return nil, err
	}
	return topDenotation(scored), nil
}

// Softmax training hyperparameters, fixed by design.
const (
	softmaxMaxEpochs = 100
	softmaxTol       = 1e-4
	softmaxEta       = 1e-3
	softmaxLambda    = 1e-3
)

// SoftmaxRanker is a marginal-likelihood ranker: a parse's probability is
// the softmax of its logit (the dot product of its featurization with a
// learned weight map) across all parses of the same utterance.
type SoftmaxRanker struct {
	parser     *chart.Parser
	featurizer feature.Featurizer
	weights    map[string]float64
}

// NewSoftmaxRanker constructs a SoftmaxRanker with zero initial weights.
func NewSoftmaxRanker(parser *chart.Parser, featurizer feature.Featurizer) *SoftmaxRanker {
	return &SoftmaxRanker{parser: parser, featurizer: featurizer, weights: make(map[string]float64)}
}

// Weights exposes the ranker's current weight map.
func (r *SoftmaxRanker) Weights() map[string]float64 {
	return r.weights
}

// Fit trains the ranker's weights to minimize the negative log marginal
// likelihood of the labeled denotation, with lazy L2 regularization. For
// numerical stability the softmax subtracts the maximum logit before
// exponentiating. Samples whose labeled denotation has zero probability
// mass (no parse reaches it) are skipped. Stops when the epoch loss
// changes by at most softmaxTol, or after softmaxMaxEpochs.
func (r *SoftmaxRanker) Fit(utterances []string, denotations []any) error {
	if len(utterances) != len(denotations) {
		return lengthMismatchError(len(utterances), len(denotations))
	}
	if len(utterances) == 0 {
		return nil
	}

	reg := newLazyRegularizer(softmaxEta, softmaxLambda)
	step := 0
	prevLoss := math.Inf(1)

	for epoch := 0; epoch < softmaxMaxEpochs; epoch++ {
		epochLoss := 0.0

		for _, idx := range shuffledIndices(len(utterances)) {
			step++
			derivs, err := r.parser.Parse(utterances[idx])
			if err != nil {
				return err
			}
			if len(derivs) == 0 {
				continue
			}

			phis := make([]map[string]float64, len(derivs))
			logits := make([]float64, len(derivs))
			for i, d := range derivs {
				phis[i] = r.featurizer.Featurize(d)
				logits[i] = dotProduct(phis[i], r.weights)
			}
			probs := softmaxProbs(logits)

			labeled := denotations[idx]
			correct := make([]bool, len(derivs))
			var pd float64
			for i, d := range derivs {
				den, derr := d.ComputeDenotation()
				if derr != nil || !denotationsEqual(den, labeled) {
					continue
				}
				correct[i] = true
				pd += probs[i]
			}
			if pd == 0 {
				continue
			}
			epochLoss += -math.Log(pd)

			mu := make(map[string]float64)
			for i, phi := range phis {
				for f, v := range phi {
					mu[f] += probs[i] * v
				}
			}

			grad := make(map[string]float64)
			for i, phi := range phis {
				if !correct[i] {
					continue
				}
				for f, v := range phi {
					grad[f] += -(1.0 / pd) * probs[i] * (v - mu[f])
				}
			}

			for f, g := range grad {
				reg.touch(r.weights, f, step)
				r.weights[f] -= softmaxEta * g
			}
		}

		reg.flush(r.weights, step)

		if math.Abs(epochLoss-prevLoss) <= softmaxTol {
			break
		}
		prevLoss = epochLoss
	}
	return nil
}

// ScoresAndParses returns every parse of s with its softmax probability,
// sorted descending.
func (r *SoftmaxRanker) ScoresAndParses(s string) ([]ScoredParse, error) {
	derivs, err := r.parser.Parse(s)
	if err != nil {
		return nil, err
	}
	logits := make([]float64, len(derivs))
	for i, d := range derivs {
		logits[i] = dotProduct(r.featurizer.Featurize(d), r.weights)
	}
	probs := softmaxProbs(logits)

	scored := make([]ScoredParse, len(derivs))
	for i, d := range derivs {
		scored[i] = ScoredParse{Score: probs[i], Parse: d}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored, nil
}

// ScoresAndDenotations aggregates ScoresAndParses by denotation, summing
// the probabilities of parses sharing a denotation.
func (r *SoftmaxRanker) ScoresAndDenotations(s string) ([]ScoredDenotation, error) {
	scored, err := r.ScoresAndParses(s)
	if err != nil {
		return nil, err
	}
	return aggregateSum(scored)
}

// TopParse returns the most probable parse of s, or nil if there are none.
func (r *SoftmaxRanker) TopParse(s string) (*chart.Derivation, error) {
	scored, err := r.ScoresAndParses(s)
	if err != nil {
		return nil, err
	}
	return topParse(scored), nil
}

// TopDenotation returns the most probable denotation of s, or nil if there
// are none.
func (r *SoftmaxRanker) TopDenotation(s string) (any, error) {
	scored, err := r.ScoresAndDenotations(s)
	if err != nil {
		return nil, err
	}
	return topDenotation(scored), nil
}
