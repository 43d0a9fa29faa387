package transformer

import (
	"cmp"
	"errors"
	"math"
	"slices"

	pq "github.com/emirpasic/gods/v2/queues/priorityqueue"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Token sampling over generator output. A Transform reshapes a logit
// distribution (temperature, top-k, top-p); a Sampler draws a token from the
// transformed distribution. Transforms mark rejected tokens with -Inf so
// they survive chained application without renormalizing in between; the
// final softmax happens once, inside the sampler.
//
// Works on log-probabilities as well as raw logits: both differ per row by
// an additive constant, which softmax cancels.
// ===========================================================================

// Transform reshapes a logit distribution in place and returns it.
type Transform interface {
	Apply([]float64) ([]float64, error)
}

// Sampler selects a token index from a logit distribution.
type Sampler interface {
	Sample(logits []float64, transforms ...Transform) (int, error)
}

func softmaxSlice(logits []float64) []float64 {
	maxLogit := slices.Max(logits)

	var sum float64
	probs := make([]float64, len(logits))
	for i, v := range logits {
		probs[i] = math.Exp(v - maxLogit)
		sum += probs[i]
	}

	floats.Scale(1/sum, probs)
	return probs
}

// Temperature divides logits by a constant. Below 1 sharpens the
// distribution, above 1 flattens it. Use Greedy instead of Temperature(0).
type Temperature float64

// Apply implements Transform.
func (t Temperature) Apply(logits []float64) ([]float64, error) {
	if t == 0 {
		return nil, errors.New("transformer: use Greedy sampler instead of Temperature(0)")
	}
	if t < 0 {
		return nil, errors.New("transformer: temperature must be positive")
	}

	maxLogit := slices.Max(logits)
	for i := range logits {
		// subtracting the max avoids overflow in the later exp
		logits[i] = (logits[i] - maxLogit) / float64(t)
	}

	return logits, nil
}

type logitPair struct {
	index int
	logit float64
}

func logitPairComparator(a, b logitPair) int {
	return -cmp.Compare(a.logit, b.logit)
}

// TopK keeps only the k most likely tokens and blocks the rest.
type TopK int

// Apply implements Transform.
func (k TopK) Apply(logits []float64) ([]float64, error) {
	if k <= 0 {
		return nil, errors.New("transformer: top-k must be greater than 0")
	}
	if int(k) >= len(logits) {
		return logits, nil
	}

	q := pq.NewWith(logitPairComparator)
	for i, logit := range logits {
		q.Enqueue(logitPair{index: i, logit: logit})
	}

	keep := make(map[int]struct{}, k)
	for range int(k) {
		pair, _ := q.Dequeue()
		keep[pair.index] = struct{}{}
	}

	for i := range logits {
		if _, ok := keep[i]; !ok {
			logits[i] = math.Inf(-1)
		}
	}

	return logits, nil
}

// TopP (nucleus sampling) keeps the smallest set of tokens whose cumulative
// probability exceeds p and blocks the rest.
type TopP float64

// Apply implements Transform.
func (p TopP) Apply(logits []float64) ([]float64, error) {
	if p <= 0 || p >= 1 {
		return nil, errors.New("transformer: top-p must be between 0 and 1")
	}

	probs := softmaxSlice(slices.Clone(logits))
	indices := make([]int, len(probs))
	for i := range indices {
		indices[i] = i
	}

	// descending by probability
	slices.SortFunc(indices, func(i, j int) int {
		return cmp.Compare(probs[j], probs[i])
	})

	var cumSum float64
	for i, idx := range indices {
		cumSum += probs[idx]
		if cumSum > float64(p) {
			for _, reject := range indices[i+1:] {
				logits[reject] = math.Inf(-1)
			}
			break
		}
	}

	return logits, nil
}

type greedy struct{}

// Greedy returns a sampler that always picks the most likely token.
// Deterministic; transforms are applied but cannot change the argmax unless
// they block it entirely.
func Greedy() Sampler {
	return greedy{}
}

// Sample implements Sampler.
func (greedy) Sample(logits []float64, transforms ...Transform) (int, error) {
	working := slices.Clone(logits)

	var err error
	for _, t := range transforms {
		working, err = t.Apply(working)
		if err != nil {
			return -1, err
		}
	}

	return floats.MaxIdx(working), nil
}

type weighted struct {
	src rand.Source
}

// Weighted returns a sampler that draws proportionally to the transformed
// distribution. A nil seed uses non-deterministic global randomness.
func Weighted(seed *int64) Sampler {
	var src rand.Source
	if seed != nil {
		src = rand.NewSource(uint64(*seed))
	}
	return weighted{src: src}
}

// Sample implements Sampler.
func (s weighted) Sample(logits []float64, transforms ...Transform) (int, error) {
	working := slices.Clone(logits)

	var err error
	for _, t := range transforms {
		working, err = t.Apply(working)
		if err != nil {
			return -1, err
		}
	}

	// Drop blocked tokens before the draw; sampleuv rejects zero-weight
	// support poorly when everything else underflows.
	kept := make([]float64, 0, len(working))
	indices := make([]int, 0, len(working))
	for i, logit := range working {
		if !math.IsInf(logit, -1) {
			kept = append(kept, logit)
			indices = append(indices, i)
		}
	}

	if len(kept) == 0 {
		return -1, errors.New("transformer: no tokens left after transforms")
	}

	probs := softmaxSlice(kept)
	w := sampleuv.NewWeighted(probs, s.src)
	if idx, ok := w.Take(); ok {
		return indices[idx], nil
	}
	return -1, errors.New("transformer: weighted sampler failed to draw a token")
}
