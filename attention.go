package transformer

import (
	"fmt"
	"math"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements scaled dot-product attention and its multi-head
// wrapper - the core of the transformer.
//
// INTUITION:
// Attention lets each position "look at" other positions to gather context.
// It answers: "which other tokens matter when processing this token?"
//
// Mechanism:
//  1. Compare queries against keys: scores = Q·Kᵀ / √d_k
//  2. Mask out forbidden positions, softmax into weights
//  3. Average the values under those weights: out = weights·V
//
// Multi-head: run h attention operations in parallel on h lower-dimensional
// projections of the input, then concatenate. Each head can attend to a
// different representation subspace (one tracks syntax, another positions,
// and so on - in practice heads specialize during training).
//
// The ÷√d_k keeps the dot products from growing with head width; without it
// softmax saturates and gradients vanish.
// ===========================================================================

// ScaledDotProductAttention computes attention over a single head.
//
//	Attention(Q, K, V) = softmax(Q·Kᵀ / √d_k) · V
//
// q: (n, d_k), k: (m, d_k), v: (m, d_v). mask, if non-nil, must be (n, m);
// positions where mask is 0 are blocked by setting their score to -1e9
// before the softmax, which zeroes them out after normalization. dropout,
// if non-nil, is applied to the attention weights.
//
// Returns the attended output (n, d_v) and the attention weights (n, m).
func ScaledDotProductAttention(q, k, v, mask *Tensor, dropout *Dropout) (*Tensor, *Tensor) {
	if len(q.shape) != 2 || len(k.shape) != 2 || len(v.shape) != 2 {
		panic("transformer: attention inputs must be 2D")
	}
	if q.shape[1] != k.shape[1] {
		panic(fmt.Sprintf("transformer: query/key width mismatch %d vs %d", q.shape[1], k.shape[1]))
	}
	if k.shape[0] != v.shape[0] {
		panic(fmt.Sprintf("transformer: key/value length mismatch %d vs %d", k.shape[0], v.shape[0]))
	}

	n, m := q.shape[0], k.shape[0]
	dk := float64(q.shape[1])

	scores := MatMul(q, Transpose(k))
	scores = Scale(scores, 1.0/math.Sqrt(dk))

	if mask != nil {
		if mask.shape[0] != n || mask.shape[1] != m {
			panic(fmt.Sprintf("transformer: mask shape %v does not match scores (%d,%d)", mask.shape, n, m))
		}
		for i := 0; i < n; i++ {
			for j := 0; j < m; j++ {
				if mask.At(i, j) == 0 {
					scores.Set(-1e9, i, j)
				}
			}
		}
	}

	weights := Softmax(scores)
	if dropout != nil {
		weights = dropout.Forward(weights)
	}

	return MatMul(weights, v), weights
}

// MultiHeadAttention projects its inputs into h heads, attends per head, and
// projects the concatenated result back to the model dimension.
type MultiHeadAttention struct {
	dModel   int
	numHeads int
	headDim  int

	// Linear projections, each (dModel, dModel). Per-head projections are
	// column slices of these fused matrices.
	wq, wk, wv, wo *Tensor

	dropout *Dropout
	backend Backend

	// lastWeights holds the attention weights of the most recent Forward,
	// one (n, m) tensor per head, for inspection and plotting.
	lastWeights []*Tensor
}

// NewMultiHeadAttention creates a multi-head attention module.
// dModel must be divisible by numHeads.
func NewMultiHeadAttention(dModel, numHeads int, dropout float64) *MultiHeadAttention {
	if numHeads <= 0 {
		panic(fmt.Sprintf("transformer: numHeads must be positive, got %d", numHeads))
	}
	if dModel%numHeads != 0 {
		panic(fmt.Sprintf("transformer: dModel (%d) must be divisible by numHeads (%d)", dModel, numHeads))
	}

	// Xavier/Glorot initialization scaled for transformers.
	scale := math.Sqrt(2.0 / float64(dModel))

	wq := NewTensorRand(dModel, dModel)
	wk := NewTensorRand(dModel, dModel)
	wv := NewTensorRand(dModel, dModel)
	wo := NewTensorRand(dModel, dModel)

	for i := range wq.data {
		wq.data[i] *= scale
		wk.data[i] *= scale
		wv.data[i] *= scale
		wo.data[i] *= scale
	}

	return &MultiHeadAttention{
		dModel:   dModel,
		numHeads: numHeads,
		headDim:  dModel / numHeads,
		wq:       wq,
		wk:       wk,
		wv:       wv,
		wo:       wo,
		dropout:  NewDropout(dropout),
	}
}

// SetBackend configures an accelerated matmul backend.
func (mha *MultiHeadAttention) SetBackend(backend Backend) {
	mha.backend = backend
}

// SetTraining toggles attention-weight dropout.
func (mha *MultiHeadAttention) SetTraining(training bool) {
	mha.dropout.SetTraining(training)
}

// Forward computes multi-head attention.
//
// Self-attention passes the same tensor as query, key, and value.
// Cross-attention (decoder over encoder output) passes the decoder state as
// query and the encoder output as key and value.
//
// query: (n, dModel), key/value: (m, dModel), mask: nil or (n, m).
// Returns: (n, dModel).
func (mha *MultiHeadAttention) Forward(query, key, value, mask *Tensor) *Tensor {
	if len(query.shape) != 2 || query.shape[1] != mha.dModel {
		panic(fmt.Sprintf("transformer: attention query must be (n, %d)", mha.dModel))
	}
	if len(key.shape) != 2 || key.shape[1] != mha.dModel {
		panic(fmt.Sprintf("transformer: attention key must be (m, %d)", mha.dModel))
	}
	if !shapeEqual(key.shape, value.shape) {
		panic(fmt.Sprintf("transformer: key shape %v != value shape %v", key.shape, value.shape))
	}

	n := query.shape[0]

	// 1) Project to Q, K, V in one fused matmul each.
	q := matmulVia(mha.backend, query, mha.wq) // (n, dModel)
	k := matmulVia(mha.backend, key, mha.wk)   // (m, dModel)
	v := matmulVia(mha.backend, value, mha.wv) // (m, dModel)

	// 2) Split into heads, attend per head, write each head's output back
	// into its column slice of the concatenated tensor.
	concat := NewTensor(n, mha.dModel)
	mha.lastWeights = make([]*Tensor, mha.numHeads)

	for h := 0; h < mha.numHeads; h++ {
		lo, hi := h*mha.headDim, (h+1)*mha.headDim

		qh := SliceCols(q, lo, hi)
		kh := SliceCols(k, lo, hi)
		vh := SliceCols(v, lo, hi)

		headOut, headWeights := ScaledDotProductAttention(qh, kh, vh, mask, mha.dropout)
		SetCols(concat, headOut, lo)
		mha.lastWeights[h] = headWeights
	}

	// 3) Final output projection.
	return matmulVia(mha.backend, concat, mha.wo)
}

// AttentionWeights returns the per-head attention weights recorded during
// the most recent Forward call, or nil if Forward has not run yet.
func (mha *MultiHeadAttention) AttentionWeights() []*Tensor {
	return mha.lastWeights
}

// NumHeads returns the number of attention heads.
func (mha *MultiHeadAttention) NumHeads() int {
	return mha.numHeads
}

// NumParams returns the number of learnable scalars in the module.
func (mha *MultiHeadAttention) NumParams() int {
	return mha.wq.Size() + mha.wk.Size() + mha.wv.Size() + mha.wo.Size()
}
