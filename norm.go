package transformer

import "math"

// LayerNorm implements layer normalization.
//
// PAPER: "Layer Normalization" by Ba, Kiros, Hinton (2016)
// https://arxiv.org/abs/1607.06450
//
// Normalizes activations across features for each position independently.
// Critical for training deep transformers: without it, activations drift as
// depth grows and residual streams blow up.
//
// Formula: y = γ * (x - μ) / σ + β
// where μ, σ are computed per position and γ, β are learned parameters.
type LayerNorm struct {
	dim   int
	eps   float64
	gamma *Tensor // scale parameter
	beta  *Tensor // shift parameter
}

// NewLayerNorm creates a layer normalization module over the given feature
// dimension. Gamma starts at 1 and beta at 0, so it is initially the
// identity transform (up to normalization).
func NewLayerNorm(dim int) *LayerNorm {
	gamma := NewTensor(dim)
	beta := NewTensor(dim)

	for i := 0; i < dim; i++ {
		gamma.data[i] = 1.0
	}

	return &LayerNorm{
		dim:   dim,
		eps:   1e-5,
		gamma: gamma,
		beta:  beta,
	}
}

// Forward applies layer normalization to each row of x.
// x shape: (seqLen, features); output has the same shape.
func (ln *LayerNorm) Forward(x *Tensor) *Tensor {
	if len(x.shape) != 2 {
		panic("transformer: LayerNorm input must be 2D")
	}
	if x.shape[1] != ln.dim {
		panic("transformer: LayerNorm feature dimension mismatch")
	}

	seqLen, features := x.shape[0], x.shape[1]
	out := NewTensor(seqLen, features)

	for i := 0; i < seqLen; i++ {
		mean := 0.0
		for j := 0; j < features; j++ {
			mean += x.At(i, j)
		}
		mean /= float64(features)

		variance := 0.0
		for j := 0; j < features; j++ {
			diff := x.At(i, j) - mean
			variance += diff * diff
		}
		variance /= float64(features)

		std := math.Sqrt(variance + ln.eps)
		for j := 0; j < features; j++ {
			normalized := (x.At(i, j) - mean) / std
			out.Set(normalized*ln.gamma.data[j]+ln.beta.data[j], i, j)
		}
	}

	return out
}

// Parameters returns the learnable gamma and beta tensors.
func (ln *LayerNorm) Parameters() (gamma, beta *Tensor) {
	return ln.gamma, ln.beta
}
