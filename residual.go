package transformer

import "math/rand"

// Dropout randomly zeroes activations with probability P during training and
// rescales the survivors by 1/(1-P), so the expected activation is
// unchanged. In eval mode (the default) it is the identity.
type Dropout struct {
	p        float64
	training bool
	rng      *rand.Rand
}

// NewDropout creates a dropout module with the given drop probability.
// Panics if p is outside [0, 1).
func NewDropout(p float64) *Dropout {
	if p < 0 || p >= 1 {
		panic("transformer: dropout probability must be in [0,1)")
	}
	return &Dropout{
		p:   p,
		rng: rand.New(rand.NewSource(rand.Int63())),
	}
}

// SetTraining switches between training mode (dropout active) and eval mode
// (identity).
func (d *Dropout) SetTraining(training bool) {
	d.training = training
}

// Seed reseeds the dropout RNG, for reproducible training-mode runs.
func (d *Dropout) Seed(seed int64) {
	d.rng = rand.New(rand.NewSource(seed))
}

// Forward applies dropout to x.
func (d *Dropout) Forward(x *Tensor) *Tensor {
	if !d.training || d.p == 0 {
		return x
	}

	out := NewTensor(x.shape...)
	keep := 1.0 - d.p
	for i := range x.data {
		if d.rng.Float64() < keep {
			out.data[i] = x.data[i] / keep
		}
	}
	return out
}

// SublayerConnection wraps a sub-computation in the standard pre-norm
// residual composition used throughout the encoder and decoder towers:
//
//	out = x + Dropout(sublayer(LayerNorm(x)))
//
// Normalizing the input rather than the output (pre-norm) keeps the residual
// stream un-normalized, which trains more stably in deep stacks. The wrapped
// sublayer must preserve its input shape; the residual add enforces that by
// panicking on mismatch.
type SublayerConnection struct {
	norm    *LayerNorm
	dropout *Dropout
}

// NewSublayerConnection creates a residual wrapper for sublayers operating
// on vectors of the given size.
func NewSublayerConnection(size int, dropout float64) *SublayerConnection {
	return &SublayerConnection{
		norm:    NewLayerNorm(size),
		dropout: NewDropout(dropout),
	}
}

// Forward applies the residual composition around sublayer.
func (sc *SublayerConnection) Forward(x *Tensor, sublayer func(*Tensor) *Tensor) *Tensor {
	return Add(x, sc.dropout.Forward(sublayer(sc.norm.Forward(x))))
}

// SetTraining propagates the train/eval flag to the wrapped dropout.
func (sc *SublayerConnection) SetTraining(training bool) {
	sc.dropout.SetTraining(training)
}
