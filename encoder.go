package transformer

// EncoderLayer is one layer of the encoder tower: bidirectional
// self-attention followed by the position-wise feed-forward network, each
// wrapped in a pre-norm residual connection.
type EncoderLayer struct {
	size      int
	selfAttn  *MultiHeadAttention
	ff        *FeedForward
	sublayers []*SublayerConnection // [0]=self-attention, [1]=feed-forward
}

// NewEncoderLayer creates an encoder layer.
func NewEncoderLayer(dModel, numHeads, ffHidden int, dropout float64) *EncoderLayer {
	return &EncoderLayer{
		size:     dModel,
		selfAttn: NewMultiHeadAttention(dModel, numHeads, dropout),
		ff:       NewFeedForward(dModel, ffHidden),
		sublayers: CloneLayers(2, func() *SublayerConnection {
			return NewSublayerConnection(dModel, dropout)
		}),
	}
}

// Forward processes x through the layer.
// x: (seqLen, dModel), mask: nil or (seqLen, seqLen). Output shape equals
// input shape.
func (el *EncoderLayer) Forward(x, mask *Tensor) *Tensor {
	x = el.sublayers[0].Forward(x, func(normed *Tensor) *Tensor {
		return el.selfAttn.Forward(normed, normed, normed, mask)
	})
	return el.sublayers[1].Forward(x, el.ff.Forward)
}

// Encoder is a stack of N cloned encoder layers with a final layer norm.
// The final norm closes out the pre-norm arrangement: every layer normalizes
// its own input, so the last layer's output is the only un-normalized state.
type Encoder struct {
	layers []*EncoderLayer
	norm   *LayerNorm
}

// NewEncoder creates an encoder tower of numLayers independently
// initialized layers.
func NewEncoder(numLayers, dModel, numHeads, ffHidden int, dropout float64) *Encoder {
	return &Encoder{
		layers: CloneLayers(numLayers, func() *EncoderLayer {
			return NewEncoderLayer(dModel, numHeads, ffHidden, dropout)
		}),
		norm: NewLayerNorm(dModel),
	}
}

// Forward passes x through every layer in order, then the final norm.
func (e *Encoder) Forward(x, mask *Tensor) *Tensor {
	for _, layer := range e.layers {
		x = layer.Forward(x, mask)
	}
	return e.norm.Forward(x)
}

// Layers exposes the encoder layers, e.g. for attention-weight inspection.
func (e *Encoder) Layers() []*EncoderLayer {
	return e.layers
}

// SelfAttention exposes the layer's attention module for inspection.
func (el *EncoderLayer) SelfAttention() *MultiHeadAttention {
	return el.selfAttn
}

func (el *EncoderLayer) setBackend(backend Backend) {
	el.selfAttn.SetBackend(backend)
	el.ff.SetBackend(backend)
}

func (el *EncoderLayer) setTraining(training bool) {
	el.selfAttn.SetTraining(training)
	for _, sc := range el.sublayers {
		sc.SetTraining(training)
	}
}

func (el *EncoderLayer) numParams() int {
	n := el.selfAttn.NumParams() + el.ff.NumParams()
	n += 2 * 2 * el.size // gamma+beta per sublayer norm
	return n
}
