package transformer

// DecoderLayer is one layer of the decoder tower. It differs from an
// encoder layer by an added cross-attention sublayer: after attending to
// its own (causally masked) prefix, the decoder attends to the encoder
// output - queries come from the decoder state, keys and values from the
// encoded source.
type DecoderLayer struct {
	size      int
	selfAttn  *MultiHeadAttention
	crossAttn *MultiHeadAttention
	ff        *FeedForward
	sublayers []*SublayerConnection // [0]=self-attn, [1]=cross-attn, [2]=feed-forward
}

// NewDecoderLayer creates a decoder layer.
func NewDecoderLayer(dModel, numHeads, ffHidden int, dropout float64) *DecoderLayer {
	return &DecoderLayer{
		size:      dModel,
		selfAttn:  NewMultiHeadAttention(dModel, numHeads, dropout),
		crossAttn: NewMultiHeadAttention(dModel, numHeads, dropout),
		ff:        NewFeedForward(dModel, ffHidden),
		sublayers: CloneLayers(3, func() *SublayerConnection {
			return NewSublayerConnection(dModel, dropout)
		}),
	}
}

// Forward processes the decoder state through the layer.
//
// x: (tgtLen, dModel) decoder state; memory: (srcLen, dModel) encoder
// output; srcMask: nil or (tgtLen, srcLen) for cross-attention; tgtMask:
// nil or (tgtLen, tgtLen), normally the causal SubsequentMask. Output shape
// equals input shape.
func (dl *DecoderLayer) Forward(x, memory, srcMask, tgtMask *Tensor) *Tensor {
	x = dl.sublayers[0].Forward(x, func(normed *Tensor) *Tensor {
		return dl.selfAttn.Forward(normed, normed, normed, tgtMask)
	})
	x = dl.sublayers[1].Forward(x, func(normed *Tensor) *Tensor {
		return dl.crossAttn.Forward(normed, memory, memory, srcMask)
	})
	return dl.sublayers[2].Forward(x, dl.ff.Forward)
}

// Decoder is a stack of N cloned decoder layers with a final layer norm.
type Decoder struct {
	layers []*DecoderLayer
	norm   *LayerNorm
}

// NewDecoder creates a decoder tower of numLayers independently
// initialized layers.
func NewDecoder(numLayers, dModel, numHeads, ffHidden int, dropout float64) *Decoder {
	return &Decoder{
		layers: CloneLayers(numLayers, func() *DecoderLayer {
			return NewDecoderLayer(dModel, numHeads, ffHidden, dropout)
		}),
		norm: NewLayerNorm(dModel),
	}
}

// Forward passes x through every layer in order, then the final norm.
func (d *Decoder) Forward(x, memory, srcMask, tgtMask *Tensor) *Tensor {
	for _, layer := range d.layers {
		x = layer.Forward(x, memory, srcMask, tgtMask)
	}
	return d.norm.Forward(x)
}

// Layers exposes the decoder layers, e.g. for attention-weight inspection.
func (d *Decoder) Layers() []*DecoderLayer {
	return d.layers
}

// SelfAttention exposes the layer's masked self-attention module.
func (dl *DecoderLayer) SelfAttention() *MultiHeadAttention {
	return dl.selfAttn
}

// CrossAttention exposes the layer's attention over the encoder output.
func (dl *DecoderLayer) CrossAttention() *MultiHeadAttention {
	return dl.crossAttn
}

func (dl *DecoderLayer) setBackend(backend Backend) {
	dl.selfAttn.SetBackend(backend)
	dl.crossAttn.SetBackend(backend)
	dl.ff.SetBackend(backend)
}

func (dl *DecoderLayer) setTraining(training bool) {
	dl.selfAttn.SetTraining(training)
	dl.crossAttn.SetTraining(training)
	for _, sc := range dl.sublayers {
		sc.SetTraining(training)
	}
}

func (dl *DecoderLayer) numParams() int {
	n := dl.selfAttn.NumParams() + dl.crossAttn.NumParams() + dl.ff.NumParams()
	n += 3 * 2 * dl.size
	return n
}
