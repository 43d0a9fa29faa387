package transformer

// FeedForward implements the position-wise feed-forward network.
//
// A two-layer MLP applied independently to each position:
//
//	FFN(x) = act(x @ W1 + b1) @ W2 + b2
//
// The hidden dimension is typically 4x the embedding dimension. This is
// where most of the model's parameters live.
type FeedForward struct {
	w1, b1 *Tensor
	w2, b2 *Tensor

	// Activation applied between the two layers. Defaults to ReLU;
	// assign GELU for GPT/BERT-flavored stacks.
	Activation func(*Tensor) *Tensor

	backend Backend
}

// NewFeedForward creates a feed-forward module mapping
// embedDim -> hiddenDim -> embedDim.
func NewFeedForward(embedDim, hiddenDim int) *FeedForward {
	return &FeedForward{
		w1:         NewTensorRand(embedDim, hiddenDim),
		b1:         NewTensor(hiddenDim),
		w2:         NewTensorRand(hiddenDim, embedDim),
		b2:         NewTensor(embedDim),
		Activation: ReLU,
	}
}

// SetBackend configures an accelerated matmul backend.
func (ff *FeedForward) SetBackend(backend Backend) {
	ff.backend = backend
}

// Forward applies the feed-forward network.
// x shape: (seqLen, embedDim); output has the same shape.
func (ff *FeedForward) Forward(x *Tensor) *Tensor {
	hidden := matmulVia(ff.backend, x, ff.w1)
	hidden = AddBias(hidden, ff.b1)
	hidden = ff.Activation(hidden)

	out := matmulVia(ff.backend, hidden, ff.w2)
	return AddBias(out, ff.b2)
}

// NumParams returns the number of learnable scalars in the module.
func (ff *FeedForward) NumParams() int {
	return ff.w1.Size() + ff.b1.Size() + ff.w2.Size() + ff.b2.Size()
}
