package transformer

import (
	"fmt"
	"math"
)

// Embeddings maps token IDs to scaled embedding vectors.
//
// The lookup result is multiplied by √dModel so the embeddings and the
// positional encodings added on top of them arrive at comparable scale.
type Embeddings struct {
	table  *Tensor // (vocabSize, dModel)
	dModel int
}

// NewEmbeddings creates an embedding table for the given vocabulary.
func NewEmbeddings(vocabSize, dModel int) *Embeddings {
	return &Embeddings{
		table:  NewTensorRand(vocabSize, dModel),
		dModel: dModel,
	}
}

// Forward looks up and scales embeddings for a sequence of token IDs.
// Returns: (len(ids), dModel). Panics on empty input or out-of-range IDs.
func (e *Embeddings) Forward(ids []int) *Tensor {
	if len(ids) == 0 {
		panic("transformer: cannot embed empty sequence")
	}

	vocabSize := e.table.shape[0]
	scale := math.Sqrt(float64(e.dModel))

	out := NewTensor(len(ids), e.dModel)
	for i, id := range ids {
		if id < 0 || id >= vocabSize {
			panic(fmt.Sprintf("transformer: token ID %d out of vocabulary range [0,%d)", id, vocabSize))
		}
		for j := 0; j < e.dModel; j++ {
			out.Set(e.table.At(id, j)*scale, i, j)
		}
	}

	return out
}

// NumParams returns the number of learnable scalars in the module.
func (e *Embeddings) NumParams() int {
	return e.table.Size()
}

// PositionalEncoding adds sinusoidal position information to embeddings.
//
//	PE(pos, 2i)   = sin(pos / 10000^(2i/dModel))
//	PE(pos, 2i+1) = cos(pos / 10000^(2i/dModel))
//
// Each position gets a unique pattern of phases, and any fixed offset
// between two positions is a linear function of their encodings, which is
// what lets attention learn relative positioning from absolute encodings.
// The table is precomputed once; nothing here is learned.
type PositionalEncoding struct {
	encoding *Tensor // (maxLen, dModel), precomputed
	dModel   int
	maxLen   int
	dropout  *Dropout
}

// NewPositionalEncoding precomputes sinusoidal encodings up to maxLen
// positions.
func NewPositionalEncoding(dModel, maxLen int, dropout float64) *PositionalEncoding {
	pe := NewTensor(maxLen, dModel)

	for pos := 0; pos < maxLen; pos++ {
		for i := 0; i < dModel; i += 2 {
			angle := float64(pos) / math.Pow(10000, float64(i)/float64(dModel))
			pe.Set(math.Sin(angle), pos, i)
			if i+1 < dModel {
				pe.Set(math.Cos(angle), pos, i+1)
			}
		}
	}

	return &PositionalEncoding{
		encoding: pe,
		dModel:   dModel,
		maxLen:   maxLen,
		dropout:  NewDropout(dropout),
	}
}

// SetTraining toggles the dropout applied after adding the encoding.
func (pe *PositionalEncoding) SetTraining(training bool) {
	pe.dropout.SetTraining(training)
}

// Forward adds positional encodings to x.
// x: (seqLen, dModel) with seqLen <= maxLen; output has the same shape.
func (pe *PositionalEncoding) Forward(x *Tensor) *Tensor {
	if len(x.shape) != 2 || x.shape[1] != pe.dModel {
		panic(fmt.Sprintf("transformer: positional encoding input must be (n, %d)", pe.dModel))
	}

	seqLen := x.shape[0]
	if seqLen > pe.maxLen {
		panic(fmt.Sprintf("transformer: sequence length %d exceeds maximum %d", seqLen, pe.maxLen))
	}

	out := x.Clone()
	for i := 0; i < seqLen; i++ {
		for j := 0; j < pe.dModel; j++ {
			out.Set(out.At(i, j)+pe.encoding.At(i, j), i, j)
		}
	}

	return pe.dropout.Forward(out)
}
