package transformer

import (
	"fmt"

	gtensor "github.com/pdevine/tensor"
)

// GorgoniaBackend performs matrix multiplication through the
// gorgonia-derived tensor library. It exists mostly as a second reference
// implementation for cross-checking the builtin loops and GonumBackend; the
// library also provides vectorized float64 kernels.
type GorgoniaBackend struct{}

// NewGorgoniaBackend returns a Backend backed by the tensor library.
func NewGorgoniaBackend() *GorgoniaBackend {
	return &GorgoniaBackend{}
}

// MatMul computes C = A @ B via tensor.MatMul on dense float64 tensors.
func (*GorgoniaBackend) MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		return nil, fmt.Errorf("gorgonia backend: %w: inputs must be 2D", ErrInvalidShape)
	}

	m, k := a.shape[0], a.shape[1]
	k2, n := b.shape[0], b.shape[1]
	if k != k2 {
		return nil, fmt.Errorf("gorgonia backend: %w: (%d,%d) @ (%d,%d)", ErrShapeMismatch, m, k, k2, n)
	}

	// The library may reuse backing arrays, so hand it copies.
	ta := gtensor.New(
		gtensor.WithShape(m, k),
		gtensor.WithBacking(append([]float64(nil), a.data...)),
	)
	tb := gtensor.New(
		gtensor.WithShape(k, n),
		gtensor.WithBacking(append([]float64(nil), b.data...)),
	)

	prod, err := gtensor.MatMul(ta, tb)
	if err != nil {
		return nil, fmt.Errorf("gorgonia backend: matmul: %w", err)
	}

	data, ok := prod.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("gorgonia backend: unexpected result type %T", prod.Data())
	}

	out := NewTensor(m, n)
	copy(out.data, data)
	return out, nil
}
