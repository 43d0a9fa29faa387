package transformer

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Matrix multiplication dominates the forward pass, so it is the one
// operation worth making pluggable. A Backend supplies an alternative
// MatMul; everything else in the package stays on the plain loops in
// tensor.go and compute.go.
//
// Two backends ship with the package:
//   - GonumBackend (backend_gonum.go): gonum/mat dense multiplication
//   - GorgoniaBackend (backend_tensor.go): the gorgonia-derived tensor
//     library's MatMul
//
// Model modules hold an optional Backend and fall back to the naive path if
// it is nil or returns an error, so a backend can never make the forward
// pass incorrect - only faster.
// ===========================================================================

// Backend supplies an accelerated matrix multiplication.
// Implementations must leave their inputs unchanged.
type Backend interface {
	MatMul(a, b *Tensor) (*Tensor, error)
}

// matmulVia multiplies through the backend when one is set, falling back to
// the builtin MatMul on nil backend or backend error.
func matmulVia(backend Backend, a, b *Tensor) *Tensor {
	if backend != nil {
		if out, err := backend.MatMul(a, b); err == nil {
			return out
		}
	}
	return MatMul(a, b)
}
