package transformer

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements the dense tensor type everything else in this package
// is built on. A Tensor is a flat []float64 plus a shape - nothing clever,
// no views, no strides beyond row-major layout. The transformer layers in
// this package only ever need rank-1 (bias/scale vectors) and rank-2
// (seqLen × features) tensors; batching is handled one example at a time at
// the model API (see model.go).
//
// INTENTION:
// Keep the numeric substrate boring and readable so the interesting code -
// attention, residual stacking, the encoder/decoder towers - reads like the
// math it implements. Optimized execution lives behind ComputeConfig
// (compute.go) and the pluggable Backend (backend.go); this file is the
// naive, always-correct reference path.
//
// Shape errors panic rather than returning errors. In model code a shape
// mismatch is a programmer bug, not a runtime condition to recover from.
// ===========================================================================

var (
	// ErrShapeMismatch indicates incompatible tensor shapes for an operation.
	ErrShapeMismatch = errors.New("tensor: shape mismatch")

	// ErrInvalidShape indicates an invalid tensor shape.
	ErrInvalidShape = errors.New("tensor: invalid shape")
)

// Tensor is a multi-dimensional array of float64 values stored in
// row-major (C-contiguous) order.
//
// Tensor is not safe for concurrent mutation. Synchronization must be
// handled by the caller if needed.
type Tensor struct {
	data  []float64
	shape []int
}

// NewTensor creates a tensor with the given shape, initialized to zero.
// Panics if the shape is empty or contains non-positive dimensions.
func NewTensor(shape ...int) *Tensor {
	if len(shape) == 0 {
		panic("tensor: shape cannot be empty")
	}

	size := 1
	for i, dim := range shape {
		if dim <= 0 {
			panic(fmt.Sprintf("tensor: shape[%d] must be positive, got %d", i, dim))
		}
		size *= dim
	}

	shapeCopy := make([]int, len(shape))
	copy(shapeCopy, shape)

	return &Tensor{
		data:  make([]float64, size),
		shape: shapeCopy,
	}
}

// NewTensorRand creates a tensor filled with draws from a normal
// distribution with standard deviation 0.02, via the Box-Muller transform.
func NewTensorRand(shape ...int) *Tensor {
	t := NewTensor(shape...)

	for i := 0; i < len(t.data); i += 2 {
		u1, u2 := rand.Float64(), rand.Float64()
		mag := 0.02 * math.Sqrt(-2*math.Log(u1))
		t.data[i] = mag * math.Cos(2*math.Pi*u2)
		if i+1 < len(t.data) {
			t.data[i+1] = mag * math.Sin(2*math.Pi*u2)
		}
	}

	return t
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	shape := make([]int, len(t.shape))
	copy(shape, t.shape)
	return shape
}

// Dims returns the number of dimensions (rank) of the tensor.
func (t *Tensor) Dims() int {
	return len(t.shape)
}

// Size returns the total number of elements in the tensor.
func (t *Tensor) Size() int {
	return len(t.data)
}

// At returns the element at the given indices.
// Panics on invalid indices - this is a programmer error.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.flatIndex(indices)]
}

// Set sets the element at the given indices.
// Panics on invalid indices.
func (t *Tensor) Set(value float64, indices ...int) {
	t.data[t.flatIndex(indices)] = value
}

// flatIndex converts multi-dimensional indices to a flat row-major index.
func (t *Tensor) flatIndex(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: expected %d indices, got %d", len(t.shape), len(indices)))
	}

	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index[%d]=%d out of bounds [0,%d)", i, indices[i], t.shape[i]))
		}
		idx += indices[i] * stride
		stride *= t.shape[i]
	}

	return idx
}

// Clone creates a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	clone := NewTensor(t.shape...)
	copy(clone.data, t.data)
	return clone
}

// Reshape returns a view of the tensor with a different shape.
// The total number of elements must stay the same; the returned tensor
// shares the underlying data.
func (t *Tensor) Reshape(newShape ...int) *Tensor {
	newSize := 1
	for _, dim := range newShape {
		newSize *= dim
	}

	if newSize != len(t.data) {
		panic(fmt.Sprintf("tensor: cannot reshape size %d to %v (size %d)", len(t.data), newShape, newSize))
	}

	shapeCopy := make([]int, len(newShape))
	copy(shapeCopy, newShape)

	return &Tensor{
		data:  t.data,
		shape: shapeCopy,
	}
}

// String returns a short description of the tensor for debugging.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, size=%d)", t.shape, len(t.data))
}

// ===========================================================================
// OPERATIONS
// ===========================================================================

// Add performs element-wise addition: out = a + b.
// Panics if shapes don't match.
func Add(a, b *Tensor) *Tensor {
	if !shapeEqual(a.shape, b.shape) {
		panic(fmt.Sprintf("tensor: cannot add shapes %v and %v", a.shape, b.shape))
	}

	out := NewTensor(a.shape...)
	for i := range out.data {
		out.data[i] = a.data[i] + b.data[i]
	}

	return out
}

// Mul performs element-wise multiplication (Hadamard product): out = a * b.
// Panics if shapes don't match.
func Mul(a, b *Tensor) *Tensor {
	if !shapeEqual(a.shape, b.shape) {
		panic(fmt.Sprintf("tensor: cannot multiply shapes %v and %v", a.shape, b.shape))
	}

	out := NewTensor(a.shape...)
	for i := range out.data {
		out.data[i] = a.data[i] * b.data[i]
	}

	return out
}

// Scale multiplies all elements by a scalar: out = a * scalar.
func Scale(a *Tensor, scalar float64) *Tensor {
	out := NewTensor(a.shape...)
	for i := range out.data {
		out.data[i] = a.data[i] * scalar
	}
	return out
}

// MatMul performs matrix multiplication: C = A @ B.
// A must be (M, K), B must be (K, N), result is (M, N).
//
// This is the O(M*N*K) operation at the heart of the model. Execution
// respects the global compute configuration (see compute.go).
func MatMul(a, b *Tensor) *Tensor {
	return MatMulWithConfig(a, b, globalComputeConfig)
}

// Transpose returns the transpose of a 2D matrix: A (M, N) -> A^T (N, M).
func Transpose(a *Tensor) *Tensor {
	if len(a.shape) != 2 {
		panic("tensor: Transpose requires 2D tensor")
	}

	m, n := a.shape[0], a.shape[1]
	out := NewTensor(n, m)

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			out.Set(a.At(i, j), j, i)
		}
	}

	return out
}

// AddBias adds a bias vector to each row of a 2D tensor.
// x: (rows, features), bias: (features,).
func AddBias(x, bias *Tensor) *Tensor {
	if len(x.shape) != 2 {
		panic("tensor: AddBias requires 2D input")
	}
	if len(bias.shape) != 1 {
		panic("tensor: AddBias requires 1D bias")
	}
	if x.shape[1] != bias.shape[0] {
		panic(fmt.Sprintf("tensor: AddBias dimension mismatch %d vs %d", x.shape[1], bias.shape[0]))
	}

	out := x.Clone()
	rows, features := x.shape[0], x.shape[1]
	for i := 0; i < rows; i++ {
		for j := 0; j < features; j++ {
			out.data[i*features+j] += bias.data[j]
		}
	}

	return out
}

// SliceCols copies columns [start, end) of a 2D tensor into a new tensor.
// Multi-head attention uses this to split projections into heads.
func SliceCols(t *Tensor, start, end int) *Tensor {
	if len(t.shape) != 2 {
		panic("tensor: SliceCols requires 2D tensor")
	}
	if start < 0 || end > t.shape[1] || start >= end {
		panic(fmt.Sprintf("tensor: invalid column range [%d,%d) for width %d", start, end, t.shape[1]))
	}

	rows, width := t.shape[0], end-start
	out := NewTensor(rows, width)
	for i := 0; i < rows; i++ {
		copy(out.data[i*width:(i+1)*width], t.data[i*t.shape[1]+start:i*t.shape[1]+end])
	}

	return out
}

// SetCols copies src into columns [start, start+srcWidth) of dst.
// The inverse of SliceCols; both tensors must have the same row count.
func SetCols(dst, src *Tensor, start int) {
	if len(dst.shape) != 2 || len(src.shape) != 2 {
		panic("tensor: SetCols requires 2D tensors")
	}
	if dst.shape[0] != src.shape[0] {
		panic(fmt.Sprintf("tensor: SetCols row mismatch %d vs %d", dst.shape[0], src.shape[0]))
	}
	if start < 0 || start+src.shape[1] > dst.shape[1] {
		panic(fmt.Sprintf("tensor: SetCols range [%d,%d) exceeds width %d", start, start+src.shape[1], dst.shape[1]))
	}

	rows, width := src.shape[0], src.shape[1]
	for i := 0; i < rows; i++ {
		copy(dst.data[i*dst.shape[1]+start:i*dst.shape[1]+start+width], src.data[i*width:(i+1)*width])
	}
}

// ===========================================================================
// ACTIVATION FUNCTIONS
// ===========================================================================

// ReLU applies the Rectified Linear Unit: f(x) = max(0, x).
func ReLU(x *Tensor) *Tensor {
	out := NewTensor(x.shape...)
	for i := range x.data {
		out.data[i] = math.Max(0, x.data[i])
	}
	return out
}

// GELU applies the Gaussian Error Linear Unit (tanh approximation).
// Smoother than ReLU; used by GPT- and BERT-family models.
//
// GELU(x) ≈ 0.5 * x * (1 + tanh(√(2/π) * (x + 0.044715 * x³)))
func GELU(x *Tensor) *Tensor {
	out := NewTensor(x.shape...)

	const (
		sqrt2OverPi = 0.7978845608028654 // sqrt(2/π)
		coeff       = 0.044715
	)

	for i := range x.data {
		v := x.data[i]
		inner := sqrt2OverPi * (v + coeff*v*v*v)
		out.data[i] = 0.5 * v * (1.0 + math.Tanh(inner))
	}

	return out
}

// Softmax applies a row-wise softmax: p_i = exp(x_i) / Σ exp(x_j).
// Each row of the 2D input is normalized independently to sum to 1.
//
// Numerically stable version: the row max is subtracted before exp.
func Softmax(x *Tensor) *Tensor {
	if len(x.shape) != 2 {
		panic("tensor: Softmax requires 2D tensor")
	}

	rows, cols := x.shape[0], x.shape[1]
	out := NewTensor(rows, cols)

	for r := 0; r < rows; r++ {
		maxVal := x.At(r, 0)
		for c := 1; c < cols; c++ {
			if v := x.At(r, c); v > maxVal {
				maxVal = v
			}
		}

		sum := 0.0
		for c := 0; c < cols; c++ {
			expVal := math.Exp(x.At(r, c) - maxVal)
			out.Set(expVal, r, c)
			sum += expVal
		}

		for c := 0; c < cols; c++ {
			out.Set(out.At(r, c)/sum, r, c)
		}
	}

	return out
}

// LogSoftmax applies a row-wise log-softmax: log(exp(x_i) / Σ exp(x_j)).
// More stable than composing Log with Softmax.
func LogSoftmax(x *Tensor) *Tensor {
	if len(x.shape) != 2 {
		panic("tensor: LogSoftmax requires 2D tensor")
	}

	rows, cols := x.shape[0], x.shape[1]
	out := NewTensor(rows, cols)

	for r := 0; r < rows; r++ {
		maxVal := x.At(r, 0)
		for c := 1; c < cols; c++ {
			if v := x.At(r, c); v > maxVal {
				maxVal = v
			}
		}

		sum := 0.0
		for c := 0; c < cols; c++ {
			sum += math.Exp(x.At(r, c) - maxVal)
		}
		logSum := math.Log(sum)

		for c := 0; c < cols; c++ {
			out.Set(x.At(r, c)-maxVal-logSum, r, c)
		}
	}

	return out
}

// ===========================================================================
// HELPERS
// ===========================================================================

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
