package transformer

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Half-precision storage for model weights. Transformer weights tolerate
// reduced precision well: float16 halves memory against float32 (a quarter
// of this package's float64 tensors) at ~3 decimal digits of precision,
// and bfloat16 trades mantissa bits for float32's full exponent range.
//
// Storage only - the forward pass converts back to float64 tensors before
// computing. IEEE 754 conversion lives in the float16/bfloat16 libraries;
// the float32 helpers below use math32 to stay in single precision where a
// caller works on converted slices directly.
// ===========================================================================

// TensorF16 stores tensor data as IEEE 754 half-precision values.
type TensorF16 struct {
	data  []float16.Float16
	shape []int
}

// NewTensorF16 creates a zeroed half-precision tensor.
func NewTensorF16(shape ...int) *TensorF16 {
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

	return &TensorF16{
		data:  make([]float16.Float16, size),
		shape: shapeCopy,
	}
}

// ToF16 converts a tensor to half precision. Values outside the float16
// range become ±Inf.
func ToF16(src *Tensor) *TensorF16 {
	out := NewTensorF16(src.shape...)
	for i, v := range src.data {
		out.data[i] = float16.Fromfloat32(float32(v))
	}
	return out
}

// Tensor converts back to a full-precision tensor.
func (t *TensorF16) Tensor() *Tensor {
	out := NewTensor(t.shape...)
	for i, v := range t.data {
		out.data[i] = float64(v.Float32())
	}
	return out
}

// Shape returns a copy of the tensor's shape.
func (t *TensorF16) Shape() []int {
	shape := make([]int, len(t.shape))
	copy(shape, t.shape)
	return shape
}

// MemoryBytes returns the storage footprint of the tensor data.
func (t *TensorF16) MemoryBytes() int {
	return 2 * len(t.data)
}

// TensorBF16 stores tensor data as bfloat16 values (encoded little-endian,
// two bytes per value).
type TensorBF16 struct {
	data  []byte
	shape []int
}

// ToBF16 converts a tensor to bfloat16. bfloat16 keeps float32's exponent
// range, so no finite float32 value overflows; precision drops to ~2-3
// decimal digits.
func ToBF16(src *Tensor) *TensorBF16 {
	f32s := make([]float32, len(src.data))
	for i, v := range src.data {
		f32s[i] = float32(v)
	}

	shapeCopy := make([]int, len(src.shape))
	copy(shapeCopy, src.shape)

	return &TensorBF16{
		data:  bfloat16.EncodeFloat32(f32s),
		shape: shapeCopy,
	}
}

// Tensor converts back to a full-precision tensor.
func (t *TensorBF16) Tensor() *Tensor {
	f32s := bfloat16.DecodeFloat32(t.data)

	out := NewTensor(t.shape...)
	for i, v := range f32s {
		out.data[i] = float64(v)
	}
	return out
}

// Shape returns a copy of the tensor's shape.
func (t *TensorBF16) Shape() []int {
	shape := make([]int, len(t.shape))
	copy(shape, t.shape)
	return shape
}

// MemoryBytes returns the storage footprint of the tensor data.
func (t *TensorBF16) MemoryBytes() int {
	return len(t.data)
}

// ===========================================================================
// float32 helpers
// ===========================================================================

// Softmax32 normalizes a float32 logit slice in place to probabilities,
// staying in single precision throughout.
func Softmax32(logits []float32) {
	if len(logits) == 0 {
		return
	}

	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	var sum float32
	for i, v := range logits {
		logits[i] = math32.Exp(v - maxVal)
		sum += logits[i]
	}

	for i := range logits {
		logits[i] /= sum
	}
}

// GELU32 applies the tanh-approximated GELU to a float32 slice in place.
func GELU32(xs []float32) {
	const (
		sqrt2OverPi float32 = 0.7978845608
		coeff       float32 = 0.044715
	)

	for i, v := range xs {
		inner := sqrt2OverPi * (v + coeff*v*v*v)
		xs[i] = 0.5 * v * (1.0 + math32.Tanh(inner))
	}
}
