package transformer

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewTensorShape(t *testing.T) {
	x := NewTensor(2, 3, 4)

	if x.Size() != 24 {
		t.Errorf("expected size 24, got %d", x.Size())
	}
	if x.Dims() != 3 {
		t.Errorf("expected 3 dims, got %d", x.Dims())
	}
	if diff := cmp.Diff([]int{2, 3, 4}, x.Shape()); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
}

func TestNewTensorPanicsOnBadShape(t *testing.T) {
	cases := []struct {
		name  string
		shape []int
	}{
		{"empty", nil},
		{"zero dim", []int{3, 0}},
		{"negative dim", []int{-1, 2}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("expected panic for shape %v", tc.shape)
				}
			}()
			NewTensor(tc.shape...)
		})
	}
}

func TestAtSetRoundTrip(t *testing.T) {
	x := NewTensor(3, 4)
	x.Set(2.5, 1, 2)

	if got := x.At(1, 2); got != 2.5 {
		t.Errorf("expected 2.5, got %f", got)
	}
	if got := x.At(2, 1); got != 0 {
		t.Errorf("expected untouched element to stay 0, got %f", got)
	}
}

func TestMatMulKnownValues(t *testing.T) {
	// [1 2]   [5 6]   [19 22]
	// [3 4] @ [7 8] = [43 50]
	a := NewTensor(2, 2)
	a.Set(1, 0, 0)
	a.Set(2, 0, 1)
	a.Set(3, 1, 0)
	a.Set(4, 1, 1)

	b := NewTensor(2, 2)
	b.Set(5, 0, 0)
	b.Set(6, 0, 1)
	b.Set(7, 1, 0)
	b.Set(8, 1, 1)

	c := MatMul(a, b)

	want := [][]float64{{19, 22}, {43, 50}}
	for i := range want {
		for j := range want[i] {
			if got := c.At(i, j); got != want[i][j] {
				t.Errorf("C[%d][%d]: expected %f, got %f", i, j, want[i][j], got)
			}
		}
	}
}

func TestMatMulPanicsOnIncompatibleShapes(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for incompatible matmul shapes")
		}
	}()
	MatMul(NewTensor(2, 3), NewTensor(4, 2))
}

func TestTransposeRoundTrip(t *testing.T) {
	x := NewTensorRand(3, 5)
	back := Transpose(Transpose(x))

	if !shapeEqual(x.Shape(), back.Shape()) {
		t.Fatalf("shape changed: %v -> %v", x.Shape(), back.Shape())
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 5; j++ {
			if x.At(i, j) != back.At(i, j) {
				t.Errorf("element (%d,%d) changed after double transpose", i, j)
			}
		}
	}
}

func TestAddShapeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic adding mismatched shapes")
		}
	}()
	Add(NewTensor(2, 3), NewTensor(3, 2))
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	x := NewTensorRand(4, 10)
	p := Softmax(x)

	for r := 0; r < 4; r++ {
		sum := 0.0
		for c := 0; c < 10; c++ {
			v := p.At(r, c)
			if v < 0 || v > 1 {
				t.Errorf("probability out of range at (%d,%d): %f", r, c, v)
			}
			sum += v
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("row %d sums to %f, expected 1", r, sum)
		}
	}
}

func TestSoftmaxStableForLargeLogits(t *testing.T) {
	x := NewTensor(1, 3)
	x.Set(1000, 0, 0)
	x.Set(1001, 0, 1)
	x.Set(999, 0, 2)

	p := Softmax(x)
	for c := 0; c < 3; c++ {
		if math.IsNaN(p.At(0, c)) || math.IsInf(p.At(0, c), 0) {
			t.Fatalf("softmax not stable: p[0][%d] = %f", c, p.At(0, c))
		}
	}
	if p.At(0, 1) <= p.At(0, 0) {
		t.Error("largest logit should have largest probability")
	}
}

func TestLogSoftmaxMatchesSoftmax(t *testing.T) {
	x := NewTensorRand(3, 7)
	p := Softmax(x)
	lp := LogSoftmax(x)

	for r := 0; r < 3; r++ {
		for c := 0; c < 7; c++ {
			if diff := math.Abs(math.Log(p.At(r, c)) - lp.At(r, c)); diff > 1e-9 {
				t.Errorf("log(softmax) vs logsoftmax differ at (%d,%d) by %g", r, c, diff)
			}
		}
	}
}

func TestReshapeSharesData(t *testing.T) {
	x := NewTensor(2, 6)
	y := x.Reshape(3, 4)

	y.Set(7.0, 0, 3)
	if got := x.At(0, 3); got != 7.0 {
		t.Errorf("reshape should share data, got %f", got)
	}
}

func TestSliceColsSetColsRoundTrip(t *testing.T) {
	x := NewTensorRand(4, 8)

	dst := NewTensor(4, 8)
	for start := 0; start < 8; start += 2 {
		SetCols(dst, SliceCols(x, start, start+2), start)
	}

	for i := 0; i < 4; i++ {
		for j := 0; j < 8; j++ {
			if x.At(i, j) != dst.At(i, j) {
				t.Fatalf("round trip lost element (%d,%d)", i, j)
			}
		}
	}
}

func TestAddBias(t *testing.T) {
	x := NewTensor(2, 3)
	bias := NewTensor(3)
	bias.data[0], bias.data[1], bias.data[2] = 1, 2, 3

	out := AddBias(x, bias)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			if got := out.At(i, j); got != float64(j+1) {
				t.Errorf("expected bias %d at (%d,%d), got %f", j+1, i, j, got)
			}
		}
	}
}

func TestGELUKnownValues(t *testing.T) {
	x := NewTensor(1, 3)
	x.Set(-10, 0, 0)
	x.Set(0, 0, 1)
	x.Set(10, 0, 2)

	out := GELU(x)

	if math.Abs(out.At(0, 0)) > 1e-3 {
		t.Errorf("GELU(-10) should be ~0, got %f", out.At(0, 0))
	}
	if out.At(0, 1) != 0 {
		t.Errorf("GELU(0) should be 0, got %f", out.At(0, 1))
	}
	if math.Abs(out.At(0, 2)-10) > 1e-3 {
		t.Errorf("GELU(10) should be ~10, got %f", out.At(0, 2))
	}
}

func TestReLU(t *testing.T) {
	x := NewTensor(1, 2)
	x.Set(-1.5, 0, 0)
	x.Set(2.5, 0, 1)

	out := ReLU(x)
	if out.At(0, 0) != 0 || out.At(0, 1) != 2.5 {
		t.Errorf("ReLU([-1.5, 2.5]) = [%f, %f]", out.At(0, 0), out.At(0, 1))
	}
}
