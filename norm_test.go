package transformer

import (
	"math"
	"testing"
)

func TestLayerNormNormalizesRows(t *testing.T) {
	ln := NewLayerNorm(64)
	x := Scale(NewTensorRand(10, 64), 100)

	out := ln.Forward(x)

	if !shapeEqual(out.Shape(), x.Shape()) {
		t.Fatalf("shape changed: %v -> %v", x.Shape(), out.Shape())
	}

	// With gamma=1 and beta=0 every row should come out with
	// mean ~0 and variance ~1.
	for r := 0; r < 10; r++ {
		mean := 0.0
		for c := 0; c < 64; c++ {
			mean += out.At(r, c)
		}
		mean /= 64

		variance := 0.0
		for c := 0; c < 64; c++ {
			d := out.At(r, c) - mean
			variance += d * d
		}
		variance /= 64

		if math.Abs(mean) > 1e-9 {
			t.Errorf("row %d: mean %g, expected ~0", r, mean)
		}
		if math.Abs(variance-1.0) > 1e-3 {
			t.Errorf("row %d: variance %f, expected ~1", r, variance)
		}
	}
}

func TestLayerNormGammaBetaApplied(t *testing.T) {
	ln := NewLayerNorm(4)
	gamma, beta := ln.Parameters()
	for i := 0; i < 4; i++ {
		gamma.Set(2.0, i)
		beta.Set(3.0, i)
	}

	x := NewTensorRand(2, 4)
	out := ln.Forward(x)

	plain := NewLayerNorm(4).Forward(x)
	for i := 0; i < 2; i++ {
		for j := 0; j < 4; j++ {
			want := 2.0*plain.At(i, j) + 3.0
			if math.Abs(out.At(i, j)-want) > 1e-9 {
				t.Errorf("(%d,%d): expected %f, got %f", i, j, want, out.At(i, j))
			}
		}
	}
}

func TestLayerNormConstantRow(t *testing.T) {
	// A constant row has zero variance; epsilon keeps the division finite.
	ln := NewLayerNorm(8)
	x := NewTensor(1, 8)
	for c := 0; c < 8; c++ {
		x.Set(5.0, 0, c)
	}

	out := ln.Forward(x)
	for c := 0; c < 8; c++ {
		v := out.At(0, c)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("constant row produced %f at col %d", v, c)
		}
		if math.Abs(v) > 1e-6 {
			t.Errorf("constant row should normalize to ~0, got %f at col %d", v, c)
		}
	}
}

func TestLayerNormPanicsOnWrongWidth(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for mismatched feature width")
		}
	}()
	NewLayerNorm(8).Forward(NewTensorRand(2, 16))
}
