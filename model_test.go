package transformer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		SrcVocabSize: 50,
		TgtVocabSize: 60,
		DModel:       32,
		NumHeads:     4,
		NumLayers:    2,
		FFHidden:     64,
		MaxSeqLen:    16,
		Dropout:      0.1,
	}
}

func TestModelForwardShape(t *testing.T) {
	m := NewEncoderDecoder(testConfig())

	out := m.Forward([]int{1, 2, 3, 4}, []int{5, 6, 7})
	require.Equal(t, []int{3, 60}, out.Shape())
}

func TestModelOutputIsLogDistribution(t *testing.T) {
	m := NewEncoderDecoder(testConfig())
	out := m.Forward([]int{1, 2, 3}, []int{4, 5})

	for r := 0; r < 2; r++ {
		sum := 0.0
		for c := 0; c < 60; c++ {
			lp := out.At(r, c)
			require.LessOrEqual(t, lp, 0.0, "log-probability above 0 at (%d,%d)", r, c)
			sum += math.Exp(lp)
		}
		require.InDelta(t, 1.0, sum, 1e-9, "row %d does not normalize", r)
	}
}

func TestModelCausalIndependence(t *testing.T) {
	// Log-probabilities for position i must not change when a later
	// target token does.
	m := NewEncoderDecoder(testConfig())
	src := []int{1, 2, 3, 4}

	a := m.Forward(src, []int{5, 6, 7, 8})
	b := m.Forward(src, []int{5, 6, 7, 42})

	for i := 0; i < 3; i++ {
		for c := 0; c < 60; c++ {
			require.Equal(t, a.At(i, c), b.At(i, c),
				"position %d depends on a future token", i)
		}
	}
}

func TestModelDeterministicInEvalMode(t *testing.T) {
	m := NewEncoderDecoder(testConfig())
	src, tgt := []int{1, 2, 3}, []int{4, 5, 6}

	a := m.Forward(src, tgt)
	b := m.Forward(src, tgt)
	require.Equal(t, a.data, b.data)
}

func TestModelTrainingModeAddsNoise(t *testing.T) {
	m := NewEncoderDecoder(testConfig())
	m.SetTraining(true)
	src, tgt := []int{1, 2, 3}, []int{4, 5, 6}

	a := m.Forward(src, tgt)
	b := m.Forward(src, tgt)

	same := true
	for i := range a.data {
		if a.data[i] != b.data[i] {
			same = false
			break
		}
	}
	require.False(t, same, "training-mode dropout should randomize the forward pass")
}

func TestEncodeDecodeMatchesForward(t *testing.T) {
	m := NewEncoderDecoder(testConfig())
	src, tgt := []int{1, 2, 3, 4}, []int{5, 6}

	memory := m.Encode(src, nil)
	require.Equal(t, []int{4, 32}, memory.Shape())

	state := m.Decode(memory, nil, tgt, SubsequentMask(len(tgt)))
	got := m.Generator().Forward(state)

	want := m.Forward(src, tgt)
	require.Equal(t, want.data, got.data)
}

func TestForwardBatch(t *testing.T) {
	m := NewEncoderDecoder(testConfig())

	srcs := [][]int{{1, 2}, {3, 4, 5}}
	tgts := [][]int{{6}, {7, 8}}

	outs := m.ForwardBatch(srcs, tgts)
	require.Len(t, outs, 2)
	require.Equal(t, []int{1, 60}, outs[0].Shape())
	require.Equal(t, []int{2, 60}, outs[1].Shape())
}

func TestForwardBatchPanicsOnSizeMismatch(t *testing.T) {
	m := NewEncoderDecoder(testConfig())
	require.Panics(t, func() {
		m.ForwardBatch([][]int{{1}}, [][]int{{2}, {3}})
	})
}

func TestModelPanicsOnBadSequences(t *testing.T) {
	m := NewEncoderDecoder(testConfig())

	require.Panics(t, func() { m.Forward(nil, []int{1}) }, "empty source")
	require.Panics(t, func() { m.Forward([]int{1}, nil) }, "empty target")

	long := make([]int, 17) // MaxSeqLen is 16
	for i := range long {
		long[i] = 1
	}
	require.Panics(t, func() { m.Forward(long, []int{1}) }, "source too long")
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero vocab", func(c *Config) { c.SrcVocabSize = 0 }},
		{"negative d_model", func(c *Config) { c.DModel = -1 }},
		{"heads do not divide d_model", func(c *Config) { c.NumHeads = 5 }},
		{"dropout of 1", func(c *Config) { c.Dropout = 1.0 }},
		{"zero layers", func(c *Config) { c.NumLayers = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			require.Panics(t, func() { NewEncoderDecoder(cfg) })
		})
	}
}

func TestParamCountsAddUp(t *testing.T) {
	cfg := testConfig()
	m := NewEncoderDecoder(cfg)

	total := 0
	for _, c := range m.ParamCounts() {
		require.Positive(t, c.Params, "component %q has no parameters", c.Component)
		total += c.Params
	}
	require.Equal(t, m.NumParams(), total)

	// Embeddings are easy to count by hand; spot-check them.
	counts := m.ParamCounts()
	require.Equal(t, cfg.SrcVocabSize*cfg.DModel, counts[0].Params)
	require.Equal(t, cfg.TgtVocabSize*cfg.DModel, counts[1].Params)
}

func TestGeneratorShape(t *testing.T) {
	g := NewGenerator(16, 40)
	out := g.Forward(NewTensorRand(3, 16))
	require.Equal(t, []int{3, 40}, out.Shape())
}

func BenchmarkModelForward(b *testing.B) {
	m := NewEncoderDecoder(DefaultConfig())
	src := []int{1, 2, 3, 4, 5, 6, 7, 8}
	tgt := []int{9, 10, 11, 12}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Forward(src, tgt)
	}
}
