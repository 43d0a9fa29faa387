package transformer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func generateTestModel() *EncoderDecoder {
	return NewEncoderDecoder(Config{
		SrcVocabSize: 30,
		TgtVocabSize: 30,
		DModel:       32,
		NumHeads:     4,
		NumLayers:    2,
		FFHidden:     64,
		MaxSeqLen:    12,
		Dropout:      0.0,
	})
}

func TestGreedyDecodeDeterministic(t *testing.T) {
	m := generateTestModel()
	src := []int{1, 2, 3}

	a := m.GreedyDecode(src, 1, -1, 5)
	b := m.GreedyDecode(src, 1, -1, 5)
	require.Equal(t, a, b)
}

func TestGreedyDecodeStartsWithStartToken(t *testing.T) {
	m := generateTestModel()
	out := m.GreedyDecode([]int{1, 2}, 7, -1, 3)

	require.NotEmpty(t, out)
	require.Equal(t, 7, out[0])
}

func TestGreedyDecodeRespectsMaxTokens(t *testing.T) {
	m := generateTestModel()
	out := m.GreedyDecode([]int{1, 2}, 1, -1, 4)

	// Start token plus at most 4 generated.
	require.LessOrEqual(t, len(out), 5)
	require.GreaterOrEqual(t, len(out), 1)
}

func TestGreedyDecodeRespectsMaxSeqLen(t *testing.T) {
	m := generateTestModel() // MaxSeqLen 12

	out := m.GreedyDecode([]int{1}, 1, -1, 100)
	require.LessOrEqual(t, len(out), 12)
}

func TestGenerateTokensInVocabulary(t *testing.T) {
	m := generateTestModel()
	out, err := m.Generate([]int{1, 2, 3}, GenerateOptions{
		StartToken: 1,
		EndToken:   -1,
		MaxTokens:  6,
	})
	require.NoError(t, err)

	for _, tok := range out {
		require.GreaterOrEqual(t, tok, 0)
		require.Less(t, tok, 30)
	}
}

func TestGenerateStopsAtEndToken(t *testing.T) {
	m := generateTestModel()

	// Find what greedy decoding emits first, then rerun with that token as
	// the end token; decoding must stop right after producing it.
	probe := m.GreedyDecode([]int{1, 2}, 1, -1, 1)
	require.Len(t, probe, 2)
	end := probe[1]

	out := m.GreedyDecode([]int{1, 2}, 1, end, 10)
	require.Equal(t, []int{1, end}, out)
}

func TestGenerateSeededSamplingReproducible(t *testing.T) {
	m := generateTestModel()
	src := []int{1, 2, 3}

	run := func() []int {
		seed := int64(99)
		out, err := m.Generate(src, GenerateOptions{
			StartToken:  1,
			EndToken:    -1,
			MaxTokens:   6,
			Temperature: 0.8,
			TopK:        10,
			Seed:        &seed,
		})
		require.NoError(t, err)
		return out
	}

	require.Equal(t, run(), run())
}

func TestGenerateRejectsNegativeMaxTokens(t *testing.T) {
	m := generateTestModel()
	_, err := m.Generate([]int{1}, GenerateOptions{StartToken: 1, EndToken: -1, MaxTokens: -1})
	require.Error(t, err)
}

func TestGenerateZeroMaxTokens(t *testing.T) {
	m := generateTestModel()
	out, err := m.Generate([]int{1}, GenerateOptions{StartToken: 3, EndToken: -1})
	require.NoError(t, err)
	require.Equal(t, []int{3}, out)
}
