package transformer

import "fmt"

// GenerateOptions controls autoregressive decoding.
type GenerateOptions struct {
	// StartToken seeds the target sequence (e.g. a BOS token ID).
	StartToken int

	// EndToken stops decoding when produced. Set to -1 to disable.
	EndToken int

	// MaxTokens is the maximum number of tokens to generate beyond the
	// start token.
	MaxTokens int

	// Temperature 0 means greedy decoding; otherwise logits are divided
	// by this value before sampling.
	Temperature float64

	// TopK and TopP restrict sampling to the k most likely tokens and/or
	// the smallest nucleus exceeding cumulative probability p. Zero
	// disables either.
	TopK int
	TopP float64

	// Seed makes non-greedy decoding reproducible. Nil uses global
	// randomness.
	Seed *int64
}

// GreedyDecode encodes src once and autoregressively emits the most likely
// next token until maxTokens tokens are generated, endToken appears, or
// the model's maximum sequence length is reached.
//
// Returns the generated sequence including the start token.
func (m *EncoderDecoder) GreedyDecode(src []int, startToken, endToken, maxTokens int) []int {
	out, err := m.Generate(src, GenerateOptions{
		StartToken: startToken,
		EndToken:   endToken,
		MaxTokens:  maxTokens,
	})
	if err != nil {
		// Greedy decoding has no failing transforms; an error here is a bug.
		panic(fmt.Sprintf("transformer: greedy decode: %v", err))
	}
	return out
}

// Generate encodes src once and decodes autoregressively under the given
// options. Each step re-runs the decoder over the full prefix; the forward
// graph has no incremental state.
//
// Returns the generated sequence including the start token.
func (m *EncoderDecoder) Generate(src []int, opts GenerateOptions) ([]int, error) {
	if opts.MaxTokens < 0 {
		return nil, fmt.Errorf("transformer: MaxTokens must be non-negative, got %d", opts.MaxTokens)
	}

	var sampler Sampler
	var transforms []Transform
	if opts.Temperature == 0 {
		sampler = Greedy()
	} else {
		sampler = Weighted(opts.Seed)
		transforms = append(transforms, Temperature(opts.Temperature))
	}
	if opts.TopK > 0 {
		transforms = append(transforms, TopK(opts.TopK))
	}
	if opts.TopP > 0 && opts.TopP < 1 {
		transforms = append(transforms, TopP(opts.TopP))
	}

	memory := m.Encode(src, nil)

	tokens := []int{opts.StartToken}
	vocab := m.config.TgtVocabSize

	for i := 0; i < opts.MaxTokens && len(tokens) < m.config.MaxSeqLen; i++ {
		state := m.Decode(memory, nil, tokens, SubsequentMask(len(tokens)))
		logProbs := m.generator.Forward(state)

		// Only the distribution at the last position matters.
		last := len(tokens) - 1
		rowLogits := make([]float64, vocab)
		for j := 0; j < vocab; j++ {
			rowLogits[j] = logProbs.At(last, j)
		}

		next, err := sampler.Sample(rowLogits, transforms...)
		if err != nil {
			return nil, err
		}

		tokens = append(tokens, next)
		if opts.EndToken >= 0 && next == opts.EndToken {
			break
		}
	}

	return tokens, nil
}
