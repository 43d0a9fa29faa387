// Package transformer implements the canonical encoder-decoder transformer
// from "Attention Is All You Need" (Vaswani et al., 2017) as reusable
// building blocks: scaled dot-product and multi-head attention, layer
// normalization, pre-norm residual sublayers, position-wise feed-forward
// networks, sinusoidal positional encodings, and the stacked encoder and
// decoder towers that compose them.
//
// This is reference code: it prioritizes readability of the forward
// computation over throughput. Tensors are float64 and 2D (one example at a
// time); parallelism is confined to MatMul (see ComputeConfig), and faster
// matrix multiplication can be plugged in behind the Backend interface.
// There is no training loop, tokenizer, or checkpoint format here - just
// the forward graph and enough decoding machinery to run it.
//
// Typical use:
//
//	model := transformer.NewEncoderDecoder(transformer.DefaultConfig())
//	logProbs := model.Forward(srcIDs, tgtIDs)
//	out, err := model.Generate(srcIDs, transformer.GenerateOptions{
//		StartToken:  bos,
//		EndToken:    eos,
//		MaxTokens:   32,
//		Temperature: 0.8,
//		TopK:        40,
//	})
package transformer
