package transformer

import "fmt"

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file wires the building blocks into the full encoder-decoder model:
//
//	src ids -> Embeddings -> PositionalEncoding -> Encoder ─┐
//	tgt ids -> Embeddings -> PositionalEncoding -> Decoder ─┴-> Generator
//
// The encoder reads the source bidirectionally; the decoder attends to its
// own causally-masked prefix and cross-attends to the encoder output; the
// generator projects decoder state to vocabulary log-probabilities.
//
// Tensors inside the model are 2D (seqLen, features), one example at a
// time. The batch dimension lives at this API instead: ForwardBatch loops
// examples. That keeps every tensor op readable at the cost of batched
// matmul throughput, the right trade for reference code.
// ===========================================================================

// Config holds the hyperparameters of an encoder-decoder model.
type Config struct {
	SrcVocabSize int     `yaml:"src_vocab_size"` // source vocabulary size
	TgtVocabSize int     `yaml:"tgt_vocab_size"` // target vocabulary size
	DModel       int     `yaml:"d_model"`        // embedding dimension
	NumHeads     int     `yaml:"num_heads"`      // attention heads per layer
	NumLayers    int     `yaml:"num_layers"`     // layers per tower
	FFHidden     int     `yaml:"ff_hidden"`      // feed-forward hidden dimension (typically 4 * DModel)
	MaxSeqLen    int     `yaml:"max_seq_len"`    // maximum sequence length
	Dropout      float64 `yaml:"dropout"`        // dropout probability
}

// DefaultConfig returns a small configuration suitable for tests and demos.
func DefaultConfig() Config {
	return Config{
		SrcVocabSize: 1000,
		TgtVocabSize: 1000,
		DModel:       256,
		NumHeads:     4,
		NumLayers:    4,
		FFHidden:     1024,
		MaxSeqLen:    128,
		Dropout:      0.1,
	}
}

// validate panics on impossible configurations; these are programmer
// errors, not runtime conditions.
func (c Config) validate() {
	if c.SrcVocabSize <= 0 || c.TgtVocabSize <= 0 {
		panic(fmt.Sprintf("transformer: vocabulary sizes must be positive, got src=%d tgt=%d", c.SrcVocabSize, c.TgtVocabSize))
	}
	if c.DModel <= 0 || c.NumLayers <= 0 || c.FFHidden <= 0 || c.MaxSeqLen <= 0 {
		panic("transformer: model dimensions must be positive")
	}
	if c.NumHeads <= 0 || c.DModel%c.NumHeads != 0 {
		panic(fmt.Sprintf("transformer: DModel (%d) must be divisible by NumHeads (%d)", c.DModel, c.NumHeads))
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		panic("transformer: dropout must be in [0,1)")
	}
}

// Generator is the output head: a linear projection from model dimension to
// vocabulary followed by log-softmax.
type Generator struct {
	proj    *Tensor // (dModel, vocabSize)
	bias    *Tensor // (vocabSize,)
	backend Backend
}

// NewGenerator creates a generator head.
func NewGenerator(dModel, vocabSize int) *Generator {
	return &Generator{
		proj: NewTensorRand(dModel, vocabSize),
		bias: NewTensor(vocabSize),
	}
}

// Forward maps decoder state (seqLen, dModel) to log-probabilities
// (seqLen, vocabSize). Each row is a normalized log-distribution.
func (g *Generator) Forward(x *Tensor) *Tensor {
	logits := matmulVia(g.backend, x, g.proj)
	logits = AddBias(logits, g.bias)
	return LogSoftmax(logits)
}

// NumParams returns the number of learnable scalars in the module.
func (g *Generator) NumParams() int {
	return g.proj.Size() + g.bias.Size()
}

// EncoderDecoder is the full sequence-to-sequence transformer.
type EncoderDecoder struct {
	config Config

	srcEmbed *Embeddings
	tgtEmbed *Embeddings
	srcPos   *PositionalEncoding
	tgtPos   *PositionalEncoding

	encoder   *Encoder
	decoder   *Decoder
	generator *Generator
}

// NewEncoderDecoder constructs a model from the configuration.
// Panics on invalid configurations.
func NewEncoderDecoder(config Config) *EncoderDecoder {
	config.validate()

	return &EncoderDecoder{
		config:    config,
		srcEmbed:  NewEmbeddings(config.SrcVocabSize, config.DModel),
		tgtEmbed:  NewEmbeddings(config.TgtVocabSize, config.DModel),
		srcPos:    NewPositionalEncoding(config.DModel, config.MaxSeqLen, config.Dropout),
		tgtPos:    NewPositionalEncoding(config.DModel, config.MaxSeqLen, config.Dropout),
		encoder:   NewEncoder(config.NumLayers, config.DModel, config.NumHeads, config.FFHidden, config.Dropout),
		decoder:   NewDecoder(config.NumLayers, config.DModel, config.NumHeads, config.FFHidden, config.Dropout),
		generator: NewGenerator(config.DModel, config.TgtVocabSize),
	}
}

// Config returns the model configuration.
func (m *EncoderDecoder) Config() Config {
	return m.config
}

// Encoder returns the encoder tower.
func (m *EncoderDecoder) Encoder() *Encoder { return m.encoder }

// Decoder returns the decoder tower.
func (m *EncoderDecoder) Decoder() *Decoder { return m.decoder }

// Generator returns the output head.
func (m *EncoderDecoder) Generator() *Generator { return m.generator }

// Encode embeds and encodes a source sequence.
// srcMask may be nil (no padding) or (len(src), len(src)).
// Returns the encoder memory (len(src), dModel).
func (m *EncoderDecoder) Encode(src []int, srcMask *Tensor) *Tensor {
	m.checkLen(len(src))
	x := m.srcPos.Forward(m.srcEmbed.Forward(src))
	return m.encoder.Forward(x, srcMask)
}

// Decode runs the decoder over a target prefix against encoder memory.
// tgtMask is normally SubsequentMask(len(tgt)); srcMask masks padded source
// positions in cross-attention and may be nil.
// Returns decoder state (len(tgt), dModel); apply Generator for
// log-probabilities.
func (m *EncoderDecoder) Decode(memory *Tensor, srcMask *Tensor, tgt []int, tgtMask *Tensor) *Tensor {
	m.checkLen(len(tgt))
	x := m.tgtPos.Forward(m.tgtEmbed.Forward(tgt))
	return m.decoder.Forward(x, memory, srcMask, tgtMask)
}

// Forward runs the full model on one (src, tgt) pair with a causal target
// mask and no source padding mask.
// Returns log-probabilities (len(tgt), TgtVocabSize).
func (m *EncoderDecoder) Forward(src, tgt []int) *Tensor {
	memory := m.Encode(src, nil)
	state := m.Decode(memory, nil, tgt, SubsequentMask(len(tgt)))
	return m.generator.Forward(state)
}

// ForwardBatch runs Forward over a batch of (src, tgt) pairs.
// Panics if the slices differ in length.
func (m *EncoderDecoder) ForwardBatch(srcs, tgts [][]int) []*Tensor {
	if len(srcs) != len(tgts) {
		panic(fmt.Sprintf("transformer: batch size mismatch: %d sources, %d targets", len(srcs), len(tgts)))
	}

	out := make([]*Tensor, len(srcs))
	for i := range srcs {
		out[i] = m.Forward(srcs[i], tgts[i])
	}
	return out
}

func (m *EncoderDecoder) checkLen(n int) {
	if n == 0 {
		panic("transformer: empty sequence")
	}
	if n > m.config.MaxSeqLen {
		panic(fmt.Sprintf("transformer: sequence length %d exceeds maximum %d", n, m.config.MaxSeqLen))
	}
}

// SetBackend configures an accelerated matmul backend on every module.
func (m *EncoderDecoder) SetBackend(backend Backend) {
	for _, layer := range m.encoder.layers {
		layer.setBackend(backend)
	}
	for _, layer := range m.decoder.layers {
		layer.setBackend(backend)
	}
	m.generator.backend = backend
}

// SetTraining toggles dropout across the whole model. Models start in eval
// mode: dropout off, forward passes deterministic given fixed weights.
func (m *EncoderDecoder) SetTraining(training bool) {
	m.srcPos.SetTraining(training)
	m.tgtPos.SetTraining(training)
	for _, layer := range m.encoder.layers {
		layer.setTraining(training)
	}
	for _, layer := range m.decoder.layers {
		layer.setTraining(training)
	}
}

// ParamCount describes the parameter count of one model component.
type ParamCount struct {
	Component string
	Params    int
}

// ParamCounts returns a per-component parameter breakdown, ordered the way
// data flows through the model.
func (m *EncoderDecoder) ParamCounts() []ParamCount {
	counts := []ParamCount{
		{"source embeddings", m.srcEmbed.NumParams()},
		{"target embeddings", m.tgtEmbed.NumParams()},
	}

	for i, layer := range m.encoder.layers {
		counts = append(counts, ParamCount{fmt.Sprintf("encoder layer %d", i), layer.numParams()})
	}
	counts = append(counts, ParamCount{"encoder final norm", 2 * m.config.DModel})

	for i, layer := range m.decoder.layers {
		counts = append(counts, ParamCount{fmt.Sprintf("decoder layer %d", i), layer.numParams()})
	}
	counts = append(counts, ParamCount{"decoder final norm", 2 * m.config.DModel})

	counts = append(counts, ParamCount{"generator", m.generator.NumParams()})
	return counts
}

// NumParams returns the total learnable parameter count.
func (m *EncoderDecoder) NumParams() int {
	total := 0
	for _, c := range m.ParamCounts() {
		total += c.Params
	}
	return total
}
