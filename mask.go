package transformer

// Attention masks use 1 for "may attend" and 0 for "blocked". Masked scores
// are forced to -1e9 before the softmax (see ScaledDotProductAttention), so
// blocked positions receive effectively zero attention weight.

// SubsequentMask returns the (n, n) causal mask: position i may attend to
// positions j <= i only. Used for decoder self-attention so that generation
// cannot peek at future tokens.
//
//	[[1 0 0]
//	 [1 1 0]
//	 [1 1 1]]
func SubsequentMask(n int) *Tensor {
	mask := NewTensor(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			mask.Set(1.0, i, j)
		}
	}
	return mask
}

// PaddingMask returns an (n, m) mask over key positions: column j is blocked
// for every query when keyIDs[j] is the padding token. Queries are n rows of
// whatever sequence attends to the keys.
func PaddingMask(n int, keyIDs []int, padID int) *Tensor {
	m := len(keyIDs)
	mask := NewTensor(n, m)
	for j, id := range keyIDs {
		if id == padID {
			continue
		}
		for i := 0; i < n; i++ {
			mask.Set(1.0, i, j)
		}
	}
	return mask
}

// CombineMasks intersects two masks of the same shape: a position is
// attendable only if both masks allow it. Use to combine the causal mask
// with a padding mask for decoder self-attention.
func CombineMasks(a, b *Tensor) *Tensor {
	return Mul(a, b)
}
