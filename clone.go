package transformer

import "fmt"

// CloneLayers builds n independently initialized copies of a sub-module by
// invoking its constructor once per copy.
//
// Encoder and decoder stacks are "clones" of one layer in the sense that
// every layer has the same architecture, but each must own its own freshly
// initialized parameters. Re-running the constructor is the Go rendering of
// that: there is no parameter sharing between the returned layers.
func CloneLayers[T any](n int, newLayer func() T) []T {
	if n <= 0 {
		panic(fmt.Sprintf("transformer: layer count must be positive, got %d", n))
	}

	layers := make([]T, n)
	for i := range layers {
		layers[i] = newLayer()
	}
	return layers
}
