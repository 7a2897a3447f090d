package vectorstore

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const localEmbedderDims = 128

// LocalEmbedder is a deterministic, dependency-free embedder: hashed
// bag-of-words folded into a fixed-size normalized vector. It gives stable
// approximate similarity for keyless deployments and tests; real semantic
// quality requires the provider embedder.
type LocalEmbedder struct{}

// NewLocalEmbedder creates the deterministic embedder.
func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{}
}

// Embed implements Embedder.
func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, localEmbedderDims)

	words := strings.Fields(strings.ToLower(text))
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum32()
		// Sign trick spreads collisions across both directions.
		idx := int(sum % localEmbedderDims)
		if (sum>>16)&1 == 1 {
			vec[idx] += 1
		} else {
			vec[idx] -= 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

// Ensure LocalEmbedder implements Embedder.
var _ Embedder = (*LocalEmbedder)(nil)
