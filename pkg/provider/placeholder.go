package provider

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
)

// Placeholder derives a stable pseudo-random vector from each text. It
// stands in for a real embedding model; identical texts map to identical vectors.
type Placeholder struct {
	dim int
}

func NewPlaceholder(dim int) *Placeholder {
	return &Placeholder{dim: dim}
}

func (p *Placeholder) Dimension() int { return p.dim }

func (p *Placeholder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.vector(text)
	}
	return vectors, nil
}

func (p *Placeholder) vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	rng := rand.New(rand.NewPCG(seed, seed>>1|1))
	vector := make([]float32, p.dim)
	for i := range vector {
		vector[i] = rng.Float32()
	}
	return vector
}
