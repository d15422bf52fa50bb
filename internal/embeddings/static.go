package embeddings

import (
	"context"
	"hash/fnv"
	"math"
)

const defaultStaticDims = 4

// StaticProvider derives deterministic unit vectors from a hash of each input.
// Equal inputs always embed to the same vector. Useful for tests and offline runs.
type StaticProvider struct {
	N int
}

func (s *StaticProvider) Name() string { return "static" }

func (s *StaticProvider) Dimensions() int {
	if s.N <= 0 {
		return defaultStaticDims
	}
	return s.N
}

func (s *StaticProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dims := s.Dimensions()
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		out[i] = staticVector(in, dims)
	}
	return out, nil
}

func staticVector(input string, dims int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(input))
	state := h.Sum64()
	v := make([]float32, dims)
	var norm float64
	for d := range v {
		// xorshift64
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		x := float64(state%2000)/1000 - 1
		v[d] = float32(x)
		norm += x * x
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	norm = math.Sqrt(norm)
	for d := range v {
		v[d] = float32(float64(v[d]) / norm)
	}
	return v
}
