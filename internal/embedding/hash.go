package embedding

import (
	"context"
	"hash/fnv"
	"math/rand"
)

// HashProviderName tags vectors produced by the deterministic fallback.
// Recall treats them like any other provider: comparable only with
// vectors carrying the same tag, so a hash vector never outranks a
// real one through cosine scoring.
const HashProviderName = "hash"

// DefaultHashDims is the fallback vector dimensionality.
const DefaultHashDims = 256

// HashProvider produces a deterministic pseudo-vector derived purely
// from a hash of the input text. It cannot fail and carries no
// semantic signal; it exists to guarantee availability at the end of
// the gateway fallback chain.
type HashProvider struct {
	dims int
}

// NewHashProvider returns a deterministic fallback provider.
func NewHashProvider(dims int) *HashProvider {
	if dims <= 0 {
		dims = DefaultHashDims
	}
	return &HashProvider{dims: dims}
}

func (p *HashProvider) Embed(_ context.Context, text string) (Vector, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make(Vector, p.dims)
	for i := range vec {
		vec[i] = rng.Float32()*2 - 1
	}
	return vec, nil
}

func (p *HashProvider) Name() string { return HashProviderName }
func (p *HashProvider) Dims() int    { return p.dims }
