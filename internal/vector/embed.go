package vector

import (
	"crypto/md5"
	"strings"
)

// DefaultDims is the dimensionality of the hash embedder.
const DefaultDims = 128

// Embedder turns text into a fixed-size vector.
type Embedder interface {
	Embed(text string) []float64
	Dims() int
}

// HashEmbedder is a deterministic bag-of-words embedder: each lowercased
// token is hashed into one of dims buckets. No model, no network, and the
// same text always lands on the same vector, which is all the recall layer
// needs for nearest-neighbor lookups over a single account's history.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder. dims <= 0 selects the default.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDims
	}
	return &HashEmbedder{dims: dims}
}

// Embed maps text to a token-count vector. Empty text yields a zero vector.
func (e *HashEmbedder) Embed(text string) []float64 {
	vec := make([]float64, e.dims)
	if text == "" {
		return vec
	}
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		sum := md5.Sum([]byte(tok))
		vec[int(sum[0])%e.dims]++
	}
	return vec
}

// Dims returns the vector dimensionality.
func (e *HashEmbedder) Dims() int {
	return e.dims
}
