package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"strconv"
)

const (
	// HashName identifies the Hash backend in manifests.
	HashName = "hash"
	// DefaultHashDim is the Hash backend's default dimension.
	DefaultHashDim = 64
	// DefaultHashSeed is the Hash backend's default global seed.
	DefaultHashSeed = 42

	seedModulus = 1<<31 - 1
)

// Hash is a deterministic pseudo-random backend. Every text seeds its own
// generator from sha256(text + seed), so equal text under equal settings
// yields bit-identical vectors across calls and processes. Vectors carry no
// semantic similarity; use it for tests and plumbing.
type Hash struct {
	dim       int
	seed      int64
	normalize bool
}

// NewHash creates a Hash backend. Non-positive dim falls back to DefaultHashDim.
func NewHash(dim int, seed int64, normalize bool) *Hash {
	if dim <= 0 {
		dim = DefaultHashDim
	}
	return &Hash{dim: dim, seed: seed, normalize: normalize}
}

// Identity implements Backend.
func (h *Hash) Identity() Identity {
	return Identity{Name: HashName, Dim: h.dim, Normalize: h.normalize}
}

// Encode implements Backend.
func (h *Hash) Encode(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *Hash) vector(text string) []float32 {
	sum := sha256.Sum256([]byte(text + strconv.FormatInt(h.seed, 10)))
	seed := binary.LittleEndian.Uint64(sum[:8]) % seedModulus
	rng := rand.New(rand.NewSource(int64(seed)))

	v := make([]float32, h.dim)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	if h.normalize {
		Normalize(v)
	}
	return v
}
