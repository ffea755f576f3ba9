package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

const (
	// BagOfWordsName identifies the BagOfWords backend in manifests.
	BagOfWordsName = "bow"
	// DefaultBagOfWordsDim is the BagOfWords backend's default dimension.
	DefaultBagOfWordsDim = 512
)

// BagOfWords is a deterministic feature-hashing backend: each lowercase
// alphanumeric token increments the bucket FNV-1a(token) mod dim. Texts that
// share tokens get positive cosine similarity, which makes local indexes
// usable without a model.
type BagOfWords struct {
	dim       int
	normalize bool
}

// NewBagOfWords creates a BagOfWords backend. Non-positive dim falls back to
// DefaultBagOfWordsDim.
func NewBagOfWords(dim int, normalize bool) *BagOfWords {
	if dim <= 0 {
		dim = DefaultBagOfWordsDim
	}
	return &BagOfWords{dim: dim, normalize: normalize}
}

// Identity implements Backend.
func (b *BagOfWords) Identity() Identity {
	return Identity{Name: BagOfWordsName, Dim: b.dim, Normalize: b.normalize}
}

// Encode implements Backend.
func (b *BagOfWords) Encode(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, b.dim)
		for _, tok := range Tokenize(t) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(tok))
			v[h.Sum32()%uint32(b.dim)]++
		}
		if b.normalize {
			Normalize(v)
		}
		out[i] = v
	}
	return out, nil
}

// Tokenize lowercases s and splits it on every rune that is not a letter or digit.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
