// Package embedding defines the text-to-vector backend contract and ships two
// deterministic, dependency-free backends.
//
// A Backend exposes its Identity (name, dimension, normalization policy). The
// identity is recorded in the index manifest at build time and compared at
// query time; backends themselves never check compatibility.
package embedding

import (
	"context"
	"fmt"
	"math"
)

// Identity describes the vector space a backend produces.
type Identity struct {
	Name      string `json:"name"`
	Dim       int    `json:"dim"`
	Normalize bool   `json:"normalize"`
}

func (id Identity) String() string {
	return fmt.Sprintf("%s(dim=%d, normalize=%t)", id.Name, id.Dim, id.Normalize)
}

// Backend maps texts to fixed-dimension vectors.
//
// Encode returns exactly one vector per input text, each of length
// Identity().Dim.
type Backend interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Identity() Identity
}

// EncodeOne encodes a single text.
func EncodeOne(ctx context.Context, b Backend, text string) ([]float32, error) {
	vecs, err := b.Encode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding: backend %s returned %d vectors for 1 text", b.Identity().Name, len(vecs))
	}
	return vecs[0], nil
}

// Normalize scales v in place to unit length. Zero vectors stay zero.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
