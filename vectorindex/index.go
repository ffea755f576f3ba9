// Package vectorindex stores vectors with metadata and answers top-k cosine
// similarity queries.
//
// Every stored and query vector is L2-normalized before comparison and the
// score is the inner product of the unit vectors. Results are ordered by score
// descending, ties broken by ascending id. Two implementations share this
// contract and the exact scoring code, so they rank identically:
//
//   - Exact: brute force over all vectors
//   - VPTree: a vantage-point tree with triangle-inequality pruning
package vectorindex

import (
	"fmt"
	"math"
	"sort"

	"github.com/viant/vec/search"
)

const (
	// DistanceCosine is the only supported distance.
	DistanceCosine = "cosine"
	// ImplExact names the brute-force implementation.
	ImplExact = "exact"
	// ImplVPTree names the vantage-point tree implementation.
	ImplVPTree = "vptree"

	normEpsilon = 1e-12
)

// Meta identifies a stored vector and carries arbitrary attributes.
type Meta struct {
	ID    string         `json:"id"`
	Attrs map[string]any `json:"meta,omitempty"`
}

// Hit is a ranked search result.
type Hit struct {
	ID    string
	Score float64
	Meta  Meta
}

// Index is the vector index contract.
type Index interface {
	// Add appends vectors and their metadata. It rejects count mismatches,
	// empty vectors and dimension drift.
	Add(metas []Meta, vectors [][]float32) error
	// Search returns at most k hits. An empty index or k <= 0 yields no hits.
	Search(query []float32, k int) ([]Hit, error)
	// Len returns the number of stored vectors.
	Len() int
	// Dim returns the vector dimension, 0 while empty.
	Dim() int
	// Impl returns the implementation name recorded in manifests.
	Impl() string
	// Entries returns the stored metadata and the vectors as added.
	Entries() ([]Meta, [][]float32)
}

// New creates an empty index of the named implementation.
func New(impl string) (Index, error) {
	switch impl {
	case ImplExact, "":
		return NewExact(), nil
	case ImplVPTree:
		return NewVPTree(), nil
	default:
		return nil, fmt.Errorf("vectorindex: unknown implementation %q", impl)
	}
}

// Normalize returns a unit-length copy of v. The norm carries a small epsilon
// so zero vectors map to zero vectors.
func Normalize(v []float32) []float32 {
	mag := float64(search.Float32s(v).Magnitude())
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / (mag + normEpsilon))
	}
	return out
}

// score is the cosine similarity of two unit vectors, clamped to [-1, 1].
func score(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return math.Max(-1, math.Min(1, s))
}

// better reports whether hit a ranks before hit b.
func better(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

// SortHits orders hits by score descending, then id ascending.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool { return better(hits[i], hits[j]) })
}

// storage holds the vectors shared by both implementations.
type storage struct {
	dim   int
	metas []Meta
	raw   [][]float32
	unit  [][]float32
}

func (s *storage) add(metas []Meta, vectors [][]float32) error {
	if len(metas) != len(vectors) {
		return fmt.Errorf("vectorindex: %d metas for %d vectors", len(metas), len(vectors))
	}
	dim := s.dim
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("vectorindex: vector %d (%s) is empty", i, metas[i].ID)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return fmt.Errorf("vectorindex: dimension drift: vector %d (%s) has dim %d, index has %d", i, metas[i].ID, len(v), dim)
		}
	}
	s.dim = dim
	for i, v := range vectors {
		s.metas = append(s.metas, metas[i])
		s.raw = append(s.raw, append([]float32(nil), v...))
		s.unit = append(s.unit, Normalize(v))
	}
	return nil
}

func (s *storage) checkQuery(q []float32) error {
	if len(q) != s.dim {
		return fmt.Errorf("vectorindex: query dim %d != index dim %d", len(q), s.dim)
	}
	return nil
}

func (s *storage) hit(i int, sc float64) Hit {
	return Hit{ID: s.metas[i].ID, Score: sc, Meta: s.metas[i]}
}

// Len implements Index.
func (s *storage) Len() int { return len(s.metas) }

// Dim implements Index.
func (s *storage) Dim() int { return s.dim }

// Entries implements Index.
func (s *storage) Entries() ([]Meta, [][]float32) {
	return append([]Meta(nil), s.metas...), append([][]float32(nil), s.raw...)
}
