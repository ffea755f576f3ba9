package vectorindex

// Exact is the brute-force reference implementation.
type Exact struct {
	storage
}

var _ Index = (*Exact)(nil)

// NewExact creates an empty brute-force index.
func NewExact() *Exact { return &Exact{} }

// Impl implements Index.
func (e *Exact) Impl() string { return ImplExact }

// Add implements Index.
func (e *Exact) Add(metas []Meta, vectors [][]float32) error {
	return e.add(metas, vectors)
}

// Search implements Index.
func (e *Exact) Search(query []float32, k int) ([]Hit, error) {
	if e.Len() == 0 || k <= 0 {
		return []Hit{}, nil
	}
	if err := e.checkQuery(query); err != nil {
		return nil, err
	}
	q := Normalize(query)
	hits := make([]Hit, len(e.unit))
	for i, v := range e.unit {
		hits[i] = e.hit(i, score(q, v))
	}
	SortHits(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}
