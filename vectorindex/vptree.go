package vectorindex

import (
	"math"
	"sort"
)

// pruneSlack widens pruning bounds to absorb float rounding between the
// chord distance and the score used for ranking.
const pruneSlack = 1e-6

// VPTree is a vantage-point tree over the chord distance |a-b| of unit
// vectors. Between unit vectors the chord is a metric that decreases
// monotonically with cosine similarity, so pruning never drops a hit the
// exact scan would return. Degenerate vectors (zero or near-zero norm) break
// that relation; they stay out of the tree and are scanned on every query.
// The tree is rebuilt lazily on the first Search after Add.
type VPTree struct {
	storage
	root  *vpNode
	flat  []int
	dirty bool
}

type vpNode struct {
	idx         int
	thr         float64
	left, right *vpNode
}

var _ Index = (*VPTree)(nil)

// NewVPTree creates an empty vantage-point tree index.
func NewVPTree() *VPTree { return &VPTree{} }

// Impl implements Index.
func (t *VPTree) Impl() string { return ImplVPTree }

// Add implements Index.
func (t *VPTree) Add(metas []Meta, vectors [][]float32) error {
	if err := t.add(metas, vectors); err != nil {
		return err
	}
	t.dirty = true
	return nil
}

// unitThreshold separates unit vectors from degenerate ones: Normalize maps
// any non-zero vector to norm 1 up to the epsilon.
const unitThreshold = 0.5

func isUnit(v []float32) bool {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return s >= unitThreshold*unitThreshold
}

func chord(a, b []float32) float64 {
	var s float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return math.Sqrt(s)
}

func (t *VPTree) build(idxs []int) *vpNode {
	if len(idxs) == 0 {
		return nil
	}
	// last element as vantage point keeps the build deterministic
	vp := idxs[len(idxs)-1]
	rest := idxs[:len(idxs)-1]
	if len(rest) == 0 {
		return &vpNode{idx: vp}
	}
	dists := make([]float64, len(rest))
	order := make([]int, len(rest))
	for k, j := range rest {
		dists[k] = chord(t.unit[vp], t.unit[j])
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return dists[order[a]] < dists[order[b]] })
	mid := len(order) / 2
	left := make([]int, 0, mid+1)
	right := make([]int, 0, len(order)-mid-1)
	for rank, k := range order {
		if rank <= mid {
			left = append(left, rest[k])
		} else {
			right = append(right, rest[k])
		}
	}
	return &vpNode{idx: vp, thr: dists[order[mid]], left: t.build(left), right: t.build(right)}
}

func (t *VPTree) rebuild() {
	idxs := make([]int, 0, t.Len())
	t.flat = []int{}
	for i, v := range t.unit {
		if isUnit(v) {
			idxs = append(idxs, i)
		} else {
			t.flat = append(t.flat, i)
		}
	}
	t.root = t.build(idxs)
	t.dirty = false
}

type vpCand struct {
	hit  Hit
	dist float64
}

// Search implements Index.
func (t *VPTree) Search(query []float32, k int) ([]Hit, error) {
	if t.Len() == 0 || k <= 0 {
		return []Hit{}, nil
	}
	if err := t.checkQuery(query); err != nil {
		return nil, err
	}
	if t.dirty || (t.root == nil && t.flat == nil) {
		t.rebuild()
	}

	q := Normalize(query)
	if !isUnit(q) {
		// every stored vector scores 0 against a zero query
		hits := make([]Hit, t.Len())
		for i, v := range t.unit {
			hits[i] = t.hit(i, score(q, v))
		}
		SortHits(hits)
		return hits[:min(k, len(hits))], nil
	}
	cands := make([]vpCand, 0, k+1)
	radius := func() float64 {
		if len(cands) < k {
			return math.Inf(1)
		}
		return cands[len(cands)-1].dist + pruneSlack
	}
	offer := func(c vpCand) {
		if len(cands) == k && !better(c.hit, cands[len(cands)-1].hit) {
			return
		}
		pos := sort.Search(len(cands), func(i int) bool { return better(c.hit, cands[i].hit) })
		cands = append(cands, vpCand{})
		copy(cands[pos+1:], cands[pos:])
		cands[pos] = c
		if len(cands) > k {
			cands = cands[:k]
		}
	}

	var walk func(n *vpNode)
	walk = func(n *vpNode) {
		if n == nil {
			return
		}
		d := chord(q, t.unit[n.idx])
		offer(vpCand{hit: t.hit(n.idx, score(q, t.unit[n.idx])), dist: d})
		if d < n.thr {
			if d-radius() <= n.thr {
				walk(n.left)
			}
			if d+radius() >= n.thr {
				walk(n.right)
			}
			return
		}
		if d+radius() >= n.thr {
			walk(n.right)
		}
		if d-radius() <= n.thr {
			walk(n.left)
		}
	}
	walk(t.root)
	for _, i := range t.flat {
		offer(vpCand{hit: t.hit(i, score(q, t.unit[i]))})
	}

	hits := make([]Hit, len(cands))
	for i, c := range cands {
		hits[i] = c.hit
	}
	return hits, nil
}
