package vectorindex

import (
	"encoding/binary"
	"math"
	"math/rand"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metas(ids ...string) []Meta {
	out := make([]Meta, len(ids))
	for i, id := range ids {
		out[i] = Meta{ID: id}
	}
	return out
}

func ids(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func randomVectors(r *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(r.NormFloat64())
		}
		out[i] = v
	}
	return out
}

func implementations() map[string]func() Index {
	return map[string]func() Index{
		ImplExact:  func() Index { return NewExact() },
		ImplVPTree: func() Index { return NewVPTree() },
	}
}

// ---- Contract Tests ----

func TestIndex_OrderAndTies(t *testing.T) {
	for name, mk := range implementations() {
		t.Run(name, func(t *testing.T) {
			idx := mk()
			require.NoError(t, idx.Add(
				metas("b", "a", "c", "d"),
				[][]float32{{1, 0}, {2, 0}, {0, 1}, {-1, 0}},
			))

			hits, err := idx.Search([]float32{3, 0}, 10)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c", "d"}, ids(hits))
			assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
			assert.InDelta(t, 0.0, hits[2].Score, 1e-6)
			assert.InDelta(t, -1.0, hits[3].Score, 1e-6)

			top, err := idx.Search([]float32{3, 0}, 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"a"}, ids(top))
		})
	}
}

func TestIndex_EmptyAndZeroK(t *testing.T) {
	for name, mk := range implementations() {
		t.Run(name, func(t *testing.T) {
			idx := mk()
			hits, err := idx.Search([]float32{1, 2, 3}, 5)
			require.NoError(t, err)
			assert.Empty(t, hits)

			require.NoError(t, idx.Add(metas("x"), [][]float32{{1, 2, 3}}))
			hits, err = idx.Search([]float32{1, 2, 3}, 0)
			require.NoError(t, err)
			assert.Empty(t, hits)
		})
	}
}

func TestIndex_AddValidation(t *testing.T) {
	for name, mk := range implementations() {
		t.Run(name, func(t *testing.T) {
			idx := mk()
			assert.Error(t, idx.Add(metas("a", "b"), [][]float32{{1, 2}}))
			assert.Error(t, idx.Add(metas("a"), [][]float32{{}}))
			assert.Error(t, idx.Add(metas("a", "b"), [][]float32{{1, 2}, {1, 2, 3}}))

			require.NoError(t, idx.Add(metas("a"), [][]float32{{1, 2}}))
			err := idx.Add(metas("b"), [][]float32{{1, 2, 3}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "dimension drift")
			assert.Equal(t, 1, idx.Len())

			_, err = idx.Search([]float32{1}, 1)
			assert.Error(t, err)
		})
	}
}

func TestIndex_ZeroVectorScoresZero(t *testing.T) {
	idx := NewExact()
	require.NoError(t, idx.Add(metas("z", "a"), [][]float32{{0, 0}, {1, 1}}))
	hits, err := idx.Search([]float32{0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "z"}, ids(hits))
	assert.Equal(t, 0.0, hits[0].Score)
}

func TestVPTree_MatchesExact(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	const n, dim = 300, 16
	vecs := randomVectors(r, n, dim)
	// duplicates force exact score ties
	vecs = append(vecs, vecs[3], vecs[3], vecs[10])
	ms := make([]Meta, len(vecs))
	for i := range ms {
		ms[i] = Meta{ID: "v" + strconv.Itoa(len(vecs)-i)}
	}

	exact, tree := NewExact(), NewVPTree()
	require.NoError(t, exact.Add(ms, vecs))
	require.NoError(t, tree.Add(ms, vecs))

	queries := append(randomVectors(r, 40, dim), vecs[3], vecs[10])
	for _, k := range []int{1, 3, 10, 50, len(vecs) + 5} {
		for qi, q := range queries {
			want, err := exact.Search(q, k)
			require.NoError(t, err)
			got, err := tree.Search(q, k)
			require.NoError(t, err)
			require.Equal(t, want, got, "k=%d query=%d", k, qi)
		}
	}
}

func TestVPTree_ZeroVectorsMatchExact(t *testing.T) {
	deg := func(d float64) []float32 {
		rad := d * math.Pi / 180
		return []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
	}
	ms := metas("a", "b", "c", "z1", "z2", "p")
	vecs := [][]float32{deg(80), deg(161), deg(161), {0, 0}, {0, 0}, deg(120)}

	exact, tree := NewExact(), NewVPTree()
	require.NoError(t, exact.Add(ms, vecs))
	require.NoError(t, tree.Add(ms, vecs))

	for k := 1; k <= len(vecs); k++ {
		for _, q := range [][]float32{{1, 0}, {-1, 0}, {0, 1}, {0, 0}} {
			want, err := exact.Search(q, k)
			require.NoError(t, err)
			got, err := tree.Search(q, k)
			require.NoError(t, err)
			require.Equal(t, want, got, "k=%d query=%v", k, q)
		}
	}

	hits, err := tree.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "z1"}, ids(hits))
}

func TestVPTree_SparseVectorsMatchExact(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	const n, dim = 200, 8
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		switch i % 5 {
		case 0:
			// zero vector, as produced for chunks without tokens
		case 1:
			v[r.Intn(dim)] = 1e-20
		default:
			for j := range v {
				if r.Intn(3) == 0 {
					v[j] = float32(r.Intn(3))
				}
			}
		}
		vecs[i] = v
	}
	ms := make([]Meta, n)
	for i := range ms {
		ms[i] = Meta{ID: "s" + strconv.Itoa(i)}
	}

	exact, tree := NewExact(), NewVPTree()
	require.NoError(t, exact.Add(ms, vecs))
	require.NoError(t, tree.Add(ms, vecs))

	for qi, q := range append(randomVectors(r, 30, dim), vecs[2], vecs[3]) {
		for _, k := range []int{1, 5, 40, n} {
			want, err := exact.Search(q, k)
			require.NoError(t, err)
			got, err := tree.Search(q, k)
			require.NoError(t, err)
			require.Equal(t, want, got, "k=%d query=%d", k, qi)
		}
	}
}

func TestVPTree_RebuildsAfterAdd(t *testing.T) {
	tree := NewVPTree()
	require.NoError(t, tree.Add(metas("a"), [][]float32{{1, 0}}))
	_, err := tree.Search([]float32{1, 0}, 1)
	require.NoError(t, err)

	require.NoError(t, tree.Add(metas("b"), [][]float32{{0, 1}}))
	hits, err := tree.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(hits))
}

func TestNew(t *testing.T) {
	idx, err := New(ImplVPTree)
	require.NoError(t, err)
	assert.Equal(t, ImplVPTree, idx.Impl())

	_, err = New("faiss")
	assert.Error(t, err)
}

// ---- Persistence Tests ----

func TestSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	idx := NewExact()
	require.NoError(t, idx.Add(
		[]Meta{{ID: "doc:a#0", Attrs: map[string]any{"section": "summary"}}, {ID: "doc:b#0"}},
		[][]float32{{1, 2, 3}, {3, 2, 1}},
	))
	require.NoError(t, Save(dir, idx))

	loaded, err := Load(dir, ImplVPTree)
	require.NoError(t, err)
	assert.Equal(t, ImplVPTree, loaded.Impl())
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, 3, loaded.Dim())

	want, _ := idx.Search([]float32{1, 2, 3}, 2)
	got, err := loaded.Search([]float32{1, 2, 3}, 2)
	require.NoError(t, err)
	assert.Equal(t, ids(want), ids(got))
	assert.Equal(t, "summary", got[0].Meta.Attrs["section"])
}

func TestUnmarshalVectors_HeaderCountExceedsData(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:], 4)
	binary.LittleEndian.PutUint32(data[4:], math.MaxUint32)

	_, _, err := UnmarshalVectors(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header claims")
}

func TestUnmarshalVectors_Truncated(t *testing.T) {
	data, err := MarshalVectors(metas("a"), [][]float32{{1, 2}})
	require.NoError(t, err)

	_, _, err = UnmarshalVectors(data[:len(data)-2])
	assert.Error(t, err)
	_, _, err = UnmarshalVectors(append(data, 0))
	assert.Error(t, err)

	gotIDs, vecs, err := UnmarshalVectors(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, gotIDs)
	assert.Equal(t, [][]float32{{1, 2}}, vecs)
}
