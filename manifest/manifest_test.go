package manifest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ragmesh/embedding"
)

var bow = embedding.Identity{Name: "bow", Dim: 512, Normalize: true}

func writeIndex(t *testing.T) (dir, vectors string) {
	t.Helper()
	dir = t.TempDir()
	vectors = filepath.Join(dir, "vectors.bin")
	require.NoError(t, os.WriteFile(vectors, []byte("vector-bytes"), 0o644))

	m, err := Build(bow, "cosine", "exact", 3, vectors, func(o *Options) {
		o.BuildVersion = "0.1.0"
		o.Now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	})
	require.NoError(t, err)
	_, err = Write(dir, m)
	require.NoError(t, err)
	return dir, vectors
}

func TestWriteRead(t *testing.T) {
	dir, _ := writeIndex(t)

	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	doc := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, float64(1), doc["schema_version"])
	assert.Equal(t, "2025-01-02T03:04:05Z", doc["created_at"])
	assert.Equal(t, "0.1.0", doc["fpa_version"])
	assert.Len(t, doc["vectors_sha256"], 64)

	_, err = os.Stat(filepath.Join(dir, FileName+".tmp"))
	assert.True(t, os.IsNotExist(err))

	m, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumVectors)
	assert.Equal(t, "bow", m.EmbedderName)
}

func TestAssertCompatible_OK(t *testing.T) {
	dir, _ := writeIndex(t)
	assert.NoError(t, AssertCompatible(dir, Expected{Embedder: bow, Distance: "cosine", IndexImpl: "exact"}))
}

func TestAssertCompatible_EachFieldFails(t *testing.T) {
	dir, _ := writeIndex(t)
	base := Expected{Embedder: bow, Distance: "cosine", IndexImpl: "exact"}

	cases := map[string]func(e *Expected){
		"embedder_name": func(e *Expected) { e.Embedder.Name = "hash" },
		"embedder_dim":  func(e *Expected) { e.Embedder.Dim = 64 },
		"normalize":     func(e *Expected) { e.Embedder.Normalize = false },
		"distance":      func(e *Expected) { e.Distance = "dot" },
		"index_impl":    func(e *Expected) { e.IndexImpl = "vptree" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			exp := base
			mutate(&exp)
			err := AssertCompatible(dir, exp)

			var ce *CompatibilityError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, []string{field}, ce.Fields())
			assert.Contains(t, err.Error(), field+": index=")
		})
	}
}

func TestAssertCompatible_NamesAllFields(t *testing.T) {
	dir, _ := writeIndex(t)
	err := AssertCompatible(dir, Expected{
		Embedder:  embedding.Identity{Name: "hash", Dim: 64, Normalize: true},
		Distance:  "cosine",
		IndexImpl: "vptree",
	})

	var ce *CompatibilityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"embedder_name", "embedder_dim", "index_impl"}, ce.Fields())
	assert.Contains(t, err.Error(), `embedder_name: index="bow" ≠ query="hash"`)
	assert.Contains(t, err.Error(), "embedder_dim: index=512 ≠ query=64")
}

func TestAssertCompatible_Missing(t *testing.T) {
	err := AssertCompatible(t.TempDir(), Expected{Embedder: bow, Distance: "cosine", IndexImpl: "exact"})
	var ce *CompatibilityError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, err.Error(), "missing")
	assert.Contains(t, err.Error(), "Rebuild")
}

func TestAssertCompatible_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o644))

	err := AssertCompatible(dir, Expected{Embedder: bow, Distance: "cosine", IndexImpl: "exact"})
	var ce *CompatibilityError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, err.Error(), "corrupted")
}

func TestVerifyContent(t *testing.T) {
	dir, vectors := writeIndex(t)
	require.NoError(t, VerifyContent(dir, vectors))

	require.NoError(t, os.WriteFile(vectors, []byte("tampered"), 0o644))
	assert.Error(t, VerifyContent(dir, vectors))
}

func TestRemove(t *testing.T) {
	dir, _ := writeIndex(t)
	require.NoError(t, Remove(dir))
	_, err := Read(dir)
	var ce *CompatibilityError
	require.True(t, errors.As(err, &ce))

	require.NoError(t, Remove(dir))
}

func TestBuild_MissingVectorsFile(t *testing.T) {
	m, err := Build(bow, "cosine", "exact", 0, filepath.Join(t.TempDir(), "nope.bin"))
	require.NoError(t, err)
	assert.Nil(t, m.VectorsSHA256)
	assert.NotNil(t, m.LibVersions)
}
