// Package manifest records the embedder and index identity an index artifact
// was built with and refuses query-time configurations that differ.
//
// The manifest is a small JSON document written atomically next to the vector
// file. AssertCompatible must run before every query against a persisted
// index; it is the only guard against serving vectors from the wrong
// embedding space.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/ragmesh/embedding"
)

const (
	// SchemaVersion is the manifest layout version.
	SchemaVersion = 1
	// FileName is the manifest's name inside the index directory.
	FileName = "manifest.json"
)

// Manifest describes a built index artifact.
type Manifest struct {
	SchemaVersion int               `json:"schema_version"`
	CreatedAt     string            `json:"created_at"`
	EmbedderName  string            `json:"embedder_name"`
	EmbedderDim   int               `json:"embedder_dim"`
	Normalize     bool              `json:"normalize"`
	Distance      string            `json:"distance"`
	IndexImpl     string            `json:"index_impl"`
	NumVectors    int               `json:"num_vectors"`
	VectorsSHA256 *string           `json:"vectors_sha256"`
	LibVersions   map[string]string `json:"lib_versions"`
	BuildVersion  *string           `json:"fpa_version"`
}

// Expected is the query-time configuration checked against a manifest.
type Expected struct {
	Embedder  embedding.Identity
	Distance  string
	IndexImpl string
}

// Mismatch is one differing field.
type Mismatch struct {
	Field string
	Index any
	Query any
}

// CompatibilityError reports a missing, unreadable or mismatching manifest.
// The index must be rebuilt; the error is never resolved automatically.
type CompatibilityError struct {
	Reason     string
	Mismatches []Mismatch
	Err        error
}

func (e *CompatibilityError) Error() string {
	if len(e.Mismatches) == 0 {
		return e.Reason
	}
	parts := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		parts[i] = fmt.Sprintf("%s: index=%v ≠ query=%v", m.Field, format(m.Index), format(m.Query))
	}
	return fmt.Sprintf("incompatible index and query settings: %s; rebuild the index to align settings", strings.Join(parts, "; "))
}

func (e *CompatibilityError) Unwrap() error { return e.Err }

// Fields returns the names of the differing fields.
func (e *CompatibilityError) Fields() []string {
	out := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		out[i] = m.Field
	}
	return out
}

func format(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}

// Options carry the optional manifest fields.
type Options struct {
	LibVersions  map[string]string
	BuildVersion string
	// Now overrides the creation clock.
	Now func() time.Time
}

// Build assembles a manifest for an artifact whose vector file is vectorsPath.
// A missing vector file leaves VectorsSHA256 null.
func Build(id embedding.Identity, distance, impl string, numVectors int, vectorsPath string, optFns ...func(o *Options)) (*Manifest, error) {
	opts := Options{LibVersions: map[string]string{}, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	sum, err := fileSHA256(vectorsPath)
	if err != nil {
		return nil, err
	}
	m := &Manifest{
		SchemaVersion: SchemaVersion,
		CreatedAt:     opts.Now().UTC().Format("2006-01-02T15:04:05Z"),
		EmbedderName:  id.Name,
		EmbedderDim:   id.Dim,
		Normalize:     id.Normalize,
		Distance:      distance,
		IndexImpl:     impl,
		NumVectors:    numVectors,
		VectorsSHA256: sum,
		LibVersions:   opts.LibVersions,
	}
	if opts.BuildVersion != "" {
		v := opts.BuildVersion
		m.BuildVersion = &v
	}
	return m, nil
}

func fileSHA256(path string) (*string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("manifest: hashing %s: %w", path, err)
	}
	s := hex.EncodeToString(h.Sum(nil))
	return &s, nil
}

// Write persists m as dir/manifest.json via a temp file and rename.
func Write(dir string, m *Manifest) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("manifest: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("manifest: %w", err)
	}
	final := filepath.Join(dir, FileName)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("manifest: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("manifest: %w", err)
	}
	return final, nil
}

// Remove deletes dir/manifest.json so that a half-written rebuild is never
// paired with the previous manifest. A missing manifest is not an error.
func Remove(dir string) error {
	err := os.Remove(filepath.Join(dir, FileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("manifest: %w", err)
	}
	return nil
}

// Read loads dir/manifest.json. A missing or unreadable manifest is a
// *CompatibilityError asking for a rebuild.
func Read(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &CompatibilityError{
			Reason: "index manifest is missing; this index likely predates manifest support. Rebuild the index (ingest+embed+index) to proceed",
			Err:    err,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &CompatibilityError{
			Reason: fmt.Sprintf("index manifest is corrupted or unreadable: %v. Rebuild the index", err),
			Err:    err,
		}
	}
	return &m, nil
}

// Compare returns every tracked field where m differs from exp.
func Compare(m *Manifest, exp Expected) []Mismatch {
	var out []Mismatch
	check := func(field string, got, want any) {
		if got != want {
			out = append(out, Mismatch{Field: field, Index: got, Query: want})
		}
	}
	check("embedder_name", m.EmbedderName, exp.Embedder.Name)
	check("embedder_dim", m.EmbedderDim, exp.Embedder.Dim)
	check("normalize", m.Normalize, exp.Embedder.Normalize)
	check("distance", m.Distance, exp.Distance)
	check("index_impl", m.IndexImpl, exp.IndexImpl)
	return out
}

// AssertCompatible loads the manifest in dir and fails with a single
// *CompatibilityError naming every differing field.
func AssertCompatible(dir string, exp Expected) error {
	m, err := Read(dir)
	if err != nil {
		return err
	}
	if mm := Compare(m, exp); len(mm) > 0 {
		return &CompatibilityError{Mismatches: mm}
	}
	return nil
}

// VerifyContent recomputes the hash of the vector file and compares it with
// the recorded one. Manifests without a recorded hash pass.
func VerifyContent(dir, vectorsPath string) error {
	m, err := Read(dir)
	if err != nil {
		return err
	}
	if m.VectorsSHA256 == nil {
		return nil
	}
	sum, err := fileSHA256(vectorsPath)
	if err != nil {
		return err
	}
	if sum == nil || *sum != *m.VectorsSHA256 {
		return &CompatibilityError{
			Reason: fmt.Sprintf("vector file %s does not match the manifest hash; rebuild the index", vectorsPath),
		}
	}
	return nil
}
