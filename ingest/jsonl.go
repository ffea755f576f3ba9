package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/ragmesh/core"
)

// record is the persisted chunk line. Embedding is always null; vectors live
// in the index artifact.
type record struct {
	DocID     string         `json:"doc_id"`
	ChunkID   string         `json:"chunk_id"`
	Text      string         `json:"text"`
	Section   string         `json:"section"`
	Tags      []string       `json:"tags"`
	Source    *string        `json:"source"`
	UpdatedAt *string        `json:"updated_at"`
	Title     *string        `json:"title"`
	Meta      map[string]any `json:"meta"`
	ParentID  string         `json:"parent_id,omitempty"`
	Embedding []float32      `json:"embedding"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// EncodeJSONL writes one JSON record per chunk.
func EncodeJSONL(w io.Writer, chunks []core.Chunk) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, c := range chunks {
		meta := c.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		tags := c.Tags
		if tags == nil {
			tags = []string{}
		}
		rec := record{
			DocID:     c.DocID,
			ChunkID:   c.ChunkID,
			Text:      strings.TrimSpace(c.Text),
			Section:   c.Section,
			Tags:      tags,
			Source:    optional(c.Source),
			UpdatedAt: optional(c.UpdatedAt),
			Title:     optional(c.Title),
			Meta:      meta,
			ParentID:  c.ParentID,
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding chunk %s: %w", c.ChunkID, err)
		}
	}
	return nil
}

// WriteJSONL writes chunks to path, creating parent directories.
func WriteJSONL(path string, chunks []core.Chunk) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := EncodeJSONL(w, chunks); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DecodeJSONL reads chunk records until EOF. Blank lines are skipped.
func DecodeJSONL(r io.Reader) ([]core.Chunk, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var out []core.Chunk
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, core.Chunk{
			DocID:     rec.DocID,
			ChunkID:   rec.ChunkID,
			Text:      rec.Text,
			Section:   rec.Section,
			Tags:      rec.Tags,
			Source:    deref(rec.Source),
			UpdatedAt: deref(rec.UpdatedAt),
			Title:     deref(rec.Title),
			Meta:      rec.Meta,
			ParentID:  rec.ParentID,
		})
	}
	return out, sc.Err()
}

// ReadJSONL loads chunks from path.
func ReadJSONL(path string) ([]core.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	chunks, err := DecodeJSONL(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return chunks, nil
}
