package ingest

import (
	"context"
	"fmt"
	"os"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/logging"
)

const unknownDocID = "unknown-doc"

// ParseDocument parses one markdown document into chunks. source is recorded
// on every chunk unless the front matter declares its own.
func ParseDocument(raw string, source string) []core.Chunk {
	meta, body := SplitFrontMatter(raw)
	return BuildChunks(meta, SplitSections(body), source)
}

// BuildChunks assigns ids and metadata to sections of one document.
func BuildChunks(meta map[string]any, sections []Section, source string) []core.Chunk {
	docID := metaString(meta, "id")
	if docID == "" {
		docID = metaString(meta, "doc_id")
	}
	if docID == "" {
		docID = unknownDocID
	}
	tags := metaTags(meta)
	if s, ok := meta["source"].(string); ok {
		source = s
	}
	title, _ := meta["title"].(string)
	updatedAt := ""
	if v, ok := meta["updated_at"]; ok && v != nil {
		updatedAt = fmt.Sprint(v)
	}

	chunks := make([]core.Chunk, 0, len(sections))
	for idx, sec := range sections {
		slug := Slugify(sec.Title)
		if slug == "" {
			slug = fmt.Sprintf("section-%d", idx)
		}
		chunks = append(chunks, core.Chunk{
			DocID:     docID,
			ChunkID:   fmt.Sprintf("%s#%d", docID, idx),
			Text:      sec.Text,
			Section:   slug,
			Tags:      tags,
			Source:    source,
			UpdatedAt: updatedAt,
			Title:     title,
			Meta:      meta,
		})
	}
	return chunks
}

func metaString(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func metaTags(meta map[string]any) []string {
	list, ok := meta["tags"].([]any)
	if !ok {
		return []string{}
	}
	tags := make([]string, 0, len(list))
	for _, t := range list {
		tags = append(tags, fmt.Sprint(t))
	}
	return tags
}

// IngestFile reads and parses a single markdown file.
func IngestFile(path string) ([]core.Chunk, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseDocument(string(raw), path), nil
}

// IngestTree discovers documents with d and ingests them in path order.
// A chunk id produced twice in the same run is an error.
func IngestTree(ctx context.Context, d Discovery, logger logging.Logger) ([]core.Chunk, error) {
	logger = logging.OrNoOp(logger)

	files, err := d.Discover()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string)
	var all []core.Chunk
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks, err := IngestFile(f)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			if prev, dup := seen[c.ChunkID]; dup {
				return nil, fmt.Errorf("duplicate chunk id %q in %s (first seen in %s)", c.ChunkID, f, prev)
			}
			seen[c.ChunkID] = f
		}
		logger.Debug("ingest.file", "path", f, "chunks", len(chunks))
		all = append(all, chunks...)
	}
	logger.Info("ingest.done", "files", len(files), "chunks", len(all))
	return all, nil
}
