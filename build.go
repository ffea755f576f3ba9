package ragmesh

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hupe1980/ragmesh/config"
	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/docstore/sqlite"
	"github.com/hupe1980/ragmesh/embedding"
	"github.com/hupe1980/ragmesh/ingest"
	"github.com/hupe1980/ragmesh/manifest"
	"github.com/hupe1980/ragmesh/vectorindex"
)

// EncodeBatchSize bounds the number of texts per embedding call during Build.
const EncodeBatchSize = 64

// BuildReport summarizes a Build run.
type BuildReport struct {
	Chunks       int                `json:"chunks"`
	IndexDir     string             `json:"index_dir"`
	ManifestPath string             `json:"manifest_path"`
	Manifest     *manifest.Manifest `json:"manifest"`
	Duration     time.Duration      `json:"duration"`
}

// Ingest discovers and parses the knowledge files named by cfg and writes the
// chunk records to the configured docs stores.
func Ingest(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) ([]core.Chunk, error) {
	opts := newOptions(optFns)

	chunks, err := ingest.IngestTree(ctx, ingest.Discovery{
		Roots:   cfg.Discovery.KnowledgeRoots,
		Include: cfg.Discovery.Include,
		Exclude: cfg.Discovery.Exclude,
	}, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	if cfg.Docs.JSONL != "" {
		if err := ingest.WriteJSONL(cfg.Docs.JSONL, chunks); err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
	}
	if cfg.Docs.SQLite != "" {
		repo, err := sqlite.Open(cfg.Docs.SQLite)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		defer repo.Close()
		if err := repo.SaveChunks(ctx, chunks); err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
	}
	return chunks, nil
}

// Build runs the offline pipeline: ingest, embed, index, persist and write the
// manifest last so that a manifest always describes a complete artifact. Any
// previous manifest is removed before the vectors are replaced.
func Build(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*BuildReport, error) {
	opts := newOptions(optFns)
	start := time.Now()

	chunks, err := Ingest(ctx, cfg, optFns...)
	if err != nil {
		return nil, err
	}

	backend, err := NewBackend(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	idx, err := vectorindex.New(cfg.Index.Impl)
	if err != nil {
		return nil, err
	}
	if err := IndexChunks(ctx, backend, idx, chunks); err != nil {
		return nil, err
	}
	if err := manifest.Remove(cfg.Index.Dir); err != nil {
		return nil, err
	}
	if err := vectorindex.Save(cfg.Index.Dir, idx); err != nil {
		return nil, err
	}

	m, err := manifest.Build(backend.Identity(), cfg.Index.Distance, idx.Impl(), idx.Len(),
		filepath.Join(cfg.Index.Dir, vectorindex.VectorsFile),
		func(o *manifest.Options) {
			o.LibVersions = libVersions()
			o.BuildVersion = Version
		})
	if err != nil {
		return nil, err
	}
	path, err := manifest.Write(cfg.Index.Dir, m)
	if err != nil {
		return nil, err
	}

	report := &BuildReport{
		Chunks:       len(chunks),
		IndexDir:     cfg.Index.Dir,
		ManifestPath: path,
		Manifest:     m,
		Duration:     time.Since(start),
	}
	opts.Logger.Info("build.done",
		"chunks", report.Chunks,
		"embedder", backend.Identity().String(),
		"impl", idx.Impl(),
		"dir", report.IndexDir,
		"duration", report.Duration)
	return report, nil
}

// IndexChunks embeds chunk texts in batches and adds them to idx. Vector
// metadata carries the chunk's placement fields; texts stay in the docs store.
func IndexChunks(ctx context.Context, backend embedding.Backend, idx vectorindex.Index, chunks []core.Chunk) error {
	for start := 0; start < len(chunks); start += EncodeBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+EncodeBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		metas := make([]vectorindex.Meta, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
			attrs := map[string]any{"doc_id": c.DocID, "section": c.Section}
			if c.Title != "" {
				attrs["title"] = c.Title
			}
			if len(c.Tags) > 0 {
				attrs["tags"] = c.Tags
			}
			metas[i] = vectorindex.Meta{ID: c.ChunkID, Attrs: attrs}
		}

		vecs, err := backend.Encode(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks %d-%d: %w", start, end, err)
		}
		if err := idx.Add(metas, vecs); err != nil {
			return err
		}
	}
	return nil
}
