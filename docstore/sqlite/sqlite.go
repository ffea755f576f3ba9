// Package sqlite persists chunks and explicit parent records in a SQLite
// database and loads them back into a docstore.Store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/docstore"
)

//go:embed schema.sql
var schema string

// Repository stores chunks and parents in SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Repository{db: db, path: path}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// Path returns the database file path.
func (r *Repository) Path() string { return r.path }

// SaveChunks upserts chunks; position records their order for reloading.
func (r *Repository) SaveChunks(ctx context.Context, chunks []core.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var base int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM chunks`).Scan(&base); err != nil {
		return fmt.Errorf("reading position: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_id, doc_id, parent_id, position, text, section, tags, source, updated_at, title, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			doc_id = excluded.doc_id,
			parent_id = excluded.parent_id,
			text = excluded.text,
			section = excluded.section,
			tags = excluded.tags,
			source = excluded.source,
			updated_at = excluded.updated_at,
			title = excluded.title,
			meta = excluded.meta
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		tags, err := json.Marshal(nonNilTags(c.Tags))
		if err != nil {
			return fmt.Errorf("marshalling tags of %s: %w", c.ChunkID, err)
		}
		meta, err := marshalMeta(c.Meta)
		if err != nil {
			return fmt.Errorf("marshalling meta of %s: %w", c.ChunkID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ChunkID, c.DocID, c.ParentID, base+i, c.Text, c.Section,
			string(tags), c.Source, c.UpdatedAt, c.Title, meta); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ChunkID, err)
		}
	}
	return tx.Commit()
}

// SaveParents upserts explicit parent records.
func (r *Repository) SaveParents(ctx context.Context, parents []core.Doc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range parents {
		meta, err := marshalMeta(p.Meta)
		if err != nil {
			return fmt.Errorf("marshalling meta of %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO parents (id, text, meta) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET text = excluded.text, meta = excluded.meta
		`, p.ID, p.Text, meta); err != nil {
			return fmt.Errorf("saving parent %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// Chunks returns every stored chunk in insertion order.
func (r *Repository) Chunks(ctx context.Context) ([]core.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chunk_id, doc_id, parent_id, text, section, tags, source, updated_at, title, meta
		FROM chunks ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var out []core.Chunk
	for rows.Next() {
		var (
			c          core.Chunk
			tags, meta string
		)
		if err := rows.Scan(&c.ChunkID, &c.DocID, &c.ParentID, &c.Text, &c.Section, &tags,
			&c.Source, &c.UpdatedAt, &c.Title, &meta); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags of %s: %w", c.ChunkID, err)
		}
		if err := json.Unmarshal([]byte(meta), &c.Meta); err != nil {
			return nil, fmt.Errorf("decoding meta of %s: %w", c.ChunkID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Parents returns every explicit parent record ordered by id.
func (r *Repository) Parents(ctx context.Context) ([]core.Doc, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, text, meta FROM parents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying parents: %w", err)
	}
	defer rows.Close()

	var out []core.Doc
	for rows.Next() {
		var (
			d    core.Doc
			meta string
		)
		if err := rows.Scan(&d.ID, &d.Text, &meta); err != nil {
			return nil, fmt.Errorf("scanning parent: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &d.Meta); err != nil {
			return nil, fmt.Errorf("decoding meta of %s: %w", d.ID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// LoadStore reads all chunks and parents into an in-memory docstore.Store.
func (r *Repository) LoadStore(ctx context.Context) (*docstore.Store, error) {
	chunks, err := r.Chunks(ctx)
	if err != nil {
		return nil, err
	}
	parents, err := r.Parents(ctx)
	if err != nil {
		return nil, err
	}
	return docstore.New(chunks, parents...), nil
}

func nonNilTags(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}

func marshalMeta(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}
