// Package ingest turns markdown knowledge documents into addressable chunks.
//
// A document may start with a YAML front-matter block delimited by "---"
// lines. The body is split on level 1 and 2 ATX headings; each non-empty
// section becomes one core.Chunk whose id is "<doc_id>#<index>". Front-matter
// metadata is copied onto every chunk of the document.
//
// IngestTree discovers documents below a set of knowledge roots using
// include/exclude glob patterns and guarantees chunk id uniqueness per run.
// WriteJSONL and ReadJSONL persist chunks as line-delimited JSON records.
package ingest
