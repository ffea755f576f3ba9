// Package core provides the foundational domain types shared by every RAGMesh
// component. It defines:
//
//   - Chunk (the smallest addressable unit of ingested text)
//   - SearchHit / Doc (per-request retrieval results)
//   - Citation (an id reference verified against a summary string)
//   - Error (the tagged error taxonomy used across tools, guards and the loop)
//
// The package holds no behavior beyond small helpers on these types so that
// leaf packages (ingest, vectorindex, docstore, summarize) can depend on it
// without pulling in each other.
package core
