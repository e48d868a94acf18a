// Package knowledge implements the local knowledge base: a SQLite-backed
// document store with content-addressed deduplication, a text chunker, an
// in-memory exhaustive vector index, the ingestion pipeline that ties them
// together, and the retrieval orchestrator that answers semantic queries.
//
// Durability lives in the store; the index is a derived view rebuilt from
// persisted chunks at startup. All writes flow through the pipeline so the
// two stay consistent.
package knowledge
