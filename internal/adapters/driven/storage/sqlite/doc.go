// Package sqlite implements the vector and document store ports on a
// single SQLite database: embeddings live as float32 blobs ranked in
// process, and an FTS5 shadow table over chunk text serves the sparse
// leg of hybrid search.
package sqlite
