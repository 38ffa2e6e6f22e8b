// Package persist is the serialisation boundary for engine state.
//
// State is stored as two named JSON documents, "content" (posts and
// battles) and "rewind" (the quota ledger). Each document is wrapped in an
// envelope carrying a format version and a SHA-256 digest so a truncated or
// hand-edited file is rejected on load instead of silently resetting state.
//
// Backends only move bytes: Memory for tests, SQLite for a single host,
// Redis and Postgres for shared deployments. None of them interpret the
// documents.
package persist
