// Package store defines the persistent collections dmesh-core requires
// (spec.md §3, §4.4): own keys, contacts, outbox, inbox, seen-set,
// forwarded-set, and partial chunks. The Store interface is the
// engine-agnostic contract; two concrete implementations are provided —
// MemStore, an in-memory reference implementation for tests and small
// embeddings, and SQLiteStore, a database/sql-backed implementation over
// github.com/mattn/go-sqlite3 that gives every required secondary index a
// real B-tree and makes seen.CheckAndMark a single atomic transaction.
package store
