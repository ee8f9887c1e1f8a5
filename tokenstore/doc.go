// Package tokenstore provides persistent key-value storage for the session bearer token.
//
// # Backends
//
//   - [MemoryStore]: process-local map, used in tests and for ephemeral sessions.
//   - [FileStore]: one file per key under a directory (the on-device default).
//   - [RedisStore]: shared store for several clients on one host, optional TTL.
//   - [SQLiteStore]: single embedded database file.
//
// File, Redis and SQLite values are wrapped in a small versioned binary record (see
// [EncodeRecord]) so a corrupt or foreign value is reported instead of being handed to
// the session layer as a token.
//
// # Architecture boundaries
//
// This package stores opaque strings under caller-supplied keys. It does NOT interpret
// tokens or track authentication state. Deciding what a read failure means is left to
// the session Manager, which treats every read error as "no session".
//
// # What this package must NOT do
//
//   - Import goSession, api, or profile (no upward imports).
//   - Log or swallow errors; callers decide what is fatal.
package tokenstore
