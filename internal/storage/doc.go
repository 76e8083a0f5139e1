// Package storage keeps a history of mirror runs: counts, per-channel
// message results and the source→target id pairs each run produced.
//
// Drivers:
//   - "file": JSON Lines, one record per run
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
package storage
