// Package store provides SQLite-backed build history for generated programs.
//
// Two tables:
//   - programs: content-addressed listings keyed by ir.ProgramID, stored once
//   - builds: one row per generation, ordered by seq, referencing a program
//
// Build ids are UUIDv7 so they sort by creation time; ordering still uses
// seq, never ids or timestamps.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
