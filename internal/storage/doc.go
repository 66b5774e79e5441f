// Package storage persists relay checkpoints.
//
// It currently supports:
//   - "file": a JSON object mapping source -> last processed message ID
//   - "sqlite": the same mapping in a SQLite table
package storage
