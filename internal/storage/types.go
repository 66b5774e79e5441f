package storage

import (
	"context"
	"errors"
	"maps"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file" (default): JSON file at Path
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Progress maps a source's string form to its last processed message ID.
type Progress map[string]int64

// Get returns the checkpoint for source, 0 when absent.
func (p Progress) Get(source string) int64 { return p[source] }

// Advance records id for source if it moves the checkpoint forward.
// It reports whether the mapping changed.
func (p Progress) Advance(source string, id int64) bool {
	if cur, ok := p[source]; ok && cur >= id {
		return false
	}
	p[source] = id
	return true
}

func (p Progress) Clone() Progress {
	out := make(Progress, len(p))
	maps.Copy(out, p)
	return out
}

// Store loads and saves the full checkpoint mapping.
//
// Load returns an empty Progress when no state exists yet or the stored
// representation is corrupt, so every source starts from zero. I/O failures
// (permissions, a directory in place of the file, a busy database) are
// returned: a caller that proceeded on an empty map would forward again
// everything it already delivered.
type Store interface {
	Load(ctx context.Context) (Progress, error)
	Save(ctx context.Context, p Progress) error
	Close() error
}
