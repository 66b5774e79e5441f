package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"relaybot/internal/media"
)

// SourceID names a channel to read from: a handle, @username or numeric ID.
// Its trimmed string form is the checkpoint key.
type SourceID string

func (s SourceID) String() string { return string(s) }

// DestinationID names a channel to forward into. Numeric tokens are kept as
// IDs (Bot API style, e.g. -1001234567890), anything else as a username.
type DestinationID struct {
	ID       int64
	Username string
}

func (d DestinationID) String() string {
	if d.Username != "" {
		return "@" + d.Username
	}
	return strconv.FormatInt(d.ID, 10)
}

// Message is one item read from a source.
type Message struct {
	ID int64
	// ChatID is the resolved Bot API chat ID of the source (-100... for
	// channels). Zero if the iterator could not resolve it.
	ChatID int64
	File   *media.FileInfo
}

// Iterator returns up to limit messages of src with ID > minID, oldest first.
type Iterator interface {
	Messages(ctx context.Context, src SourceID, minID int64, limit int) ([]Message, error)
}

// Sender forwards msg (read from src) into dest.
// Rate-limit rejections must satisfy FloodWait.
type Sender interface {
	Forward(ctx context.Context, src SourceID, msg Message, dest DestinationID) error
}

// Sleeper suspends for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the production Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var errEmptyToken = errors.New("empty channel token")

// ParseDestination parses one destination token.
func ParseDestination(tok string) (DestinationID, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return DestinationID{}, errEmptyToken
	}
	if id, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return DestinationID{ID: id}, nil
	}
	name := strings.TrimPrefix(tok, "@")
	if name == "" || strings.ContainsAny(name, " \t") {
		return DestinationID{}, fmt.Errorf("invalid destination %q", tok)
	}
	return DestinationID{Username: name}, nil
}
