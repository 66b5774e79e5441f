package relay

import (
	"errors"
	"fmt"
	"time"
)

// FloodWait is implemented by errors that carry a server-mandated wait
// before the same call may be repeated (MTProto FLOOD_WAIT_X, Bot API 429).
type FloodWait interface {
	error
	RetryAfter() time.Duration
}

// NewFloodWait wraps err with a required wait.
func NewFloodWait(err error, after time.Duration) error {
	if err == nil {
		return nil
	}
	if after < 0 {
		after = 0
	}
	return floodWaitError{err: err, after: after}
}

// AsFloodWait reports the mandated wait if err is a rate-limit signal.
func AsFloodWait(err error) (time.Duration, bool) {
	var fw FloodWait
	if err != nil && errors.As(err, &fw) {
		return fw.RetryAfter(), true
	}
	return 0, false
}

type floodWaitError struct {
	err   error
	after time.Duration
}

func (e floodWaitError) Error() string             { return fmt.Sprintf("flood wait %s: %v", e.after, e.err) }
func (e floodWaitError) Unwrap() error             { return e.err }
func (e floodWaitError) RetryAfter() time.Duration { return e.after }
