package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "relaybot/pkg/logx"
)

func newTestForwarder(tr *fakeTransport, sl *recordingSleeper) *Forwarder {
	return NewForwarder(tr, ForwarderOptions{
		DestinationDelay: DefaultDestinationDelay,
		FloodPadding:     DefaultFloodPadding,
	}, sl.Sleep, logx.Nop())
}

func TestForwardDeliveredPaces(t *testing.T) {
	t.Parallel()
	tr := newFakeTransport()
	sl := &recordingSleeper{}
	out := newTestForwarder(tr, sl).Forward(context.Background(), "@src", audio(1, 4000), DestinationID{ID: -1001})

	if !out.OK() || out.Attempts != 1 {
		t.Fatalf("outcome = %+v, want delivered in 1 attempt", out)
	}
	if len(sl.waits) != 1 || sl.waits[0] != 2*time.Second {
		t.Fatalf("sleeps = %v, want [2s]", sl.waits)
	}
}

func TestForwardFloodWaitRetriesOnce(t *testing.T) {
	t.Parallel()
	tr := newFakeTransport()
	tr.errs["-1001"] = []error{NewFloodWait(errors.New("FLOOD_WAIT_30"), 30*time.Second)}
	sl := &recordingSleeper{}

	out := newTestForwarder(tr, sl).Forward(context.Background(), "@src", audio(1, 4000), DestinationID{ID: -1001})
	if out.Kind != OutcomeDelivered || out.Attempts != 2 || out.Wait != 30*time.Second {
		t.Fatalf("outcome = %+v", out)
	}
	if tr.callCount() != 2 {
		t.Fatalf("forward calls = %d, want 2", tr.callCount())
	}
	// backoff, then pacing after the successful retry
	if len(sl.waits) != 2 || sl.waits[0] < 35*time.Second || sl.waits[1] != 2*time.Second {
		t.Fatalf("sleeps = %v, want [>=35s 2s]", sl.waits)
	}
}

func TestForwardFloodWaitTwiceGivesUp(t *testing.T) {
	t.Parallel()
	tr := newFakeTransport()
	tr.errs["-1001"] = []error{
		NewFloodWait(errors.New("FLOOD_WAIT_10"), 10*time.Second),
		NewFloodWait(errors.New("FLOOD_WAIT_10"), 10*time.Second),
		nil,
	}
	sl := &recordingSleeper{}

	out := newTestForwarder(tr, sl).Forward(context.Background(), "@src", audio(1, 4000), DestinationID{ID: -1001})
	if out.Kind != OutcomeRateLimited || out.Attempts != 2 || out.Err == nil {
		t.Fatalf("outcome = %+v, want rate_limited after 2 attempts", out)
	}
	if tr.callCount() != 2 {
		t.Fatalf("forward calls = %d, want exactly 2", tr.callCount())
	}
	if len(sl.waits) != 1 || sl.waits[0] != 15*time.Second {
		t.Fatalf("sleeps = %v, want one 15s backoff and no pacing", sl.waits)
	}
}

func TestForwardOtherErrorNoRetry(t *testing.T) {
	t.Parallel()
	tr := newFakeTransport()
	boom := errors.New("CHAT_WRITE_FORBIDDEN")
	tr.errs["@dst"] = []error{boom}
	sl := &recordingSleeper{}

	out := newTestForwarder(tr, sl).Forward(context.Background(), "@src", audio(1, 4000), DestinationID{Username: "dst"})
	if out.Kind != OutcomeFailed || !errors.Is(out.Err, boom) || out.Attempts != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if tr.callCount() != 1 || len(sl.waits) != 0 {
		t.Fatalf("calls=%d sleeps=%v, want 1 call and no sleep", tr.callCount(), sl.waits)
	}
}

func TestForwardCancelledDuringBackoff(t *testing.T) {
	t.Parallel()
	tr := newFakeTransport()
	tr.errs["-1001"] = []error{NewFloodWait(errors.New("FLOOD_WAIT_60"), time.Minute)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewForwarder(tr, ForwarderOptions{}, Sleep, logx.Nop()).Forward(ctx, "@src", audio(1, 4000), DestinationID{ID: -1001})
	if out.Kind != OutcomeRateLimited || !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("outcome = %+v", out)
	}
	if tr.callCount() != 1 {
		t.Fatalf("forward calls = %d, want 1", tr.callCount())
	}
}

func TestAsFloodWait(t *testing.T) {
	t.Parallel()
	wrapped := errors.Join(errors.New("ctx"), NewFloodWait(errors.New("x"), 3*time.Second))
	if d, ok := AsFloodWait(wrapped); !ok || d != 3*time.Second {
		t.Fatalf("AsFloodWait = %v %v", d, ok)
	}
	if _, ok := AsFloodWait(errors.New("plain")); ok {
		t.Fatal("plain error is not a flood wait")
	}
	if NewFloodWait(nil, time.Second) != nil {
		t.Fatal("NewFloodWait(nil) should be nil")
	}
}

func TestOutcomeKindString(t *testing.T) {
	t.Parallel()
	if OutcomeRateLimited.String() != "rate_limited" || OutcomeKind(42).String() != "unknown" {
		t.Fatal("unexpected OutcomeKind strings")
	}
}
