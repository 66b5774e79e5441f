package relay

import (
	"context"
	"time"

	logx "relaybot/pkg/logx"
)

const (
	// DefaultDestinationDelay paces consecutive successful forwards.
	DefaultDestinationDelay = 2 * time.Second
	// DefaultFloodPadding is added on top of the server-mandated wait.
	DefaultFloodPadding = 5 * time.Second
)

// OutcomeKind tags the result of forwarding one message to one destination.
type OutcomeKind int

const (
	OutcomeDelivered OutcomeKind = iota
	// OutcomeFailed is a non rate-limit transport error; never retried.
	OutcomeFailed
	// OutcomeRateLimited means the first attempt hit a flood wait and the
	// single retry failed as well.
	OutcomeRateLimited
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeFailed:
		return "failed"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

type Outcome struct {
	Dest     DestinationID
	Kind     OutcomeKind
	Attempts int
	// Wait is the flood wait reported by the first attempt, if any.
	Wait time.Duration
	Err  error
}

func (o Outcome) OK() bool { return o.Kind == OutcomeDelivered }

type ForwarderOptions struct {
	DestinationDelay time.Duration
	FloodPadding     time.Duration
}

// Forwarder delivers one message to one destination with a single retry on
// flood wait. It never returns an error; failures are reported as Outcome.
type Forwarder struct {
	sender Sender
	sleep  Sleeper
	log    logx.Logger
	opt    ForwarderOptions
}

func NewForwarder(sender Sender, opt ForwarderOptions, sleep Sleeper, log logx.Logger) *Forwarder {
	if sleep == nil {
		sleep = Sleep
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if opt.DestinationDelay < 0 {
		opt.DestinationDelay = 0
	}
	if opt.FloodPadding < 0 {
		opt.FloodPadding = 0
	}
	return &Forwarder{sender: sender, sleep: sleep, log: log, opt: opt}
}

func (f *Forwarder) Forward(ctx context.Context, src SourceID, msg Message, dest DestinationID) Outcome {
	out := Outcome{Dest: dest, Attempts: 1}
	log := f.log.With(logx.String("source", src.String()), logx.Int64("msg_id", msg.ID), logx.String("dest", dest.String()))

	err := f.sender.Forward(ctx, src, msg, dest)
	if err != nil {
		wait, limited := AsFloodWait(err)
		if !limited {
			out.Kind = OutcomeFailed
			out.Err = err
			log.Error("forward failed", logx.Err(err))
			return out
		}

		out.Wait = wait
		pause := wait + f.opt.FloodPadding
		log.Warn("flood wait; sleeping before retry", logx.Duration("wait", wait), logx.Duration("sleep", pause))
		if serr := f.sleep(ctx, pause); serr != nil {
			out.Kind = OutcomeRateLimited
			out.Err = serr
			return out
		}

		out.Attempts++
		if err = f.sender.Forward(ctx, src, msg, dest); err != nil {
			out.Kind = OutcomeRateLimited
			out.Err = err
			log.Error("forward failed after retry", logx.Err(err))
			return out
		}
	}

	out.Kind = OutcomeDelivered
	log.Info("forwarded", logx.Int("attempts", out.Attempts))
	// Cancellation during pacing is picked up by the runner.
	_ = f.sleep(ctx, f.opt.DestinationDelay)
	return out
}
