package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"relaybot/internal/media"
	"relaybot/internal/storage"
	logx "relaybot/pkg/logx"
)

const (
	DefaultBatchLimit   = 50
	DefaultMessageDelay = 10 * time.Second
	DefaultSourceDelay  = 2 * time.Second
)

// Options is the immutable relay configuration of one run.
type Options struct {
	Sources      []SourceID
	Destinations []DestinationID
	BatchLimit   int
	Filter       media.Filter
	// MessageDelay follows every forwarded (eligible) message.
	MessageDelay time.Duration
	// SourceDelay separates consecutive sources.
	SourceDelay time.Duration
}

// SourceReport summarizes one source of a run.
type SourceReport struct {
	Source     SourceID
	Start      int64 // checkpoint before the run
	Checkpoint int64 // checkpoint after the run
	Scanned    int
	Eligible   int
	Forwarded  int // successful deliveries, counted per destination
	Failed     int // failed deliveries, counted per destination
	Err        error
}

type Report struct {
	Started  time.Time
	Duration time.Duration
	Sources  []SourceReport
}

func (r Report) Forwarded() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Forwarded
	}
	return n
}

func (r Report) Failed() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Failed
	}
	return n
}

// Summary renders the report as plain text for the report chat.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "relay run: %d forwarded, %d failed (%s)", r.Forwarded(), r.Failed(), r.Duration.Round(time.Second))
	for _, s := range r.Sources {
		fmt.Fprintf(&b, "\n- %s: scanned=%d eligible=%d forwarded=%d failed=%d checkpoint=%d",
			s.Source, s.Scanned, s.Eligible, s.Forwarded, s.Failed, s.Checkpoint)
		if s.Err != nil {
			fmt.Fprintf(&b, " error=%v", s.Err)
		}
	}
	return b.String()
}

// Runner drives one pass over all sources: fetch a batch, filter, forward to
// every destination, checkpoint after each message.
type Runner struct {
	opt   Options
	iter  Iterator
	fwd   *Forwarder
	store storage.Store
	sleep Sleeper
	log   logx.Logger
	now   func() time.Time
}

func NewRunner(opt Options, iter Iterator, fwd *Forwarder, store storage.Store, sleep Sleeper, log logx.Logger) *Runner {
	if opt.BatchLimit <= 0 {
		opt.BatchLimit = DefaultBatchLimit
	}
	if sleep == nil {
		sleep = Sleep
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{opt: opt, iter: iter, fwd: fwd, store: store, sleep: sleep, log: log, now: time.Now}
}

// Run processes every source once. Per-source and per-destination failures
// are logged and reported, never returned. The error is non-nil only when
// the state cannot be loaded or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	rep := Report{Started: r.now()}
	defer func() { rep.Duration = r.now().Sub(rep.Started) }()

	progress, err := r.store.Load(ctx)
	if err != nil {
		return rep, fmt.Errorf("load state: %w", err)
	}
	r.log.Info("run started",
		logx.Int("sources", len(r.opt.Sources)),
		logx.Int("destinations", len(r.opt.Destinations)))

	for i, src := range r.opt.Sources {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		sr := r.runSource(ctx, progress, src)
		rep.Sources = append(rep.Sources, sr)

		if i < len(r.opt.Sources)-1 {
			if err := r.sleep(ctx, r.opt.SourceDelay); err != nil {
				return rep, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}
	r.log.Info("run complete", logx.Int("forwarded", rep.Forwarded()), logx.Int("failed", rep.Failed()))
	return rep, nil
}

func (r *Runner) runSource(ctx context.Context, progress storage.Progress, src SourceID) SourceReport {
	key := src.String()
	sr := SourceReport{Source: src, Start: progress.Get(key)}
	sr.Checkpoint = sr.Start
	log := r.log.With(logx.String("source", key))

	msgs, err := r.iter.Messages(ctx, src, sr.Start, r.opt.BatchLimit)
	if err != nil {
		sr.Err = err
		if !errors.Is(err, context.Canceled) {
			log.Error("source iteration failed; skipping", logx.Err(err))
		}
		return sr
	}
	log.Info("batch fetched", logx.Int("messages", len(msgs)), logx.Int64("after_id", sr.Start))

	for _, msg := range msgs {
		if msg.ID <= progress.Get(key) {
			log.Debug("message at or below checkpoint dropped", logx.Int64("msg_id", msg.ID))
			continue
		}
		if ctx.Err() != nil {
			sr.Err = ctx.Err()
			return sr
		}
		sr.Scanned++

		eligible := r.opt.Filter.Eligible(msg.File)
		if eligible {
			sr.Eligible++
			log.Info("eligible media found", logx.Int64("msg_id", msg.ID), logx.Float64("duration", *msg.File.Duration))
			for _, dest := range r.opt.Destinations {
				if ctx.Err() != nil {
					break
				}
				if r.fwd.Forward(ctx, src, msg, dest).OK() {
					sr.Forwarded++
				} else {
					sr.Failed++
				}
			}
			// Interrupted mid-delivery: leave the message for the next run.
			if ctx.Err() != nil {
				sr.Err = ctx.Err()
				return sr
			}
		}

		progress.Advance(key, msg.ID)
		if err := r.store.Save(ctx, progress); err != nil {
			sr.Err = fmt.Errorf("save checkpoint %d: %w", msg.ID, err)
			log.Error("checkpoint save failed; stopping source", logx.Err(err), logx.Int64("msg_id", msg.ID))
			return sr
		}
		sr.Checkpoint = msg.ID

		if eligible {
			if err := r.sleep(ctx, r.opt.MessageDelay); err != nil {
				sr.Err = err
				return sr
			}
		}
	}
	return sr
}
