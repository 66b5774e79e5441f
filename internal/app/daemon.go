package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"relaybot/internal/config"
	logx "relaybot/pkg/logx"
)

// cronParser accepts 5 or 6 field specs plus descriptors like "@every 15m".
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Daemon runs the relay on cfg.Schedule until ctx is done, applying config
// file changes published by m before the next run.
func (a *App) Daemon(ctx context.Context, m *config.Manager) error {
	cfg := a.Config()
	spec := strings.TrimSpace(cfg.Schedule)
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	clog := cronLogger{log: a.log.With(logx.String("comp", "cron"))}
	c := cron.New(cron.WithParser(cronParser), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
	job := cron.FuncJob(func() { a.scheduledRun(ctx) })

	id, err := c.AddJob(spec, job)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.Start()
	a.log.Info("daemon started", logx.String("schedule", spec), logx.String("config", m.Path()))

	// First pass right away; the wrapped job shares the overlap guard.
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		c.Entry(id).WrappedJob.Run()
	}()

	updates := m.Subscribe()
	go func() {
		if err := m.Watch(ctx); err != nil {
			a.log.Warn("config watcher exited", logx.Err(err))
		}
	}()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}

	for {
		select {
		case <-ctx.Done():
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			a.log.Info("daemon stopping")
			stopped := c.Stop()
			// A run in flight sees the same cancelled ctx; give it a moment.
			// cron's Stop does not track the first pass, so wait on it too.
			if !waitAll(shutdownGrace, stopped.Done(), firstDone) {
				a.log.Warn("relay run still in flight at shutdown")
			}
			return nil
		case next := <-updates:
			if err := a.Reload(next); err != nil {
				a.log.Warn("config reload not applied", logx.Err(err))
				continue
			}
			ns := strings.TrimSpace(next.Schedule)
			if ns == spec {
				continue
			}
			nid, err := c.AddJob(ns, job)
			if err != nil {
				a.log.Warn("schedule change rejected; keeping previous", logx.String("schedule", ns), logx.Err(err))
				continue
			}
			c.Remove(id)
			id, spec = nid, ns
			a.log.Info("schedule changed", logx.String("schedule", spec))
		}
	}
}

const shutdownGrace = 10 * time.Second

// waitAll reports whether every channel closed within timeout.
func waitAll(timeout time.Duration, chans ...<-chan struct{}) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for _, ch := range chans {
		select {
		case <-ch:
		case <-deadline.C:
			return false
		}
	}
	return true
}

func (a *App) scheduledRun(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := a.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Error("relay run failed", logx.Err(err))
	}
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	// cron reports every wake-up at info; keep it at debug.
	l.log.Debug(msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error(msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
