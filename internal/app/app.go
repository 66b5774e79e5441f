package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"relaybot/internal/config"
	"relaybot/internal/relay"
	"relaybot/internal/storage"
	"relaybot/internal/transport/botapi"
	"relaybot/internal/transport/mtproto"
	logx "relaybot/pkg/logx"
)

// App wires configuration, logging, state and transports for one process.
// Runs are serialized; a config reload takes effect from the next run.
type App struct {
	log  logx.Logger
	logs *logx.Service

	mu       sync.RWMutex
	cfg      *config.Config
	bot      *botapi.Bot
	botToken string

	runMu sync.Mutex
}

func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is nil")
	}
	a := &App{cfg: cfg}

	// The App itself is the log sink's sender so a reload can swap the bot
	// underneath it.
	logs, log := logx.New(mapLogging(cfg), a)
	a.logs = logs
	a.log = log.With(logx.String("comp", "app"))

	if err := a.setBot(cfg.Telegram.BotToken); err != nil {
		_ = logs.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Reload swaps the configuration used by subsequent runs.
func (a *App) Reload(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("app: config is nil")
	}
	if err := a.setBot(cfg.Telegram.BotToken); err != nil {
		return err
	}
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	a.logs.Apply(mapLogging(cfg))
	return nil
}

func (a *App) setBot(token string) error {
	token = strings.TrimSpace(token)
	a.mu.RLock()
	same := token == a.botToken
	a.mu.RUnlock()
	if same {
		return nil
	}

	var bot *botapi.Bot
	if token != "" {
		b, err := botapi.New(botapi.Config{Token: token}, a.logs.Logger())
		if err != nil {
			return fmt.Errorf("bot api: %w", err)
		}
		bot = b
	}
	a.mu.Lock()
	a.bot, a.botToken = bot, token
	a.mu.Unlock()
	return nil
}

func (a *App) currentBot() *botapi.Bot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bot
}

// SendText implements logx.TextSender via the current bot.
func (a *App) SendText(ctx context.Context, chatID int64, text string) error {
	b := a.currentBot()
	if b == nil {
		return errors.New("no bot configured")
	}
	return b.SendText(ctx, chatID, text)
}

// RunOnce performs one relay pass over every configured source.
func (a *App) RunOnce(ctx context.Context) (relay.Report, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	cfg := a.Config()
	opt, fopt, err := mapRelay(cfg)
	if err != nil {
		return relay.Report{}, err
	}
	sc, err := mapStorage(cfg)
	if err != nil {
		return relay.Report{}, err
	}
	store, err := storage.Open(sc, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return relay.Report{}, fmt.Errorf("open state: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			a.log.Warn("state close failed", logx.Err(cerr))
		}
	}()

	client, err := mtproto.New(mapMTProto(cfg), a.log)
	if err != nil {
		return relay.Report{}, err
	}

	var sender relay.Sender
	if strings.EqualFold(cfg.Telegram.ForwardVia, config.ForwardViaBot) {
		b := a.currentBot()
		if b == nil {
			return relay.Report{}, errors.New("forward_via=bot requires BOT_TOKEN")
		}
		sender = b
	}

	a.log.Info("relay run started",
		logx.Int("sources", len(opt.Sources)),
		logx.Int("destinations", len(opt.Destinations)),
		logx.String("forward_via", cfg.Telegram.ForwardVia))

	var rep relay.Report
	err = client.Run(ctx, func(ctx context.Context, s *mtproto.Session) error {
		snd := sender
		if snd == nil {
			snd = s
		}
		log := a.log.With(logx.String("comp", "relay"))
		fwd := relay.NewForwarder(snd, fopt, relay.Sleep, log)
		var rerr error
		rep, rerr = relay.NewRunner(opt, s, fwd, store, relay.Sleep, log).Run(ctx)
		return rerr
	})
	if err != nil {
		return rep, err
	}
	a.report(ctx, cfg, rep)
	return rep, nil
}

// report logs the run summary and posts it to the report chat.
func (a *App) report(ctx context.Context, cfg *config.Config, rep relay.Report) {
	a.log.Info("relay run finished",
		logx.Int("forwarded", rep.Forwarded()),
		logx.Int("failed", rep.Failed()),
		logx.Duration("took", rep.Duration))

	if cfg.Telegram.ReportChatID == 0 || a.currentBot() == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := a.SendText(sctx, cfg.Telegram.ReportChatID, rep.Summary()); err != nil {
		a.log.Warn("report send failed", logx.Int64("chat_id", cfg.Telegram.ReportChatID), logx.Err(err))
	}
}

// Close flushes the log sinks, bounded by ctx.
func (a *App) Close(ctx context.Context) error {
	if a.logs == nil {
		return nil
	}
	cctx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
	}
	return a.logs.Close(cctx)
}
