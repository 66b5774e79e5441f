// Package mtproto talks to Telegram as a user account via gotd/td.
//
// It provides the history iterator (bots cannot read channel history) and a
// forwarder acting as that user.
package mtproto

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"

	logx "relaybot/pkg/logx"
)

var ErrNotAuthorized = errors.New("telegram session is not authorized: run `relaybot login` first")

type Config struct {
	APIID       int
	APIHash     string
	SessionFile string
}

// Client owns the MTProto connection. Work happens inside Run.
type Client struct {
	cfg    Config
	log    logx.Logger
	client *telegram.Client
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if cfg.APIID <= 0 || strings.TrimSpace(cfg.APIHash) == "" {
		return nil, errors.New("mtproto: api id and hash are required")
	}
	if strings.TrimSpace(cfg.SessionFile) == "" {
		return nil, errors.New("mtproto: session file is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	c := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
	})
	return &Client{cfg: cfg, log: log, client: c}, nil
}

// Run connects, checks the stored session and calls fn with a ready Session.
// The connection is closed when fn returns.
func (c *Client) Run(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		status, err := c.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			return ErrNotAuthorized
		}
		api := c.client.API()
		s := newSession(api, newPeerResolver(api, peers.Options{}.Build(api)), c.log)
		return fn(ctx, s)
	})
}

// Login performs the interactive phone/code/password flow if the session
// is not authorized yet.
func (c *Client) Login(ctx context.Context, phone, password string, code auth.CodeAuthenticatorFunc) error {
	if strings.TrimSpace(phone) == "" {
		return errors.New("mtproto: phone number is required for login")
	}
	flow := auth.NewFlow(auth.Constant(phone, password, code), auth.SendCodeOptions{})
	return c.client.Run(ctx, func(ctx context.Context) error {
		if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		self, err := c.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("login: fetch self: %w", err)
		}
		c.log.Info("logged in", logx.Int64("user_id", self.ID), logx.String("username", self.Username))
		return nil
	})
}

// historyAPI is the slice of *tg.Client the session uses.
type historyAPI interface {
	MessagesGetHistory(ctx context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
	MessagesForwardMessages(ctx context.Context, req *tg.MessagesForwardMessagesRequest) (tg.UpdatesClass, error)
}
