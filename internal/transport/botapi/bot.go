// Package botapi is the Bot API side of the relay: an optional forwarder
// acting as a bot, and the sender behind the report chat.
package botapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"relaybot/internal/relay"
	logx "relaybot/pkg/logx"
)

type Config struct {
	Token string
	// Timeout bounds every Bot API HTTP call. Defaults to 30s.
	Timeout time.Duration
}

// Bot wraps a telebot client without starting a poller; the relay never
// consumes updates.
type Bot struct {
	bot *tele.Bot
	log logx.Logger
}

var (
	_ relay.Sender     = (*Bot)(nil)
	_ logx.TextSender = (*Bot)(nil)
)

func New(cfg Config, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  strings.TrimSpace(cfg.Token),
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Bot{bot: b, log: log.With(logx.String("comp", "botapi"))}, nil
}

// Forward copies msg into dest with forwardMessage. The bot must be able to
// see the source channel (usually as an admin).
func (b *Bot) Forward(ctx context.Context, src relay.SourceID, msg relay.Message, dest relay.DestinationID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := recipient(dest)
	if msg.ChatID != 0 {
		_, err := b.bot.Forward(to, tele.StoredMessage{
			MessageID: strconv.FormatInt(msg.ID, 10),
			ChatID:    msg.ChatID,
		})
		return mapError(err)
	}
	// No resolved chat ID: let the Bot API resolve the public username.
	_, err := b.bot.Raw("forwardMessage", map[string]string{
		"chat_id":      to.Recipient(),
		"from_chat_id": chatRef(src.String()),
		"message_id":   strconv.FormatInt(msg.ID, 10),
	})
	return mapError(err)
}

// SendText posts text to chatID, split into Telegram-sized chunks.
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	chat := tele.ChatID(chatID)
	for _, chunk := range splitText(text, textLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := b.bot.Send(chat, chunk, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
			return mapError(err)
		}
	}
	return nil
}

// username is a public chat addressed by @name.
type username string

func (u username) Recipient() string { return "@" + string(u) }

func recipient(d relay.DestinationID) tele.Recipient {
	if d.Username != "" {
		return username(d.Username)
	}
	return tele.ChatID(d.ID)
}

// chatRef renders a source token the way the Bot API expects chat_id.
func chatRef(tok string) string {
	tok = strings.TrimSpace(tok)
	if _, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return tok
	}
	if strings.HasPrefix(tok, "@") {
		return tok
	}
	return "@" + tok
}

// mapError turns HTTP 429 into relay.FloodWait.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var fe tele.FloodError
	if errors.As(err, &fe) {
		return relay.NewFloodWait(err, time.Duration(fe.RetryAfter)*time.Second)
	}
	var pfe *tele.FloodError
	if errors.As(err, &pfe) && pfe != nil {
		return relay.NewFloodWait(err, time.Duration(pfe.RetryAfter)*time.Second)
	}
	return err
}
