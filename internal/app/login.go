package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gotd/td/tg"

	"relaybot/internal/transport/mtproto"
)

// Login runs the interactive MTProto login and stores the session file.
// Missing phone number and the login code are read from in.
func (a *App) Login(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg := a.Config()
	r := bufio.NewReader(in)

	phone := strings.TrimSpace(cfg.Telegram.Phone)
	if phone == "" {
		v, err := prompt(r, out, "Phone number (international format): ")
		if err != nil {
			return err
		}
		phone = v
	}

	client, err := mtproto.New(mapMTProto(cfg), a.log)
	if err != nil {
		return err
	}
	code := func(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
		return prompt(r, out, "Login code: ")
	}
	if err := client.Login(ctx, phone, cfg.Telegram.Password, code); err != nil {
		return err
	}
	fmt.Fprintf(out, "Session saved to %s\n", cfg.Telegram.SessionFile)
	return nil
}

func prompt(r *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	v := strings.TrimSpace(line)
	if v == "" {
		return "", errors.New("empty input")
	}
	return v, nil
}
