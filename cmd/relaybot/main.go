package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"relaybot/internal/cli"
	logx "relaybot/pkg/logx"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cli.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logx.NewConsole("INFO").Error("fatal", logx.Err(err))
		cancel()
		os.Exit(1)
	}
}
