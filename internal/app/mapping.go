package app

import (
	"fmt"
	"strings"
	"time"

	"relaybot/internal/config"
	"relaybot/internal/media"
	"relaybot/internal/relay"
	"relaybot/internal/storage"
	"relaybot/internal/transport/mtproto"
	logx "relaybot/pkg/logx"
)

func mapLogging(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	console := lc.Console == nil || *lc.Console
	file := strings.TrimSpace(lc.File)
	return logx.Config{
		Level:   lc.Level,
		Console: console,
		File:    logx.FileConfig{Enabled: file != "", Path: file},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Telegram.ReportChatID != 0 && strings.TrimSpace(cfg.Telegram.BotToken) != "",
			ChatID:     cfg.Telegram.ReportChatID,
			MinLevel:   lc.ReportMinLevel,
			RatePerSec: 1,
		},
	}
}

func mapStorage(cfg *config.Config) (storage.Config, error) {
	sc := cfg.State
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "file", "json":
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		busy, err := config.ParseDurationOrDefault("state.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown state.driver: %s", sc.Driver)
	}
}

func mapMTProto(cfg *config.Config) mtproto.Config {
	return mtproto.Config{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		SessionFile: cfg.Telegram.SessionFile,
	}
}

func mapRelay(cfg *config.Config) (relay.Options, relay.ForwarderOptions, error) {
	rc := cfg.Relay
	opt := relay.Options{
		BatchLimit: rc.BatchLimit,
		Filter:     media.Filter{MIMEPrefix: rc.MIMEPrefix, MinDuration: rc.MinDuration},
	}
	for _, s := range rc.Sources {
		if s = strings.TrimSpace(s); s != "" {
			opt.Sources = append(opt.Sources, relay.SourceID(s))
		}
	}
	for _, tok := range rc.Destinations {
		if strings.TrimSpace(tok) == "" {
			continue
		}
		d, err := relay.ParseDestination(tok)
		if err != nil {
			return relay.Options{}, relay.ForwarderOptions{}, err
		}
		opt.Destinations = append(opt.Destinations, d)
	}
	if len(opt.Sources) == 0 {
		return relay.Options{}, relay.ForwarderOptions{}, config.ErrNoSources
	}
	if len(opt.Destinations) == 0 {
		return relay.Options{}, relay.ForwarderOptions{}, config.ErrNoDestinations
	}

	var fopt relay.ForwarderOptions
	var err error
	if opt.MessageDelay, err = config.ParseDurationOrDefault("relay.message_delay", rc.MessageDelay, relay.DefaultMessageDelay); err != nil {
		return relay.Options{}, fopt, err
	}
	if opt.SourceDelay, err = config.ParseDurationOrDefault("relay.source_delay", rc.SourceDelay, relay.DefaultSourceDelay); err != nil {
		return relay.Options{}, fopt, err
	}
	if fopt.DestinationDelay, err = config.ParseDurationOrDefault("relay.dest_delay", rc.DestinationDelay, relay.DefaultDestinationDelay); err != nil {
		return relay.Options{}, fopt, err
	}
	if fopt.FloodPadding, err = config.ParseDurationOrDefault("relay.flood_padding", rc.FloodPadding, relay.DefaultFloodPadding); err != nil {
		return relay.Options{}, fopt, err
	}
	return opt, fopt, nil
}
