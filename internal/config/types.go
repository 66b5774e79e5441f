package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Config is the full relay configuration.
//
// It is assembled from defaults, an optional JSON/YAML file and the process
// environment (in that order of precedence, environment last), then treated
// as immutable for the duration of a run.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Relay    RelayConfig    `json:"relay"`
	State    StateConfig    `json:"state"`
	Logging  LoggingConfig  `json:"logging"`

	// Schedule is the cron spec used by `relaybot daemon`
	// (e.g. "@every 15m", "*/30 * * * *").
	Schedule string `json:"schedule,omitempty"`
}

// TelegramConfig holds transport credentials.
//
// APIID/APIHash identify the MTProto application; the user session that
// reads source history lives in SessionFile (created by `relaybot login`).
// BotToken is only needed for ForwardVia "bot" or for the report chat.
type TelegramConfig struct {
	APIID       int    `json:"api_id"`
	APIHash     string `json:"api_hash"`
	SessionFile string `json:"session_file,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Password    string `json:"password,omitempty"` // 2FA password (do not log)

	BotToken     string `json:"bot_token,omitempty"` // do not log
	ForwardVia   string `json:"forward_via,omitempty"`
	ReportChatID int64  `json:"report_chat_id,omitempty"`
}

// RelayConfig describes what to read, what to keep and where to send it.
//
// All durations are Go duration strings (e.g. "2s", "10s").
type RelayConfig struct {
	Sources      StringList `json:"sources"`
	Destinations StringList `json:"destinations"`

	BatchLimit  int     `json:"batch_limit,omitempty"`
	MIMEPrefix  string  `json:"mime_prefix,omitempty"`
	MinDuration float64 `json:"min_duration,omitempty"` // seconds

	DestinationDelay string `json:"dest_delay,omitempty"`
	MessageDelay     string `json:"message_delay,omitempty"`
	SourceDelay      string `json:"source_delay,omitempty"`
	FloodPadding     string `json:"flood_padding,omitempty"`
}

// StateConfig selects the checkpoint store.
//
// Example:
//
//	"state": { "driver": "sqlite", "path": "./relay.db" }
type StateConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console *bool  `json:"console,omitempty"`
	File    string `json:"file,omitempty"`
	// ReportMinLevel is the lowest level mirrored into the report chat.
	ReportMinLevel string `json:"report_min_level,omitempty"`
}

// StringList accepts a JSON array of strings or numbers, or a single
// comma-separated string. Numeric chat IDs can then be written unquoted.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*l = nil
	case string:
		*l = splitCSV(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, it := range v {
			switch x := it.(type) {
			case string:
				if x = strings.TrimSpace(x); x != "" {
					out = append(out, x)
				}
			case json.Number:
				out = append(out, x.String())
			default:
				return fmt.Errorf("list item %v: want string or number", it)
			}
		}
		*l = out
	default:
		return fmt.Errorf("want list or comma-separated string, got %T", raw)
	}
	return nil
}

const (
	ForwardViaUser = "user"
	ForwardViaBot  = "bot"
)

// Defaults returns a Config with every optional field filled in.
func Defaults() *Config {
	console := true
	return &Config{
		Telegram: TelegramConfig{
			SessionFile: "./session.json",
			ForwardVia:  ForwardViaUser,
		},
		Relay: RelayConfig{
			BatchLimit:       50,
			MIMEPrefix:       "audio/",
			MinDuration:      3600,
			DestinationDelay: "2s",
			MessageDelay:     "10s",
			SourceDelay:      "2s",
			FloodPadding:     "5s",
		},
		State: StateConfig{
			Driver: "file",
			Path:   "./last_processed_ids.json",
		},
		Logging: LoggingConfig{
			Level:          "INFO",
			Console:        &console,
			ReportMinLevel: "WARN",
		},
		Schedule: "@every 15m",
	}
}

var (
	ErrNoSources      = errors.New("no source channels configured (SOURCE_CHANNELS)")
	ErrNoDestinations = errors.New("no destination channels configured (DESTINATION_CHANNELS)")
	ErrNoCredentials  = errors.New("API_ID and API_HASH are required")
)

// Validate checks the startup invariants. Any error is fatal.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if c.Telegram.APIID <= 0 || strings.TrimSpace(c.Telegram.APIHash) == "" {
		errs = append(errs, ErrNoCredentials)
	}
	if len(nonBlank(c.Relay.Sources)) == 0 {
		errs = append(errs, ErrNoSources)
	}
	if len(nonBlank(c.Relay.Destinations)) == 0 {
		errs = append(errs, ErrNoDestinations)
	}
	switch strings.ToLower(strings.TrimSpace(c.Telegram.ForwardVia)) {
	case "", ForwardViaUser:
	case ForwardViaBot:
		if strings.TrimSpace(c.Telegram.BotToken) == "" {
			errs = append(errs, errors.New("forward_via=bot requires BOT_TOKEN"))
		}
	default:
		errs = append(errs, fmt.Errorf("forward_via: unknown value %q (want user or bot)", c.Telegram.ForwardVia))
	}
	if c.Telegram.ReportChatID != 0 && strings.TrimSpace(c.Telegram.BotToken) == "" {
		errs = append(errs, errors.New("report_chat_id requires BOT_TOKEN"))
	}
	if c.Relay.BatchLimit < 0 {
		errs = append(errs, errors.New("relay.batch_limit must be >= 0"))
	}
	if c.Relay.MinDuration < 0 {
		errs = append(errs, errors.New("relay.min_duration must be >= 0"))
	}
	// An empty prefix matches every document, not only audio.
	if strings.TrimSpace(c.Relay.MIMEPrefix) == "" {
		errs = append(errs, errors.New("relay.mime_prefix must not be empty"))
	}
	for path, raw := range map[string]string{
		"relay.dest_delay":    c.Relay.DestinationDelay,
		"relay.message_delay": c.Relay.MessageDelay,
		"relay.source_delay":  c.Relay.SourceDelay,
		"relay.flood_padding": c.Relay.FloodPadding,
		"state.busy_timeout":  c.State.BusyTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
