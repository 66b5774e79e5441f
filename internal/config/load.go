package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Lookup has the shape of os.LookupEnv.
type Lookup func(key string) (string, bool)

// Load builds the configuration: defaults, then the optional file at path,
// then environment variables from env. It does not validate.
func Load(path string, env Lookup) (*Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if env == nil {
		env = os.LookupEnv
	}
	if err := applyEnv(cfg, env); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeFile overlays the file at path onto cfg. Unknown keys are rejected.
func decodeFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	jb, err := coerceToJSONBytes(path, b)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("decode %s: trailing data", filepath.Base(path))
		}
		return err
	}
	return nil
}

// coerceToJSONBytes converts YAML to JSON so one strict decoder serves both
// formats. Files without a .yaml/.yml extension are returned as-is.
func coerceToJSONBytes(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if v == nil {
		return []byte("{}"), nil
	}
	j, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, nil
}

// normalizeYAML ensures all map keys are strings so the result can be JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = normalizeYAML(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}

// applyEnv overlays environment variables. Blank values are ignored.
func applyEnv(cfg *Config, env Lookup) error {
	get := func(key string) (string, bool) {
		v, ok := env(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	str := func(dst *string, key string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	if v, ok := get("API_ID"); ok {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("API_ID: %q is not an integer", v)
		}
		cfg.Telegram.APIID = id
	}
	str(&cfg.Telegram.APIHash, "API_HASH")
	str(&cfg.Telegram.SessionFile, "SESSION_FILE")
	str(&cfg.Telegram.Phone, "PHONE")
	str(&cfg.Telegram.Password, "PASSWORD")
	str(&cfg.Telegram.BotToken, "BOT_TOKEN")
	str(&cfg.Telegram.ForwardVia, "FORWARD_VIA")
	if v, ok := get("REPORT_CHAT_ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("REPORT_CHAT_ID: %q is not an integer", v)
		}
		cfg.Telegram.ReportChatID = id
	}

	// SOURCE_CHANNEL is the single-source name older deployments use.
	if v, ok := get("SOURCE_CHANNELS"); ok {
		cfg.Relay.Sources = splitCSV(v)
	} else if v, ok := get("SOURCE_CHANNEL"); ok {
		cfg.Relay.Sources = splitCSV(v)
	}
	if v, ok := get("DESTINATION_CHANNELS"); ok {
		cfg.Relay.Destinations = splitCSV(v)
	}
	if v, ok := get("BATCH_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BATCH_LIMIT: %q is not an integer", v)
		}
		cfg.Relay.BatchLimit = n
	}
	str(&cfg.Relay.MIMEPrefix, "MIME_PREFIX")
	if v, ok := get("MIN_DURATION"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MIN_DURATION: %q is not a number", v)
		}
		cfg.Relay.MinDuration = f
	}
	str(&cfg.Relay.DestinationDelay, "DEST_DELAY")
	str(&cfg.Relay.MessageDelay, "MESSAGE_DELAY")
	str(&cfg.Relay.SourceDelay, "SOURCE_DELAY")
	str(&cfg.Relay.FloodPadding, "FLOOD_PADDING")

	str(&cfg.State.Driver, "STATE_DRIVER")
	str(&cfg.State.Path, "STATE_FILE")

	str(&cfg.Logging.Level, "LOG_LEVEL")
	str(&cfg.Logging.File, "LOG_FILE")
	if v, ok := get("LOG_CONSOLE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_CONSOLE: %q is not a boolean", v)
		}
		cfg.Logging.Console = &b
	}
	str(&cfg.Schedule, "SCHEDULE")
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
