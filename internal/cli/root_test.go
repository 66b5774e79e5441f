package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVersionNotEmpty(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestExecuteVersion(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	if err := ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "relaybot ") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestStateCommands(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, "state.json")
	if err := os.WriteFile(state, []byte(`{"@pods": 12}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := filepath.Join(dir, "relay.yaml")
	content := "state:\n  path: " + state + "\nlogging:\n  console: false\n"
	if err := os.WriteFile(cfg, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"state", "show", "--config", cfg})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("state show: %v", err)
	}
	if !strings.Contains(buf.String(), "@pods") || !strings.Contains(buf.String(), "12") {
		t.Fatalf("show output = %q", buf.String())
	}

	buf.Reset()
	rootCmd.SetArgs([]string{"state", "reset", "@pods", "--config", cfg})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("state reset: %v", err)
	}
	if !strings.Contains(buf.String(), "removed 1") {
		t.Fatalf("reset output = %q", buf.String())
	}
}

func TestRunFailsWithoutConfig(t *testing.T) {
	for _, k := range []string{"API_ID", "API_HASH", "SOURCE_CHANNELS", "SOURCE_CHANNEL", "DESTINATION_CHANNELS"} {
		t.Setenv(k, "")
	}
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"run", "--config", ""})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("run without credentials should fail")
	}
}
