package botapi

import (
	"errors"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"relaybot/internal/relay"
)

func TestSplitText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{name: "short", in: "hello", limit: 10, want: []string{"hello"}},
		{name: "hard cut", in: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "newline", in: "line one\nline two\nline three", limit: 12, want: []string{"line one", "line two", "line three"}},
		{name: "runes", in: "ααααα", limit: 2, want: []string{"αα", "αα", "α"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := splitText(tt.in, tt.limit)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("splitText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecipient(t *testing.T) {
	t.Parallel()
	if got := recipient(relay.DestinationID{ID: -1001234}).Recipient(); got != "-1001234" {
		t.Fatalf("numeric recipient = %q", got)
	}
	if got := recipient(relay.DestinationID{Username: "mirror"}).Recipient(); got != "@mirror" {
		t.Fatalf("username recipient = %q", got)
	}
}

func TestChatRef(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"-1001": "-1001",
		"@pods": "@pods",
		"pods":  "@pods",
		" x ":   "@x",
	} {
		if got := chatRef(in); got != want {
			t.Fatalf("chatRef(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()
	// FloodError.Error dereferences an internal field, so it is never formatted here.
	d, ok := relay.AsFloodWait(mapError(tele.FloodError{RetryAfter: 17}))
	if !ok || d != 17*time.Second {
		t.Fatalf("flood = %v, %v", d, ok)
	}
	if _, ok := relay.AsFloodWait(mapError(errors.New("chat not found"))); ok {
		t.Fatal("plain error mapped to flood wait")
	}
	if mapError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}
