package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"zeta/pkg/channel"
	"zeta/pkg/config"
)

func TestNewAdapterRequiresToken(t *testing.T) {
	if _, err := NewAdapter(config.TelegramConfig{Token: "  "}, nil); err == nil {
		t.Fatal("expected error without token")
	}

	adapter, err := NewAdapter(config.TelegramConfig{Token: "123:abc", AllowFrom: []string{"7"}}, nil)
	if err != nil {
		t.Fatalf("NewAdapter error: %v", err)
	}
	if adapter.Name() != "telegram" {
		t.Fatalf("Name = %q", adapter.Name())
	}
}

func TestAllowFromSet(t *testing.T) {
	allowed := allowFromSet([]string{" 123 ", "", "456", "123"})
	if len(allowed) != 2 {
		t.Fatalf("allowFromSet len = %d, want 2", len(allowed))
	}
	if _, ok := allowed["123"]; !ok {
		t.Fatal("allowFromSet missing 123")
	}
	if _, ok := allowed["456"]; !ok {
		t.Fatal("allowFromSet missing 456")
	}
}

func TestSenderAllowed(t *testing.T) {
	adapter := &Adapter{allowFrom: map[string]struct{}{"1": {}}}
	if !adapter.senderAllowed("1") {
		t.Fatal("expected sender 1 to be allowed")
	}
	if adapter.senderAllowed("2") {
		t.Fatal("expected sender 2 to be denied")
	}

	adapter.allowFrom = nil
	if !adapter.senderAllowed("any") {
		t.Fatal("expected sender to be allowed when allowlist empty")
	}
}

func TestSessionKey(t *testing.T) {
	if got := sessionKey(" 42 "); got != "telegram:42" {
		t.Fatalf("sessionKey = %q, want %q", got, "telegram:42")
	}
}

func TestInboundMessage(t *testing.T) {
	inbound := inboundMessage(9, "7", "42", "Ankara hava durumu")

	if inbound.SessionKey != "telegram:42" || inbound.SenderID != "7" || inbound.Channel != "telegram" {
		t.Fatalf("inbound = %+v", inbound)
	}
	if inbound.Identity() != "telegram:7" {
		t.Fatalf("identity = %q", inbound.Identity())
	}
	if inbound.Metadata["update_id"] != "9" {
		t.Fatalf("metadata = %v", inbound.Metadata)
	}
	if _, ok := inbound.Metadata[channel.MetadataCommand]; ok {
		t.Fatalf("plain text should carry no command: %v", inbound.Metadata)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "/start", want: channel.CommandStart},
		{text: "/reset", want: channel.CommandReset},
		{text: "/yeni@zeta_bot", want: channel.CommandReset},
		{text: "/RESET now", want: channel.CommandReset},
		{text: "/unknown", want: ""},
		{text: "reset", want: ""},
		{text: "", want: ""},
	}

	for _, tt := range tests {
		if got := parseCommand(tt.text); got != tt.want {
			t.Fatalf("parseCommand(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestPreviewText(t *testing.T) {
	short := " merhaba "
	if got := previewText(short); got != "merhaba" {
		t.Fatalf("previewText short = %q, want %q", got, "merhaba")
	}

	long := strings.Repeat("ş", messagePreviewLimit+20)
	got := previewText(long)
	if n := utf8.RuneCountInString(got); n != messagePreviewLimit+3 {
		t.Fatalf("previewText long runes = %d, want %d", n, messagePreviewLimit+3)
	}
	if !utf8.ValidString(got) {
		t.Fatal("previewText cut a multi-byte rune")
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("previewText long = %q, want ellipsis suffix", got)
	}
}

func TestSplitMessage(t *testing.T) {
	if parts := splitMessage("kısa", 10); len(parts) != 1 || parts[0] != "kısa" {
		t.Fatalf("short parts = %q", parts)
	}

	text := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	parts := splitMessage(text, 10)
	if len(parts) != 2 || parts[0] != strings.Repeat("a", 8) || parts[1] != strings.Repeat("b", 8) {
		t.Fatalf("line-break parts = %q", parts)
	}

	parts = splitMessage(strings.Repeat("ğ", 25), 10)
	if len(parts) != 3 {
		t.Fatalf("hard-cut parts = %d, want 3", len(parts))
	}
	for _, part := range parts {
		if utf8.RuneCountInString(part) > 10 {
			t.Fatalf("part too long: %d runes", utf8.RuneCountInString(part))
		}
	}
}
