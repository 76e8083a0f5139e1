package prompt

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"guildmirror/internal/config"
)

func TestAskDefaults(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	p := New(strings.NewReader("\n  value  \n"), &out, false)

	got, err := p.Ask("Name", "CloneBot")
	if err != nil || got != "CloneBot" {
		t.Fatalf("got %q err=%v", got, err)
	}
	got, err = p.Ask("Name", "CloneBot")
	if err != nil || got != "value" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if !strings.Contains(out.String(), "? Name [CloneBot]: ") {
		t.Fatalf("prompt text %q", out.String())
	}
	if _, err := p.Ask("More", ""); !errors.Is(err, ErrNoInput) {
		t.Fatalf("err=%v want ErrNoInput", err)
	}
}

func TestAskYN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		def  bool
		want bool
	}{
		{"\n", true, true},
		{"\n", false, false},
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"maybe\n", true, false},
		{"y", false, true}, // no trailing newline
	}
	for _, tt := range tests {
		p := New(strings.NewReader(tt.in), &bytes.Buffer{}, false)
		got, err := p.AskYN("Go?", tt.def)
		if err != nil || got != tt.want {
			t.Fatalf("AskYN(%q, %v)=%v err=%v want %v", tt.in, tt.def, got, err, tt.want)
		}
	}
}

func TestAskInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
	}{
		{"\n", 3},
		{"abc\n", 3},
		{"0\n", 3},
		{"8\n", 8},
		{"-1\n", -1},
	}
	for _, tt := range tests {
		p := New(strings.NewReader(tt.in), &bytes.Buffer{}, false)
		got, err := p.AskInt("Concurrency", 3)
		if err != nil || got != tt.want {
			t.Fatalf("AskInt(%q)=%d err=%v want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestFillFull(t *testing.T) {
	t.Parallel()

	answers := strings.Join([]string{
		"tok",     // token
		"111",     // source
		"222",     // target
		" 5, ,6 ", // skip
		"y",       // wipe channels
		"",        // wipe roles
		"",        // roles
		"n",       // channels
		"",        // messages
		"",        // webhook name
		"50",      // message limit
		"-20",     // delay
		"",        // concurrency
	}, "\n") + "\n"

	var cfg config.Config
	p := New(strings.NewReader(answers), &bytes.Buffer{}, false)
	if err := p.Fill(&cfg, true); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	s, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := config.CloneSettings{
		SourceGuild:  "111",
		TargetGuild:  "222",
		SkipChannels: []string{"5", "6"},
		WipeChannels: true,
		Roles:        true,
		Channels:     false,
		Messages:     true,
		WebhookName:  config.DefaultWebhookName,
		MessageLimit: 50,
		Delay:        0,
		Concurrency:  config.DefaultConcurrency,
	}
	if diff := cmp.Diff(want, s.Clone); diff != "" {
		t.Fatalf("clone settings (-want +got):\n%s", diff)
	}
	if s.Discord.Token != "tok" {
		t.Fatalf("token=%q", s.Discord.Token)
	}
}

func TestFillOnlyMissingRequired(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Clone: config.CloneConfig{SourceGuild: "111", TargetGuild: "222", Concurrency: 7}}
	var out bytes.Buffer
	p := New(strings.NewReader("secret\n"), &out, false)
	if err := p.Fill(&cfg, false); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if cfg.Discord.Token != "secret" || cfg.Clone.Concurrency != 7 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if strings.Count(out.String(), "?") != 1 {
		t.Fatalf("expected a single question, got %q", out.String())
	}
}

func TestFillInputClosed(t *testing.T) {
	t.Parallel()

	var cfg config.Config
	p := New(strings.NewReader(""), &bytes.Buffer{}, false)
	if err := p.Fill(&cfg, false); !errors.Is(err, ErrNoInput) {
		t.Fatalf("err=%v want ErrNoInput", err)
	}
}
