package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sampleYAML = `
discord:
  token: "abc"
  rate_per_sec: 2
clone:
  source_guild: 111111111111111111
  target_guild: "222"
  skip_channels: [333, "444"]
  messages: false
  delay: 250
  concurrency: -1
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: ./data/runs.db
daemon:
  schedule: "@every 6h"
  pprof:
    enabled: true
    addr: " 127.0.0.1:7070 "
`

func TestDecodeYAMLAndResolve(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("cfg.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	s, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := CloneSettings{
		SourceGuild:  "111111111111111111",
		TargetGuild:  "222",
		SkipChannels: []string{"333", "444"},
		Roles:        true,
		Channels:     true,
		Messages:     false,
		WebhookName:  DefaultWebhookName,
		MessageLimit: DefaultMessageLimit,
		Delay:        250 * time.Millisecond,
		Concurrency:  -1,
	}
	if diff := cmp.Diff(want, s.Clone); diff != "" {
		t.Fatalf("clone settings (-want +got):\n%s", diff)
	}
	if s.Discord.APIBase != DefaultAPIBase || s.Discord.AuthScheme != "Bot" || s.Discord.RatePerSec != 2 {
		t.Fatalf("unexpected discord settings: %+v", s.Discord)
	}
	if s.Storage.Driver != "sqlite" || s.Storage.BusyTimeout != 5*time.Second {
		t.Fatalf("unexpected storage settings: %+v", s.Storage)
	}
	if !s.Daemon.WatchConfig || s.Daemon.Schedule != "@every 6h" {
		t.Fatalf("unexpected daemon settings: %+v", s.Daemon)
	}
	if diff := cmp.Diff(PprofSettings{Enabled: true, Addr: "127.0.0.1:7070"}, s.Daemon.Pprof); diff != "" {
		t.Fatalf("pprof settings (-want +got):\n%s", diff)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	_, err := Decode("cfg.json", []byte(`{"clone":{"source_guild":"1","bogus":true}}`))
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	_, err = Decode("cfg.json", []byte(`{} {}`))
	if err == nil {
		t.Fatal("expected trailing data error")
	}
}

func TestDefaultsForEmptyConfig(t *testing.T) {
	t.Parallel()
	s, err := (&Config{}).Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Clone.Concurrency != DefaultConcurrency || s.Clone.Delay != DefaultDelay || s.Discord.Timeout != DefaultTimeout {
		t.Fatalf("defaults not applied: %+v", s.Clone)
	}
	if !s.Clone.Roles || !s.Clone.Channels || !s.Clone.Messages || s.Clone.WipeRoles || s.Clone.WipeChannels {
		t.Fatalf("unexpected step defaults: %+v", s.Clone)
	}
	if diff := cmp.Diff([]string{"discord.token", "clone.source_guild", "clone.target_guild"}, s.Missing()); diff != "" {
		t.Fatalf("Missing (-want +got):\n%s", diff)
	}
	if err := s.Validate(); !errors.Is(err, ErrMissingField) {
		t.Fatalf("Validate err = %v, want ErrMissingField", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := Settings{
		Discord: DiscordSettings{Token: "t"},
		Clone:   CloneSettings{SourceGuild: "1", TargetGuild: "2"},
	}
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr bool
	}{
		{name: "ok", mutate: func(*Settings) {}},
		{name: "same guild", mutate: func(s *Settings) { s.Clone.TargetGuild = "1" }, wantErr: true},
		{name: "telegram without chat", mutate: func(s *Settings) { s.Telegram = TelegramSettings{Enabled: true, Token: "x"} }, wantErr: true},
		{name: "bad driver", mutate: func(s *Settings) { s.Storage.Driver = "redis" }, wantErr: true},
		{name: "file driver", mutate: func(s *Settings) { s.Storage.Driver = "file" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := base
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDelayField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: DefaultDelay},
		{raw: "600", want: 600 * time.Millisecond},
		{raw: "0", want: 0},
		{raw: "1.5s", want: 1500 * time.Millisecond},
		{raw: "-5", wantErr: true},
		{raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDelayField("clone.delay", tt.raw, DefaultDelay)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseDelayField(%q) err = %v", tt.raw, err)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseDelayField(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	a := &Config{Discord: DiscordConfig{Token: "one"}}
	b := &Config{Discord: DiscordConfig{Token: "two"}, Daemon: DaemonConfig{Schedule: "1h"}}
	if diff := cmp.Diff([]string{"discord", "daemon"}, SummarizeChange(a, b)); diff != "" {
		t.Fatalf("SummarizeChange (-want +got):\n%s", diff)
	}
	if got := SummarizeChange(a, a); len(got) != 0 {
		t.Fatalf("expected no changes, got %v", got)
	}
}

func TestManagerLoadAndReload(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "guildmirror.json")
	if err := os.WriteFile(path, []byte(`{"clone":{"concurrency":2}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m := NewConfigManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Clone.Concurrency != 2 || m.Get() != cfg {
		t.Fatalf("unexpected loaded config: %+v", cfg)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	if m.reload(context.Background()) {
		t.Fatal("unchanged content must not publish")
	}

	if err := os.WriteFile(path, []byte(`{"clone":{"concurrency":5}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m.SetValidator(func(ctx context.Context, c *Config) error {
		if c.Clone.Concurrency > 4 {
			return errors.New("too many")
		}
		return nil
	})
	if m.reload(context.Background()) {
		t.Fatal("rejected config must not publish")
	}

	if err := os.WriteFile(path, []byte(`{"clone":{"concurrency":4}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if !m.reload(context.Background()) {
		t.Fatal("expected publish")
	}
	select {
	case got := <-ch:
		if got.Clone.Concurrency != 4 {
			t.Fatalf("published concurrency = %d", got.Clone.Concurrency)
		}
	default:
		t.Fatal("subscriber did not receive config")
	}
}

func TestManagerEmptyPath(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("  ")
	cfg, err := m.Load()
	if err != nil || cfg == nil {
		t.Fatalf("Load with empty path: %v %v", cfg, err)
	}
	if err := m.Watch(context.Background()); err != nil {
		t.Fatalf("Watch with empty path: %v", err)
	}
}
