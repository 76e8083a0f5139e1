package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingField is returned by Validate when a required value is empty.
var ErrMissingField = errors.New("missing required field")

const (
	DefaultAPIBase      = "https://discord.com/api/v10"
	DefaultAuthScheme   = "Bot"
	DefaultTimeout      = 15 * time.Second
	DefaultRatePerSec   = 5
	DefaultWebhookName  = "CloneBot"
	DefaultMessageLimit = 100
	DefaultDelay        = 600 * time.Millisecond
	DefaultConcurrency  = 3
)

// Settings is the parsed, defaulted view of Config that components consume.
type Settings struct {
	Discord  DiscordSettings
	Clone    CloneSettings
	Storage  StorageSettings
	Telegram TelegramSettings
	Daemon   DaemonSettings
}

type DiscordSettings struct {
	Token      string
	AuthScheme string
	APIBase    string
	Timeout    time.Duration
	RatePerSec int
}

type CloneSettings struct {
	SourceGuild  string
	TargetGuild  string
	SkipChannels []string

	WipeChannels bool
	WipeRoles    bool
	Roles        bool
	Channels     bool
	Messages     bool

	WebhookName  string
	MessageLimit int
	Delay        time.Duration
	Concurrency  int
}

type StorageSettings struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration
}

type TelegramSettings struct {
	Enabled  bool
	Token    string
	ChatID   int64
	ThreadID int
	Timeout  time.Duration
}

type DaemonSettings struct {
	Schedule    string
	Timezone    string
	WatchConfig bool
	Pprof       PprofSettings
}

type PprofSettings struct {
	Enabled              bool
	Addr                 string
	BlockProfileRate     int
	MutexProfileFraction int
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Resolve applies defaults and parses durations. It does not check required
// fields; see Validate.
func (c *Config) Resolve() (Settings, error) {
	if c == nil {
		c = &Config{}
	}
	var s Settings
	var err error

	d := c.Discord
	s.Discord = DiscordSettings{
		Token:      strings.TrimSpace(d.Token),
		AuthScheme: strings.TrimSpace(d.AuthScheme),
		APIBase:    strings.TrimRight(strings.TrimSpace(d.APIBase), "/"),
		RatePerSec: d.RatePerSec,
	}
	if s.Discord.AuthScheme == "" {
		s.Discord.AuthScheme = DefaultAuthScheme
	}
	if s.Discord.APIBase == "" {
		s.Discord.APIBase = DefaultAPIBase
	}
	if s.Discord.RatePerSec <= 0 {
		s.Discord.RatePerSec = DefaultRatePerSec
	}
	if s.Discord.Timeout, err = ParseDurationOrDefault("discord.timeout", d.Timeout, DefaultTimeout); err != nil {
		return Settings{}, err
	}

	cl := c.Clone
	s.Clone = CloneSettings{
		SourceGuild:  cl.SourceGuild.String(),
		TargetGuild:  cl.TargetGuild.String(),
		WipeChannels: cl.WipeChannels,
		WipeRoles:    cl.WipeRoles,
		Roles:        boolOr(cl.Roles, true),
		Channels:     boolOr(cl.Channels, true),
		Messages:     boolOr(cl.Messages, true),
		WebhookName:  strings.TrimSpace(cl.WebhookName),
		MessageLimit: cl.MessageLimit,
		Concurrency:  cl.Concurrency,
	}
	for _, id := range cl.SkipChannels {
		if v := strings.TrimSpace(id.String()); v != "" {
			s.Clone.SkipChannels = append(s.Clone.SkipChannels, v)
		}
	}
	if s.Clone.WebhookName == "" {
		s.Clone.WebhookName = DefaultWebhookName
	}
	if s.Clone.MessageLimit <= 0 {
		s.Clone.MessageLimit = DefaultMessageLimit
	}
	if s.Clone.Concurrency == 0 {
		s.Clone.Concurrency = DefaultConcurrency
	}
	if s.Clone.Delay, err = ParseDelayField("clone.delay", string(cl.Delay), DefaultDelay); err != nil {
		return Settings{}, err
	}

	if st := c.Storage; st != nil {
		s.Storage = StorageSettings{Driver: strings.ToLower(strings.TrimSpace(st.Driver)), Path: strings.TrimSpace(st.Path)}
		if s.Storage.BusyTimeout, err = ParseDurationOrDefault("storage.busy_timeout", st.BusyTimeout, 5*time.Second); err != nil {
			return Settings{}, err
		}
	}

	tg := c.Notifier.Telegram
	s.Telegram = TelegramSettings{
		Enabled:  tg.Enabled,
		Token:    strings.TrimSpace(tg.Token),
		ChatID:   tg.ChatID,
		ThreadID: tg.ThreadID,
	}
	if s.Telegram.Timeout, err = ParseDurationOrDefault("notifier.telegram.timeout", tg.Timeout, 10*time.Second); err != nil {
		return Settings{}, err
	}

	s.Daemon = DaemonSettings{
		Schedule:    strings.TrimSpace(c.Daemon.Schedule),
		Timezone:    strings.TrimSpace(c.Daemon.Timezone),
		WatchConfig: boolOr(c.Daemon.WatchConfig, true),
		Pprof: PprofSettings{
			Enabled:              c.Daemon.Pprof.Enabled,
			Addr:                 strings.TrimSpace(c.Daemon.Pprof.Addr),
			BlockProfileRate:     c.Daemon.Pprof.BlockProfileRate,
			MutexProfileFraction: c.Daemon.Pprof.MutexProfileFraction,
		},
	}
	return s, nil
}

// Validate reports the first required field that is still missing.
func (s Settings) Validate() error {
	switch {
	case s.Discord.Token == "":
		return fmt.Errorf("discord.token: %w", ErrMissingField)
	case s.Clone.SourceGuild == "":
		return fmt.Errorf("clone.source_guild: %w", ErrMissingField)
	case s.Clone.TargetGuild == "":
		return fmt.Errorf("clone.target_guild: %w", ErrMissingField)
	}
	if s.Clone.SourceGuild == s.Clone.TargetGuild {
		return fmt.Errorf("clone.target_guild must differ from clone.source_guild")
	}
	if s.Telegram.Enabled && (s.Telegram.Token == "" || s.Telegram.ChatID == 0) {
		return fmt.Errorf("notifier.telegram: token and chat_id are required when enabled: %w", ErrMissingField)
	}
	switch s.Storage.Driver {
	case "", "none", "file", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", s.Storage.Driver)
	}
	return nil
}

// Missing lists the required clone fields an interactive prompt still has to ask for.
func (s Settings) Missing() []string {
	var out []string
	if s.Discord.Token == "" {
		out = append(out, "discord.token")
	}
	if s.Clone.SourceGuild == "" {
		out = append(out, "clone.source_guild")
	}
	if s.Clone.TargetGuild == "" {
		out = append(out, "clone.target_guild")
	}
	return out
}
