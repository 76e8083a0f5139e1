package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID is a snowflake written either as a string or as a bare number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s, err := stringOrInt(b)
	if err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(s)
	return nil
}

func (id ID) String() string { return string(id) }

// Delay is a duration string, or a bare integer meaning milliseconds.
type Delay string

func (d *Delay) UnmarshalJSON(b []byte) error {
	s, err := stringOrInt(b)
	if err != nil {
		return fmt.Errorf("delay: %w", err)
	}
	*d = Delay(s)
	return nil
}

func stringOrInt(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return "", nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", fmt.Errorf("must be a string or integer: %w", err)
	}
	if _, err := n.Int64(); err != nil {
		return "", fmt.Errorf("%s is not an integer", n)
	}
	return n.String(), nil
}

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "600ms", "15s"). clone.delay
// also accepts a bare integer, read as milliseconds.
type Config struct {
	Discord  DiscordConfig  `json:"discord"`
	Clone    CloneConfig    `json:"clone"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Notifier NotifierConfig `json:"notifier,omitempty"`
	Daemon   DaemonConfig   `json:"daemon,omitempty"`
}

// DiscordConfig controls the REST client.
//
// Defaults (when fields are omitted/zero):
//   - auth_scheme: "Bot" (set "raw" to send the token as-is)
//   - api_base: "https://discord.com/api/v10"
//   - timeout: "15s"
//   - rate_per_sec: 5
type DiscordConfig struct {
	Token      string `json:"token"`
	AuthScheme string `json:"auth_scheme,omitempty"`
	APIBase    string `json:"api_base,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// CloneConfig describes one replication run.
//
// Roles, Channels and Messages are pointers so an omitted key means "yes",
// distinct from an explicit false.
type CloneConfig struct {
	SourceGuild  ID   `json:"source_guild"`
	TargetGuild  ID   `json:"target_guild"`
	SkipChannels []ID `json:"skip_channels,omitempty"`

	WipeChannels bool `json:"wipe_channels,omitempty"`
	WipeRoles    bool `json:"wipe_roles,omitempty"`

	Roles    *bool `json:"roles,omitempty"`
	Channels *bool `json:"channels,omitempty"`
	Messages *bool `json:"messages,omitempty"`

	WebhookName  string `json:"webhook_name,omitempty"`
	MessageLimit int    `json:"message_limit,omitempty"`
	Delay        Delay  `json:"delay,omitempty"`
	Concurrency  int    `json:"concurrency,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the run history store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/guildmirror.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type NotifierConfig struct {
	Telegram TelegramNotifierConfig `json:"telegram"`
}

// TelegramNotifierConfig sends the run summary to a Telegram chat.
// The token is never logged.
type TelegramNotifierConfig struct {
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

// DaemonConfig turns the one-shot run into a scheduled mirror.
//
// Schedule accepts cron ("0 */6 * * *", "@hourly") or an interval
// ("6h", "02:30"). Empty means run once and exit.
type DaemonConfig struct {
	Schedule    string `json:"schedule,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	WatchConfig *bool  `json:"watch_config,omitempty"`

	Pprof PprofConfig `json:"pprof,omitempty"`
}

// PprofConfig exposes net/http/pprof while the daemon runs.
// Default address: 127.0.0.1:6060.
type PprofConfig struct {
	Enabled              bool   `json:"enabled"`
	Addr                 string `json:"addr,omitempty"`
	BlockProfileRate     int    `json:"block_profile_rate,omitempty"`
	MutexProfileFraction int    `json:"mutex_profile_fraction,omitempty"`
}
