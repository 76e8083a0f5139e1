package clone

import (
	"context"
	"sync/atomic"
	"time"

	"guildmirror/internal/discord"
)

// API is the part of the REST client the replicator needs.
type API interface {
	Roles(ctx context.Context, guildID string) ([]discord.Role, error)
	CreateRole(ctx context.Context, guildID string, params discord.RoleParams, reason string) (discord.Role, error)
	DeleteRole(ctx context.Context, guildID, roleID, reason string) error

	Channels(ctx context.Context, guildID string) ([]discord.Channel, error)
	CreateChannel(ctx context.Context, guildID string, params discord.ChannelParams, reason string) (discord.Channel, error)
	DeleteChannel(ctx context.Context, channelID, reason string) error

	Messages(ctx context.Context, channelID string, limit int, before string) ([]discord.Message, error)

	CreateWebhook(ctx context.Context, channelID, name, reason string) (discord.Webhook, error)
	ExecuteWebhook(ctx context.Context, hook discord.Webhook, msg discord.WebhookMessage) (discord.Message, error)
	DeleteWebhook(ctx context.Context, webhookID, reason string) error
}

const (
	DefaultDelay        = 600 * time.Millisecond
	DefaultMessageLimit = 100
	DefaultConcurrency  = 3
	DefaultWebhookName  = "CloneBot"

	wipeReason    = "Wiped before clone"
	cloneReason   = "Guild mirror"
	webhookReason = "Message cloning"
)

// Options tune a replication run.
type Options struct {
	SkipChannelIDs []string
	// Delay is slept after every successful write request.
	Delay        time.Duration
	MessageLimit int
	// Concurrency bounds how many channels copy messages at once. Values
	// below 1 are treated as 1.
	Concurrency int
	WebhookName string
}

func (o Options) withDefaults() Options {
	if o.Delay < 0 {
		o.Delay = 0
	}
	if o.MessageLimit <= 0 {
		o.MessageLimit = DefaultMessageLimit
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.WebhookName == "" {
		o.WebhookName = DefaultWebhookName
	}
	return o
}

// Plan selects the steps of a run. Steps execute in field order.
type Plan struct {
	Source string
	Target string

	WipeChannels bool
	WipeRoles    bool
	Roles        bool
	Channels     bool
	Messages     bool
}

// Stats counts what a run created. Safe for concurrent use.
type Stats struct {
	roles         atomic.Int64
	categories    atomic.Int64
	textChannels  atomic.Int64
	voiceChannels atomic.Int64
	messages      atomic.Int64
	errors        atomic.Int64
}

// Counts is a point-in-time copy of Stats.
type Counts struct {
	Roles         int `json:"roles"`
	Categories    int `json:"categories"`
	TextChannels  int `json:"text_channels"`
	VoiceChannels int `json:"voice_channels"`
	Messages      int `json:"messages"`
	Errors        int `json:"errors"`
}

func (s *Stats) Snapshot() Counts {
	return Counts{
		Roles:         int(s.roles.Load()),
		Categories:    int(s.categories.Load()),
		TextChannels:  int(s.textChannels.Load()),
		VoiceChannels: int(s.voiceChannels.Load()),
		Messages:      int(s.messages.Load()),
		Errors:        int(s.errors.Load()),
	}
}

// Summary is the outcome of Replicator.Run.
type Summary struct {
	Source   string
	Target   string
	Started  time.Time
	Elapsed  time.Duration
	Counts   Counts
	Channels []ChannelResult
	// Err is the fatal error that stopped the run early, if any. Per-item
	// failures only show up in Counts.Errors.
	Err error
}

// ChannelResult is what one message job reports back to the scheduler.
type ChannelResult struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Name     string `json:"name"`
	Fetched  int    `json:"fetched"`
	Sent     int    `json:"sent"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Err      string `json:"err,omitempty"`
}

// Event types published on the bus.
const (
	EventStep     = "clone.step"
	EventProgress = "clone.progress"
	EventError    = "clone.error"
	EventDone     = "clone.done"
)

// Progress is the payload of EventProgress.
type Progress struct {
	Scope string
	Done  int
	Total int
}

// Failure is the payload of EventError.
type Failure struct {
	Scope string
	Item  string
	Err   string
}
