package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": append-only jsonl file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	// Keep bounds how many runs are retained; 0 means DefaultKeep.
	Keep int
}

const DefaultKeep = 500

// RunRecord is one finished run. ID is assigned by the store.
type RunRecord struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	ElapsedMS  int64     `json:"elapsed_ms"`
	Source     string    `json:"source"`
	SourceName string    `json:"source_name,omitempty"`
	Target     string    `json:"target"`
	TargetName string    `json:"target_name,omitempty"`
	Trigger    string    `json:"trigger,omitempty"` // "manual", "schedule"

	Roles         int    `json:"roles"`
	Categories    int    `json:"categories"`
	TextChannels  int    `json:"text_channels"`
	VoiceChannels int    `json:"voice_channels"`
	Messages      int    `json:"messages"`
	Errors        int    `json:"errors"`
	Error         string `json:"error,omitempty"`

	Channels []ChannelRecord `json:"channels,omitempty"`
	IDs      []IDRecord      `json:"ids,omitempty"`
}

func (r RunRecord) Elapsed() time.Duration { return time.Duration(r.ElapsedMS) * time.Millisecond }

// ChannelRecord is the message-copy outcome for one channel.
type ChannelRecord struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Name     string `json:"name"`
	Fetched  int    `json:"fetched"`
	Sent     int    `json:"sent"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
}

// IDRecord maps one source entity to its copy.
type IDRecord struct {
	Kind     string `json:"kind"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}
