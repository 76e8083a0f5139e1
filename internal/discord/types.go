package discord

import (
	"encoding/json"
	"time"
)

type ChannelType int

const (
	ChannelText     ChannelType = 0
	ChannelVoice    ChannelType = 2
	ChannelCategory ChannelType = 4
)

func (t ChannelType) String() string {
	switch t {
	case ChannelText:
		return "text"
	case ChannelVoice:
		return "voice"
	case ChannelCategory:
		return "category"
	default:
		return "other"
	}
}

type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator,omitempty"`
	GlobalName    string `json:"global_name,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

// Tag renders name#1234, or just the name for accounts without a discriminator.
func (u User) Tag() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

// AvatarURL is empty when the user has the default avatar.
func (u User) AvatarURL() string {
	if u.ID == "" || u.Avatar == "" {
		return ""
	}
	return "https://cdn.discordapp.com/avatars/" + u.ID + "/" + u.Avatar + ".png"
}

type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Hoist       bool   `json:"hoist"`
	Position    int    `json:"position"`
	Permissions string `json:"permissions"`
	Managed     bool   `json:"managed"`
	Mentionable bool   `json:"mentionable"`
}

// RoleParams is the body of POST /guilds/{id}/roles.
type RoleParams struct {
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Hoist       bool   `json:"hoist"`
	Permissions string `json:"permissions,omitempty"`
	Mentionable bool   `json:"mentionable"`
}

type Channel struct {
	ID               string      `json:"id"`
	GuildID          string      `json:"guild_id,omitempty"`
	Name             string      `json:"name"`
	Type             ChannelType `json:"type"`
	Position         int         `json:"position"`
	ParentID         string      `json:"parent_id,omitempty"`
	Topic            string      `json:"topic,omitempty"`
	NSFW             bool        `json:"nsfw,omitempty"`
	RateLimitPerUser int         `json:"rate_limit_per_user,omitempty"`
	Bitrate          int         `json:"bitrate,omitempty"`
	UserLimit        int         `json:"user_limit,omitempty"`
}

// ChannelParams is the body of POST /guilds/{id}/channels.
type ChannelParams struct {
	Name             string      `json:"name"`
	Type             ChannelType `json:"type"`
	Position         int         `json:"position"`
	ParentID         string      `json:"parent_id,omitempty"`
	Topic            string      `json:"topic,omitempty"`
	NSFW             bool        `json:"nsfw,omitempty"`
	RateLimitPerUser int         `json:"rate_limit_per_user,omitempty"`
	Bitrate          int         `json:"bitrate,omitempty"`
	UserLimit        int         `json:"user_limit,omitempty"`
}

type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int    `json:"size"`
}

type Message struct {
	ID          string            `json:"id"`
	ChannelID   string            `json:"channel_id"`
	Author      User              `json:"author"`
	Content     string            `json:"content"`
	Timestamp   time.Time         `json:"timestamp"`
	Embeds      []json.RawMessage `json:"embeds,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`
}

type Webhook struct {
	ID        string `json:"id"`
	Token     string `json:"token"`
	ChannelID string `json:"channel_id"`
	Name      string `json:"name"`
}

type AllowedMentions struct {
	Parse []string `json:"parse"`
}

// WebhookMessage is the body of POST /webhooks/{id}/{token}.
type WebhookMessage struct {
	Content         string            `json:"content,omitempty"`
	Username        string            `json:"username,omitempty"`
	AvatarURL       string            `json:"avatar_url,omitempty"`
	Embeds          []json.RawMessage `json:"embeds,omitempty"`
	AllowedMentions *AllowedMentions  `json:"allowed_mentions,omitempty"`
}

// Empty reports whether the message has nothing the API would accept.
func (m WebhookMessage) Empty() bool { return m.Content == "" && len(m.Embeds) == 0 }
