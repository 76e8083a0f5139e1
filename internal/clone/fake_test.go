package clone

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"guildmirror/internal/discord"
)

// fakeAPI is an in-memory guild service.
type fakeAPI struct {
	mu sync.Mutex

	roles    map[string][]discord.Role
	channels map[string][]discord.Channel
	messages map[string][]discord.Message // channel -> newest first

	nextID   atomic.Int64
	webhooks map[string]discord.Webhook
	sent     map[string][]discord.WebhookMessage // target channel -> posts
	calls    []string

	// failures keyed by "op:name" (role/channel name, or channel id for messages).
	fail map[string]error

	inflightWebhooks atomic.Int32
	maxWebhooks      atomic.Int32
	sendDelay        time.Duration
}

func newFakeAPI() *fakeAPI {
	f := &fakeAPI{
		roles:    map[string][]discord.Role{},
		channels: map[string][]discord.Channel{},
		messages: map[string][]discord.Message{},
		webhooks: map[string]discord.Webhook{},
		sent:     map[string][]discord.WebhookMessage{},
		fail:     map[string]error{},
	}
	f.nextID.Store(9000)
	return f
}

func (f *fakeAPI) id() string { return strconv.FormatInt(f.nextID.Add(1), 10) }

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.fail[call]
}

func (f *fakeAPI) Roles(ctx context.Context, guildID string) ([]discord.Role, error) {
	if err := f.record("roles:" + guildID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]discord.Role(nil), f.roles[guildID]...), nil
}

func (f *fakeAPI) CreateRole(ctx context.Context, guildID string, p discord.RoleParams, reason string) (discord.Role, error) {
	if err := f.record("create-role:" + p.Name); err != nil {
		return discord.Role{}, err
	}
	r := discord.Role{ID: f.id(), Name: p.Name, Color: p.Color, Hoist: p.Hoist, Permissions: p.Permissions, Mentionable: p.Mentionable}
	f.mu.Lock()
	r.Position = len(f.roles[guildID])
	f.roles[guildID] = append(f.roles[guildID], r)
	f.mu.Unlock()
	return r, nil
}

func (f *fakeAPI) DeleteRole(ctx context.Context, guildID, roleID, reason string) error {
	if err := f.record("delete-role:" + roleID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rs := f.roles[guildID][:0]
	for _, r := range f.roles[guildID] {
		if r.ID != roleID {
			rs = append(rs, r)
		}
	}
	f.roles[guildID] = rs
	return nil
}

func (f *fakeAPI) Channels(ctx context.Context, guildID string) ([]discord.Channel, error) {
	if err := f.record("channels:" + guildID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]discord.Channel(nil), f.channels[guildID]...), nil
}

func (f *fakeAPI) CreateChannel(ctx context.Context, guildID string, p discord.ChannelParams, reason string) (discord.Channel, error) {
	if err := f.record("create-channel:" + p.Name); err != nil {
		return discord.Channel{}, err
	}
	ch := discord.Channel{
		ID: f.id(), GuildID: guildID, Name: p.Name, Type: p.Type, Position: p.Position, ParentID: p.ParentID,
		Topic: p.Topic, NSFW: p.NSFW, RateLimitPerUser: p.RateLimitPerUser, Bitrate: p.Bitrate, UserLimit: p.UserLimit,
	}
	f.mu.Lock()
	f.channels[guildID] = append(f.channels[guildID], ch)
	f.mu.Unlock()
	return ch, nil
}

func (f *fakeAPI) DeleteChannel(ctx context.Context, channelID, reason string) error {
	if err := f.record("delete-channel:" + channelID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for g, cs := range f.channels {
		out := cs[:0]
		for _, c := range cs {
			if c.ID != channelID {
				out = append(out, c)
			}
		}
		f.channels[g] = out
	}
	return nil
}

func (f *fakeAPI) Messages(ctx context.Context, channelID string, limit int, before string) ([]discord.Message, error) {
	if err := f.record(fmt.Sprintf("messages:%s:%s", channelID, before)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.messages[channelID]
	start := 0
	if before != "" {
		start = len(all)
		for i, m := range all {
			if m.ID == before {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(all))
	return append([]discord.Message(nil), all[start:end]...), nil
}

func (f *fakeAPI) CreateWebhook(ctx context.Context, channelID, name, reason string) (discord.Webhook, error) {
	if err := f.record("create-webhook:" + channelID); err != nil {
		return discord.Webhook{}, err
	}
	n := f.inflightWebhooks.Add(1)
	for {
		m := f.maxWebhooks.Load()
		if n <= m || f.maxWebhooks.CompareAndSwap(m, n) {
			break
		}
	}
	w := discord.Webhook{ID: f.id(), Token: "tok", ChannelID: channelID, Name: name}
	f.mu.Lock()
	f.webhooks[w.ID] = w
	f.mu.Unlock()
	return w, nil
}

func (f *fakeAPI) ExecuteWebhook(ctx context.Context, hook discord.Webhook, msg discord.WebhookMessage) (discord.Message, error) {
	if f.sendDelay > 0 {
		time.Sleep(f.sendDelay)
	}
	if err := f.record("send:" + msg.Content); err != nil {
		return discord.Message{}, err
	}
	f.mu.Lock()
	f.sent[hook.ChannelID] = append(f.sent[hook.ChannelID], msg)
	f.mu.Unlock()
	return discord.Message{ID: f.id(), Content: msg.Content}, nil
}

func (f *fakeAPI) DeleteWebhook(ctx context.Context, webhookID, reason string) error {
	if err := f.record("delete-webhook:" + webhookID); err != nil {
		return err
	}
	f.inflightWebhooks.Add(-1)
	f.mu.Lock()
	delete(f.webhooks, webhookID)
	f.mu.Unlock()
	return nil
}

func (f *fakeAPI) sentContents(channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent[channelID] {
		out = append(out, m.Content)
	}
	return out
}

func (f *fakeAPI) targetByName(guildID, name string) (discord.Channel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.channels[guildID] {
		if c.Name == name {
			return c, true
		}
	}
	return discord.Channel{}, false
}

func (f *fakeAPI) roleNames(guildID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.roles[guildID] {
		out = append(out, r.Name)
	}
	sort.Strings(out)
	return out
}

// seedMessages stores n messages newest first, with ids and timestamps
// increasing with age order reversed (m1 oldest).
func (f *fakeAPI) seedMessages(channelID string, n int) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := make([]discord.Message, 0, n)
	for i := n; i >= 1; i-- {
		msgs = append(msgs, discord.Message{
			ID:        strconv.Itoa(1000 + i),
			ChannelID: channelID,
			Author:    discord.User{ID: "u", Username: "alice"},
			Content:   "m" + strconv.Itoa(i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	f.mu.Lock()
	f.messages[channelID] = msgs
	f.mu.Unlock()
}
