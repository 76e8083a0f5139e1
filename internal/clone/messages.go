package clone

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"guildmirror/internal/discord"
	"guildmirror/internal/task/bounded"
	logx "guildmirror/pkg/logx"
)

const (
	maxContentRunes = 2000
	maxEmbeds       = 10
	pageSize        = 100
)

// CloneAllMessages copies message history for every cloned text channel that
// is not skipped, running up to Options.Concurrency channels at once.
//
// Only channels created by CloneChannels in this run are considered.
func (r *Replicator) CloneAllMessages(ctx context.Context) ([]ChannelResult, error) {
	r.step("Cloning Messages")

	var pairs []MappedChannel
	for _, mc := range r.ids.Channels() {
		if mc.Source.Type == discord.ChannelText && !r.skipped(mc.Source.ID) {
			pairs = append(pairs, mc)
		}
	}
	r.log.Info("cloning messages",
		logx.Int("channels", len(pairs)),
		logx.Int("concurrency", r.opts.Concurrency),
		logx.Int("limit", r.opts.MessageLimit),
	)

	tasks := make([]bounded.Task[ChannelResult], len(pairs))
	for i, mc := range pairs {
		mc := mc
		tasks[i] = func() (ChannelResult, error) {
			return r.CloneMessages(ctx, mc.Source, mc.TargetID), nil
		}
	}

	results, err := bounded.Run(tasks, r.opts.Concurrency)
	r.channelResults = append(r.channelResults, results...)
	if err != nil {
		return results, fmt.Errorf("message jobs: %w", err)
	}

	r.log.Info("messages done", logx.Int("sent", r.stats.Snapshot().Messages))
	return results, nil
}

// CloneMessages copies the last MessageLimit messages of src into the channel
// targetID through a temporary webhook. It never returns an error: failures
// are logged, counted and reported in the result.
func (r *Replicator) CloneMessages(ctx context.Context, src discord.Channel, targetID string) ChannelResult {
	res := ChannelResult{SourceID: src.ID, TargetID: targetID, Name: src.Name}
	scope := "#" + src.Name
	log := r.log.With(logx.String("channel", src.Name))

	hook, err := r.api.CreateWebhook(ctx, targetID, r.opts.WebhookName, webhookReason)
	if err != nil {
		r.fail("clone messages", scope, err)
		res.Err = err.Error()
		return res
	}
	defer func() {
		// The webhook must go even if the run was cancelled.
		dctx := context.WithoutCancel(ctx)
		if err := r.api.DeleteWebhook(dctx, hook.ID, webhookReason); err != nil {
			r.fail("delete webhook", scope, err)
		}
	}()

	msgs, err := r.fetchMessages(ctx, src.ID)
	res.Fetched = len(msgs)
	if err != nil {
		r.fail("clone messages", scope, err)
		res.Err = err.Error()
		if len(msgs) == 0 {
			return res
		}
	}

	r.progress(scope, 0, len(msgs))
	for i, m := range msgs {
		if err := ctx.Err(); err != nil {
			res.Err = err.Error()
			break
		}
		out := webhookMessages(m)
		if len(out) == 0 {
			res.Skipped++
		}
		posted := 0
		for _, wm := range out {
			if _, err := r.api.ExecuteWebhook(ctx, hook, wm); err != nil {
				res.Failed++
				r.fail("message", scope, err)
				break
			}
			posted++
			if err := r.pause(ctx); err != nil {
				break
			}
		}
		// A split message counts once, and only when every part went out.
		if len(out) > 0 && posted == len(out) {
			res.Sent++
			r.stats.messages.Add(1)
		}
		r.progress(scope, i+1, len(msgs))
	}

	log.Debug("channel messages done", logx.Int("sent", res.Sent), logx.Int("skipped", res.Skipped), logx.Int("failed", res.Failed))
	return res
}

// fetchMessages pages backwards until MessageLimit messages are collected
// and returns them oldest first. On error the pages fetched so far are
// returned with it.
func (r *Replicator) fetchMessages(ctx context.Context, channelID string) ([]discord.Message, error) {
	var (
		out    []discord.Message
		before string
		err    error
	)
	for len(out) < r.opts.MessageLimit {
		want := min(pageSize, r.opts.MessageLimit-len(out))
		var page []discord.Message
		page, err = r.api.Messages(ctx, channelID, want, before)
		if err != nil {
			break
		}
		out = append(out, page...)
		if len(page) < want {
			break
		}
		before = page[len(page)-1].ID
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return lessSnowflake(out[i].ID, out[j].ID)
	})
	return out, err
}

// webhookMessages renders one source message as webhook posts. Attachments
// are linked by URL. Content over the API limit is split across posts;
// embeds ride on the last one. A message with nothing to send yields none.
func webhookMessages(m discord.Message) []discord.WebhookMessage {
	var b strings.Builder
	b.WriteString(m.Content)
	for _, a := range m.Attachments {
		if a.URL == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(a.URL)
	}

	embeds := m.Embeds
	if len(embeds) > maxEmbeds {
		embeds = embeds[:maxEmbeds]
	}

	chunks := splitRunes(b.String(), maxContentRunes)
	if len(chunks) == 0 && len(embeds) == 0 {
		return nil
	}
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	out := make([]discord.WebhookMessage, len(chunks))
	for i, c := range chunks {
		out[i] = discord.WebhookMessage{
			Content:         c,
			Username:        webhookUsername(m.Author),
			AvatarURL:       m.Author.AvatarURL(),
			AllowedMentions: &discord.AllowedMentions{Parse: []string{}},
		}
	}
	out[len(out)-1].Embeds = embeds
	return out
}

// webhookUsername keeps the author's name within the 1-80 rune window the
// API accepts.
func webhookUsername(u discord.User) string {
	name := strings.TrimSpace(u.Username)
	if name == "" {
		name = strings.TrimSpace(u.GlobalName)
	}
	if name == "" {
		return "unknown"
	}
	if utf8.RuneCountInString(name) > 80 {
		name = string([]rune(name)[:80])
	}
	return name
}

func splitRunes(s string, n int) []string {
	if s == "" {
		return nil
	}
	rs := []rune(s)
	out := make([]string, 0, len(rs)/n+1)
	for len(rs) > n {
		out = append(out, string(rs[:n]))
		rs = rs[n:]
	}
	return append(out, string(rs))
}
