package clone

import (
	"context"
	"fmt"
	"sort"

	"guildmirror/internal/discord"
	logx "guildmirror/pkg/logx"
)

// CloneChannels copies categories, then text channels, then voice channels.
// Channels in the skip list are ignored; children are attached to the copy
// of their category when that category was cloned.
func (r *Replicator) CloneChannels(ctx context.Context, source, target string) error {
	r.step("Cloning Categories & Channels")
	all, err := r.api.Channels(ctx, source)
	if err != nil {
		return fmt.Errorf("list source channels: %w", err)
	}

	for _, kind := range []discord.ChannelType{discord.ChannelCategory, discord.ChannelText, discord.ChannelVoice} {
		if err := r.cloneChannelKind(ctx, target, r.channelsOf(all, kind), kind); err != nil {
			return err
		}
	}

	c := r.stats.Snapshot()
	r.log.Info("channels done",
		logx.Int("categories", c.Categories),
		logx.Int("text", c.TextChannels),
		logx.Int("voice", c.VoiceChannels),
	)
	return nil
}

func (r *Replicator) channelsOf(all []discord.Channel, kind discord.ChannelType) []discord.Channel {
	out := make([]discord.Channel, 0, len(all))
	for _, ch := range all {
		if ch.Type == kind && !r.skipped(ch.ID) {
			out = append(out, ch)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return lessSnowflake(out[i].ID, out[j].ID)
	})
	return out
}

func (r *Replicator) cloneChannelKind(ctx context.Context, target string, channels []discord.Channel, kind discord.ChannelType) error {
	scope := kind.String() + " channels"
	r.progress(scope, 0, len(channels))
	for i, ch := range channels {
		if err := ctx.Err(); err != nil {
			return err
		}
		created, err := r.api.CreateChannel(ctx, target, r.channelParams(ch), cloneReason)
		if err != nil {
			r.fail(kind.String()+" channel", ch.Name, err)
		} else {
			r.ids.SetChannel(ch, created.ID)
			switch kind {
			case discord.ChannelCategory:
				r.stats.categories.Add(1)
			case discord.ChannelText:
				r.stats.textChannels.Add(1)
			case discord.ChannelVoice:
				r.stats.voiceChannels.Add(1)
			}
			r.log.Info(kind.String()+" cloned", logx.String("name", ch.Name))
			if err := r.pause(ctx); err != nil {
				return err
			}
		}
		r.progress(scope, i+1, len(channels))
	}
	return nil
}

func (r *Replicator) channelParams(ch discord.Channel) discord.ChannelParams {
	p := discord.ChannelParams{Name: ch.Name, Type: ch.Type, Position: ch.Position}
	if ch.ParentID != "" && ch.Type != discord.ChannelCategory {
		if parent, ok := r.ids.Channel(ch.ParentID); ok {
			p.ParentID = parent
		}
	}
	switch ch.Type {
	case discord.ChannelText:
		p.Topic = ch.Topic
		p.NSFW = ch.NSFW
		p.RateLimitPerUser = ch.RateLimitPerUser
	case discord.ChannelVoice:
		p.Bitrate = ch.Bitrate
		p.UserLimit = ch.UserLimit
	}
	return p
}
