package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"guildmirror/internal/clone"
	"guildmirror/internal/config"
	"guildmirror/internal/discord"
	"guildmirror/internal/eventbus"
	"guildmirror/internal/notifier"
	"guildmirror/internal/progress"
	"guildmirror/internal/storage"
	logx "guildmirror/pkg/logx"
)

// ErrGuildNotFound means the account cannot see the source or target guild.
var ErrGuildNotFound = errors.New("guild not found")

const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
)

// guildLookup is the part of the client used before a run starts.
type guildLookup interface {
	Me(ctx context.Context) (discord.User, error)
	Guilds(ctx context.Context) ([]discord.Guild, error)
	Guild(ctx context.Context, guildID string) (discord.Guild, error)
}

// resolveGuilds logs in and finds both guilds. The visible-guild list is
// tried first; a guild missing from it is fetched directly.
func resolveGuilds(ctx context.Context, api guildLookup, sourceID, targetID string, log logx.Logger) (src, dst discord.Guild, err error) {
	log.Info("connecting to Discord")
	me, err := api.Me(ctx)
	if err != nil {
		return src, dst, fmt.Errorf("login failed: %w", err)
	}
	log.Info("logged in", logx.String("user", me.Tag()))

	guilds, err := api.Guilds(ctx)
	if err != nil {
		log.Warn("list guilds failed", logx.Err(err))
	} else {
		log.Info("visible in servers", logx.Int("count", len(guilds)))
	}

	find := func(kind, id string) (discord.Guild, error) {
		for _, g := range guilds {
			if g.ID == id {
				return g, nil
			}
		}
		g, err := api.Guild(ctx, id)
		if err != nil {
			if discord.IsNotFound(err) || discord.IsStatus(err, http.StatusForbidden) {
				return g, fmt.Errorf("%s server %s: %w", kind, id, ErrGuildNotFound)
			}
			return g, fmt.Errorf("%s server %s: %w", kind, id, err)
		}
		return g, nil
	}

	if src, err = find("source", sourceID); err != nil {
		return src, dst, err
	}
	if dst, err = find("target", targetID); err != nil {
		return src, dst, err
	}
	log.Info("source", logx.String("name", src.Name), logx.String("id", src.ID))
	log.Info("target", logx.String("name", dst.Name), logx.String("id", dst.ID))
	return src, dst, nil
}

func cloneOptions(s config.CloneSettings) clone.Options {
	return clone.Options{
		SkipChannelIDs: s.SkipChannels,
		Delay:          s.Delay,
		MessageLimit:   s.MessageLimit,
		Concurrency:    s.Concurrency,
		WebhookName:    s.WebhookName,
	}
}

func clonePlan(s config.CloneSettings) clone.Plan {
	return clone.Plan{
		Source:       s.SourceGuild,
		Target:       s.TargetGuild,
		WipeChannels: s.WipeChannels,
		WipeRoles:    s.WipeRoles,
		Roles:        s.Roles,
		Channels:     s.Channels,
		Messages:     s.Messages,
	}
}

// RunOnce performs one full mirror with the current settings, prints the
// summary, records it and sends the notification. The returned error is the
// run's fatal error, if any.
func (a *App) RunOnce(ctx context.Context, trigger string) (clone.Summary, error) {
	s := a.Settings()
	log := a.log.With(logx.String("trigger", trigger))

	client, err := discord.New(discord.Config{
		Token:      s.Discord.Token,
		AuthScheme: s.Discord.AuthScheme,
		APIBase:    s.Discord.APIBase,
		Timeout:    s.Discord.Timeout,
		RatePerSec: s.Discord.RatePerSec,
	}, a.log)
	if err != nil {
		return clone.Summary{}, err
	}
	defer client.Close()

	src, dst, err := resolveGuilds(ctx, client, s.Clone.SourceGuild, s.Clone.TargetGuild, log)
	if err != nil {
		return clone.Summary{}, err
	}

	skip := "(none)"
	if len(s.Clone.SkipChannels) > 0 {
		skip = strings.Join(s.Clone.SkipChannels, ", ")
	}
	log.Info("run options",
		logx.String("skip", skip),
		logx.Duration("delay", s.Clone.Delay),
		logx.Int("msg_limit", s.Clone.MessageLimit),
		logx.Int("concurrency", s.Clone.Concurrency),
	)

	bus := eventbus.New()
	view := progress.New(a.opts.Stdout, progress.WithColor(a.opts.Color), progress.WithInline(a.opts.Inline))
	stopView := view.Attach(bus)

	rep := clone.New(client, cloneOptions(s.Clone), a.log, bus)
	sum := rep.Run(ctx, clonePlan(s.Clone))

	stopView()
	view.Summary(sum)

	// The run is over; bookkeeping still happens after a cancel.
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if a.store != nil {
		rec := runRecord(sum, rep.IDs().Pairs(), src.Name, dst.Name, trigger)
		if id, err := a.store.RecordRun(bg, rec); err != nil {
			log.Warn("record run failed", logx.Err(err))
		} else {
			log.Debug("run recorded", logx.Int64("id", id))
		}
	}
	notifier.Notify(bg, a.sender(), notifier.Report{
		SourceName: src.Name,
		TargetName: dst.Name,
		Trigger:    trigger,
		Summary:    sum,
	}, log)

	if sum.Err != nil {
		return sum, sum.Err
	}
	log.Info("run finished", logx.Int("messages", sum.Counts.Messages), logx.Int("errors", sum.Counts.Errors), logx.Duration("elapsed", sum.Elapsed))
	return sum, nil
}

func runRecord(sum clone.Summary, pairs []clone.IDPair, srcName, dstName, trigger string) storage.RunRecord {
	c := sum.Counts
	rec := storage.RunRecord{
		StartedAt:     sum.Started,
		ElapsedMS:     sum.Elapsed.Milliseconds(),
		Source:        sum.Source,
		SourceName:    srcName,
		Target:        sum.Target,
		TargetName:    dstName,
		Trigger:       trigger,
		Roles:         c.Roles,
		Categories:    c.Categories,
		TextChannels:  c.TextChannels,
		VoiceChannels: c.VoiceChannels,
		Messages:      c.Messages,
		Errors:        c.Errors,
	}
	if sum.Err != nil {
		rec.Error = sum.Err.Error()
	}
	for _, ch := range sum.Channels {
		rec.Channels = append(rec.Channels, storage.ChannelRecord{
			SourceID: ch.SourceID,
			TargetID: ch.TargetID,
			Name:     ch.Name,
			Fetched:  ch.Fetched,
			Sent:     ch.Sent,
			Skipped:  ch.Skipped,
			Failed:   ch.Failed,
			Error:    ch.Err,
		})
	}
	for _, p := range pairs {
		rec.IDs = append(rec.IDs, storage.IDRecord{Kind: p.Kind, SourceID: p.SourceID, TargetID: p.TargetID})
	}
	return rec
}
