package clone

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"guildmirror/internal/discord"
	"guildmirror/internal/eventbus"
	logx "guildmirror/pkg/logx"
)

type Replicator struct {
	api  API
	opts Options
	log  logx.Logger
	bus  eventbus.Bus

	skip  map[string]struct{}
	ids   *IDMap
	stats *Stats

	channelResults []ChannelResult

	// sleep waits between requests; tests swap it out.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(api API, opts Options, log logx.Logger, bus eventbus.Bus) *Replicator {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.New()
	}
	opts = opts.withDefaults()
	skip := make(map[string]struct{}, len(opts.SkipChannelIDs))
	for _, id := range opts.SkipChannelIDs {
		if id != "" {
			skip[id] = struct{}{}
		}
	}
	return &Replicator{
		api:   api,
		opts:  opts,
		log:   log.With(logx.String("comp", "clone")),
		bus:   bus,
		skip:  skip,
		ids:   NewIDMap(),
		stats: &Stats{},
		sleep: sleepCtx,
	}
}

func (r *Replicator) IDs() *IDMap      { return r.ids }
func (r *Replicator) Stats() *Stats    { return r.stats }
func (r *Replicator) Options() Options { return r.opts }

// Run executes the steps selected by plan in order: wipe channels, wipe
// roles, roles, channels, messages. A fatal error (listing the source guild,
// a cancelled context) stops the remaining steps and is reported in
// Summary.Err; per-item failures are only counted.
func (r *Replicator) Run(ctx context.Context, plan Plan) Summary {
	sum := Summary{Source: plan.Source, Target: plan.Target, Started: time.Now()}

	steps := []struct {
		on  bool
		run func(context.Context) error
	}{
		{plan.WipeChannels, func(ctx context.Context) error { return r.WipeChannels(ctx, plan.Target) }},
		{plan.WipeRoles, func(ctx context.Context) error { return r.WipeRoles(ctx, plan.Target) }},
		{plan.Roles, func(ctx context.Context) error { return r.CloneRoles(ctx, plan.Source, plan.Target) }},
		{plan.Channels, func(ctx context.Context) error { return r.CloneChannels(ctx, plan.Source, plan.Target) }},
		{plan.Messages, func(ctx context.Context) error {
			_, err := r.CloneAllMessages(ctx)
			return err
		}},
	}
	for _, st := range steps {
		if !st.on {
			continue
		}
		if err := st.run(ctx); err != nil {
			r.log.Error("fatal", logx.Err(err))
			sum.Err = err
			break
		}
	}

	sum.Elapsed = time.Since(sum.Started)
	sum.Counts = r.stats.Snapshot()
	sum.Channels = append([]ChannelResult(nil), r.channelResults...)
	r.publish(EventDone, sum)
	return sum
}

func (r *Replicator) publish(typ string, data any) {
	r.bus.Publish(eventbus.Event{Type: typ, Data: data})
}

func (r *Replicator) step(name string) {
	r.log.Info(name)
	r.publish(EventStep, name)
}

func (r *Replicator) progress(scope string, done, total int) {
	r.publish(EventProgress, Progress{Scope: scope, Done: done, Total: total})
}

// fail logs and counts a contained failure.
func (r *Replicator) fail(scope, item string, err error) {
	r.stats.errors.Add(1)
	r.log.Error(scope+" failed", logx.String("item", item), logx.Err(err))
	r.publish(EventError, Failure{Scope: scope, Item: item, Err: err.Error()})
}

func (r *Replicator) pause(ctx context.Context) error {
	return r.sleep(ctx, r.opts.Delay)
}

func (r *Replicator) skipped(id string) bool {
	_, ok := r.skip[id]
	return ok
}

// WipeChannels deletes every channel of the target guild.
func (r *Replicator) WipeChannels(ctx context.Context, target string) error {
	r.step("Wiping Channels from Target Server")
	channels, err := r.api.Channels(ctx, target)
	if err != nil {
		return fmt.Errorf("list target channels: %w", err)
	}
	// Children before categories so nothing is orphaned mid-wipe.
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].Type != discord.ChannelCategory && channels[j].Type == discord.ChannelCategory
	})

	r.progress("wipe channels", 0, len(channels))
	for i, ch := range channels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.api.DeleteChannel(ctx, ch.ID, wipeReason); err != nil {
			r.fail("delete channel", ch.Name, err)
		} else {
			r.log.Warn("deleted channel", logx.String("name", ch.Name))
			if err := r.pause(ctx); err != nil {
				return err
			}
		}
		r.progress("wipe channels", i+1, len(channels))
	}
	r.log.Info("channel wipe done", logx.Int("processed", len(channels)))
	return nil
}

// WipeRoles deletes the target guild's roles, highest first, keeping
// @everyone and integration-managed roles.
func (r *Replicator) WipeRoles(ctx context.Context, target string) error {
	r.step("Wiping Roles from Target Server")
	all, err := r.api.Roles(ctx, target)
	if err != nil {
		return fmt.Errorf("list target roles: %w", err)
	}
	roles := make([]discord.Role, 0, len(all))
	for _, role := range all {
		if isEveryone(role, target) || role.Managed {
			continue
		}
		roles = append(roles, role)
	}
	sort.SliceStable(roles, func(i, j int) bool { return roles[i].Position > roles[j].Position })

	r.progress("wipe roles", 0, len(roles))
	for i, role := range roles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.api.DeleteRole(ctx, target, role.ID, wipeReason); err != nil {
			r.fail("delete role", role.Name, err)
		} else {
			r.log.Warn("deleted role", logx.String("name", role.Name))
			if err := r.pause(ctx); err != nil {
				return err
			}
		}
		r.progress("wipe roles", i+1, len(roles))
	}
	r.log.Info("role wipe done", logx.Int("processed", len(roles)))
	return nil
}

func isEveryone(role discord.Role, guildID string) bool {
	return role.ID == guildID || role.Name == "@everyone"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsCanceled reports whether err came from the run's context ending.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
