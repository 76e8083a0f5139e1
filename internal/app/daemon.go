package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guildmirror/internal/config"
	"guildmirror/internal/observability/pprof"
	"guildmirror/internal/runtime/supervisor"
	"guildmirror/internal/task/scheduler"
	logx "guildmirror/pkg/logx"
	"guildmirror/pkg/systemd"
)

const stopTimeout = 30 * time.Second

// Daemon runs a mirror at startup and then on the configured schedule until
// ctx is done. With watch_config set, edits to the config file are applied
// between runs.
func (a *App) Daemon(ctx context.Context) error {
	s := a.Settings()
	spec, err := scheduler.ParseSchedule(s.Daemon.Schedule)
	if err != nil {
		return fmt.Errorf("daemon.schedule: %w", err)
	}
	loc, err := scheduler.LoadLocation(s.Daemon.Timezone)
	if err != nil {
		return fmt.Errorf("daemon.timezone: %w", err)
	}

	log := a.log.With(logx.String("comp", "daemon"))
	sd := systemd.New(a.log)
	sup := supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))

	var sched *scheduler.Scheduler
	sched = scheduler.New(loc, func(ctx context.Context) {
		a.runLogged(ctx, triggerFrom(ctx))
		sd.Status(statusLine(sched, "idle"))
	}, a.log.With(logx.String("comp", "scheduler")))
	if err := sched.Set(spec); err != nil {
		return err
	}

	dbg := pprof.New(a.log)
	dbg.Apply(ctx, pprofConfig(s.Daemon.Pprof))

	var updates chan *config.Config
	if s.Daemon.WatchConfig && a.cfgm.Path() != "" {
		a.cfgm.SetValidator(a.validateReload)
		updates = a.cfgm.Subscribe(4)
		sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)
		sup.Go0("config.apply", func(ctx context.Context) {
			for {
				select {
				case <-ctx.Done():
					return
				case cfg, ok := <-updates:
					if !ok {
						return
					}
					sd.Reloading()
					a.applyConfig(cfg, sched, dbg, log)
					sd.Ready()
				}
			}
		})
		log.Info("watching config", logx.String("path", a.cfgm.Path()))
	}

	if wd := systemd.WatchdogInterval(); wd > 0 {
		sup.Go0("systemd.watchdog", func(ctx context.Context) { sd.Watchdog(ctx, wd) })
	}

	sched.Start(sup.Context())
	sd.Ready()
	log.Info("daemon started", logx.String("schedule", spec.String()), logx.String("tz", loc.String()))

	sup.Go0("run.startup", func(ctx context.Context) {
		sd.Status("running startup mirror")
		sched.RunNow(withTrigger(ctx, TriggerStartup))
	})

	<-ctx.Done()
	log.Info("shutting down")
	sd.Stopping()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	var errs []error
	if err := sched.Stop(stopCtx); err != nil {
		errs = append(errs, err)
	}
	if err := sup.Stop(stopCtx); err != nil {
		errs = append(errs, err)
	}
	dbg.Stop(stopCtx)
	if updates != nil {
		a.cfgm.Unsubscribe(updates)
	}
	return errors.Join(errs...)
}

type triggerKey struct{}

func withTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

// triggerFrom defaults to a scheduled run; cron ticks carry no trigger.
func triggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok {
		return t
	}
	return TriggerSchedule
}

func statusLine(sched *scheduler.Scheduler, state string) string {
	if sched == nil {
		return state
	}
	next := sched.Next()
	if next.IsZero() {
		return state
	}
	return fmt.Sprintf("%s, next run %s", state, next.Format(time.RFC3339))
}

// runLogged is a scheduled run; failures are logged, never returned.
func (a *App) runLogged(ctx context.Context, trigger string) {
	if _, err := a.RunOnce(ctx, trigger); err != nil {
		if ctx.Err() != nil {
			a.log.Info("run interrupted", logx.String("trigger", trigger))
			return
		}
		a.log.Error("run failed", logx.String("trigger", trigger), logx.Err(err))
	}
}

// validateReload rejects a changed config before it is committed. Answers
// typed at startup fill fields the file still leaves empty.
func (a *App) validateReload(_ context.Context, cfg *config.Config) error {
	a.mu.RLock()
	p := a.prompted
	a.mu.RUnlock()
	inheritPrompted(cfg, p)

	s, err := resolve(cfg)
	if err != nil {
		return err
	}
	if _, err := scheduler.ParseSchedule(s.Daemon.Schedule); err != nil {
		return fmt.Errorf("daemon.schedule: %w", err)
	}
	return nil
}

// applyConfig swaps in a validated config. Storage and timezone are fixed
// for the life of the process.
func (a *App) applyConfig(cfg *config.Config, sched *scheduler.Scheduler, dbg *pprof.Server, log logx.Logger) {
	s, err := resolve(cfg)
	if err != nil {
		log.Warn("config apply failed", logx.Err(err))
		return
	}
	prev := a.Settings()

	a.logs.Apply(logConfig(cfg.Logging))

	if s.Daemon.Schedule != prev.Daemon.Schedule {
		spec, err := scheduler.ParseSchedule(s.Daemon.Schedule)
		if err == nil {
			err = sched.Set(spec)
		}
		if err != nil {
			log.Warn("schedule not changed", logx.Err(err))
			s.Daemon.Schedule = prev.Daemon.Schedule
		}
	}
	if s.Telegram != prev.Telegram {
		if err := a.applyNotifier(s.Telegram); err != nil {
			log.Warn("notifier not changed", logx.Err(err))
			s.Telegram = prev.Telegram
		}
	}
	if s.Daemon.Pprof != prev.Daemon.Pprof {
		dbg.Apply(context.Background(), pprofConfig(s.Daemon.Pprof))
	}
	if s.Storage != prev.Storage {
		log.Warn("storage settings changed; restart to apply")
		s.Storage = prev.Storage
	}
	if s.Daemon.Timezone != prev.Daemon.Timezone {
		log.Warn("daemon.timezone changed; restart to apply")
		s.Daemon.Timezone = prev.Daemon.Timezone
	}
	if s.Daemon.WatchConfig != prev.Daemon.WatchConfig {
		log.Warn("daemon.watch_config changed; restart to apply")
		s.Daemon.WatchConfig = prev.Daemon.WatchConfig
	}

	a.mu.Lock()
	a.settings = s
	a.mu.Unlock()
	log.Info("config applied", logx.String("schedule", s.Daemon.Schedule))
}

func pprofConfig(p config.PprofSettings) pprof.Config {
	return pprof.Config{
		Enabled:              p.Enabled,
		Addr:                 p.Addr,
		BlockProfileRate:     p.BlockProfileRate,
		MutexProfileFraction: p.MutexProfileFraction,
	}
}
