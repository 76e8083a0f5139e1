// Package app wires configuration, logging, the Discord client, the
// replicator and the optional history/notifier/daemon pieces together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"guildmirror/internal/config"
	"guildmirror/internal/notifier"
	"guildmirror/internal/prompt"
	"guildmirror/internal/storage"
	logx "guildmirror/pkg/logx"
)

// Options are the process-level inputs.
type Options struct {
	ConfigPath string

	// Prompt for missing settings on Stdin. Set when stdin is a terminal.
	Interactive bool
	Stdin       io.Reader
	// Stdout receives progress and the summary box.
	Stdout io.Writer
	// Color enables ANSI styling of prompts and progress.
	Color bool
	// Inline redraws progress bars in place.
	Inline bool
	// HistoryOnly opens storage without prompting or validating the clone
	// settings.
	HistoryOnly bool
}

type App struct {
	opts Options

	cfgm *config.ConfigManager
	logs *logx.Service
	log  logx.Logger

	mu       sync.RWMutex
	settings config.Settings
	// prompted holds answers typed at startup; reloads keep them.
	prompted config.Config

	store  storage.Store
	notify notifier.Sender
}

// New loads the config (prompting for what is missing when interactive),
// validates it and opens the configured store.
func New(opts Options) (*App, error) {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfg, err := cfgm.Parse()
	if err != nil {
		return nil, err
	}

	var prompted config.Config
	if opts.Interactive && opts.Stdin != nil && !opts.HistoryOnly {
		before := *cfg
		pr := prompt.New(opts.Stdin, opts.Stdout, opts.Color)
		if err := pr.Fill(cfg, cfgm.Path() == ""); err != nil {
			return nil, err
		}
		prompted = promptedFields(before, *cfg)
	}

	var settings config.Settings
	if opts.HistoryOnly {
		settings, err = cfg.Resolve()
	} else {
		settings, err = resolve(cfg)
	}
	if err != nil {
		return nil, err
	}
	cfgm.Commit(cfg)

	logSvc, log := logx.New(logConfig(cfg.Logging))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{
		opts:     opts,
		cfgm:     cfgm,
		logs:     logSvc,
		log:      log.With(logx.String("comp", "app")),
		settings: settings,
		prompted: prompted,
	}

	if sc, enabled := mapStorageConfig(settings.Storage); enabled {
		st, err := storage.Open(sc, log)
		if err != nil {
			_ = logSvc.Close()
			return nil, fmt.Errorf("storage: %w", err)
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	if !opts.HistoryOnly {
		if err := a.applyNotifier(settings.Telegram); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

func resolve(cfg *config.Config) (config.Settings, error) {
	s, err := cfg.Resolve()
	if err != nil {
		return config.Settings{}, err
	}
	if err := s.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingField) {
			return config.Settings{}, fmt.Errorf("%w (missing: %s)", err, strings.Join(s.Missing(), ", "))
		}
		return config.Settings{}, err
	}
	return s, nil
}

func logConfig(l config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
	}
}

// promptedFields keeps only the required values the prompt filled in.
func promptedFields(before, after config.Config) config.Config {
	var p config.Config
	if before.Discord.Token == "" {
		p.Discord.Token = after.Discord.Token
	}
	if before.Clone.SourceGuild == "" {
		p.Clone.SourceGuild = after.Clone.SourceGuild
	}
	if before.Clone.TargetGuild == "" {
		p.Clone.TargetGuild = after.Clone.TargetGuild
	}
	return p
}

// inheritPrompted copies prompted answers into a reloaded config that
// still leaves them empty.
func inheritPrompted(cfg *config.Config, p config.Config) {
	if cfg.Discord.Token == "" {
		cfg.Discord.Token = p.Discord.Token
	}
	if cfg.Clone.SourceGuild == "" {
		cfg.Clone.SourceGuild = p.Clone.SourceGuild
	}
	if cfg.Clone.TargetGuild == "" {
		cfg.Clone.TargetGuild = p.Clone.TargetGuild
	}
}

func (a *App) applyNotifier(tg config.TelegramSettings) error {
	if !tg.Enabled {
		a.mu.Lock()
		a.notify = nil
		a.mu.Unlock()
		return nil
	}
	t, err := notifier.NewTelegram(notifier.TelegramConfig{
		Token:    tg.Token,
		ChatID:   tg.ChatID,
		ThreadID: tg.ThreadID,
		Timeout:  tg.Timeout,
	}, a.log)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	a.mu.Lock()
	a.notify = t
	a.mu.Unlock()
	return nil
}

func (a *App) sender() notifier.Sender {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.notify
}

// Settings returns the current resolved settings.
func (a *App) Settings() config.Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Close())
	}
	return errors.Join(errs...)
}

// History prints the last n recorded runs.
func (a *App) History(ctx context.Context, n int) error {
	if a.store == nil {
		return storage.ErrDisabled
	}
	runs, err := a.store.RecentRuns(ctx, n)
	if err != nil {
		return err
	}
	writeHistory(a.opts.Stdout, runs)
	return nil
}
