package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"guildmirror/internal/app"
	"guildmirror/internal/prompt"
)

func main() {
	var (
		cfgPath string
		once    bool
		history int
	)
	flag.StringVar(&cfgPath, "config", "", "path to config json/yaml (empty: ask for everything)")
	flag.BoolVar(&once, "once", false, "run a single mirror even if a schedule is configured")
	flag.IntVar(&history, "history", 0, "print the last N recorded runs and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stdoutTTY := prompt.IsTerminal(os.Stdout)
	a, err := app.New(app.Options{
		ConfigPath:  cfgPath,
		Interactive: prompt.IsTerminal(os.Stdin),
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Color:       stdoutTTY,
		Inline:      stdoutTTY,
		HistoryOnly: history > 0,
	})
	if err != nil {
		if errors.Is(err, prompt.ErrNoInput) {
			fmt.Println("fatal: input closed before setup finished")
		} else {
			fmt.Println("fatal:", err)
		}
		os.Exit(1)
	}

	err = run(ctx, a, once, history)
	_ = a.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, once bool, history int) error {
	if history > 0 {
		return a.History(ctx, history)
	}
	if a.Settings().Daemon.Schedule != "" && !once {
		return a.Daemon(ctx)
	}
	_, err := a.RunOnce(ctx, app.TriggerManual)
	return err
}
