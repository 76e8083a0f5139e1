// Package prompt asks for run settings on an interactive terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-isatty"

	"guildmirror/internal/config"
)

// ErrNoInput is returned when the input closes before a question is answered.
var ErrNoInput = errors.New("prompt: input closed")

var (
	styleMark   = color.New(color.FgCyan)
	styleHint   = color.New(color.OpFuzzy)
	styleBanner = color.New(color.OpBold, color.FgMagenta)
	styleWarn   = color.New(color.OpBold, color.FgRed)
	styleHead   = color.New(color.OpBold)
)

// IsTerminal reports whether f is attached to a TTY.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type Prompter struct {
	in      *bufio.Reader
	out     io.Writer
	colored bool
}

func New(in io.Reader, out io.Writer, colored bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, colored: colored}
}

func (p *Prompter) paint(s color.Style, text string) string {
	if !p.colored {
		return text
	}
	return s.Sprint(text)
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Ask prints question and returns the trimmed answer, or def when the
// answer is empty.
func (p *Prompter) Ask(question, def string) (string, error) {
	hint := ""
	if def != "" {
		hint = p.paint(styleHint, " ["+def+"]")
	}
	fmt.Fprintf(p.out, "%s %s%s: ", p.paint(styleMark, "?"), question, hint)
	a, err := p.readLine()
	if err != nil {
		return "", err
	}
	if a == "" {
		return def, nil
	}
	return a, nil
}

// AskYN accepts y/yes (any case) as yes; empty keeps def; anything else is no.
func (p *Prompter) AskYN(question string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Fprintf(p.out, "%s %s %s ", p.paint(styleMark, "?"), question, p.paint(styleHint, "("+hint+")"))
	a, err := p.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(a) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// AskInt falls back to def when the answer is empty, zero or not a number.
// Negative numbers are returned as typed.
func (p *Prompter) AskInt(question string, def int) (int, error) {
	a, err := p.Ask(fmt.Sprintf("%s (default %d)", question, def), "")
	if err != nil {
		return 0, err
	}
	n, perr := strconv.Atoi(a)
	if perr != nil || n == 0 {
		return def, nil
	}
	return n, nil
}

// Fill asks for whatever cfg is missing. Required fields (token, source,
// target) are always asked for when empty. With full set, every clone
// option is asked too, the way a first run without a config file goes.
func (p *Prompter) Fill(cfg *config.Config, full bool) error {
	if full {
		fmt.Fprintln(p.out, p.paint(styleBanner,
			"╔══════════════════════════════════════════════╗\n"+
				"║              guildmirror  setup              ║\n"+
				"╚══════════════════════════════════════════════╝"))
		fmt.Fprintln(p.out)
	}

	var err error
	ask := func(dst *string, q string) {
		if err != nil || *dst != "" {
			return
		}
		*dst, err = p.Ask(q, "")
	}
	askID := func(dst *config.ID, q string) {
		s := dst.String()
		ask(&s, q)
		*dst = config.ID(strings.TrimSpace(s))
	}

	ask(&cfg.Discord.Token, "User token")
	askID(&cfg.Clone.SourceGuild, "Source server ID")
	askID(&cfg.Clone.TargetGuild, "Target server ID")
	if err != nil || !full {
		return err
	}

	cl := &cfg.Clone
	if cl.SkipChannels == nil {
		var raw string
		if raw, err = p.Ask("Skip channel IDs (comma-separated, or leave blank)", ""); err != nil {
			return err
		}
		cl.SkipChannels = parseIDs(raw)
	}

	fmt.Fprintln(p.out, p.paint(styleWarn, "\n  ⚠  Target server wipe"))
	if cl.WipeChannels, err = p.AskYN("  Delete ALL channels from target server first?", false); err != nil {
		return err
	}
	if cl.WipeRoles, err = p.AskYN("  Delete ALL roles from target server first?", false); err != nil {
		return err
	}

	fmt.Fprintln(p.out, p.paint(styleHead, "\n  What to clone?"))
	for _, q := range []struct {
		dst  **bool
		text string
	}{
		{&cl.Roles, "  Clone roles?"},
		{&cl.Channels, "  Clone channels?"},
		{&cl.Messages, "  Clone messages?"},
	} {
		if *q.dst != nil {
			continue
		}
		v, err := p.AskYN(q.text, true)
		if err != nil {
			return err
		}
		*q.dst = &v
	}

	fmt.Fprintln(p.out, p.paint(styleHead, "\n  Performance options"))
	if cl.WebhookName == "" {
		if cl.WebhookName, err = p.Ask("  Webhook name for message cloning", config.DefaultWebhookName); err != nil {
			return err
		}
	}
	if cl.MessageLimit == 0 {
		if cl.MessageLimit, err = p.AskInt("  Messages per channel", config.DefaultMessageLimit); err != nil {
			return err
		}
	}
	if cl.Delay == "" {
		ms, err := p.AskInt("  Delay between requests ms", int(config.DefaultDelay.Milliseconds()))
		if err != nil {
			return err
		}
		cl.Delay = config.Delay(strconv.Itoa(max(ms, 0)))
	}
	if cl.Concurrency == 0 {
		if cl.Concurrency, err = p.AskInt("  Concurrent message channels", config.DefaultConcurrency); err != nil {
			return err
		}
	}
	fmt.Fprintln(p.out)
	return nil
}

func parseIDs(raw string) []config.ID {
	out := []config.ID{}
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, config.ID(v))
		}
	}
	return out
}
