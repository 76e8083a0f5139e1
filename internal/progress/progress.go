// Package progress renders replication events for a human watching the
// terminal: step banners, per-scope bars and the final summary box.
package progress

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/gookit/color"

	"guildmirror/internal/clone"
	"guildmirror/internal/eventbus"
)

const (
	DefaultWidth  = 30
	defaultBuffer = 256
)

var (
	styleBar     = color.New(color.FgGreen)
	styleDim     = color.New(color.OpFuzzy)
	styleStep    = color.New(color.OpBold, color.FgBlue)
	styleOK      = color.New(color.FgGreen)
	styleWarn    = color.New(color.FgYellow)
	styleErr     = color.New(color.FgRed)
	styleInfo    = color.New(color.FgCyan)
	styleBoxEdge = color.New(color.OpBold, color.FgGreen)
)

// Renderer writes to one terminal. Inline mode redraws bars in place with
// \r; otherwise only finished bars are printed so logs stay readable.
type Renderer struct {
	mu      sync.Mutex
	w       io.Writer
	colored bool
	inline  bool
	width   int

	open bool // a \r bar is on the current line
}

type Option func(*Renderer)

func WithColor(on bool) Option  { return func(r *Renderer) { r.colored = on } }
func WithInline(on bool) Option { return func(r *Renderer) { r.inline = on } }
func WithWidth(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.width = n
		}
	}
}

func New(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{w: w, width: DefaultWidth}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Renderer) paint(s color.Style, text string) string {
	if !r.colored {
		return text
	}
	return s.Sprint(text)
}

// Bar renders [███░░░] done/total. An empty total counts as complete.
func (r *Renderer) Bar(done, total int) string {
	pct := 1.0
	if total > 0 {
		pct = float64(done) / float64(total)
	}
	filled := int(math.Round(pct * float64(r.width)))
	filled = max(0, min(filled, r.width))
	return fmt.Sprintf("[%s%s] %d/%d",
		r.paint(styleBar, strings.Repeat("█", filled)),
		r.paint(styleDim, strings.Repeat("░", r.width-filled)),
		done, total,
	)
}

// Handle renders one event. Unknown event types are ignored; the summary is
// printed through Summary so it cannot be lost to a dropped delivery.
func (r *Renderer) Handle(e eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Type {
	case clone.EventStep:
		name, _ := e.Data.(string)
		r.endLine()
		fmt.Fprintf(r.w, "\n%s\n", r.paint(styleStep, "━━ "+name+" ━━"))
	case clone.EventProgress:
		p, ok := e.Data.(clone.Progress)
		if !ok {
			return
		}
		r.progress(p)
	case clone.EventError:
		f, ok := e.Data.(clone.Failure)
		if !ok {
			return
		}
		r.endLine()
		fmt.Fprintf(r.w, "%s   %s %s: %s\n", r.paint(styleErr, "[ERR]"), f.Scope, f.Item, f.Err)
	}
}

func (r *Renderer) progress(p clone.Progress) {
	complete := p.Done >= p.Total
	if !r.inline {
		if complete {
			fmt.Fprintf(r.w, "  %s %s\n", p.Scope, r.Bar(p.Done, p.Total))
		}
		return
	}
	fmt.Fprintf(r.w, "\r  %s %s", p.Scope, r.Bar(p.Done, p.Total))
	r.open = !complete
	if complete {
		fmt.Fprintln(r.w)
	}
}

func (r *Renderer) endLine() {
	if r.open {
		fmt.Fprintln(r.w)
		r.open = false
	}
}

// Summary prints the final box for a run.
func (r *Renderer) Summary(sum clone.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLine()
	r.summary(sum)
}

func (r *Renderer) summary(sum clone.Summary) {
	c := sum.Counts
	line := func(label string, n int) {
		fmt.Fprintln(r.w, r.paint(styleOK, fmt.Sprintf("  ✅ %-15s: %d", label, n)))
	}
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, r.paint(styleBoxEdge, "╔══════════════════════════ SUMMARY ═══════════════════════════╗"))
	line("Roles", c.Roles)
	line("Categories", c.Categories)
	line("Text channels", c.TextChannels)
	line("Voice channels", c.VoiceChannels)
	line("Messages", c.Messages)
	if c.Errors > 0 {
		fmt.Fprintln(r.w, r.paint(styleWarn, fmt.Sprintf("  ⚠️ %-15s: %d", "Errors", c.Errors)))
	} else {
		line("Errors", c.Errors)
	}
	fmt.Fprintln(r.w, r.paint(styleInfo, fmt.Sprintf("  ⏱  %-15s: %.1fs", "Elapsed", sum.Elapsed.Seconds())))
	if sum.Err != nil {
		fmt.Fprintln(r.w, r.paint(styleErr, "  ✖  Stopped early : "+sum.Err.Error()))
	}
	fmt.Fprintln(r.w, r.paint(styleBoxEdge, "╚══════════════════════════════════════════════════════════════╝"))
}

// Attach renders events from bus on a goroutine until the returned stop is
// called. stop drains what is already queued before returning.
func (r *Renderer) Attach(bus eventbus.Bus) (stop func()) {
	ch, unsub := bus.Subscribe(defaultBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			r.Handle(e)
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			<-done
		})
	}
}
