package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"guildmirror/internal/clone"
	"guildmirror/internal/eventbus"
)

func TestBar(t *testing.T) {
	t.Parallel()

	r := New(&bytes.Buffer{}, WithWidth(10))
	tests := []struct {
		done, total int
		want        string
	}{
		{0, 4, "[░░░░░░░░░░] 0/4"},
		{2, 4, "[█████░░░░░] 2/4"},
		{4, 4, "[██████████] 4/4"},
		{0, 0, "[██████████] 0/0"},
		{1, 3, "[███░░░░░░░] 1/3"},
	}
	for _, tt := range tests {
		if got := r.Bar(tt.done, tt.total); got != tt.want {
			t.Fatalf("Bar(%d,%d)=%q want %q", tt.done, tt.total, got, tt.want)
		}
	}
}

func TestHandleNonInline(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(&buf, WithWidth(4))
	r.Handle(eventbus.Event{Type: clone.EventStep, Data: "Cloning Roles"})
	r.Handle(eventbus.Event{Type: clone.EventProgress, Data: clone.Progress{Scope: "roles", Done: 1, Total: 2}})
	r.Handle(eventbus.Event{Type: clone.EventProgress, Data: clone.Progress{Scope: "roles", Done: 2, Total: 2}})
	r.Handle(eventbus.Event{Type: clone.EventError, Data: clone.Failure{Scope: "role", Item: "mod", Err: "boom"}})
	r.Handle(eventbus.Event{Type: "other", Data: 1})

	want := "\n━━ Cloning Roles ━━\n  roles [████] 2/2\n[ERR]   role mod: boom\n"
	if got := buf.String(); got != want {
		t.Fatalf("output:\n%q\nwant:\n%q", got, want)
	}
}

func TestHandleInlineClosesLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(&buf, WithWidth(2), WithInline(true))
	r.Handle(eventbus.Event{Type: clone.EventProgress, Data: clone.Progress{Scope: "#a", Done: 1, Total: 2}})
	r.Handle(eventbus.Event{Type: clone.EventStep, Data: "Next"})

	want := "\r  #a [█░] 1/2\n\n━━ Next ━━\n"
	if got := buf.String(); got != want {
		t.Fatalf("output %q want %q", got, want)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(&buf)
	r.Summary(clone.Summary{
		Elapsed: 1500 * time.Millisecond,
		Counts:  clone.Counts{Roles: 3, Categories: 1, TextChannels: 4, VoiceChannels: 2, Messages: 40, Errors: 2},
		Err:     errors.New("list source roles: forbidden"),
	})
	out := buf.String()
	for _, want := range []string{
		"SUMMARY", "Roles          : 3", "Text channels  : 4", "Voice channels : 2",
		"Messages       : 40", "⚠️ Errors         : 2", "Elapsed        : 1.5s", "forbidden",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestAttachDrainsOnStop(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(&buf)
	bus := eventbus.New()
	stop := r.Attach(bus)
	bus.Publish(eventbus.Event{Type: clone.EventStep, Data: "One"})
	bus.Publish(eventbus.Event{Type: clone.EventStep, Data: "Two"})
	stop()
	stop()

	if got := buf.String(); !strings.Contains(got, "One") || !strings.Contains(got, "Two") {
		t.Fatalf("output %q", got)
	}
}
