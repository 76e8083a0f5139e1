package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"guildmirror/internal/clone"
	logx "guildmirror/pkg/logx"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Report
		want []string
		not  []string
	}{
		{
			name: "clean",
			in: Report{SourceName: "Src", Trigger: "schedule", Summary: clone.Summary{
				Source: "1", Target: "2", Elapsed: 2340 * time.Millisecond,
				Counts: clone.Counts{Roles: 3, Categories: 1, TextChannels: 2, VoiceChannels: 1, Messages: 10},
			}},
			want: []string{"✅ mirror finished (schedule)", "Src (1) → 2", "roles 3 · categories 1 · text 2 · voice 1", "messages 10 · errors 0 · 2.3s"},
			not:  []string{"error:"},
		},
		{
			name: "errors",
			in: Report{Summary: clone.Summary{
				Counts: clone.Counts{Errors: 2},
				Channels: []clone.ChannelResult{
					{Name: "ok", Sent: 3, Fetched: 3},
					{Name: "bad", Sent: 1, Fetched: 3, Failed: 2},
					{Name: "nohook", Err: "missing permissions"},
				},
			}},
			want: []string{"⚠️ mirror finished with errors", "#bad: sent 1/3", "#nohook: sent 0/0 (missing permissions)"},
			not:  []string{"#ok"},
		},
		{
			name: "fatal",
			in:   Report{Summary: clone.Summary{Err: errors.New("list source roles: 403")}},
			want: []string{"❌ mirror stopped", "error: list source roles: 403"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(tt.in)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Fatalf("missing %q in:\n%s", w, got)
				}
			}
			for _, w := range tt.not {
				if strings.Contains(got, w) {
					t.Fatalf("unexpected %q in:\n%s", w, got)
				}
			}
			if strings.HasSuffix(got, "\n") {
				t.Fatalf("trailing newline")
			}
		})
	}
}

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()

	if got := splitTelegramText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("got %q", got)
	}
	got := splitTelegramText("aaaa\nbbbbbbbb", 8)
	if strings.Join(got, "") != "aaaa\nbbbbbbbb" {
		t.Fatalf("content lost: %q", got)
	}
	if got[0] != "aaaa\n" {
		t.Fatalf("expected newline cut, got %q", got)
	}
	for _, c := range splitTelegramText(strings.Repeat("x", 25), 10) {
		if len(c) > 10 {
			t.Fatalf("chunk too long: %d", len(c))
		}
	}
}

type recordingSender struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (r *recordingSender) Send(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return r.err
}

func TestNotify(t *testing.T) {
	t.Parallel()

	Notify(context.Background(), nil, Report{}, logx.Nop())

	s := &recordingSender{err: errors.New("down")}
	Notify(context.Background(), s, Report{Summary: clone.Summary{Source: "1", Target: "2"}}, logx.Nop())
	if len(s.texts) != 1 || !strings.Contains(s.texts[0], "1 → 2") {
		t.Fatalf("texts=%q", s.texts)
	}
}

func TestTelegramSend(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		paths  []string
		bodies []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"group"}}}`))
	}))
	defer srv.Close()

	tg, err := NewTelegram(TelegramConfig{Token: "123:abc", ChatID: 42, ThreadID: 9, APIURL: srv.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("NewTelegram: %v", err)
	}
	if err := tg.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || paths[0] != "/bot123:abc/sendMessage" {
		t.Fatalf("paths=%v", paths)
	}
	b := bodies[0]
	if fmt.Sprint(b["chat_id"]) != "42" || fmt.Sprint(b["text"]) != "hello" || fmt.Sprint(b["message_thread_id"]) != "9" {
		t.Fatalf("body=%v", b)
	}
}

func TestNewTelegramValidates(t *testing.T) {
	t.Parallel()

	if _, err := NewTelegram(TelegramConfig{ChatID: 1}, logx.Nop()); err == nil {
		t.Fatalf("empty token accepted")
	}
	if _, err := NewTelegram(TelegramConfig{Token: "x"}, logx.Nop()); err == nil {
		t.Fatalf("empty chat accepted")
	}
}
