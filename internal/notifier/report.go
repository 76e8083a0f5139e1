package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"guildmirror/internal/clone"
	logx "guildmirror/pkg/logx"
)

// Report is what a finished run tells the operator.
type Report struct {
	SourceName string
	TargetName string
	Trigger    string
	Summary    clone.Summary
}

// Format renders r as plain text.
func Format(r Report) string {
	s := r.Summary
	c := s.Counts
	var b strings.Builder

	status := "✅ mirror finished"
	switch {
	case s.Err != nil:
		status = "❌ mirror stopped"
	case c.Errors > 0:
		status = "⚠️ mirror finished with errors"
	}
	b.WriteString(status)
	if r.Trigger != "" {
		fmt.Fprintf(&b, " (%s)", r.Trigger)
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "%s → %s\n", guildLabel(r.SourceName, s.Source), guildLabel(r.TargetName, s.Target))
	fmt.Fprintf(&b, "roles %d · categories %d · text %d · voice %d\n", c.Roles, c.Categories, c.TextChannels, c.VoiceChannels)
	fmt.Fprintf(&b, "messages %d · errors %d · %s\n", c.Messages, c.Errors, s.Elapsed.Round(100*time.Millisecond))
	for _, ch := range s.Channels {
		if ch.Err == "" && ch.Failed == 0 {
			continue
		}
		fmt.Fprintf(&b, "#%s: sent %d/%d", ch.Name, ch.Sent, ch.Fetched)
		if ch.Err != "" {
			fmt.Fprintf(&b, " (%s)", ch.Err)
		}
		b.WriteByte('\n')
	}
	if s.Err != nil {
		fmt.Fprintf(&b, "error: %s\n", s.Err)
	}
	return strings.TrimRight(b.String(), "\n")
}

func guildLabel(name, id string) string {
	if name == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}

// Notify formats r and hands it to s. A nil sender is a no-op; send
// failures are logged, never returned.
func Notify(ctx context.Context, s Sender, r Report, log logx.Logger) {
	if s == nil {
		return
	}
	if err := s.Send(ctx, Format(r)); err != nil {
		log.Warn("notify failed", logx.Err(err))
	}
}
