package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// Spec is a parsed schedule string.
//
// Supported forms:
//   - Cron: "0 */6 * * *", "30 2 * * *", "@daily", "@every 90m"
//   - Interval duration: "6h", "2h30m"
//   - Interval HH:MM: "06:00" (every six hours), "00:45"
//
// "cron:" forces cron parsing; "every:" or "interval:" force an interval.
type Spec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
}

func (s Spec) String() string {
	if s.Kind == SpecCron {
		return "cron " + s.Cron
	}
	return "every " + s.Every.String()
}

var (
	reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

	// Standard five fields plus an optional leading seconds field.
	cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// ParseSchedule parses raw into a cron expression or an interval and checks
// that a cron expression is valid.
func ParseSchedule(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(strings.TrimSpace(s[len("interval:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseInterval(strings.TrimSpace(s[len("every:"):]))
	}

	// Whitespace or a descriptor means cron; anything else is an interval.
	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	spec, err := parseInterval(s)
	if err != nil {
		return Spec{}, fmt.Errorf(
			"invalid schedule %q (use cron like '0 */6 * * *', HH:MM like '06:00', or duration like '6h')",
			raw,
		)
	}
	return spec, nil
}

func parseCron(expr string) (Spec, error) {
	if expr == "" {
		return Spec{}, fmt.Errorf("cron expression required")
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return Spec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Spec{Kind: SpecCron, Cron: expr, Source: "cron"}, nil
}

func parseInterval(v string) (Spec, error) {
	if v == "" {
		return Spec{}, fmt.Errorf("interval required")
	}
	var (
		d   time.Duration
		src string
	)
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return Spec{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d, src = time.Duration(hh)*time.Hour+time.Duration(mm)*time.Minute, "hhmm"
	} else {
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return Spec{}, fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '6h')", v)
		}
		src = "duration"
	}
	if d <= 0 {
		return Spec{}, fmt.Errorf("interval must be > 0")
	}
	return Spec{Kind: SpecInterval, Every: d, Source: src}, nil
}

// schedule converts the spec into a robfig schedule.
func (s Spec) schedule() (cron.Schedule, error) {
	if s.Kind == SpecInterval {
		return cron.Every(s.Every), nil
	}
	return cronParser.Parse(s.Cron)
}
