package storage

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	logx "guildmirror/pkg/logx"
)

func sampleRun(i int) RunRecord {
	return RunRecord{
		StartedAt:  time.Date(2024, 5, 1, 12, 0, i, 0, time.UTC),
		ElapsedMS:  1500,
		Source:     "100",
		SourceName: "Source",
		Target:     "200",
		Trigger:    "manual",
		Roles:      2,
		Messages:   i,
		Errors:     1,
		Error:      "",
		Channels: []ChannelRecord{
			{SourceID: "21", TargetID: "91", Name: "general", Fetched: 3, Sent: 3},
			{SourceID: "22", TargetID: "92", Name: "random", Fetched: 1, Failed: 1, Error: "boom"},
		},
		IDs: []IDRecord{
			{Kind: "role", SourceID: "11", TargetID: "81"},
			{Kind: "text", SourceID: "21", TargetID: "91"},
		},
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	for _, d := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: d}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q)=%v,%v want nil,nil", d, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatalf("unknown driver accepted")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatalf("file driver without path accepted")
	}
}

func TestDrivers(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "sub", "history.db")
			st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}

			ctx := context.Background()
			var ids []int64
			for i := 1; i <= 3; i++ {
				id, err := st.RecordRun(ctx, sampleRun(i))
				if err != nil {
					t.Fatalf("RecordRun: %v", err)
				}
				ids = append(ids, id)
			}
			if ids[0] >= ids[1] || ids[1] >= ids[2] {
				t.Fatalf("ids not increasing: %v", ids)
			}

			got, err := st.RecentRuns(ctx, 2)
			if err != nil {
				t.Fatalf("RecentRuns: %v", err)
			}
			if len(got) != 2 || got[0].Messages != 3 || got[1].Messages != 2 {
				t.Fatalf("recent=%+v", got)
			}
			want := sampleRun(3)
			want.ID = ids[2]
			if diff := cmp.Diff(want, got[0]); diff != "" {
				t.Fatalf("record (-want +got):\n%s", diff)
			}
			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			// Reopen keeps history and continues the id sequence.
			st, err = Open(Config{Driver: driver, Path: path}, logx.Nop())
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer st.Close()
			id, err := st.RecordRun(ctx, sampleRun(4))
			if err != nil || id <= ids[2] {
				t.Fatalf("id after reopen=%d err=%v", id, err)
			}
			all, err := st.RecentRuns(ctx, 10)
			if err != nil || len(all) != 4 {
				t.Fatalf("all=%d err=%v", len(all), err)
			}
		})
	}
}

func TestFileCompaction(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.jsonl")
	st, err := Open(Config{Driver: "file", Path: path, Keep: 3}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	for i := 1; i <= 7; i++ {
		if _, err := st.RecordRun(ctx, RunRecord{Source: strconv.Itoa(i), Target: "t"}); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}
	fs := st.(*fileStore)
	if fs.lines > 5 {
		t.Fatalf("not compacted: %d lines", fs.lines)
	}
	got, err := st.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if got[0].Source != "7" || len(got) > 5 {
		t.Fatalf("after compaction: %d runs, newest %q", len(got), got[0].Source)
	}
}

func TestRecentRunsNonPositive(t *testing.T) {
	t.Parallel()

	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "h")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	got, err := st.RecentRuns(context.Background(), 0)
	if err != nil || got != nil {
		t.Fatalf("got %v err=%v", got, err)
	}
}
