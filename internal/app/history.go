package app

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"guildmirror/internal/storage"
)

func writeHistory(w io.Writer, runs []storage.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tTRIGGER\tSOURCE\tTARGET\tROLES\tCHANNELS\tMESSAGES\tERRORS\tELAPSED\tRESULT")
	for _, r := range runs {
		result := "ok"
		if r.Error != "" {
			result = r.Error
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			dash(r.Trigger),
			guildCell(r.SourceName, r.Source),
			guildCell(r.TargetName, r.Target),
			r.Roles,
			r.Categories+r.TextChannels+r.VoiceChannels,
			r.Messages,
			r.Errors,
			r.Elapsed().Round(100*time.Millisecond),
			result,
		)
	}
	_ = tw.Flush()
}

func guildCell(name, id string) string {
	if name == "" {
		return id
	}
	return name + " (" + id + ")"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
