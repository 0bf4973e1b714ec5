package ui

import (
	"fmt"
	"io"
	"time"

	"cursed-archive/domain"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// Result is the outcome of one file upload.
type Result struct {
	Path     string
	Last     domain.Progress
	Duration time.Duration
	Err      error
}

func (r Result) Status() string {
	switch {
	case r.Err != nil:
		return "FAILED"
	case r.Last.Complete:
		return "OK"
	default:
		return "INCOMPLETE"
	}
}

// Failed counts the uploads that did not complete.
func Failed(results []Result) int {
	return lo.CountBy(results, func(r Result) bool {
		return r.Status() != "OK"
	})
}

// RenderSummary prints one row per upload.
func RenderSummary(out io.Writer, results []Result) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"File", "Status", "Bytes", "Stored as", "Duration", "Error"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	table.AppendBulk(lo.Map(results, func(r Result, _ int) []string {
		errMsg := ""
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		return []string{
			r.Path,
			r.Status(),
			fmt.Sprintf("%d/%d", r.Last.BytesReceived, r.Last.TotalSize),
			r.Last.Identity.StoredPath,
			r.Duration.Round(time.Millisecond).String(),
			errMsg,
		}
	}))
	table.Render()

	total := lo.SumBy(results, func(r Result) uint64 {
		return r.Last.BytesReceived
	})
	_, _ = fmt.Fprintf(out, "%d file(s), %d failed, %d bytes acknowledged\n", len(results), Failed(results), total)
}
