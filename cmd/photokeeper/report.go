package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// writeReport prints dated files grouped by capture year and month, then
// the files that could not be organized.
//
//	# YEAR 2024
//	## MONTH 6
//	 - /card/DCIM/IMG_0001.JPG
func writeReport(w io.Writer, files []FileInfo) {
	groups := make(map[int]map[time.Month][]string)
	var failed []FileInfo

	for _, f := range files {
		if f.Failed() {
			failed = append(failed, f)
			continue
		}
		if !f.Dated() {
			continue
		}
		months, ok := groups[f.Date.Year]
		if !ok {
			months = make(map[time.Month][]string)
			groups[f.Date.Year] = months
		}
		months[f.Date.Month] = append(months[f.Date.Month], f.SourcePath())
	}

	years := make([]int, 0, len(groups))
	for y := range groups {
		years = append(years, y)
	}
	sort.Ints(years)

	for _, y := range years {
		fmt.Fprintf(w, "# YEAR %d\n", y)
		months := make([]time.Month, 0, len(groups[y]))
		for m := range groups[y] {
			months = append(months, m)
		}
		sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })

		for _, m := range months {
			fmt.Fprintf(w, "## MONTH %d\n", int(m))
			paths := groups[y][m]
			sort.Strings(paths)
			for _, p := range paths {
				fmt.Fprintf(w, " - %s\n", p)
			}
		}
	}

	if len(failed) == 0 {
		return
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].SourcePath() < failed[j].SourcePath() })
	fmt.Fprintf(w, "# FAILED\n")
	for _, f := range failed {
		if f.Err != nil {
			fmt.Fprintf(w, " - %s (%s: %v)\n", f.SourcePath(), f.Status, f.Err)
		} else {
			fmt.Fprintf(w, " - %s (%s)\n", f.SourcePath(), f.Status)
		}
	}
}

type summary struct {
	Total       int
	Dated       int
	Planned     int
	Copied      int
	Unsupported int
	Undated     int
	Unnamable   int
	CopyFailed  int
	Pending     int
	CopiedBytes int64
}

func summarize(files []FileInfo) summary {
	var s summary
	for _, f := range files {
		s.Total++
		if f.Dated() {
			s.Dated++
		}
		switch f.Status {
		case StatusPlanned:
			s.Planned++
		case StatusCopied:
			s.Copied++
			s.CopiedBytes += f.Size
		case StatusUnsupported:
			s.Unsupported++
		case StatusUndated:
			s.Undated++
		case StatusUnnamable:
			s.Unnamable++
		case StatusFailed:
			s.CopyFailed++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// renderSummary returns the run totals as a table.
func renderSummary(files []FileInfo) string {
	s := summarize(files)

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Files", "Count"})
	tw.AppendRows([]table.Row{
		{"Total", strconv.Itoa(s.Total)},
		{"Dated", strconv.Itoa(s.Dated)},
		{"Planned", strconv.Itoa(s.Planned)},
		{"Copied", strconv.Itoa(s.Copied)},
		{"Unsupported", strconv.Itoa(s.Unsupported)},
		{"Undated", strconv.Itoa(s.Undated)},
		{"Unnamable", strconv.Itoa(s.Unnamable)},
		{"Copy failed", strconv.Itoa(s.CopyFailed)},
	})
	if s.Pending > 0 {
		tw.AppendRow(table.Row{"Not processed", strconv.Itoa(s.Pending)})
	}
	tw.AppendRow(table.Row{"Copied size", humanize.Bytes(uint64(s.CopiedBytes))})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
