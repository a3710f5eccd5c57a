package commands

import (
	"os"

	"cazy-scraper/services/cazy/crawl"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func printSummaries(title string, summaries []crawl.Summary) {
	t := newTable()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Stage", "Pages", "Records", "Skipped"})
	for _, s := range summaries {
		t.AppendRow(table.Row{s.Stage, s.Visited, s.Records, len(s.Skipped)})
	}
	total := crawl.Totals("total", summaries)
	t.AppendFooter(table.Row{total.Stage, total.Visited, total.Records, len(total.Skipped)})
	t.Render()

	if len(total.Skipped) == 0 {
		return
	}
	skipped := newTable()
	skipped.SetTitle("Skipped pages")
	skipped.AppendHeader(table.Row{"Url", "Reason"})
	for _, s := range total.Skipped {
		skipped.AppendRow(table.Row{s.URL, s.Reason})
	}
	skipped.Render()
}
