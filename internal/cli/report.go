package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/s22625/supcut/internal/model"
)

const (
	statusNew     = "NEW"
	statusFailing = "FAILING"
	statusFixed   = "FIXED"
)

type reportOptions struct {
	Title      string
	ShowTraces bool
	ShowFixed  bool
}

// writeReport renders the failing tests of current, compared against
// previous, as a table.
func writeReport(w io.Writer, previous, current *model.RunResult, opts reportOptions) {
	diff := model.Diff(previous, current)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleLight
	style.Format.Footer = text.FormatDefault
	t.SetStyle(style)
	t.SetTitle(opts.Title)

	header := table.Row{"Status", "Test"}
	configs := []table.ColumnConfig{
		{Name: "Test", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	}
	if opts.ShowTraces {
		header = append(header, "Trace")
		configs = append(configs, table.ColumnConfig{Name: "Trace", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft})
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(configs)

	for _, id := range current.Failing() {
		status := statusFailing
		if !previous.IsFailing(id) {
			status = statusNew
		}
		row := table.Row{status, id}
		if opts.ShowTraces {
			row = append(row, strings.Join(current.Trace(id), "\n"))
		}
		t.AppendRow(row)
	}
	if opts.ShowFixed {
		for _, id := range diff.NewlyFixed {
			row := table.Row{statusFixed, id}
			if opts.ShowTraces {
				row = append(row, "")
			}
			t.AppendRow(row)
		}
	}

	t.AppendFooter(table.Row{"", current.Summary()})
	t.AppendFooter(table.Row{"", footerLine(current, diff)})
	t.Render()
}

func footerLine(current *model.RunResult, diff model.RunDiff) string {
	parts := []string{
		fmt.Sprintf("%d failing", len(current.FailingTests)),
		fmt.Sprintf("%d new", len(diff.NewlyFailing)),
		fmt.Sprintf("%d fixed", len(diff.NewlyFixed)),
	}
	if diff.CountKnown && diff.CountDelta != 0 {
		parts = append(parts, fmt.Sprintf("%+d tests", diff.CountDelta))
	}
	return strings.Join(parts, ", ")
}
