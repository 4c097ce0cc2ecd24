package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/samber/lo"

	"github.com/xeptore/sermondl/sermonaudio/types"
)

// writeReports writes the JSON reports to path when given. Otherwise it
// prints tables to a terminal and JSON to anything else.
func writeReports(path string, reports []*types.JobReport) error {
	if path != "" {
		data, err := json.MarshalIndent(reports, "", "  ")
		if nil != err {
			return fmt.Errorf("marshal reports: %v", err)
		}

		if err := os.WriteFile(path, data, 0o644); nil != err { //nolint:gosec
			return fmt.Errorf("write report file: %v", err)
		}

		return nil
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		if err := json.NewEncoder(os.Stdout).Encode(reports); nil != err {
			return fmt.Errorf("encode reports: %v", err)
		}

		return nil
	}

	for _, r := range reports {
		fmt.Fprintln(os.Stdout, renderReport(r))
	}

	return nil
}

var stateColors = map[types.OutcomeState]text.Colors{
	types.OutcomePending: {text.FgYellow},
	types.OutcomeDone:    {text.FgGreen},
	types.OutcomeSkipped: {text.FgHiBlack},
	types.OutcomeFailed:  {text.FgRed},
}

func renderReport(r *types.JobReport) string {
	tw := table.NewWriter()
	// Header and footer are upper-cased by default, which mangles the totals.
	style := table.StyleRounded
	style.Format.Footer = text.FormatDefault
	tw.SetStyle(style)
	tw.SetTitle("%s %s %s", r.Kind, r.OwnerID, r.OwnerName)
	tw.AppendHeader(table.Row{"#", "Sermon", "State", "Path / Reason"})

	for i, o := range r.Outcomes {
		detail := o.Path
		if o.State == types.OutcomeFailed || (o.State == types.OutcomeSkipped && o.Path == "") {
			detail = o.Reason
		}
		tw.AppendRow(table.Row{i + 1, o.ItemID, stateColors[o.State].Sprint(o.State.String()), detail})
	}

	tw.AppendFooter(table.Row{
		"",
		strconv.Itoa(len(r.Outcomes)) + " total",
		fmt.Sprintf("%d done, %d skipped, %d failed", r.Count(types.OutcomeDone), r.Count(types.OutcomeSkipped), r.Count(types.OutcomeFailed)),
		lo.Ternary(r.Canceled, "canceled, pending items were not retrieved", ""),
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight}, //nolint:exhaustruct
	})

	return tw.Render()
}
