package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Unclassified shares above this are highlighted as a warning.
const unclassifiedWarnPercent = 50

func renderText(w io.Writer, sum Summary, opts Options) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})

	tbl.AppendHeader(table.Row{"Category", "Modules", "Share"})

	for _, row := range sum.Categories {
		tbl.AppendRow(table.Row{row.Category.String(), row.Count, fmt.Sprintf("%.1f%%", row.Share*percentageValue)})
	}

	tbl.AppendFooter(table.Row{"Total", sum.Total, ""})

	if _, err := fmt.Fprintf(w, "\n%s\n", tbl.Render()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if sum.Failed > 0 {
		failed := paint(color.FgRed, opts)
		if _, err := failed.Fprintf(w, "%d modules failed to parse\n", sum.Failed); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}

		for _, f := range sum.Failures {
			if _, err := fmt.Fprintf(w, "  - %s: %s\n", f.ID, f.Error); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
		}
	}

	if sum.UnclassifiedPercent == nil {
		return nil
	}

	attr := color.FgGreen
	if *sum.UnclassifiedPercent > unclassifiedWarnPercent {
		attr = color.FgYellow
	}

	if _, err := paint(attr, opts).Fprintf(w, "%d%% unclassified\n", *sum.UnclassifiedPercent); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

func paint(attr color.Attribute, opts Options) *color.Color {
	c := color.New(attr)
	if opts.NoColor {
		c.DisableColor()
	}

	return c
}
