package tool

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Currency formats an amount in rupees, e.g. ₹1,600.00.
func Currency(v float64) string {
	return "₹" + humanize.FormatFloat("#,###.##", v)
}

// markdownTable renders rows under header as a Markdown table.
func markdownTable(header table.Row, rows []table.Row) string {
	tw := table.NewWriter()
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	return tw.RenderMarkdown()
}

// orDash substitutes "-" for blank table cells.
func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
