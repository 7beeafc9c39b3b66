package app

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type tableMode int

const (
	tableASCII tableMode = iota
	tableMarkdown
)

func parseTableMode(s string) (tableMode, bool) {
	switch s {
	case "", "ascii", "table":
		return tableASCII, true
	case "markdown", "md":
		return tableMarkdown, true
	default:
		return tableASCII, false
	}
}

// prettyTable wraps a go-pretty writer for the command output.
type prettyTable struct {
	writer table.Writer
	mode   tableMode
}

func newTable(m tableMode) *prettyTable {
	w := table.NewWriter()
	if m == tableASCII {
		w.SetStyle(table.StyleLight)
	}
	return &prettyTable{writer: w, mode: m}
}

func (t *prettyTable) Header(cols ...any) {
	t.writer.AppendHeader(table.Row(cols))
}

func (t *prettyTable) Row(vals ...any) {
	t.writer.AppendRow(table.Row(vals))
}

func (t *prettyTable) Footer(vals ...any) {
	t.writer.AppendFooter(table.Row(vals))
}

// MaxWidth wraps column n (1-based) beyond width characters.
func (t *prettyTable) MaxWidth(n, width int) {
	t.writer.SetColumnConfigs([]table.ColumnConfig{
		{Number: n, WidthMax: width, Align: text.AlignLeft},
	})
}

func (t *prettyTable) String() string {
	if t.mode == tableMarkdown {
		return t.writer.RenderMarkdown()
	}
	return t.writer.Render()
}
