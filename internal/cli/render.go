package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"timesheet/internal/core"
)

// Styles used by the timesheetctl output.
type Styles struct {
	Title   lipgloss.Style
	Range   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Total   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

func DefaultStyles() Styles {
	primary := lipgloss.Color("99")
	muted := lipgloss.Color("240")
	success := lipgloss.Color("82")
	warning := lipgloss.Color("214")
	errorColor := lipgloss.Color("196")

	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(primary),
		Range:   lipgloss.NewStyle().Foreground(muted),
		Header:  lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Cell:    lipgloss.NewStyle().Padding(0, 1),
		Total:   lipgloss.NewStyle().Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(muted).Italic(true),
		Success: lipgloss.NewStyle().Foreground(success),
		Warning: lipgloss.NewStyle().Foreground(warning),
		Error:   lipgloss.NewStyle().Foreground(errorColor).Bold(true),
	}
}

func bucketTitle(b core.Bucket) string {
	switch b {
	case core.Weekly:
		return "This week"
	case core.Monthly:
		return "This month"
	}
	return "Today"
}

// RenderSummary writes one bucket as a titled table with a total line.
func RenderSummary(w io.Writer, st Styles, s core.Summary) {
	span := s.From.String()
	if !s.From.Same(s.To) {
		span += " to " + s.To.String()
	}
	fmt.Fprintf(w, "%s %s\n", st.Title.Render(bucketTitle(s.Bucket)), st.Range.Render(span))

	if len(s.Groups) == 0 {
		fmt.Fprintln(w, st.Muted.Render("No entries."))
		fmt.Fprintln(w)
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PROJECT", "DOCUMENT", "PERIOD", "HOURS", "DESCRIPTIONS").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.Header
			}
			return st.Cell
		})
	for _, g := range s.Groups {
		t.Row(g.Key.Project, g.Key.Document, g.Key.Period, core.FormatHours(g.Hours), g.Descriptions)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%s %sh\n\n", st.Total.Render("Total:"), core.FormatHours(s.Total))
}

// RenderSummarySet writes the daily, weekly and monthly rollups in that order.
func RenderSummarySet(w io.Writer, st Styles, set core.SummarySet) {
	for _, b := range core.Buckets {
		RenderSummary(w, st, set.Get(b))
	}
}

// RenderEntries lists the entries of one date with their position, which is
// the row number edit-day expects.
func RenderEntries(w io.Writer, st Styles, d core.Date, list []core.TimeEntry) {
	fmt.Fprintln(w, st.Title.Render(d.String()))
	if len(list) == 0 {
		fmt.Fprintln(w, st.Muted.Render("No entries."))
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "PROJECT", "DOCUMENT", "HOURS", "DESCRIPTION").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.Header
			}
			return st.Cell
		})
	for i, e := range list {
		t.Row(strconv.Itoa(i+1), e.Project, e.Document, core.FormatHours(e.Hours), e.Description)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%s %sh\n", st.Total.Render("Total:"), core.FormatHours(core.SumHours(list)))
}

// formatRow renders an entry in the project|document|hours|description form
// accepted by --row.
func formatRow(e core.TimeEntry) string {
	return strings.Join([]string{e.Project, e.Document, core.FormatHours(e.Hours), e.Description}, "|")
}
