package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"timesheet/internal/core"
)

// candidateFromForm builds a Candidate from the entry form. Only an unparsable
// date or hours value is an error here; everything else is left to the Guard.
func candidateFromForm(form url.Values) (core.Candidate, error) {
	c := core.Candidate{
		Project:     sanitizeInput(form.Get("project")),
		Document:    sanitizeInput(form.Get("document")),
		Description: sanitizeInput(form.Get("description")),
	}
	if v := strings.TrimSpace(form.Get("date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Candidate{}, &core.ValidationError{Kind: core.ErrInvalidDate, Field: "date", Message: fmt.Sprintf("invalid date %q", v)}
		}
		c.Date = d
	}
	hours, err := core.ParseOptionalHours(form.Get("hours"))
	if err != nil {
		return core.Candidate{}, &core.ValidationError{Kind: core.ErrInvalidHours, Field: "hours", Message: "hours must be a number"}
	}
	c.Hours = hours
	return c, nil
}

// dayRowsFromForm reads the parallel project/document/hours/description lists
// of the edit-day form. Rows with every field blank are dropped so an empty
// trailing row does not fail validation.
func dayRowsFromForm(form url.Values) ([]core.Candidate, error) {
	projects := form["project"]
	documents := form["document"]
	hours := form["hours"]
	descriptions := form["description"]

	n := max(len(projects), len(documents), len(hours), len(descriptions))
	out := make([]core.Candidate, 0, n)
	for i := 0; i < n; i++ {
		row := url.Values{
			"project":     {at(projects, i)},
			"document":    {at(documents, i)},
			"hours":       {at(hours, i)},
			"description": {at(descriptions, i)},
		}
		if blankRow(row) {
			continue
		}
		c, err := candidateFromForm(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func blankRow(row url.Values) bool {
	for _, v := range row {
		if strings.TrimSpace(v[0]) != "" {
			return false
		}
	}
	return true
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

// refDate reads ?date= and falls back to today. A malformed value is an error.
func refDate(r *http.Request) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get("date"))
	if v == "" {
		return core.Today(), nil
	}
	return core.ParseDate(v)
}

// isConfirmed reports whether the user already acknowledged the anomaly warning.
func isConfirmed(form url.Values) bool {
	ok, _ := strconv.ParseBool(strings.TrimSpace(form.Get("confirm")))
	return ok
}

// sanitizeInput drops control characters other than tab and newlines and trims.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
