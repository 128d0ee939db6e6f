package google

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"timesheet/internal/core"
)

// Column layout of the entries tab.
const (
	colDate = iota
	colProject
	colDocument
	colHours
	colDescription
	colOwner
	colEntryID
)

// entryRow renders e as a sheet row. Hours go in as a number so the sheet can
// sum them.
func entryRow(ownerID string, e core.TimeEntry) []any {
	return []any{
		e.Date.String(),
		e.Project,
		e.Document,
		e.Hours.InexactFloat64(),
		e.Description,
		ownerID,
		e.ID,
	}
}

// parseRow converts a row read with UNFORMATTED_VALUE back into an entry and
// its owner.
func parseRow(cols []string) (core.TimeEntry, string, error) {
	id := safeGet(cols, colEntryID)
	if id == "" {
		return core.TimeEntry{}, "", errors.New("missing entry id")
	}
	d, err := core.ParseDate(safeGet(cols, colDate))
	if err != nil {
		return core.TimeEntry{}, "", fmt.Errorf("entry %s: %w", id, err)
	}
	hours, err := parseHoursCell(safeGet(cols, colHours))
	if err != nil {
		return core.TimeEntry{}, "", fmt.Errorf("entry %s: %w", id, err)
	}
	e := core.TimeEntry{
		ID:          id,
		Date:        d,
		Project:     safeGet(cols, colProject),
		Document:    safeGet(cols, colDocument),
		Hours:       hours,
		Description: safeGet(cols, colDescription),
	}
	if err := e.Validate(); err != nil {
		return core.TimeEntry{}, "", fmt.Errorf("entry %s: %w", id, err)
	}
	return e, safeGet(cols, colOwner), nil
}

// parseHoursCell accepts plain numbers, decimal commas and the exponent form
// fmt uses for very small floats.
func parseHoursCell(s string) (decimal.Decimal, error) {
	if h, err := core.ParseHours(s); err == nil {
		return h, nil
	}
	h, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", core.ErrInvalidHours, s)
	}
	return h, nil
}

// columnValues returns the non-empty, non-comment values of column idx,
// deduplicated in first-seen order.
func columnValues(values [][]interface{}, idx int) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, row := range values {
		if idx >= len(row) {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[idx]))
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
