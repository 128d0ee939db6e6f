package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used on forms, in storage and on the wire.
const DateLayout = "2006-01-02"

const maxDescriptionLen = 200

type (
	// Date is a calendar date with no time-of-day component.
	Date struct {
		time.Time
	}

	// TimeEntry is one accepted unit of logged work. Entries are never edited in
	// place; a day is changed by replacing all of its entries.
	TimeEntry struct {
		ID          string          `json:"id"`
		Date        Date            `json:"date"`
		Project     string          `json:"project"`
		Document    string          `json:"document,omitempty"`
		Hours       decimal.Decimal `json:"hours"`
		Description string          `json:"description,omitempty"`
	}

	// Candidate is a submitted entry that has not yet passed the Guard.
	Candidate struct {
		Date        Date
		Project     string
		Document    string
		Hours       decimal.NullDecimal
		Description string
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current local calendar date.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

// NewID returns a fresh unique entry id.
func NewID() string {
	return uuid.New().String()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Same reports whether both dates name the same calendar day.
func (d Date) Same(o Date) bool {
	return d.Time.Equal(o.Time)
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

// IsWeekend reports whether d is a Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks the structural shape of an entry loaded from outside the Guard,
// such as a snapshot or a persistence backend.
func (e TimeEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return &ValidationError{Kind: ErrMissingField, Field: "id", Message: "entry id is required"}
	}
	if err := e.Date.Validate(); err != nil {
		return &ValidationError{Kind: ErrMissingField, Field: "date", Message: "date is required"}
	}
	if strings.TrimSpace(e.Project) == "" {
		return &ValidationError{Kind: ErrMissingField, Field: "project", Message: "project is required"}
	}
	if !e.Hours.IsPositive() {
		return &ValidationError{Kind: ErrNonPositiveHours, Field: "hours", Message: "hours must be greater than zero"}
	}
	if utf8.RuneCountInString(e.Description) > maxDescriptionLen {
		return &ValidationError{Kind: ErrDescriptionLong, Field: "description", Message: "description too long (max 200 characters)"}
	}
	return nil
}

// Clone returns a copy of entries that shares no backing array with the input.
func Clone(entries []TimeEntry) []TimeEntry {
	if entries == nil {
		return nil
	}
	out := make([]TimeEntry, len(entries))
	copy(out, entries)
	return out
}

// OnDate returns the entries dated d, in their original order.
func OnDate(entries []TimeEntry, d Date) []TimeEntry {
	var out []TimeEntry
	for _, e := range entries {
		if e.Date.Same(d) {
			out = append(out, e)
		}
	}
	return out
}

// SumHours adds up the hours of all entries.
func SumHours(entries []TimeEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Hours)
	}
	return total
}
