package core

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DefaultDailyCap is the number of hours a single date may hold.
var DefaultDailyCap = decimal.NewFromInt(8)

// DatePolicy restricts which dates accept entries. The zero value allows any date.
type DatePolicy struct {
	AllowWeekends      bool
	NotBeforeWeekStart bool
	NotAfterToday      bool
}

// DefaultDatePolicy allows every date, weekends included.
func DefaultDatePolicy() DatePolicy {
	return DatePolicy{AllowWeekends: true}
}

// Guard checks candidates before they reach the store. It has no side effects
// beyond assigning ids.
type Guard struct {
	DailyCap decimal.Decimal
	Policy   DatePolicy
	Today    func() Date
	NewID    func() string
}

// NewGuard returns a Guard with the given cap and policy. A non-positive cap
// falls back to DefaultDailyCap.
func NewGuard(dailyCap decimal.Decimal, policy DatePolicy) *Guard {
	if !dailyCap.IsPositive() {
		dailyCap = DefaultDailyCap
	}
	return &Guard{DailyCap: dailyCap, Policy: policy, Today: Today, NewID: NewID}
}

// Validate checks c against the entries already logged and returns the accepted
// entry. Only entries of c's date count towards the daily cap.
func (g *Guard) Validate(c Candidate, existing []TimeEntry) (TimeEntry, error) {
	if c.Date.IsZero() {
		return TimeEntry{}, missing("date")
	}
	if !c.Hours.Valid {
		return TimeEntry{}, missing("hours")
	}
	if !c.Hours.Decimal.IsPositive() {
		return TimeEntry{}, &ValidationError{
			Kind:    ErrNonPositiveHours,
			Field:   "hours",
			Message: "hours must be greater than zero",
		}
	}
	if err := g.checkDate(c.Date); err != nil {
		return TimeEntry{}, err
	}
	logged := SumHours(OnDate(existing, c.Date))
	if logged.Add(c.Hours.Decimal).GreaterThan(g.DailyCap) {
		return TimeEntry{}, &ValidationError{
			Kind:   ErrDailyCapExceeded,
			Field:  "hours",
			Logged: logged,
			Cap:    g.DailyCap,
			Message: fmt.Sprintf("cannot log %s more hours on %s: %s of %s hours already logged",
				FormatHours(c.Hours.Decimal), c.Date, FormatHours(logged), FormatHours(g.DailyCap)),
		}
	}
	project := strings.TrimSpace(c.Project)
	if project == "" {
		return TimeEntry{}, missing("project")
	}
	desc := strings.TrimSpace(c.Description)
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return TimeEntry{}, &ValidationError{
			Kind:    ErrDescriptionLong,
			Field:   "description",
			Message: "description too long (max 200 characters)",
		}
	}

	return TimeEntry{
		ID:          g.newID(),
		Date:        c.Date,
		Project:     project,
		Document:    strings.TrimSpace(c.Document),
		Hours:       c.Hours.Decimal,
		Description: desc,
	}, nil
}

// ValidateDay checks a full replacement set for date d. Every candidate is moved
// to d and the cap applies to the set as a whole.
func (g *Guard) ValidateDay(d Date, candidates []Candidate) ([]TimeEntry, error) {
	out := make([]TimeEntry, 0, len(candidates))
	for i, c := range candidates {
		c.Date = d
		e, err := g.Validate(c, out)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (g *Guard) checkDate(d Date) error {
	if !g.Policy.AllowWeekends && d.IsWeekend() {
		return invalidDate(fmt.Sprintf("%s is a weekend", d))
	}
	if !g.Policy.NotBeforeWeekStart && !g.Policy.NotAfterToday {
		return nil
	}
	today := g.today()
	if g.Policy.NotBeforeWeekStart && d.Before(StartOfWeek(today)) {
		return invalidDate(fmt.Sprintf("%s is before the start of the current week", d))
	}
	if g.Policy.NotAfterToday && d.After(today) {
		return invalidDate(fmt.Sprintf("%s is in the future", d))
	}
	return nil
}

func (g *Guard) today() Date {
	if g.Today != nil {
		return g.Today()
	}
	return Today()
}

func (g *Guard) newID() string {
	if g.NewID != nil {
		return g.NewID()
	}
	return NewID()
}

func missing(field string) error {
	return &ValidationError{Kind: ErrMissingField, Field: field, Message: field + " is required"}
}

func invalidDate(msg string) error {
	return &ValidationError{Kind: ErrInvalidDate, Field: "date", Message: msg}
}
