package core

import (
	"fmt"
	"strings"
	"time"
)

// Bucket is a named time window used to filter entries before aggregation.
type Bucket string

const (
	Daily   Bucket = "daily"
	Weekly  Bucket = "weekly"
	Monthly Bucket = "monthly"
)

// Buckets lists every bucket in display order.
var Buckets = []Bucket{Daily, Weekly, Monthly}

// ParseBucket accepts a bucket name case-insensitively. An empty string is Daily.
func ParseBucket(s string) (Bucket, error) {
	switch Bucket(strings.ToLower(strings.TrimSpace(s))) {
	case "", Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	}
	return "", fmt.Errorf("unknown bucket %q", s)
}

// WeekWindow selects how much of the reference week the weekly bucket covers.
type WeekWindow string

const (
	// WeekToDate covers Monday through the reference date.
	WeekToDate WeekWindow = "week_to_date"
	// FullWeek covers Monday through Sunday of the reference week.
	FullWeek WeekWindow = "full_week"
)

// ParseWeekWindow accepts the config spellings of a WeekWindow. Empty means WeekToDate.
func ParseWeekWindow(s string) (WeekWindow, error) {
	switch WeekWindow(strings.ToLower(strings.TrimSpace(s))) {
	case "", WeekToDate:
		return WeekToDate, nil
	case FullWeek:
		return FullWeek, nil
	}
	return "", fmt.Errorf("unknown week window %q", s)
}

// BucketSet is the set of buckets an entry belongs to for a reference date.
type BucketSet uint8

const (
	daily BucketSet = 1 << iota
	weekly
	monthly
)

func bitOf(b Bucket) BucketSet {
	switch b {
	case Daily:
		return daily
	case Weekly:
		return weekly
	case Monthly:
		return monthly
	}
	return 0
}

// Has reports whether b is in the set.
func (s BucketSet) Has(b Bucket) bool {
	bit := bitOf(b)
	return bit != 0 && s&bit != 0
}

// Empty reports whether the entry is outside every bucket.
func (s BucketSet) Empty() bool {
	return s == 0
}

func (s BucketSet) String() string {
	var names []string
	for _, b := range Buckets {
		if s.Has(b) {
			names = append(names, string(b))
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Classifier decides which buckets a date falls into relative to a reference date.
type Classifier struct {
	Week WeekWindow
}

// Range returns the inclusive window of bucket b for the reference date.
func (c Classifier) Range(b Bucket, ref Date) (from, to Date) {
	switch b {
	case Daily:
		return ref, ref
	case Weekly:
		if c.Week == FullWeek {
			return StartOfWeek(ref), EndOfWeek(ref)
		}
		return StartOfWeek(ref), ref
	case Monthly:
		return StartOfMonth(ref), EndOfMonth(ref)
	}
	return Date{}, Date{}
}

// In reports whether d falls within bucket b for the reference date.
func (c Classifier) In(b Bucket, d, ref Date) bool {
	from, to := c.Range(b, ref)
	if from.IsZero() {
		return false
	}
	return !d.Before(from) && !d.After(to)
}

// Classify returns every bucket the entry belongs to for the reference date.
func (c Classifier) Classify(e TimeEntry, ref Date) BucketSet {
	var set BucketSet
	for _, b := range Buckets {
		if c.In(b, e.Date, ref) {
			set |= bitOf(b)
		}
	}
	return set
}

// StartOfWeek returns the Monday of d's week.
func StartOfWeek(d Date) Date {
	wd := int(d.Weekday())
	if wd == 0 {
		wd = 7
	}
	return d.AddDays(-(wd - 1))
}

// EndOfWeek returns the Sunday of d's week.
func EndOfWeek(d Date) Date {
	return StartOfWeek(d).AddDays(6)
}

// StartOfMonth returns the first day of d's month.
func StartOfMonth(d Date) Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

// EndOfMonth returns the last day of d's month.
func EndOfMonth(d Date) Date {
	return Date{Time: StartOfMonth(d).AddDate(0, 1, -1)}
}

// WeekdayLabel returns the three-letter weekday name of d, e.g. "Mon".
func WeekdayLabel(d Date) string {
	return d.Weekday().String()[:3]
}

// weekdayOrder places Monday first and Sunday last.
func weekdayOrder(d Date) int {
	wd := int(d.Weekday())
	if wd == int(time.Sunday) {
		return 7
	}
	return wd
}

// WeekOfMonth numbers the Monday-start weeks of d's month. The week that begins
// on the first Monday of the month is 1; days before it are week 0.
func WeekOfMonth(d Date) int {
	first := StartOfMonth(d)
	offset := (8 - int(first.Weekday())) % 7
	firstMonday := 1 + offset
	if d.Day() < firstMonday {
		return 0
	}
	return (d.Day()-firstMonday)/7 + 1
}

// WeekOfMonthLabel renders WeekOfMonth as "Week N".
func WeekOfMonthLabel(d Date) string {
	return fmt.Sprintf("Week %d", WeekOfMonth(d))
}
