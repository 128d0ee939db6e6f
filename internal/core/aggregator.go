package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DescriptionSeparator joins the descriptions of a group.
const DescriptionSeparator = ", "

// GroupKey is the composite dimension entries are summed over within a bucket.
// Period is empty for the daily bucket, a weekday label for weekly and a
// week-of-month label for monthly.
type GroupKey struct {
	Project  string `json:"project"`
	Document string `json:"document,omitempty"`
	Period   string `json:"period,omitempty"`
}

func (k GroupKey) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{k.Project, k.Document, k.Period} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " / ")
}

// GroupTotal is the accumulated hours of one group.
type GroupTotal struct {
	Key          GroupKey        `json:"key"`
	Hours        decimal.Decimal `json:"hours"`
	Entries      int             `json:"entries"`
	Descriptions string          `json:"descriptions,omitempty"`

	order int
}

// Summary is the rollup of one bucket for one reference date. It is derived
// data and is never stored.
type Summary struct {
	Bucket    Bucket          `json:"bucket"`
	Reference Date            `json:"reference"`
	From      Date            `json:"from"`
	To        Date            `json:"to"`
	Groups    []GroupTotal    `json:"groups"`
	Total     decimal.Decimal `json:"total"`
}

// Sums returns the group totals as a map keyed by GroupKey.
func (s Summary) Sums() map[GroupKey]decimal.Decimal {
	out := make(map[GroupKey]decimal.Decimal, len(s.Groups))
	for _, g := range s.Groups {
		out[g.Key] = g.Hours
	}
	return out
}

// Labeled returns the group totals keyed by GroupKey.String().
func (s Summary) Labeled() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(s.Groups))
	for _, g := range s.Groups {
		out[g.Key.String()] = g.Hours
	}
	return out
}

// SummarySet holds the rollups of every bucket for a single reference date.
type SummarySet struct {
	Reference Date    `json:"reference"`
	Daily     Summary `json:"daily"`
	Weekly    Summary `json:"weekly"`
	Monthly   Summary `json:"monthly"`
}

// Get returns the summary of bucket b.
func (s SummarySet) Get(b Bucket) Summary {
	switch b {
	case Weekly:
		return s.Weekly
	case Monthly:
		return s.Monthly
	}
	return s.Daily
}

// Aggregator groups classified entries and sums their hours.
type Aggregator struct {
	Classifier Classifier
	// ByDocument adds the document to every group key.
	ByDocument bool
}

// Key returns the group key of e within bucket b.
func (a Aggregator) Key(e TimeEntry, b Bucket) GroupKey {
	k := GroupKey{Project: e.Project}
	if a.ByDocument {
		k.Document = e.Document
	}
	switch b {
	case Weekly:
		k.Period = WeekdayLabel(e.Date)
	case Monthly:
		k.Period = WeekOfMonthLabel(e.Date)
	}
	return k
}

func periodOrder(e TimeEntry, b Bucket) int {
	switch b {
	case Weekly:
		return weekdayOrder(e.Date)
	case Monthly:
		return WeekOfMonth(e.Date)
	}
	return 0
}

// Aggregate filters entries into bucket b for the reference date and sums the
// hours of each group. Groups are sorted by project, document and period, so the
// result depends only on the set of entries, not on their order. Descriptions
// keep the order of entries.
func (a Aggregator) Aggregate(entries []TimeEntry, b Bucket, ref Date) Summary {
	from, to := a.Classifier.Range(b, ref)
	s := Summary{Bucket: b, Reference: ref, From: from, To: to, Total: decimal.Zero}

	index := make(map[GroupKey]int)
	descs := make(map[GroupKey][]string)
	for _, e := range entries {
		if !a.Classifier.In(b, e.Date, ref) {
			continue
		}
		k := a.Key(e, b)
		i, ok := index[k]
		if !ok {
			i = len(s.Groups)
			index[k] = i
			s.Groups = append(s.Groups, GroupTotal{Key: k, Hours: decimal.Zero, order: periodOrder(e, b)})
		}
		s.Groups[i].Hours = s.Groups[i].Hours.Add(e.Hours)
		s.Groups[i].Entries++
		if d := strings.TrimSpace(e.Description); d != "" {
			descs[k] = append(descs[k], d)
		}
		s.Total = s.Total.Add(e.Hours)
	}

	for i := range s.Groups {
		s.Groups[i].Descriptions = strings.Join(descs[s.Groups[i].Key], DescriptionSeparator)
	}
	sort.Slice(s.Groups, func(i, j int) bool {
		gi, gj := s.Groups[i], s.Groups[j]
		if gi.Key.Project != gj.Key.Project {
			return gi.Key.Project < gj.Key.Project
		}
		if gi.Key.Document != gj.Key.Document {
			return gi.Key.Document < gj.Key.Document
		}
		return gi.order < gj.order
	})
	return s
}

// AggregateAll computes every bucket for the reference date.
func (a Aggregator) AggregateAll(entries []TimeEntry, ref Date) SummarySet {
	return SummarySet{
		Reference: ref,
		Daily:     a.Aggregate(entries, Daily, ref),
		Weekly:    a.Aggregate(entries, Weekly, ref),
		Monthly:   a.Aggregate(entries, Monthly, ref),
	}
}
