package core

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func entry(id string, d Date, project, document string, hours string, desc string) TimeEntry {
	return TimeEntry{ID: id, Date: d, Project: project, Document: document, Hours: decimal.RequireFromString(hours), Description: desc}
}

func sampleEntries() []TimeEntry {
	return []TimeEntry{
		entry("1", NewDate(2024, 6, 10), "Project A", "Document 1", "3", "standup"),
		entry("2", NewDate(2024, 6, 10), "Project B", "", "5", ""),
		entry("3", NewDate(2024, 6, 11), "Project A", "Document 1", "2.5", "review"),
		entry("4", NewDate(2024, 6, 11), "Project A", "Document 2", "1.25", ""),
		entry("5", NewDate(2024, 6, 3), "Project C", "", "4", "kickoff"),
		entry("6", NewDate(2024, 6, 28), "Project B", "", "7.75", ""),
		entry("7", NewDate(2024, 5, 31), "Project A", "", "6", "last month"),
		entry("8", NewDate(2024, 6, 12), "Project A", "Document 1", "0.5", "follow-up"),
	}
}

func TestScenarioADailyAggregate(t *testing.T) {
	entries := []TimeEntry{
		entry("a", NewDate(2024, 6, 10), "Project A", "", "3", ""),
		entry("b", NewDate(2024, 6, 10), "Project B", "", "5", ""),
	}
	agg := Aggregator{Classifier: Classifier{Week: WeekToDate}}
	s := agg.Aggregate(entries, Daily, NewDate(2024, 6, 10))

	got := s.Labeled()
	if len(got) != 2 || !got["Project A"].Equal(Hours(3)) || !got["Project B"].Equal(Hours(5)) {
		t.Fatalf("unexpected groups: %v", got)
	}
	if !s.Total.Equal(Hours(8)) {
		t.Fatalf("expected total 8, got %s", s.Total)
	}
}

func TestScenarioCFirstMondayIsWeekOne(t *testing.T) {
	firstMonday := NewDate(2024, 6, 3)
	entries := []TimeEntry{entry("a", firstMonday, "Project A", "", "4", "")}
	agg := Aggregator{Classifier: Classifier{Week: WeekToDate}}
	s := agg.Aggregate(entries, Monthly, NewDate(2024, 6, 20))

	key := GroupKey{Project: "Project A", Period: "Week 1"}
	if h, ok := s.Sums()[key]; !ok || !h.Equal(Hours(4)) {
		t.Fatalf("expected 4 hours under %v, got %v", key, s.Sums())
	}
	if !s.Total.Equal(Hours(4)) {
		t.Fatalf("expected total 4, got %s", s.Total)
	}
}

func TestAggregateKeys(t *testing.T) {
	agg := Aggregator{Classifier: Classifier{Week: WeekToDate}, ByDocument: true}
	ref := NewDate(2024, 6, 12)

	weekly := agg.Aggregate(sampleEntries(), Weekly, ref)
	want := []string{
		"Project A / Document 1 / Tue",
		"Project A / Document 1 / Mon",
		"Project A / Document 1 / Wed",
		"Project A / Document 2 / Tue",
		"Project B / Mon",
	}
	got := weekly.Labeled()
	if len(got) != len(want) {
		t.Fatalf("expected %d groups, got %v", len(want), got)
	}
	for _, k := range want {
		if _, ok := got[k]; !ok {
			t.Errorf("missing group %q in %v", k, got)
		}
	}
	if !weekly.Total.Equal(decimal.RequireFromString("12.25")) {
		t.Errorf("weekly total = %s", weekly.Total)
	}

	// groups are ordered by project, document, then weekday
	order := []string{}
	for _, g := range weekly.Groups {
		order = append(order, g.Key.String())
	}
	expectOrder := []string{
		"Project A / Document 1 / Mon",
		"Project A / Document 1 / Tue",
		"Project A / Document 1 / Wed",
		"Project A / Document 2 / Tue",
		"Project B / Mon",
	}
	for i := range expectOrder {
		if order[i] != expectOrder[i] {
			t.Fatalf("group order = %v", order)
		}
	}
}

func TestAggregateWithoutDocument(t *testing.T) {
	agg := Aggregator{Classifier: Classifier{Week: WeekToDate}}
	s := agg.Aggregate(sampleEntries(), Monthly, NewDate(2024, 6, 12))
	got := s.Labeled()
	if !got["Project A / Week 2"].Equal(decimal.RequireFromString("7.25")) {
		t.Errorf("Project A / Week 2 = %s", got["Project A / Week 2"])
	}
	if !got["Project C / Week 1"].Equal(Hours(4)) {
		t.Errorf("Project C / Week 1 = %s", got["Project C / Week 1"])
	}
	if !got["Project B / Week 4"].Equal(decimal.RequireFromString("7.75")) {
		t.Errorf("Project B / Week 4 = %s", got["Project B / Week 4"])
	}
	if _, ok := got["Project A / Week 0"]; ok {
		t.Errorf("entry from previous month must not be counted")
	}
}

func TestAggregateTotalsInvariant(t *testing.T) {
	entries := sampleEntries()
	refs := []Date{NewDate(2024, 6, 10), NewDate(2024, 6, 12), NewDate(2024, 6, 30), NewDate(2024, 5, 31), NewDate(2024, 8, 1)}
	for _, window := range []WeekWindow{WeekToDate, FullWeek} {
		for _, byDoc := range []bool{false, true} {
			agg := Aggregator{Classifier: Classifier{Week: window}, ByDocument: byDoc}
			for _, ref := range refs {
				for _, b := range Buckets {
					s := agg.Aggregate(entries, b, ref)
					groupSum := decimal.Zero
					for _, g := range s.Groups {
						groupSum = groupSum.Add(g.Hours)
					}
					filtered := decimal.Zero
					for _, e := range entries {
						if agg.Classifier.Classify(e, ref).Has(b) {
							filtered = filtered.Add(e.Hours)
						}
					}
					if !groupSum.Equal(s.Total) || !filtered.Equal(s.Total) {
						t.Fatalf("%s/%s/%v: groups=%s total=%s filtered=%s", window, b, ref, groupSum, s.Total, filtered)
					}
				}
			}
		}
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	agg := Aggregator{Classifier: Classifier{Week: FullWeek}, ByDocument: true}
	ref := NewDate(2024, 6, 12)
	base := agg.AggregateAll(sampleEntries(), ref)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 25; i++ {
		shuffled := sampleEntries()
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := agg.AggregateAll(shuffled, ref)
		for _, b := range Buckets {
			want, have := base.Get(b), got.Get(b)
			if !want.Total.Equal(have.Total) || len(want.Groups) != len(have.Groups) {
				t.Fatalf("bucket %s differs after shuffle", b)
			}
			for j := range want.Groups {
				if want.Groups[j].Key != have.Groups[j].Key || !want.Groups[j].Hours.Equal(have.Groups[j].Hours) {
					t.Fatalf("bucket %s group %d differs: %v vs %v", b, j, want.Groups[j], have.Groups[j])
				}
			}
		}
	}
}

func TestAggregateDescriptions(t *testing.T) {
	entries := []TimeEntry{
		entry("1", NewDate(2024, 6, 10), "Project A", "", "1", "first"),
		entry("2", NewDate(2024, 6, 10), "Project A", "", "1", ""),
		entry("3", NewDate(2024, 6, 10), "Project A", "", "1", " second "),
		entry("4", NewDate(2024, 6, 10), "Project B", "", "1", "other"),
	}
	s := Aggregator{}.Aggregate(entries, Daily, NewDate(2024, 6, 10))
	if s.Groups[0].Descriptions != "first, second" {
		t.Fatalf("descriptions = %q", s.Groups[0].Descriptions)
	}
	if s.Groups[0].Entries != 3 {
		t.Fatalf("entries = %d", s.Groups[0].Entries)
	}
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregator{}.Aggregate(nil, Weekly, NewDate(2024, 6, 10))
	if len(s.Groups) != 0 || !s.Total.IsZero() {
		t.Fatalf("expected empty summary, got %+v", s)
	}
	if !s.From.Same(NewDate(2024, 6, 10)) || !s.To.Same(NewDate(2024, 6, 10)) {
		t.Fatalf("unexpected range %s..%s", s.From, s.To)
	}
}
