package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-06-10 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Same(NewDate(2024, 6, 10)) {
		t.Fatalf("got %s", d)
	}
	for _, bad := range []string{"", "2024-13-01", "10/06/2024", "2024-06-31"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("%q: expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestDateOfDropsTimeOfDay(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	d := DateOf(time.Date(2024, 6, 10, 23, 30, 0, 0, loc))
	if d.String() != "2024-06-10" {
		t.Fatalf("expected 2024-06-10, got %s", d)
	}
}

func TestDateJSON(t *testing.T) {
	e := TimeEntry{ID: "x", Date: NewDate(2024, 6, 10), Project: "Project A", Hours: Hours(3)}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":"x","date":"2024-06-10","project":"Project A","hours":3}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
	var back TimeEntry
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Date.Same(e.Date) || !back.Hours.Equal(e.Hours) || back.Project != e.Project {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestHoursJSONIsNumber(t *testing.T) {
	s := Summary{Bucket: Daily, Total: decimal.RequireFromString("2.5"),
		Groups: []GroupTotal{{Key: GroupKey{Project: "Project A"}, Hours: decimal.RequireFromString("2.5"), Entries: 1}}}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out struct {
		Total  float64 `json:"total"`
		Groups []struct {
			Hours float64 `json:"hours"`
		} `json:"groups"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("hours must be JSON numbers, got %s: %v", b, err)
	}
	if out.Total != 2.5 || len(out.Groups) != 1 || out.Groups[0].Hours != 2.5 {
		t.Fatalf("unexpected decode %+v from %s", out, b)
	}

	var e TimeEntry
	if err := json.Unmarshal([]byte(`{"id":"x","date":"2024-06-10","project":"P","hours":"1.5"}`), &e); err != nil {
		t.Fatalf("quoted hours must still decode: %v", err)
	}
	if e.Hours.String() != "1.5" {
		t.Fatalf("hours = %s, want 1.5", e.Hours)
	}
}

func TestTimeEntryValidate(t *testing.T) {
	good := TimeEntry{ID: "1", Date: NewDate(2024, 6, 10), Project: "Project A", Hours: Hours(2)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		mut  func(*TimeEntry)
		want error
	}{
		{"no id", func(e *TimeEntry) { e.ID = "" }, ErrMissingField},
		{"no date", func(e *TimeEntry) { e.Date = Date{} }, ErrMissingField},
		{"no project", func(e *TimeEntry) { e.Project = " " }, ErrMissingField},
		{"zero hours", func(e *TimeEntry) { e.Hours = Hours(0) }, ErrNonPositiveHours},
	}
	for _, tc := range cases {
		e := good
		tc.mut(&e)
		if err := e.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	src := []TimeEntry{{ID: "a"}, {ID: "b"}}
	cp := Clone(src)
	cp[0].ID = "z"
	if src[0].ID != "a" {
		t.Fatalf("clone aliases source")
	}
	if Clone(nil) != nil {
		t.Fatalf("expected nil clone of nil")
	}
}
