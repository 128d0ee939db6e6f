package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError, "": slog.LevelInfo, "verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentTimesheet, Output: &buf})

	l.WithFields(NewFields().WithEntry("id-1", "2024-06-10", "Project A", decimal.NewFromFloat(2.5))).
		Info("entry accepted")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentTimesheet || rec[FieldEntryID] != "id-1" || rec[FieldHours] != "2.5" {
		t.Errorf("unexpected record %v", rec)
	}

	buf.Reset()
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug must be filtered at info level")
	}
}

func TestFieldsToSliceIsSorted(t *testing.T) {
	s := NewFields().WithOperation(OpSubmit).WithError(errors.New("boom")).WithCount(3).ToSlice()
	want := []any{FieldCount, 3, FieldError, "boom", FieldOperation, OpSubmit}
	if len(s) != len(want) {
		t.Fatalf("got %v", s)
	}
	for i := range want {
		if s[i] != want[i] {
			t.Fatalf("got %v, want %v", s, want)
		}
	}
	if _, ok := NewFields().WithError(nil)[FieldError]; ok {
		t.Errorf("nil error must not add a field")
	}
}

func TestMiddlewareAndAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "text", Output: &buf})

	var seen *Logger
	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req-42" })(
		AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = FromContext(r.Context())
			w.WriteHeader(http.StatusTeapot)
		}))))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x?y=1", nil))

	if seen == nil || seen.Component() != ComponentApp {
		t.Fatalf("logger not propagated: %+v", seen)
	}
	out := buf.String()
	for _, want := range []string{"level=WARN", "request_id=req-42", "status_code=418", "path=/x", "component=http"} {
		if !strings.Contains(out, want) {
			t.Errorf("access log %q missing %q", out, want)
		}
	}
}

func TestFromContextFallsBack(t *testing.T) {
	l := FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger %+v", l)
	}
}
