package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMXResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerEntriesChanged("2024-03-06").
		TriggerWarningNotification("backup failed").
		Header("HX-Reswap", "none").
		BodyHTML("<p>ok</p>").
		Write(rec)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>ok</p>", rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "none", rec.Header().Get("HX-Reswap"))

	var events map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec.Header().Get("HX-Trigger")), &events))
	assert.Equal(t, "2024-03-06", events[EventEntriesChanged]["date"])
	assert.Equal(t, "warning", events[EventShowNotification]["type"])
	assert.Equal(t, "backup failed", events[EventShowNotification]["message"])
	assert.EqualValues(t, 8000, events[EventShowNotification]["duration"])
}

func TestHTMXResponseBuilderNoTriggers(t *testing.T) {
	rec := httptest.NewRecorder()

	NewHTMXResponse().Status(http.StatusNoContent).Write(rec)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("HX-Trigger"))
	assert.Empty(t, rec.Body.String())
}

func TestErrorResponseEscapes(t *testing.T) {
	rec := httptest.NewRecorder()

	UnprocessableEntityError(`project "<b>" is required`).Write(rec)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `role="alert"`)
	assert.Contains(t, rec.Body.String(), "&lt;b&gt;")
	assert.NotContains(t, rec.Body.String(), "<b>")
}

func TestUserMessage(t *testing.T) {
	_, err := dayRowsFromForm(map[string][]string{"project": {"A"}, "hours": {"x"}})
	assert.Equal(t, "row 1: hours must be a number", userMessage(err))

	_, err = candidateFromForm(map[string][]string{"date": {"nope"}})
	assert.Equal(t, `invalid date "nope"`, userMessage(err))
}
