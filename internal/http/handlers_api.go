package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"timesheet/internal/core"
	"timesheet/internal/log"
)

const maxJSONBody = 64 << 10

type apiEntryRequest struct {
	Date        string          `json:"date"`
	Project     string          `json:"project"`
	Document    string          `json:"document"`
	Hours       json.RawMessage `json:"hours"`
	Description string          `json:"description"`
	Confirm     bool            `json:"confirm"`
}

// form maps the request onto the entry form so both paths share parsing.
// Hours may be a JSON number or a string.
func (req apiEntryRequest) form() url.Values {
	hours := strings.TrimSpace(string(req.Hours))
	if unq, err := strconv.Unquote(hours); err == nil {
		hours = unq
	}
	if hours == "null" {
		hours = ""
	}
	return url.Values{
		"date":        {req.Date},
		"project":     {req.Project},
		"document":    {req.Document},
		"hours":       {hours},
		"description": {req.Description},
	}
}

type apiError struct {
	Error  string           `json:"error"`
	Kind   string           `json:"kind,omitempty"`
	Field  string           `json:"field,omitempty"`
	Logged *decimal.Decimal `json:"logged,omitempty"`
	Cap    *decimal.Decimal `json:"cap,omitempty"`
}

type apiEntryResponse struct {
	Entry     core.TimeEntry  `json:"entry"`
	Summaries core.SummarySet `json:"summaries"`
	Warning   string          `json:"warning,omitempty"`
}

type apiConfirmation struct {
	ConfirmationNeeded bool   `json:"confirmationNeeded"`
	Reason             string `json:"reason,omitempty"`
}

func (s *Server) handleAPIListEntries(w http.ResponseWriter, r *http.Request) {
	v := strings.TrimSpace(r.URL.Query().Get("date"))
	if v == "" {
		writeJSON(w, http.StatusOK, map[string]any{"entries": nonNil(s.svc.Entries())})
		return
	}
	d, err := core.ParseDate(v)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid date, expected YYYY-MM-DD"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": nonNil(s.svc.EntriesFor(d))})
}

// handleAPICreateEntry answers 201 with the entry and fresh summaries, 409
// when the advisory check wants confirmation, and 422 on validation failure.
func (s *Server) handleAPICreateEntry(w http.ResponseWriter, r *http.Request) {
	var req apiEntryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body: " + err.Error()})
		return
	}
	c, err := candidateFromForm(req.form())
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	if !req.Confirm {
		if err := s.svc.Precheck(c); err != nil {
			s.writeAPIError(w, r, err)
			return
		}
		if adv := s.svc.CheckAnomaly(r.Context(), c); adv.ConfirmationNeeded {
			writeJSON(w, http.StatusConflict, apiConfirmation{ConfirmationNeeded: true, Reason: adv.Reason})
			return
		}
	}
	ref, err := refDate(r)
	if err != nil {
		ref = core.Today()
	}
	res, err := s.svc.Submit(r.Context(), c, ref)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	out := apiEntryResponse{Entry: res.Entries[0], Summaries: res.Summaries}
	if res.Warning != nil {
		s.logger.WarnContext(r.Context(), "Mutation kept in memory only", log.FieldError, res.Warning)
		out.Warning = persistWarning
	}
	writeJSON(w, http.StatusCreated, out)
}

// handleAPISummary returns one bucket when ?bucket= is given and all three
// otherwise.
func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	ref, err := refDate(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid date, expected YYYY-MM-DD"})
		return
	}
	raw, has := r.URL.Query()["bucket"]
	if !has || strings.TrimSpace(raw[0]) == "" {
		writeJSON(w, http.StatusOK, s.svc.Summaries(ref))
		return
	}
	b, err := core.ParseBucket(raw[0])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Summary(b, ref))
}

func (s *Server) handleAPICatalog(w http.ResponseWriter, r *http.Request) {
	projects, documents, err := s.svc.Catalog(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Catalog list error", log.FieldOperation, log.OpList, log.FieldError, err)
		writeJSON(w, http.StatusBadGateway, apiError{Error: "catalog unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"projects":  nonNil(projects),
		"documents": nonNil(documents),
	})
}

func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	if !errors.As(err, &ve) {
		s.logger.ErrorContext(r.Context(), "Mutation failed", log.FieldOperation, log.OpSubmit, log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
		return
	}
	out := apiError{Error: userMessage(err), Kind: ve.Kind.Error(), Field: ve.Field}
	if errors.Is(err, core.ErrDailyCapExceeded) {
		out.Logged, out.Cap = &ve.Logged, &ve.Cap
	}
	writeJSON(w, http.StatusUnprocessableEntity, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
