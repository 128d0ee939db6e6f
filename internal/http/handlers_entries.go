package http

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"timesheet/internal/core"
	"timesheet/internal/log"
	"timesheet/internal/services"
)

const persistWarning = "Saved for this session, but the backup store could not be updated"

// warningPersist is the ?warning= value a redirect carries when the
// write-through of a plain form post failed.
const warningPersist = "persist"

type indexData struct {
	Today        string
	Warning      string
	DefaultHours string
	DailyCap     string
	Projects     []string
	Documents    []string
	Summary      summaryView
}

type confirmData struct {
	Reason string
	Ref    string
	Form   url.Values
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	ref, err := refDate(r)
	if err != nil {
		ref = core.Today()
	}
	projects, documents, err := s.svc.Catalog(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Catalog list error", log.FieldOperation, log.OpList, log.FieldError, err)
	}
	data := indexData{
		Today:        ref.String(),
		Warning:      redirectWarning(r),
		DefaultHours: s.svc.DailyCap(),
		DailyCap:     s.svc.DailyCap(),
		Projects:     projects,
		Documents:    documents,
		Summary:      newSummaryView(s.svc.Summaries(ref)),
	}
	s.render(w, r, http.StatusOK, "index.html", data)
}

// handleCreateEntry validates the candidate, runs the advisory check unless
// the form carries confirm=true, then submits. A confirmation prompt is a 200
// with the prompt fragment; nothing is stored until the user confirms, and an
// entry the Guard rejects is never offered for confirmation.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid form").Write(w)
		return
	}
	c, err := candidateFromForm(r.PostForm)
	if err != nil {
		s.writeMutationError(w, r, log.OpSubmit, err)
		return
	}

	ref, err := refDate(r)
	if err != nil {
		ref = core.Today()
	}
	if !isConfirmed(r.PostForm) {
		if err := s.svc.Precheck(c); err != nil {
			s.writeMutationError(w, r, log.OpSubmit, err)
			return
		}
		if adv := s.svc.CheckAnomaly(r.Context(), c); adv.ConfirmationNeeded {
			s.logger.InfoContext(r.Context(), "Entry needs confirmation",
				log.FieldOperation, log.OpAdvise,
				log.FieldDate, c.Date.String(),
				"reason", adv.Reason)
			s.render(w, r, http.StatusOK, "confirm.html", confirmData{Reason: adv.Reason, Ref: ref.String(), Form: r.PostForm})
			return
		}
	}

	res, err := s.svc.Submit(r.Context(), c, ref)
	if err != nil {
		s.writeMutationError(w, r, log.OpSubmit, err)
		return
	}

	e := res.Entries[0]
	b := NewHTMXResponse().TriggerEntriesChanged(ref.String())
	s.notifyOutcome(r, b, res, "Entry saved")
	b.BodyHTML(`<div class="success">Logged ` + template.HTMLEscapeString(core.FormatHours(e.Hours)) +
		`h on ` + template.HTMLEscapeString(e.Date.String()) +
		` for ` + template.HTMLEscapeString(e.Project) + `</div>`).Write(w)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ref, err := refDate(r)
	if err != nil {
		ref = core.Today()
	}
	res := s.svc.Reset(r.Context(), ref)

	b := NewHTMXResponse().TriggerEntriesChanged(ref.String())
	s.notifyOutcome(r, b, res, "All entries cleared")
	b.BodyHTML(`<div class="success">All entries cleared</div>`).Write(w)
}

func redirectWarning(r *http.Request) string {
	if r.URL.Query().Get("warning") == warningPersist {
		return persistWarning
	}
	return ""
}

// notifyOutcome adds the success toast, or the persistence warning when the
// write-through failed.
func (s *Server) notifyOutcome(r *http.Request, b *HTMXResponseBuilder, res *services.Result, ok string) {
	if res.Warning != nil {
		s.logger.WarnContext(r.Context(), "Mutation kept in memory only", log.FieldError, res.Warning)
		b.TriggerWarningNotification(persistWarning)
		return
	}
	b.TriggerSuccessNotification(ok)
}

// writeMutationError maps validation failures to 422 with their message and
// everything else to 500.
func (s *Server) writeMutationError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if core.IsValidation(err) {
		UnprocessableEntityError(userMessage(err)).Write(w)
		return
	}
	s.logger.ErrorContext(r.Context(), "Mutation failed", log.FieldOperation, op, log.FieldError, err)
	InternalServerError("Something went wrong, the entry was not saved").Write(w)
}

// userMessage keeps a "row N:" prefix added by day validation and otherwise
// shows the validation message itself.
func userMessage(err error) string {
	var ve *core.ValidationError
	if errors.As(err, &ve) && err.Error() != ve.Error() {
		return err.Error()
	}
	if ve != nil {
		return ve.Error()
	}
	return err.Error()
}

// render executes a template into a buffer first so a template error never
// leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldOperation, log.OpRender, "template", name, log.FieldError, err)
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
