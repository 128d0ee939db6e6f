package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"timesheet/internal/core"
	"timesheet/internal/log"
)

type dayRow struct {
	Project     string
	Document    string
	Hours       string
	Description string
}

type dayData struct {
	Date      string
	DailyCap  string
	Logged    string
	Rows      []dayRow
	Projects  []string
	Documents []string
}

func (s *Server) dayParam(w http.ResponseWriter, r *http.Request) (core.Date, bool) {
	d, err := core.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		BadRequestError("Invalid date, expected YYYY-MM-DD").Write(w)
		return core.Date{}, false
	}
	return d, true
}

// handleDayForm renders the entries of one date for editing, plus one blank row.
func (s *Server) handleDayForm(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dayParam(w, r)
	if !ok {
		return
	}
	entries := s.svc.EntriesFor(d)
	rows := make([]dayRow, 0, len(entries)+1)
	for _, e := range entries {
		rows = append(rows, dayRow{
			Project:     e.Project,
			Document:    e.Document,
			Hours:       core.FormatHours(e.Hours),
			Description: e.Description,
		})
	}
	rows = append(rows, dayRow{})

	projects, documents, err := s.svc.Catalog(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Catalog list error", log.FieldOperation, log.OpList, log.FieldError, err)
	}
	s.render(w, r, http.StatusOK, "day.html", dayData{
		Date:      d.String(),
		DailyCap:  s.svc.DailyCap(),
		Logged:    core.FormatHours(core.SumHours(entries)),
		Rows:      rows,
		Projects:  projects,
		Documents: documents,
	})
}

// handleReplaceDay replaces every entry of the date with the submitted rows.
// Plain form posts are redirected to the index; htmx requests get a fragment.
func (s *Server) handleReplaceDay(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dayParam(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid form").Write(w)
		return
	}
	candidates, err := dayRowsFromForm(r.PostForm)
	if err != nil {
		s.writeMutationError(w, r, log.OpReplaceDay, err)
		return
	}
	res, err := s.svc.ReplaceDay(r.Context(), d, candidates, d)
	if err != nil {
		s.writeMutationError(w, r, log.OpReplaceDay, err)
		return
	}

	if r.Header.Get("HX-Request") == "" {
		target := "/?date=" + d.String()
		if res.Warning != nil {
			s.logger.WarnContext(r.Context(), "Mutation kept in memory only", log.FieldError, res.Warning)
			target += "&warning=" + warningPersist
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	b := NewHTMXResponse().TriggerEntriesChanged(d.String())
	s.notifyOutcome(r, b, res, "Day updated")
	b.BodyHTML(`<div class="success">` + d.String() + ` now has ` +
		core.FormatHours(core.SumHours(res.Entries)) + `h in ` +
		itoa(len(res.Entries)) + ` entries</div>`).Write(w)
}
