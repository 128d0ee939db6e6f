package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"timesheet/internal/anomaly"
	"timesheet/internal/core"
	"timesheet/internal/log"
	"timesheet/internal/middleware/ratelimit"
	"timesheet/internal/middleware/security"
	"timesheet/internal/middleware/trace"
	"timesheet/internal/services"
	appweb "timesheet/web"
)

// Timesheet is the part of services.TimesheetService the handlers use.
type Timesheet interface {
	Submit(ctx context.Context, c core.Candidate, ref core.Date) (*services.Result, error)
	ReplaceDay(ctx context.Context, d core.Date, candidates []core.Candidate, ref core.Date) (*services.Result, error)
	Reset(ctx context.Context, ref core.Date) *services.Result
	Precheck(c core.Candidate) error
	CheckAnomaly(ctx context.Context, c core.Candidate) anomaly.Result
	Summaries(ref core.Date) core.SummarySet
	Summary(b core.Bucket, ref core.Date) core.Summary
	Entries() []core.TimeEntry
	EntriesFor(d core.Date) []core.TimeEntry
	Catalog(ctx context.Context) ([]string, []string, error)
	DailyCap() string
	Ready() bool
}

var _ Timesheet = (*services.TimesheetService)(nil)

// Options tunes the server. The zero value is usable.
type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int
	// Ping probes the backend for /readyz; nil skips the probe.
	Ping func(context.Context) error
}

type Server struct {
	http.Server
	templates *template.Template
	svc       Timesheet
	logger    *log.Logger
	ping      func(context.Context) error
	startedAt time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
}

// NewServer builds the router around svc. Call Shutdown to stop background work.
func NewServer(addr string, svc Timesheet, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		svc:              svc,
		logger:           logger,
		ping:             opts.Ping,
		startedAt:        time.Now(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: security.NewDetector(logger),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	tmpl, err := parseTemplates()
	if err != nil {
		logger.Error("Failed to parse templates", log.FieldComponent, log.ComponentTemplate, log.FieldError, err)
	} else {
		s.templates = tmpl
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.traceMiddleware.Middleware)
	r.Use(s.securityDetector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	if static, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		r.With(security.StaticAssetMiddleware(3600)).
			Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, nil))
		r.Use(security.NoStore)

		r.Get("/", s.handleIndex)
		r.Post("/entries", s.handleCreateEntry)
		r.Post("/entries/reset", s.handleReset)
		r.Get("/days/{date}", s.handleDayForm)
		r.Post("/days/{date}", s.handleReplaceDay)
		r.Get("/ui/summary", s.handleSummaryPartial)

		r.Route("/api", func(r chi.Router) {
			r.Get("/entries", s.handleAPIListEntries)
			r.Post("/entries", s.handleAPICreateEntry)
			r.Get("/summary", s.handleAPISummary)
			r.Get("/catalog", s.handleAPICatalog)
		})
	})
	return r
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"hours": core.FormatHours,
		"title": bucketTitle,
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

// Shutdown stops the HTTP server and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}

func bucketTitle(b core.Bucket) string {
	switch b {
	case core.Weekly:
		return "This week"
	case core.Monthly:
		return "This month"
	}
	return "Today"
}
