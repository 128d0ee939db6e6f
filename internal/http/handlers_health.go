package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady is 200 once the store has been hydrated, the templates parsed
// and the backend answers its ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ready := true
	checks := map[string]string{}

	if s.svc.Ready() {
		checks["store"] = "ok"
	} else {
		checks["store"] = "loading"
		ready = false
	}
	if s.templates != nil {
		checks["templates"] = "ok"
	} else {
		checks["templates"] = "failed: templates not loaded"
		ready = false
	}
	if s.ping != nil {
		if err := s.ping(ctx); err != nil {
			checks["backend"] = "failed: " + err.Error()
			ready = false
		} else {
			checks["backend"] = "ok"
		}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.traceMiddleware.GetMetrics()
	rateMetrics := s.rateLimiter.GetMetrics()
	secMetrics := s.securityDetector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	metric := func(name, help, kind string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n", name, help, name, kind, name, v)
	}
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_requests_failed_total", "HTTP requests answered with 5xx", "counter", traceMetrics.FailedRequests)
	metric("http_requests_in_flight", "HTTP requests being served", "gauge", traceMetrics.InFlight)
	metric("timesheet_entries", "Entries held in the session store", "gauge", len(s.svc.Entries()))
	metric("rate_limit_rejected_total", "Requests rejected by the rate limiter", "counter", rateMetrics.Rejected)
	metric("rate_limit_clients", "Clients tracked by the rate limiter", "gauge", rateMetrics.ClientCount)
	metric("suspicious_requests_total", "Requests rejected as probes", "counter", secMetrics.SuspiciousRequests)
	metric("blocked_requests_total", "Requests rejected for their method", "counter", secMetrics.BlockedRequests)
	metric("uptime_seconds", "Process uptime in seconds", "gauge", int64(time.Since(s.startedAt).Seconds()))
}
