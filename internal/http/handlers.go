package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"snowlog/internal/core"
	applog "snowlog/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.appMetrics.uptime).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{
			"active_clients": s.rateLimiter.ActiveClients(),
			"status":         "ok",
		},
	}

	if s.ready == nil {
		checks["storage"] = "ok"
	} else if err := s.ready(ctx); err != nil {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	metrics := []struct {
		name, help, kind string
		value            int64
	}{
		{"http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests},
		{"records_created_total", "Shift records created", "counter", atomic.LoadInt64(&s.appMetrics.recordsCreated)},
		{"records_deleted_total", "Shift records deleted", "counter", atomic.LoadInt64(&s.appMetrics.recordsDeleted)},
		{"records_current", "Shift records in the collection", "gauge", int64(len(s.records.List()))},
		{"exports_total", "Reports exported", "counter", atomic.LoadInt64(&s.appMetrics.exports)},
		{"rate_limit_hits_total", "Total rate limit hits", "counter", rateLimitMetrics.TotalHits},
		{"active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount},
		{"suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests},
		{"uptime_seconds", "Application uptime in seconds", "gauge", int64(s.now().Sub(s.appMetrics.uptime).Seconds())},
	}

	w.WriteHeader(http.StatusOK)
	for _, m := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", m.name, m.help, m.name, m.kind, m.name, m.value)
	}
}

// recordsResponse is the log view payload
type recordsResponse struct {
	Records []core.ShiftRecord `json:"records"`
	Count   int                `json:"count"`
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	list := core.Search(s.records.List(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, recordsResponse{Records: list, Count: len(list)})
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	in, err := decodeShiftInput(w, r)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Invalid shift record",
			applog.FieldOperation, applog.OpValidate,
			applog.FieldError, err)
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	rec := s.records.Create(r.Context(), in)
	s.countCreated()
	writeJSON(w, http.StatusCreated, rec)
}

// handleDeleteRecord answers 204 whether or not the id existed.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.records.Delete(r.Context(), id) {
		s.countDeleted()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePeriodEnd(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, err := core.ParseDate(query.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be a YYYY-MM-DD date")
		return
	}
	shift := core.ShiftType(query.Get("shift"))
	if shift == "" {
		shift = core.Day
	}
	if !shift.Valid() {
		writeError(w, http.StatusBadRequest, "shift must be day or night")
		return
	}
	writeJSON(w, http.StatusOK, map[string]core.Date{
		"periodFrom": from,
		"periodTo":   core.DeriveShiftEnd(from, shift),
	})
}

// validationMessage maps input errors to the message shown on the form.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidShiftType):
		return "shiftType must be day or night"
	case errors.Is(err, core.ErrInvalidPeriod):
		return "periodTo must not be before periodFrom"
	case errors.Is(err, core.ErrInvalidDate):
		return "periodFrom and periodTo must be YYYY-MM-DD dates"
	case errors.Is(err, core.ErrNegativeQuantity):
		return "trips and volumes must not be negative"
	case errors.Is(err, errBodyTooLarge):
		return "request body too large"
	}
	return "malformed request body"
}
