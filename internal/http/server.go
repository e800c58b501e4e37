package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"snowlog/internal/core"
	applog "snowlog/internal/log"
	"snowlog/internal/middleware/ratelimit"
	"snowlog/internal/middleware/security"
	"snowlog/internal/middleware/trace"
)

// RecordService is the record collection the API operates on.
type RecordService interface {
	Create(ctx context.Context, in core.ShiftInput) core.ShiftRecord
	Delete(ctx context.Context, id string) bool
	List() []core.ShiftRecord
}

// Options configures the server. Zero values select defaults.
type Options struct {
	AuthToken          string
	RateLimitPerMinute int

	// Ready reports whether the storage medium is reachable.
	Ready func(ctx context.Context) error

	Logger *applog.Logger
	Now    func() time.Time
}

// Application metrics
type appMetrics struct {
	recordsCreated int64
	recordsDeleted int64
	exports        int64
	uptime         time.Time
}

type Server struct {
	http.Server
	records RecordService
	ready   func(ctx context.Context) error
	logger  *applog.Logger
	now     func() time.Time

	securityDetector  *security.Detector
	headersMiddleware *security.HeadersMiddleware
	auth              *security.BearerAuth
	rateLimiter       *ratelimit.Limiter
	traceMiddleware   *trace.Middleware

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, records RecordService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.Default(applog.ComponentHTTP)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	detector := security.NewDetector()
	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.Methods = []string{http.MethodPost, http.MethodDelete}
	if opts.RateLimitPerMinute > 0 {
		limiterConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		records:           records,
		ready:             opts.Ready,
		logger:            opts.Logger.WithComponent(applog.ComponentHTTP),
		now:               opts.Now,
		securityDetector:  detector,
		headersMiddleware: security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		auth:              security.NewBearerAuth(opts.AuthToken, "/healthz", "/readyz"),
		rateLimiter:       ratelimit.NewLimiter(limiterConfig),
		traceMiddleware:   trace.NewMiddleware(detector.ExtractClientIP, opts.Logger),
		appMetrics:        &appMetrics{uptime: opts.Now()},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /records", s.handleListRecords)
	mux.HandleFunc("POST /records", s.handleCreateRecord)
	mux.HandleFunc("DELETE /records/{id}", s.handleDeleteRecord)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /period-end", s.handlePeriodEnd)
	mux.HandleFunc("GET /export.csv", s.handleExportCSV)
	mux.HandleFunc("GET /export.xlsx", s.handleExportXLSX)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// middleware wraps the router, outermost first: trace, detection, security
// headers, auth gate, rate limit.
func (s *Server) middleware(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)(next)
	h := s.auth.Middleware(limited)
	h = s.headersMiddleware.Middleware(h)
	h = s.securityDetector.Middleware(h)
	return s.traceMiddleware.Middleware(h)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

// Shutdown stops background routines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) countCreated() { atomic.AddInt64(&s.appMetrics.recordsCreated, 1) }
func (s *Server) countDeleted() { atomic.AddInt64(&s.appMetrics.recordsDeleted, 1) }
func (s *Server) countExport()  { atomic.AddInt64(&s.appMetrics.exports, 1) }
