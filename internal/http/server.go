// Package http exposes the grid, transition, editor and forecast engines as
// a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"cuentas/internal/cache"
	"cuentas/internal/editor"
	"cuentas/internal/export"
	"cuentas/internal/forecast"
	"cuentas/internal/grid"
	"cuentas/internal/middleware/ratelimit"
	"cuentas/internal/middleware/security"
	"cuentas/internal/middleware/trace"
	"cuentas/internal/storage"
	"cuentas/internal/transition"
)

// Exporter pushes a projection to an external spreadsheet. Optional; the
// forecast endpoints work without one.
type Exporter interface {
	ExportProjection(ctx context.Context, proj *forecast.Projection) error
}

var _ Exporter = (*export.SheetsExporter)(nil)

type Options struct {
	Addr      string
	Store     storage.RecordStore
	Engine    *transition.Engine
	Exporter  Exporter
	AdminMode bool
	CacheSize int
	CacheTTL  time.Duration
}

type Server struct {
	http.Server

	store      storage.RecordStore
	engine     *transition.Engine
	resolver   *editor.Resolver
	forecaster *forecast.Engine
	exporter   Exporter
	adminMode  bool

	// Grid snapshots memoized per store revision.
	gridCache    *cache.LRUCache[*grid.Grid]
	cacheManager *cache.Manager

	// Forecast working state: inflation rates and manual overrides live in
	// memory until the projection is committed.
	forecastMu   sync.Mutex
	expenseRates forecast.Rates
	incomeRates  forecast.Rates
	overrides    forecast.Overrides

	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	s := &Server{
		store:      opts.Store,
		engine:     opts.Engine,
		resolver:   editor.NewResolver(opts.Store, nil),
		forecaster: forecast.NewEngine(opts.Store),
		exporter:   opts.Exporter,
		adminMode:  opts.AdminMode,
		gridCache:  cache.NewLRUCache[*grid.Grid](opts.CacheSize, opts.CacheTTL),
		overrides:  forecast.Overrides{},
		limiter:    ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:   security.NewDetector(),
	}

	s.cacheManager = cache.NewManager()
	s.cacheManager.Register(s.gridCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/grid", s.handleGrid)
	mux.HandleFunc("GET /api/summary", s.handleYearSummary)

	mux.HandleFunc("GET /api/expenses", s.handleListRecords)
	mux.HandleFunc("POST /api/expenses", s.handleCreateRecord)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetRecord)
	mux.HandleFunc("PATCH /api/expenses/{id}", s.handleUpdateRecord)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteRecord)
	mux.HandleFunc("GET /api/income", s.handleListRecords)
	mux.HandleFunc("POST /api/income", s.handleCreateRecord)
	mux.HandleFunc("GET /api/income/{id}", s.handleGetRecord)
	mux.HandleFunc("PATCH /api/income/{id}", s.handleUpdateRecord)
	mux.HandleFunc("DELETE /api/income/{id}", s.handleDeleteRecord)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)

	mux.HandleFunc("GET /api/months/current", s.handleCurrentMonth)
	mux.HandleFunc("POST /api/months/advance", s.handleAdvanceMonth)

	mux.HandleFunc("POST /api/cells/edit", s.handleCellEdit)
	mux.HandleFunc("POST /api/cells/concept-edit", s.handleConceptEdit)

	mux.HandleFunc("GET /api/forecast", s.handleForecast)
	mux.HandleFunc("PUT /api/forecast/rates", s.handleForecastRates)
	mux.HandleFunc("POST /api/forecast/override", s.handleForecastOverride)
	mux.HandleFunc("POST /api/forecast/commit", s.handleForecastCommit)
	mux.HandleFunc("POST /api/forecast/export", s.handleForecastExport)

	s.Server = http.Server{
		Addr:    opts.Addr,
		Handler: s.withMiddleware(mux),
	}
	return s
}

// withMiddleware chains tracing, security headers and write rate limiting
// around the mux.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	traced := trace.NewMiddleware(s.detector.ExtractClientIP)

	limited := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Suspicious requests are logged, not blocked.
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request detected",
				"path", r.URL.Path,
				"client_ip", s.detector.ExtractClientIP(r),
				"user_agent", r.Header.Get("User-Agent"))
		}
		if r.Method != http.MethodGet {
			if !s.limiter.Allow(s.detector.ExtractClientIP(r)) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})

	return traced.Middleware(headers.Middleware(limited))
}

// Shutdown stops background routines and the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Version(r.Context()); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
