// Package http exposes the expense API over JSON. Every /api route runs
// behind bearer-token auth; the caller resolved from the token scopes all
// reads and writes.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/services"
)

// CallerResolver maps a bearer token to the calling user.
type CallerResolver interface {
	ResolveToken(ctx context.Context, token string) (*core.User, error)
}

// ExpenseService is the application surface the handlers call into.
type ExpenseService interface {
	CreateExpense(ctx context.Context, owner *core.User, in services.ExpenseInput) (*core.Expense, error)
	UpdateExpense(ctx context.Context, owner *core.User, id int64, in services.ExpenseInput) (*core.Expense, error)
	DeleteExpense(ctx context.Context, owner *core.User, id int64) (*core.Expense, error)
	GetExpense(ctx context.Context, owner *core.User, id int64) (*core.Expense, error)
	ListExpenses(ctx context.Context, owner *core.User) ([]core.Expense, error)
	DailyReport(ctx context.Context, owner *core.User, day core.Date) (*core.DailyReport, error)
	MonthlyReport(ctx context.Context, owner *core.User, designator string) (*core.MonthlyReport, error)
	MonthlyCategoryDetail(ctx context.Context, owner *core.User, designator string, categoryID *int64) (*core.DailyReport, error)
	CreateCategory(ctx context.Context, owner *core.User, name string) (*core.Category, error)
	ListCategories(ctx context.Context, owner *core.User) ([]core.Category, error)
}

// Pinger reports backend reachability for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	resolver     CallerResolver
	service      ExpenseService
	pinger       Pinger
	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// pinger may be nil; /readyz then only checks that the process is up.
func NewServer(addr string, resolver CallerResolver, service ExpenseService, pinger Pinger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
		},
		resolver:    resolver,
		service:     service,
		pinger:      pinger,
		rateLimiter: newRateLimiter(),
	}
	s.Handler = s.withRequestLog(mux)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/expenses", s.withAuth(s.handleListExpenses))
	mux.HandleFunc("GET /api/expenses/single", s.withAuth(s.handleGetExpense))
	mux.HandleFunc("POST /api/expenses/create", s.withAuth(s.handleCreateExpense))
	mux.HandleFunc("PUT /api/expenses/update", s.withAuth(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/delete", s.withAuth(s.handleDeleteExpense))
	mux.HandleFunc("GET /api/expenses/daily", s.withAuth(s.handleDailyReport))
	mux.HandleFunc("GET /api/expenses/monthly", s.withAuth(s.handleMonthlyReport))
	mux.HandleFunc("GET /api/expenses/monthly/detail", s.withAuth(s.handleMonthlyDetail))
	mux.HandleFunc("GET /api/categories", s.withAuth(s.handleListCategories))
	mux.HandleFunc("POST /api/categories/create", s.withAuth(s.handleCreateCategory))

	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type ctxKey int

const callerKey ctxKey = iota

// callerFrom returns the authenticated user placed in the context by withAuth.
func callerFrom(ctx context.Context) *core.User {
	u, _ := ctx.Value(callerKey).(*core.User)
	return u
}

// withAuth resolves the bearer token into a user and rejects everything else.
// This is the only place a request touches the users table.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			fail(w, r, core.ErrUnauthorized)
			return
		}

		user, err := s.resolver.ResolveToken(r.Context(), strings.TrimSpace(token))
		if err != nil {
			fail(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), callerKey, user)
		next(w, r.WithContext(ctx))
	}
}

// withRequestLog adds request ids, rate limiting on mutating methods,
// security headers and structured start/end logs.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientIP(r)
		requestID := uuid.NewString()

		ctx := r.Context()
		logger := slog.With("request_id", requestID)

		logger.InfoContext(ctx, "Request started",
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if mutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, Envelope{Message: "rate limit exceeded"})
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		logger.InfoContext(ctx, "Request completed",
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	})
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if i := strings.IndexByte(ip, ','); i >= 0 {
			ip = ip[:i]
		}
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
