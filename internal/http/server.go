// Package http serves the JSON API: record CRUD for classes, transactions and
// tasks, the stats endpoints, and the unauthenticated health routes.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"studyfocus/internal/auth"
	"studyfocus/internal/core"
	"studyfocus/internal/log"
	"studyfocus/internal/metrics"
	"studyfocus/internal/middleware/ratelimit"
	"studyfocus/internal/middleware/security"
	"studyfocus/internal/middleware/trace"
	"studyfocus/internal/store"
)

// HealthMessage is the body of GET /.
const HealthMessage = "Students are focusin on their studies"

// Records is satisfied by *services.RecordService.
type Records interface {
	CreateClass(ctx context.Context, p core.ClassPatch) (core.InsertResult, error)
	ListClasses(ctx context.Context, owner string) ([]core.Class, error)
	UpdateClass(ctx context.Context, id string, p core.ClassPatch) (core.UpdateResult, error)
	DeleteClass(ctx context.Context, id string) (core.DeleteResult, error)

	CreateTransaction(ctx context.Context, p core.TransactionPatch) (core.InsertResult, error)
	ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, p core.TransactionPatch) (core.UpdateResult, error)
	DeleteTransaction(ctx context.Context, id string) (core.DeleteResult, error)

	CreateTask(ctx context.Context, p core.TaskPatch) (core.InsertResult, error)
	ListTasks(ctx context.Context, owner string) ([]core.Task, error)
	GetTask(ctx context.Context, id string) (core.Task, error)
	UpdateTask(ctx context.Context, id string, p core.TaskPatch) (core.UpdateResult, error)
	UpdateTaskStatus(ctx context.Context, id string, status core.TaskStatus) (core.UpdateResult, error)
	DeleteTask(ctx context.Context, id string) (core.DeleteResult, error)
}

// Stats is satisfied by *stats.Engine.
type Stats interface {
	WeeklyProgress(ctx context.Context, owner, start string) (core.WeeklyProgress, error)
	PriorityBreakdown(ctx context.Context, owner string) ([]core.PriorityCount, error)
	DailyCompletions(ctx context.Context, owner, days string) ([]core.DailyCount, error)
	TransactionSummary(ctx context.Context, owner string) (core.TransactionSummary, error)
	ClassesBySubject(ctx context.Context, owner string) ([]core.SubjectCount, error)
	Overview(ctx context.Context, owner string) (core.Overview, error)
	ExpensesByCategory(ctx context.Context, owner string) ([]core.CategoryTotal, error)
	TransactionsTrend(ctx context.Context, owner string) ([]core.MonthTrend, error)
}

// Deps are the collaborators the server routes to. Pinger and Metrics are
// optional.
type Deps struct {
	Records  Records
	Stats    Stats
	Verifier auth.Verifier
	Pinger   store.Pinger
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

type Options struct {
	CORSAllowedOrigins []string
	// StoreTimeout bounds every protected request. Zero means no bound.
	StoreTimeout time.Duration
	// EnforceOwner rejects email parameters that differ from the verified
	// token's email.
	EnforceOwner bool
	RateLimit    ratelimit.Config
}

type Server struct {
	http.Server
	records      Records
	stats        Stats
	pinger       store.Pinger
	logger       *log.Logger
	enforceOwner bool
	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures middleware and routes, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		records:      deps.Records,
		stats:        deps.Stats,
		pinger:       deps.Pinger,
		logger:       logger,
		enforceOwner: opts.EnforceOwner,
		limiter:      ratelimit.NewLimiter(opts.RateLimit),
	}

	detector := security.NewDetector(logger)
	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(trace.NewMiddleware(logger, detector.ExtractClientIP).Middleware)
	r.Use(detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{trace.HeaderRequestID, "Retry-After"},
		MaxAge:         300,
	}))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(s.limiter.Middleware(detector.ExtractClientIP, s.handleRateLimited))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", handleIndex)
	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	gate := auth.NewGate(deps.Verifier, logger)
	r.Group(func(r chi.Router) {
		r.Use(gate.Middleware)
		if opts.StoreTimeout > 0 {
			r.Use(withTimeout(opts.StoreTimeout))
		}

		r.Route("/classes", func(r chi.Router) {
			r.Get("/", s.handleListClasses)
			r.Post("/", s.handleCreateClass)
			r.Put("/{id}", s.handleUpdateClass)
			r.Delete("/{id}", s.handleDeleteClass)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Get("/{id}", s.handleGetTask)
			r.Put("/{id}", s.handleUpdateTask)
			r.Patch("/{id}/status", s.handleUpdateTaskStatus)
			r.Delete("/{id}", s.handleDeleteTask)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/weekly", s.handleWeeklyStats)
			r.Get("/tasks/priority", s.handlePriorityStats)
			r.Get("/tasks/daily", s.handleDailyStats)
			r.Get("/transactions", s.handleTransactionStats)
			r.Get("/classes", s.handleClassStats)
			r.Get("/overview", s.handleOverview)
			r.Get("/expense-by-category", s.handleExpenseByCategory)
			r.Get("/transactions-trend", s.handleTransactionsTrend)
		})
	})

	s.Server = http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// withTimeout bounds the request context so a store call that never answers
// surfaces as a 500 instead of hanging the response.
func withTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(HealthMessage))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "Too many requests")
}
