package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"blocks/internal/amqp"
	"blocks/internal/core"
	"blocks/internal/log"
	"blocks/internal/middleware/ratelimit"
	"blocks/internal/middleware/security"
	"blocks/internal/middleware/trace"
	"blocks/internal/services"
)

// SyncService runs sync passes and budget updates.
type SyncService interface {
	Sync(ctx context.Context, kind core.SyncKind) <-chan services.Outcome
	SetCategoryBudget(ctx context.Context, categoryID int64, budget core.Money) <-chan services.Outcome
	ClearAll(ctx context.Context) error
	Status() services.Status
}

// SpendingReader computes spending figures.
type SpendingReader interface {
	TotalSpending(ctx context.Context, categoryID int64) (core.Money, error)
	Overview(ctx context.Context) (core.BudgetOverview, error)
}

// TransactionStore edits transactions by hand.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	ListTransactions(ctx context.Context, categoryID *int64) ([]core.Transaction, error)
}

// SyncRequester hands sync requests to a worker.
type SyncRequester interface {
	PublishSyncRequest(ctx context.Context, kind core.SyncKind) (*amqp.SyncRequestMessage, error)
}

// Dependencies are the collaborators of the API. Requests and Ready are
// optional: without Requests syncs run inline, without Ready the service is
// always ready.
type Dependencies struct {
	Sync         SyncService
	Spending     SpendingReader
	Transactions TransactionStore
	Requests     SyncRequester
	Ready        func(context.Context) error
	Logger       *log.Logger
	RateLimit    ratelimit.Config
}

type Server struct {
	http.Server
	deps Dependencies

	logger   *log.Logger
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	rlConfig := deps.RateLimit
	if rlConfig.Applies == nil {
		rlConfig.Applies = ratelimit.MutatingRequests
	}

	s := &Server{
		deps:     deps,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(rlConfig),
		detector: security.NewDetector(logger.WithComponent(log.ComponentSecurity)),
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger.WithComponent(log.ComponentTrace))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /categories", s.handleOverview)
	mux.HandleFunc("GET /categories/{id}/spending", s.handleCategorySpending)
	mux.HandleFunc("PUT /categories/{id}/budget", s.handleSetBudget)

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("POST /sync/{kind}", s.handleSync)
	mux.HandleFunc("GET /sync/status", s.handleSyncStatus)
	mux.HandleFunc("DELETE /data", s.handleClearAll)

	var handler http.Handler = mux
	handler = log.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = log.Middleware(logger)(handler)
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").
			Header("Retry-After", "60").
			Write(w)
	})(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics returns request counters collected by the tracing middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
