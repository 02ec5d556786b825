package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"blocks/internal/core"
	"blocks/internal/log"
	"blocks/internal/services"
	"blocks/internal/storage"
)

// handleOverview returns every category with budget, spending and remainder.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.deps.Spending.Overview(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Overview failed", log.FieldError, err)
		InternalServerError("could not compute overview").Write(w)
		return
	}
	NewResponse().JSON(toOverviewJSON(overview)).Write(w)
}

func (s *Server) handleCategorySpending(w http.ResponseWriter, r *http.Request) {
	id, err := parseCategoryID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	spent, err := s.deps.Spending.TotalSpending(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, "Spending lookup failed", err)
		return
	}
	NewResponse().JSON(spendingJSON{CategoryID: id, Spent: spent.String()}).Write(w)
}

// handleSetBudget sends a new budget to the remote and commits the amount
// the remote confirms.
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := parseCategoryID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	budget, err := req.toMoney()
	if err != nil {
		UnprocessableEntityError("invalid budget").Write(w)
		return
	}

	select {
	case out := <-s.deps.Sync.SetCategoryBudget(r.Context(), id, budget):
		s.writeOutcome(w, r, out)
	case <-r.Context().Done():
		ErrorResponse(http.StatusGatewayTimeout, "request cancelled").Write(w)
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseCategoryFilter(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	txs, err := s.deps.Transactions.ListTransactions(r.Context(), filter)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "List transactions failed", log.FieldError, err)
		InternalServerError("could not list transactions").Write(w)
		return
	}
	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionJSON(t))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	t, err := req.toTransaction()
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	created, err := s.deps.Transactions.CreateTransaction(r.Context(), t)
	if err != nil {
		s.writeStoreError(w, r, "Create transaction failed", err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/transactions/"+created.TransactionID).
		JSON(toTransactionJSON(created)).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		BadRequestError("missing transaction id").Write(w)
		return
	}
	if err := s.deps.Transactions.DeleteTransaction(r.Context(), id); err != nil {
		s.writeStoreError(w, r, "Delete transaction failed", err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// handleSync runs a pass inline, or hands it to the worker when a broker is
// configured.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseSyncKind(r.PathValue("kind"))
	if err != nil {
		NotFoundError(err.Error()).Write(w)
		return
	}

	if s.deps.Requests != nil {
		msg, err := s.deps.Requests.PublishSyncRequest(r.Context(), kind)
		if err != nil {
			log.FromContext(r.Context()).LogError(r.Context(), "Publish sync request failed", err, log.OpSync,
				log.NewFields().WithSync(string(kind), 0, 0, 0))
			ErrorResponse(http.StatusServiceUnavailable, "sync queue unavailable").Write(w)
			return
		}
		NewResponse().
			Status(http.StatusAccepted).
			JSON(syncAcceptedJSON{RequestID: msg.RequestID, Kind: kind}).
			Write(w)
		return
	}

	select {
	case out := <-s.deps.Sync.Sync(r.Context(), kind):
		s.writeOutcome(w, r, out)
	case <-r.Context().Done():
		ErrorResponse(http.StatusGatewayTimeout, "request cancelled").Write(w)
	}
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	NewResponse().JSON(toStatusJSON(s.deps.Sync.Status())).Write(w)
}

// handleClearAll deletes every local category and transaction.
func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sync.ClearAll(r.Context()); err != nil {
		if errors.Is(err, services.ErrSyncInProgress) {
			ConflictError(err.Error()).Write(w)
			return
		}
		log.FromContext(r.Context()).LogError(r.Context(), "Clear failed", err, log.OpClear, nil)
		InternalServerError("could not clear data").Write(w)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// handleMetrics provides request and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.WriteHeader(http.StatusOK)

	writeMetric(w, "http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	writeMetric(w, "http_server_errors_total", "counter", "Total number of 5xx responses", traceMetrics.ServerErrors)
	writeMetric(w, "http_response_time_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime)
	writeMetric(w, "rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	writeMetric(w, "active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	writeMetric(w, "suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	writeMetric(w, "blocked_requests_total", "counter", "Total suspicious requests rejected", securityMetrics.BlockedRequests)
	writeMetric(w, "uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.started).Seconds()))
}

func writeMetric(w http.ResponseWriter, name, typ, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", name, help, name, typ, name, value)
}

// writeOutcome maps a pass outcome to a response. Server messages are not
// errors of this service and are returned with 200.
func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request, out services.Outcome) {
	body := toOutcomeJSON(out)
	switch {
	case out.Err == nil:
		NewResponse().JSON(body).Write(w)
	case errors.Is(out.Err, services.ErrSyncInProgress):
		NewResponse().Status(http.StatusConflict).JSON(body).Write(w)
	case errors.Is(out.Err, storage.ErrNotFound):
		NewResponse().Status(http.StatusNotFound).JSON(body).Write(w)
	default:
		log.FromContext(r.Context()).WarnContext(r.Context(), "Pass failed",
			log.FieldSyncKind, out.Kind,
			log.FieldError, out.Err)
		NewResponse().Status(http.StatusBadGateway).JSON(body).Write(w)
	}
}

// writeStoreError maps store and validation errors to status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		NotFoundError(err.Error()).Write(w)
	case errors.Is(err, storage.ErrDuplicateID):
		ConflictError(err.Error()).Write(w)
	case errors.Is(err, storage.ErrDanglingCategory),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNameTooLong),
		errors.Is(err, core.ErrInvalidID),
		errors.Is(err, core.ErrEmptyID),
		errors.Is(err, core.ErrInvalidDate):
		UnprocessableEntityError(err.Error()).Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), msg, log.FieldError, err)
		InternalServerError("internal error").Write(w)
	}
}
