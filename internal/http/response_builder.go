// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses and the wire
// representations of the domain types.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"blocks/internal/core"
	"blocks/internal/services"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ConflictError creates a 409 Conflict error response.
func ConflictError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

type categoryJSON struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	Budget     string `json:"budget"`
	Spent      string `json:"spent"`
	Remaining  string `json:"remaining"`
}

type overviewJSON struct {
	Categories  []categoryJSON `json:"categories"`
	TotalBudget string         `json:"total_budget"`
	TotalSpent  string         `json:"total_spent"`
	Unlinked    string         `json:"uncategorized"`
}

func toOverviewJSON(o core.BudgetOverview) overviewJSON {
	out := overviewJSON{
		Categories:  make([]categoryJSON, 0, len(o.Categories)),
		TotalBudget: o.TotalBudget.String(),
		TotalSpent:  o.TotalSpent.String(),
		Unlinked:    o.Unlinked.String(),
	}
	for _, c := range o.Categories {
		out.Categories = append(out.Categories, categoryJSON{
			CategoryID: c.CategoryID,
			Name:       c.Name,
			Budget:     c.Budget.String(),
			Spent:      c.Spent.String(),
			Remaining:  c.Remaining.String(),
		})
	}
	return out
}

type spendingJSON struct {
	CategoryID int64  `json:"category_id"`
	Spent      string `json:"spent"`
}

type transactionJSON struct {
	TransactionID string `json:"id"`
	Name          string `json:"name"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	CategoryID    *int64 `json:"category_id"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		TransactionID: t.TransactionID,
		Name:          t.Name,
		Amount:        t.Amount.String(),
		Date:          t.Date.String(),
		CategoryID:    t.CategoryID,
	}
}

type outcomeJSON struct {
	Kind     core.SyncKind   `json:"kind"`
	Result   services.Result `json:"result"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
	Created  int             `json:"created"`
	Updated  int             `json:"updated"`
	Skipped  int             `json:"skipped"`
	Finished time.Time       `json:"finished"`
}

func toOutcomeJSON(o services.Outcome) outcomeJSON {
	out := outcomeJSON{
		Kind:     o.Kind,
		Result:   o.Result(),
		Message:  o.Message,
		Created:  o.Stats.Created,
		Updated:  o.Stats.Updated,
		Skipped:  o.Stats.Skipped,
		Finished: o.Finished,
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return out
}

type kindStatusJSON struct {
	State       services.State `json:"state"`
	LastOutcome *outcomeJSON   `json:"last_outcome,omitempty"`
	LastSuccess *time.Time     `json:"last_success,omitempty"`
}

type statusJSON struct {
	Kinds  map[core.SyncKind]kindStatusJSON `json:"kinds"`
	Linked bool                             `json:"linked"`
}

func toStatusJSON(s services.Status) statusJSON {
	out := statusJSON{Kinds: make(map[core.SyncKind]kindStatusJSON, len(s.Kinds)), Linked: s.Linked}
	for kind, ks := range s.Kinds {
		entry := kindStatusJSON{State: ks.State}
		if ks.LastOutcome != nil {
			o := toOutcomeJSON(*ks.LastOutcome)
			entry.LastOutcome = &o
		}
		if !ks.LastSuccess.IsZero() {
			ts := ks.LastSuccess
			entry.LastSuccess = &ts
		}
		out.Kinds[kind] = entry
	}
	return out
}

type syncAcceptedJSON struct {
	RequestID string        `json:"request_id"`
	Kind      core.SyncKind `json:"kind"`
}
