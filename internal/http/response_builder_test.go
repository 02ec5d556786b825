package http

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"blocks/internal/core"
	"blocks/internal/reconcile"
	"blocks/internal/services"
)

func TestResponseBuilder(t *testing.T) {
	tests := []struct {
		name        string
		builder     *ResponseBuilder
		wantStatus  int
		wantBody    string
		wantHeaders map[string]string
	}{
		{
			name:       "json body",
			builder:    NewResponse().JSON(map[string]int{"n": 1}),
			wantStatus: http.StatusOK,
			wantBody:   `{"n":1}`,
			wantHeaders: map[string]string{
				"Content-Type": "application/json",
			},
		},
		{
			name:       "no body",
			builder:    NewResponse().Status(http.StatusNoContent),
			wantStatus: http.StatusNoContent,
		},
		{
			name:        "custom header",
			builder:     NewResponse().Status(http.StatusCreated).Header("Location", "/transactions/1").JSON(struct{}{}),
			wantStatus:  http.StatusCreated,
			wantBody:    `{}`,
			wantHeaders: map[string]string{"Location": "/transactions/1"},
		},
		{
			name:       "unencodable body",
			builder:    NewResponse().JSON(math.Inf(1)),
			wantStatus: http.StatusInternalServerError,
		},
		{name: "bad request", builder: BadRequestError("bad"), wantStatus: http.StatusBadRequest, wantBody: `{"error":"bad"}`},
		{name: "unprocessable", builder: UnprocessableEntityError("bad"), wantStatus: http.StatusUnprocessableEntity, wantBody: `{"error":"bad"}`},
		{name: "not found", builder: NotFoundError("gone"), wantStatus: http.StatusNotFound, wantBody: `{"error":"gone"}`},
		{name: "conflict", builder: ConflictError("busy"), wantStatus: http.StatusConflict, wantBody: `{"error":"busy"}`},
		{name: "internal", builder: InternalServerError("oops"), wantStatus: http.StatusInternalServerError, wantBody: `{"error":"oops"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.builder.Write(rr)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rr.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
			for k, v := range tt.wantHeaders {
				if got := rr.Header().Get(k); got != v {
					t.Errorf("header %s = %q, want %q", k, got, v)
				}
			}
		})
	}
}

func TestToOverviewJSON(t *testing.T) {
	overview := core.BudgetOverview{
		Categories: []core.CategorySpending{{
			CategoryID: 1,
			Name:       "Food",
			Budget:     core.Money{Cents: 10000},
			Spent:      core.Money{Cents: 12050},
			Remaining:  core.Money{Cents: -2050},
		}},
		TotalBudget: core.Money{Cents: 10000},
		TotalSpent:  core.Money{Cents: 12050},
		Unlinked:    core.Money{Cents: 99},
	}

	got := toOverviewJSON(overview)
	if len(got.Categories) != 1 {
		t.Fatalf("categories = %d, want 1", len(got.Categories))
	}
	c := got.Categories[0]
	if c.Budget != "100.00" || c.Spent != "120.50" || c.Remaining != "-20.50" {
		t.Errorf("category amounts = %s/%s/%s", c.Budget, c.Spent, c.Remaining)
	}
	if got.Unlinked != "0.99" {
		t.Errorf("uncategorized = %s, want 0.99", got.Unlinked)
	}

	empty, err := json.Marshal(toOverviewJSON(core.BudgetOverview{}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(empty), `"categories":[]`) {
		t.Errorf("empty overview should encode an empty array: %s", empty)
	}
}

func TestToOutcomeJSON(t *testing.T) {
	finished := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		outcome    services.Outcome
		wantResult services.Result
		wantError  string
	}{
		{
			name:       "success",
			outcome:    services.Outcome{Kind: core.KindCategories, Stats: reconcile.Stats{Created: 2, Updated: 1, Skipped: 3}, Finished: finished},
			wantResult: services.ResultSuccess,
		},
		{
			name:       "server message",
			outcome:    services.Outcome{Kind: core.KindTransactions, Message: "Token expired", Finished: finished},
			wantResult: services.ResultPartialFailure,
		},
		{
			name:       "failure",
			outcome:    services.Outcome{Kind: core.KindTransactions, Err: errors.New("timeout"), Finished: finished},
			wantResult: services.ResultFailure,
			wantError:  "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toOutcomeJSON(tt.outcome)
			if got.Result != tt.wantResult {
				t.Errorf("Result = %s, want %s", got.Result, tt.wantResult)
			}
			if got.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", got.Error, tt.wantError)
			}
			if got.Message != tt.outcome.Message {
				t.Errorf("Message = %q, want %q", got.Message, tt.outcome.Message)
			}
			if got.Created != tt.outcome.Stats.Created || got.Skipped != tt.outcome.Stats.Skipped {
				t.Errorf("stats = %d/%d", got.Created, got.Skipped)
			}
			if !got.Finished.Equal(finished) {
				t.Errorf("Finished = %v", got.Finished)
			}
		})
	}
}

func TestToStatusJSON(t *testing.T) {
	last := services.Outcome{Kind: core.KindCategories, Finished: time.Now()}
	status := services.Status{
		Linked: true,
		Kinds: map[core.SyncKind]services.KindStatus{
			core.KindCategories:   {State: services.StateIdle, LastOutcome: &last, LastSuccess: last.Finished},
			core.KindTransactions: {State: services.StateFetching},
		},
	}

	got := toStatusJSON(status)
	if !got.Linked {
		t.Error("Linked = false, want true")
	}
	cats := got.Kinds[core.KindCategories]
	if cats.LastOutcome == nil || cats.LastSuccess == nil {
		t.Fatalf("categories status missing outcome: %+v", cats)
	}
	txs := got.Kinds[core.KindTransactions]
	if txs.State != services.StateFetching {
		t.Errorf("State = %s, want fetching", txs.State)
	}
	if txs.LastOutcome != nil || txs.LastSuccess != nil {
		t.Errorf("never-run kind should omit outcome: %+v", txs)
	}
}
