package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocks/internal/core"
)

func TestNewClientValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com", "not a url", "/relative"} {
		_, err := NewClient(ClientConfig{BaseURL: raw})
		assert.Error(t, err, raw)
	}
}

func TestClientFetchCategoriesSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/categories", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 1, "name": "Food", "budget": "10.00"}]`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL + "/api/", Token: "secret", Timeout: time.Second})
	require.NoError(t, err)

	doc, err := c.FetchCategories(context.Background())
	require.NoError(t, err)
	recs, skipped, err := DecodeCategories(doc)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Len(t, recs, 1)
}

func TestClientReturnsServerMessageOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "Please link your bank account"}`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	doc, err := c.FetchTransactions(context.Background())
	require.NoError(t, err)
	msg, ok := doc.Message()
	assert.True(t, ok)
	assert.Equal(t, "Please link your bank account", msg)
}

func TestClientErrorStatusWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error": "upstream"}`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.FetchTransactions(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
}

func TestClientNonJSONBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.FetchCategories(context.Background())
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.FetchCategories(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidJSON))
}

func TestClientConditionalGet(t *testing.T) {
	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(`[{"id": 1, "name": "Food"}]`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, CacheSize: 8, CacheTTL: time.Minute})
	require.NoError(t, err)
	require.NotNil(t, c.Cleaner())

	for i := 0; i < 2; i++ {
		doc, err := c.FetchCategories(context.Background())
		require.NoError(t, err)
		recs, _, err := DecodeCategories(doc)
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	}
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), notModified.Load())
}

func TestClientSetCategoryBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/categories/7/budget", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "125.50", body["budget"])
		w.Write([]byte(`{"amount": "125.50"}`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Nil(t, c.Cleaner())

	doc, err := c.SetCategoryBudget(context.Background(), 7, core.Money{Cents: 12550})
	require.NoError(t, err)
	amount, err := DecodeBudget(doc)
	require.NoError(t, err)
	assert.Equal(t, int64(12550), amount.Cents)
}
