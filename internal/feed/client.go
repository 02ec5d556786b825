package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"blocks/internal/cache"
	"blocks/internal/core"
)

// Source is the network collaborator of the sync engine. Each call performs
// one request and returns the decoded response document. A document carrying
// a server message is returned as a Node, not as an error; transport failures
// are errors.
type Source interface {
	FetchCategories(ctx context.Context) (Node, error)
	FetchTransactions(ctx context.Context) (Node, error)
	SetCategoryBudget(ctx context.Context, categoryID int64, budget core.Money) (Node, error)
}

const maxBodyBytes = 10 << 20

// StatusError reports a non-2xx response that carried no server message.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.Code) + " " + http.StatusText(e.Code)
}

// ClientConfig configures the HTTP feed client.
type ClientConfig struct {
	BaseURL string
	// Token is sent as a bearer token when not empty.
	Token   string
	Timeout time.Duration
	// CacheSize bounds the number of cached GET responses kept for
	// conditional requests. Zero disables caching.
	CacheSize int
	CacheTTL  time.Duration
	// Transport overrides the base round tripper.
	Transport http.RoundTripper
}

type cachedResponse struct {
	etag string
	body []byte
}

// Client fetches feed documents over HTTP.
type Client struct {
	base      *url.URL
	http      *http.Client
	responses *cache.LRUCache[cachedResponse]
}

var _ Source = (*Client)(nil)

// NewClient builds a feed client. It fails when BaseURL is not an absolute
// http(s) URL.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid feed base URL %q", cfg.BaseURL)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if cfg.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
			Base:   transport,
		}
	}

	c := &Client{
		base: base,
		http: &http.Client{Transport: transport, Timeout: cfg.Timeout},
	}
	if cfg.CacheSize > 0 {
		ttl := cfg.CacheTTL
		if ttl <= 0 {
			ttl = time.Hour
		}
		c.responses = cache.NewLRUCache[cachedResponse](cfg.CacheSize, ttl)
	}
	return c, nil
}

// Cleaner exposes the response cache so it can be registered with a
// cache.Manager. It is nil when caching is disabled.
func (c *Client) Cleaner() cache.Cleaner {
	if c.responses == nil {
		return nil
	}
	return c.responses
}

func (c *Client) FetchCategories(ctx context.Context) (Node, error) {
	return c.get(ctx, "/categories")
}

func (c *Client) FetchTransactions(ctx context.Context) (Node, error) {
	return c.get(ctx, "/transactions")
}

// SetCategoryBudget sends PUT /categories/{id}/budget with the new amount.
func (c *Client) SetCategoryBudget(ctx context.Context, categoryID int64, budget core.Money) (Node, error) {
	body, err := json.Marshal(map[string]string{"budget": budget.String()})
	if err != nil {
		return Node{}, fmt.Errorf("encode budget: %w", err)
	}
	path := "/categories/" + strconv.FormatInt(categoryID, 10) + "/budget"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return Node{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	node, _, _, err := c.do(req)
	if err != nil {
		return Node{}, err
	}
	// Budgets changed; cached category documents are stale.
	if c.responses != nil {
		c.responses.Delete(c.endpoint("/categories"))
	}
	return node, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

func (c *Client) get(ctx context.Context, path string) (Node, error) {
	target := c.endpoint(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Node{}, fmt.Errorf("build request: %w", err)
	}

	var cached cachedResponse
	var haveCached bool
	if c.responses != nil {
		if cached, haveCached = c.responses.Get(target); haveCached {
			req.Header.Set("If-None-Match", cached.etag)
		}
	}

	node, status, resp, err := c.do(req)
	if err != nil {
		return Node{}, err
	}
	if status == http.StatusNotModified && haveCached {
		slog.DebugContext(ctx, "Feed document not modified", "path", path)
		return Parse(cached.body)
	}
	if c.responses != nil && status == http.StatusOK {
		if etag := resp.header.Get("ETag"); etag != "" {
			c.responses.Set(target, cachedResponse{etag: etag, body: resp.body})
		}
	}
	return node, nil
}

type rawResponse struct {
	header http.Header
	body   []byte
}

// do sends req and decodes the JSON body. Non-2xx responses with a JSON body
// are returned as documents so that server messages reach the caller.
func (c *Client) do(req *http.Request) (Node, int, rawResponse, error) {
	ctx := req.Context()
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return Node{}, 0, rawResponse{}, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Node{}, resp.StatusCode, rawResponse{}, fmt.Errorf("%s %s: read body: %w", req.Method, req.URL.Path, err)
	}

	slog.DebugContext(ctx, "Feed request completed",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start))

	raw := rawResponse{header: resp.Header, body: body}
	if resp.StatusCode == http.StatusNotModified {
		return Node{}, resp.StatusCode, raw, nil
	}

	node, err := Parse(body)
	if err != nil {
		return Node{}, resp.StatusCode, raw, fmt.Errorf("%s %s: status %d: %w", req.Method, req.URL.Path, resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 {
		slog.WarnContext(ctx, "Feed returned error status", "path", req.URL.Path, "status", resp.StatusCode)
		if _, hasMessage := node.Message(); !hasMessage {
			return Node{}, resp.StatusCode, raw, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, &StatusError{Code: resp.StatusCode})
		}
	}
	return node, resp.StatusCode, raw, nil
}
