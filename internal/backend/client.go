package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kawaltani/kawaltani/internal/httputil"
	"github.com/kawaltani/kawaltani/internal/metrics"
)

// Session supplies the bearer token and is expired when the backend
// rejects it.
type Session interface {
	Token() string
	Expire()
}

// Client talks to the KawalTani REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    Session
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a client for the backend at baseURL. Every call reads
// its token from session and a 401 expires it.
func NewClient(baseURL string, session Session, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httputil.NewClient(),
		session:    session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	method string
	path   string
	// endpoint labels metrics; path parameters are replaced with placeholders.
	endpoint string
	query    url.Values
	body     any

	// anonymous requests carry no token and never expire the session.
	anonymous bool
}

// do sends req and decodes a 2xx body into out. Error responses become
// *APIError; a 401 also expires the session.
func (c *Client) do(ctx context.Context, req request, out any) error {
	raw, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.endpoint, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req request) ([]byte, error) {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", req.endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", httputil.UserAgent)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil && !req.anonymous {
		if token := c.session.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	metrics.BackendLatency.WithLabelValues(req.endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendCallsTotal.WithLabelValues(req.endpoint, "error").Inc()
		return nil, fmt.Errorf("%s %s: %w: %w", req.method, req.endpoint, ErrNetwork, err)
	}
	defer resp.Body.Close()
	metrics.BackendCallsTotal.WithLabelValues(req.endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", req.endpoint, ErrNetwork, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		metrics.UnauthorizedTotal.Inc()
		if c.session != nil && !req.anonymous {
			log.Printf("backend: %s returned 401, expiring session", req.endpoint)
			c.session.Expire()
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseError(resp.StatusCode, raw)
	}
	return raw, nil
}

// responseError builds an APIError from a message/error JSON body.
func responseError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		if m, ok := body["message"].(string); ok {
			apiErr.Message = m
		}
		if code, ok := body["error"].(string); ok {
			apiErr.Code = code
			if apiErr.Message == "" {
				apiErr.Message = code
			}
		}
	}
	return apiErr
}

// envelope is the {data} wrapper used by the site and plant endpoints.
type envelope[T any] struct {
	Data T `json:"data"`
}

func siteQuery(siteID string) url.Values {
	return url.Values{"site_id": {siteID}}
}

func escape(s string) string {
	return url.PathEscape(s)
}
