// Package api is the authenticated client of the remote template service.
//
// Every request runs through a small state machine: it is sent with the
// firm's access token, the response status is classified, and an expired
// token (401) is refreshed once before the same request is replayed. The
// refresh is shared between concurrent callers of the same firm.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/firmkit/tplsync/internal/events"
	"github.com/firmkit/tplsync/internal/vault"
)

const defaultTimeout = 30 * time.Second

// maxReplays bounds how often a request is re-sent after a refresh.
const maxReplays = 1

// TenantConfig holds the per-firm endpoints. It is never mutated after
// construction.
type TenantConfig struct {
	Tenant    string
	BaseURL   string
	TokenURL  string
	UserAgent string
}

// OAuthConfig holds the OAuth2 client credentials.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Options configures a Client.
type Options struct {
	// Resolve returns the endpoints of a firm.
	Resolve func(tenant string) TenantConfig
	OAuth   OAuthConfig
	Store   vault.TokenStore

	// Timeout applies to every network call. Defaults to 30s.
	Timeout time.Duration
	// TransportRetries is the number of retries on connection errors.
	TransportRetries int

	// Events receives token history entries. Optional.
	Events events.Repository
	Logger zerolog.Logger
}

// Request is one call against a firm's API. Path is relative to the firm's
// base URL.
type Request struct {
	ID     string
	Tenant string
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Result is the terminal state of a request that reached a classified
// status.
type Result struct {
	Outcome    Outcome
	Kind       Kind
	StatusCode int
	Body       []byte
	Message    string
	Attempts   int

	req         Request
	accessToken string
}

// Err returns nil for OutcomeDone and an *Error otherwise.
func (r *Result) Err() error {
	if r == nil || r.Outcome == OutcomeDone {
		return nil
	}
	return &Error{
		Kind:       r.Kind,
		Outcome:    r.Outcome,
		Tenant:     r.req.Tenant,
		Method:     r.req.Method,
		Path:       r.req.Path,
		StatusCode: r.StatusCode,
		Message:    r.Message,
	}
}

// Decode unmarshals the response body into v.
func (r *Result) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode %s %s response: %w", r.req.Method, r.req.Path, err)
	}
	return nil
}

// Client executes authenticated requests.
type Client struct {
	resolve func(string) TenantConfig
	oauth   OAuthConfig
	store   vault.TokenStore
	events  events.Repository
	http    *retryablehttp.Client
	flights singleflight.Group
	logger  zerolog.Logger
}

// NewClient builds a client from opts.
func NewClient(opts Options) (*Client, error) {
	if opts.Resolve == nil {
		return nil, errors.New("tenant resolver is required")
	}
	if opts.Store == nil {
		return nil, errors.New("token store is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.TransportRetries < 0 {
		opts.TransportRetries = 0
	}

	return &Client{
		resolve: opts.Resolve,
		oauth:   opts.OAuth,
		store:   opts.Store,
		events:  opts.Events,
		http:    newTransport(opts.Timeout, opts.TransportRetries, opts.Logger),
		logger:  opts.Logger,
	}, nil
}

// Do runs req through the state machine. Classified statuses come back as a
// Result; unclassified statuses and transport failures come back as an
// error.
func (c *Client) Do(ctx context.Context, req Request) (*Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	tenant := c.resolve(req.Tenant)

	res, err := c.replay(ctx, req, maxReplays,
		func(r *Result) bool { return r.Kind == kindAuthExpired },
		func(ctx context.Context, r *Result) (*Result, error) {
			return c.refreshFor(ctx, tenant, r)
		},
	)
	if err != nil {
		return nil, err
	}
	if res.Kind == kindAuthExpired {
		res.Kind = KindAuthExhausted
		res.Outcome = OutcomeFatal
		c.logger.Error().
			Str("request_id", req.ID).
			Str("firm", req.Tenant).
			Int("attempts", res.Attempts).
			Msg("request still unauthorized after refreshing tokens")
	}
	return res, nil
}

// replay sends req and re-sends it, at most limit times, while retry holds
// for the latest result. prepare runs before every re-send; a non-nil result
// from prepare ends the request with that result.
func (c *Client) replay(
	ctx context.Context,
	req Request,
	limit int,
	retry func(*Result) bool,
	prepare func(context.Context, *Result) (*Result, error),
) (*Result, error) {
	for attempt := 1; ; attempt++ {
		res, err := c.send(ctx, req)
		if err != nil {
			return nil, err
		}
		res.Attempts = attempt
		if !retry(res) || attempt > limit {
			return res, nil
		}

		stop, err := prepare(ctx, res)
		if err != nil {
			return nil, err
		}
		if stop != nil {
			stop.Attempts = attempt
			return stop, nil
		}
	}
}

// send performs a single attempt with the currently stored access token.
func (c *Client) send(ctx context.Context, req Request) (*Result, error) {
	tenant := c.resolve(req.Tenant)

	pair, ok, err := c.store.Get(ctx, req.Tenant)
	if err != nil {
		return nil, fmt.Errorf("load tokens for firm %s: %w", req.Tenant, err)
	}
	if !ok {
		c.logger.Error().Str("firm", req.Tenant).Msg("no stored tokens; run authorize first")
		return &Result{
			Outcome: OutcomeFatal,
			Kind:    KindMissingCredentials,
			Message: "no stored tokens, authorize the firm first",
			req:     req,
		}, nil
	}

	httpReq, err := c.newRequest(ctx, tenant, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+pair.AccessToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", req.Method, req.Path, err)
	}

	c.logger.Info().
		Str("request_id", req.ID).
		Str("firm", req.Tenant).
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Str("reason", http.StatusText(resp.StatusCode)).
		Msg("response")

	kind, outcome, classified := classify(resp.StatusCode)
	if !classified {
		return nil, &UnexpectedStatusError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Body:       snippet(body),
		}
	}

	res := &Result{
		Outcome:     outcome,
		Kind:        kind,
		StatusCode:  resp.StatusCode,
		Body:        body,
		req:         req,
		accessToken: pair.AccessToken,
	}
	if outcome != OutcomeDone {
		res.Message = errorMessage(body)
		event := c.logger.Warn()
		if outcome == OutcomeFatal && kind != kindAuthExpired {
			event = c.logger.Error()
		}
		event.Str("request_id", req.ID).
			Str("firm", req.Tenant).
			Str("kind", string(kind)).
			Str("error", res.Message).
			Msg("request failed")
	}
	return res, nil
}

func (c *Client) newRequest(ctx context.Context, tenant TenantConfig, req Request) (*retryablehttp.Request, error) {
	target := strings.TrimRight(tenant.BaseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body any
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", req.Method, req.Path, err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if tenant.UserAgent != "" {
		httpReq.Header.Set("User-Agent", tenant.UserAgent)
	}
	httpReq.Header.Set("X-Request-Id", req.ID)
	return httpReq, nil
}

// errorMessage extracts the "error" field of an error body, falling back to
// the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.ErrorDescription != "" {
			return payload.ErrorDescription
		}
		if len(payload.Error) > 0 && string(payload.Error) != "null" {
			var text string
			if err := json.Unmarshal(payload.Error, &text); err == nil {
				return text
			}
			return string(payload.Error)
		}
	}
	return snippet(body)
}

const maxSnippet = 512

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= maxSnippet {
		return text
	}
	cut := maxSnippet
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
