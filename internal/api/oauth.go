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

	"github.com/hashicorp/go-retryablehttp"

	"github.com/firmkit/tplsync/internal/events"
	"github.com/firmkit/tplsync/internal/models"
)

var errNoStoredTokens = errors.New("no stored tokens")

// tokenError is a non-2xx answer of the token endpoint.
type tokenError struct {
	StatusCode int
	Message    string
}

func (e *tokenError) Error() string {
	return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, e.Message)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type refreshGrant struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
}

// refreshFor refreshes the tokens after failed came back unauthorized. A nil
// result means the request can be replayed.
func (c *Client) refreshFor(ctx context.Context, tenant TenantConfig, failed *Result) (*Result, error) {
	err := c.refresh(ctx, tenant, failed.accessToken)
	if err == nil {
		return nil, nil
	}

	var tokErr *tokenError
	switch {
	case errors.As(err, &tokErr):
		c.logger.Error().
			Str("firm", tenant.Tenant).
			Int("status", tokErr.StatusCode).
			Str("error", tokErr.Message).
			Msg("token refresh failed")
		return &Result{
			Outcome:    OutcomeFatal,
			Kind:       KindRefreshFailed,
			StatusCode: tokErr.StatusCode,
			Message:    tokErr.Message,
			req:        failed.req,
		}, nil
	case errors.Is(err, errNoStoredTokens):
		return &Result{
			Outcome: OutcomeFatal,
			Kind:    KindMissingCredentials,
			Message: "no stored tokens, authorize the firm first",
			req:     failed.req,
		}, nil
	default:
		return nil, err
	}
}

// refresh runs the refresh grant for the tenant unless the stored access
// token already differs from stale. Concurrent callers of one tenant share a
// single flight.
func (c *Client) refresh(ctx context.Context, tenant TenantConfig, stale string) error {
	_, err, shared := c.flights.Do(tenant.Tenant, func() (any, error) {
		pair, ok, err := c.store.Get(ctx, tenant.Tenant)
		if err != nil {
			return nil, fmt.Errorf("load tokens for firm %s: %w", tenant.Tenant, err)
		}
		if !ok {
			return nil, errNoStoredTokens
		}
		if pair.AccessToken != stale {
			c.logger.Debug().Str("firm", tenant.Tenant).Msg("tokens already refreshed")
			return pair, nil
		}

		fresh, err := c.requestToken(ctx, tenant, nil, refreshGrant{
			ClientID:     c.oauth.ClientID,
			ClientSecret: c.oauth.ClientSecret,
			RedirectURI:  c.oauth.RedirectURI,
			GrantType:    "refresh_token",
			RefreshToken: pair.RefreshToken,
			AccessToken:  pair.AccessToken,
		})
		if err != nil {
			return nil, err
		}
		if err := c.store.Put(ctx, tenant.Tenant, fresh); err != nil {
			return nil, fmt.Errorf("store refreshed tokens for firm %s: %w", tenant.Tenant, err)
		}

		c.logger.Info().Str("firm", tenant.Tenant).Msg("tokens refreshed")
		if c.events != nil {
			if err := events.LogTokensRefreshed(ctx, c.events, tenant.Tenant); err != nil {
				c.logger.Warn().Err(err).Msg("failed to record refresh event")
			}
		}
		return fresh, nil
	})
	if shared {
		c.logger.Debug().Str("firm", tenant.Tenant).Msg("joined in-flight token refresh")
	}
	return err
}

// Authorize exchanges an authorization code for a token pair and stores it.
func (c *Client) Authorize(ctx context.Context, tenant, code string) error {
	if strings.TrimSpace(code) == "" {
		return errors.New("authorization code is required")
	}
	tc := c.resolve(tenant)

	query := url.Values{}
	query.Set("client_id", c.oauth.ClientID)
	query.Set("client_secret", c.oauth.ClientSecret)
	query.Set("redirect_uri", c.oauth.RedirectURI)
	query.Set("grant_type", "authorization_code")
	query.Set("code", strings.TrimSpace(code))

	pair, err := c.requestToken(ctx, tc, query, nil)
	if err != nil {
		var tokErr *tokenError
		if errors.As(err, &tokErr) {
			return &Error{
				Kind:       KindAuthorizationFailed,
				Outcome:    OutcomeFatal,
				Tenant:     tenant,
				Method:     http.MethodPost,
				Path:       "oauth/token",
				StatusCode: tokErr.StatusCode,
				Message:    tokErr.Message,
			}
		}
		return err
	}
	if err := c.store.Put(ctx, tenant, pair); err != nil {
		return fmt.Errorf("store tokens for firm %s: %w", tenant, err)
	}

	c.logger.Info().Str("firm", tenant).Msg("firm authorized")
	if c.events != nil {
		if err := events.LogTokensAuthorized(ctx, c.events, tenant); err != nil {
			c.logger.Warn().Err(err).Msg("failed to record authorization event")
		}
	}
	return nil
}

// requestToken posts to the token endpoint, with query parameters, a JSON
// body or both.
func (c *Client) requestToken(ctx context.Context, tenant TenantConfig, query url.Values, body any) (models.TokenPair, error) {
	target := tenant.TokenURL
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader any
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return models.TokenPair{}, fmt.Errorf("encode token request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, target, reader)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("build token request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tenant.UserAgent != "" {
		req.Header.Set("User-Agent", tenant.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("call token endpoint: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("read token response: %w", err)
	}

	c.logger.Info().
		Str("firm", tenant.Tenant).
		Str("method", http.MethodPost).
		Str("path", "oauth/token").
		Int("status", resp.StatusCode).
		Str("reason", http.StatusText(resp.StatusCode)).
		Msg("response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.TokenPair{}, &tokenError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		return models.TokenPair{}, &tokenError{StatusCode: resp.StatusCode, Message: "malformed token response"}
	}
	pair := models.TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		UpdatedAt:    time.Now().UTC(),
	}
	if !pair.Valid() {
		return models.TokenPair{}, &tokenError{StatusCode: resp.StatusCode, Message: "token response is missing tokens"}
	}
	return pair, nil
}
