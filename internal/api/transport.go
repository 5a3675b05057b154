package api

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// newTransport builds the HTTP client. Statuses are never retried here; the
// request state machine owns them. Connection errors are retried up to
// retries times.
func newTransport(timeout time.Duration, retries int, logger zerolog.Logger) *retryablehttp.Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = timeout

	client := retryablehttp.NewClient()
	client.HTTPClient = httpClient
	client.Logger = nil
	client.RetryMax = retries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.CheckRetry = transportOnlyRetry
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Debug().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("attempt", attempt).
				Msg("retrying after connection error")
		}
	}
	return client
}

func transportOnlyRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	return err != nil, nil
}
