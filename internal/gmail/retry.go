package gmail

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/api/googleapi"
)

const (
	retryInitialInterval = 500 * time.Millisecond
	retryMaxAttempts     = 3
)

// withRetry runs a provider call under the shared backoff policy. Only
// rate-limit and quota failures are retried; everything else fails on
// the first attempt.
func withRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !isRateLimited(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(retryMaxAttempts))
}

// retryableReasons are the googleapi error reasons that signal throttling
// on a 403 response.
var retryableReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
}

// isRateLimited reports whether err is a Gmail rate-limit or quota
// rejection, identified by the structured error code and reason.
func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	if apiErr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range apiErr.Errors {
		if retryableReasons[item.Reason] {
			return true
		}
	}
	return false
}

// isNotFound reports whether err is a structured HTTP 404 from the
// provider.
func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
