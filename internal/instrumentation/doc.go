// Package instrumentation provides OpenTelemetry metrics for the
// inboxdraft server, exported in Prometheus format on a dedicated port.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - active_sessions: Gauge of active user sessions
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Gmail API operations by operation and status
//   - google_api_operation_duration_seconds: Histogram of Gmail API operation durations
//
// OAuth Authentication Metrics:
//   - oauth_auth_total: Counter of OAuth authentication events by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// Mailbox Cache Metrics:
//   - mailbox_cache_events_total: Counter of cache lookups by cache and result
//
// Reply Generation Metrics:
//   - reply_generations_total: Counter of reply generation attempts by status
//   - reply_generation_duration_seconds: Histogram of reply generation durations
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "inboxdraft",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordHTTPRequest(ctx, "GET", "/api/emails/unread", 200, time.Since(start))
//	recorder.RecordGmailOperation(ctx, "list", instrumentation.StatusSuccess, time.Since(start))
package instrumentation
