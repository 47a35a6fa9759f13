// Package httpclient provides the REST client probe jobs use to call the
// target API.
//
// The client layers three behaviours over net/http:
//
//   - client-side throttling through a token bucket, so a batch of
//     concurrent probes cannot exceed the configured request rate
//   - adaptive handling of HTTP 429 responses, waiting until the
//     server-announced Retry-After instant before re-sending
//   - bearer-token authentication and a stable User-Agent on every request
//
// A single Client is safe for concurrent use and is normally shared by all
// workers of a run:
//
//	policy := backoff.NewPolicy(backoff.DefaultConfig(), nil)
//	client := httpclient.New(
//		httpclient.WithBaseURL("https://api.example.com"),
//		httpclient.WithAuthToken(token),
//		httpclient.WithRateLimit(10, 2),
//		httpclient.WithRetryPolicy(policy),
//	)
//
//	body, status, err := client.Get(ctx, "/v1/status")
package httpclient
