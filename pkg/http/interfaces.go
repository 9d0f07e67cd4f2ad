//go:generate mockgen -destination=mocks/http.go . Fetcher
package http

import "context"

// Fetcher retrieves archive resources with retries, backoff and session rotation.
type Fetcher interface {
	// Fetch returns the body of a 200 response for rawURL.
	Fetch(ctx context.Context, rawURL string) ([]byte, error)

	// FetchJSON decodes the body of rawURL into v. Undecodable payloads are retried.
	FetchJSON(ctx context.Context, rawURL string, v any) error

	// FetchToFile streams rawURL into path, truncating it on every attempt,
	// and returns the number of bytes written.
	FetchToFile(ctx context.Context, rawURL, path string) (int64, error)
}
