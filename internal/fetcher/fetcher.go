// Package fetcher downloads remote pages and API responses with per-host
// rate limiting and retry on transient failures.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadString fetches the URL and returns the body as a string.
	DownloadString(ctx context.Context, url string) (string, error)
}
