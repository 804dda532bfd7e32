// Package fetcher downloads portal catalogs and reference data over HTTP.
package fetcher

import (
	"context"
	"fmt"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// CatalogSource returns the raw data.json document published at a URL.
type CatalogSource interface {
	FetchCatalog(ctx context.Context, url string) ([]byte, error)
}

// FetchError reports why a portal catalog could not be used. Callers skip
// the portal and carry on.
type FetchError struct {
	URL         string
	StatusCode  int
	ContentType string
	Reason      string
	Err         error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
