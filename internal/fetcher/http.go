package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/dcat-harvester/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RatePerSec limits requests per host. Zero means 5.
	RatePerSec float64
	// Backoff overrides the first retry delay (tests use a few ms).
	Backoff time.Duration
}

// HTTPFetcher implements Fetcher and CatalogSource using net/http with
// per-host rate limiting and retries on transient failures.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "dcat-harvester/1.0"
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		burst := int(f.opts.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(f.opts.RatePerSec), burst)
		f.limiters[host] = lim
	}
	return lim
}

func (f *HTTPFetcher) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	target := req.URL.String()
	policy := resilience.DefaultPolicy()
	if f.opts.MaxRetries > 0 {
		policy.Attempts = f.opts.MaxRetries
	}
	if f.opts.Backoff > 0 {
		policy.Backoff = f.opts.Backoff
	}
	policy.OnRetry = resilience.LogRetry("fetcher.http", target)
	return resilience.DoVal(ctx, policy, func(ctx context.Context) (*http.Response, error) {
		if err := f.limiterFor(target).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}
		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusInternalServerError || resilience.IsTransientHTTPStatus(resp.StatusCode) {
			_ = resp.Body.Close()
			return nil, resilience.NewTransientError(
				eris.Errorf("http %d from %s", resp.StatusCode, target), resp.StatusCode)
		}
		return resp, nil
	})
}

func (f *HTTPFetcher) newRequest(ctx context.Context, rawURL, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return req, nil
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := f.newRequest(ctx, rawURL, "")
	if err != nil {
		return nil, err
	}
	resp, err := f.do(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL and writes it to the given path.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, body)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}
	return n, nil
}

// FetchCatalog downloads a data.json document. Anything that is not an
// application/json response carrying valid JSON is a *FetchError. Bodies in
// a declared non-UTF-8 charset are transcoded to UTF-8.
func (f *HTTPFetcher) FetchCatalog(ctx context.Context, rawURL string) ([]byte, error) {
	log := zap.L().With(zap.String("component", "fetcher.catalog"), zap.String("url", rawURL))

	req, err := f.newRequest(ctx, rawURL, "application/json")
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: "bad url", Err: err}
	}
	resp, err := f.do(ctx, req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, ContentType: ct,
			Reason: "unexpected status " + resp.Status}
	}

	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil || mediaType != "application/json" {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, ContentType: ct,
			Reason: "not a JSON document (content-type " + ct + ")"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, ContentType: ct,
			Reason: "read body", Err: err}
	}

	if cs := strings.ToLower(params["charset"]); cs != "" && cs != "utf-8" && cs != "utf8" {
		enc, encErr := htmlindex.Get(cs)
		if encErr != nil {
			return nil, &FetchError{URL: rawURL, ContentType: ct, Reason: "unknown charset " + cs, Err: encErr}
		}
		decoded, decErr := enc.NewDecoder().Bytes(body)
		if decErr != nil {
			return nil, &FetchError{URL: rawURL, ContentType: ct, Reason: "transcode " + cs, Err: decErr}
		}
		log.Debug("transcoded catalog", zap.String("charset", cs))
		body = decoded
	}

	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if !json.Valid(body) {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, ContentType: ct, Reason: "invalid JSON"}
	}

	log.Debug("catalog fetched", zap.Int("bytes", len(body)))
	return body, nil
}
