// Package linkcheck verifies that the download links of newly added rows
// resolve to something a user can actually fetch.
package linkcheck

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/dcat-harvester/internal/model"
	"github.com/sells-group/dcat-harvester/internal/resilience"
)

// Category is the outcome of checking one link.
type Category string

// Categories.
const (
	OK          Category = "OK"
	NotZip      Category = "Not a zipfile"
	Timeout     Category = "Timeout Error"
	Private     Category = "Could not access ImageServer"
	NotFound    Category = "404 Not Found"
	ServerError Category = "500 Server Error"
	OtherHTTP   Category = "Other HTTP Errors"
	Connection  Category = "Connection Errors"
)

// Categories in summary order.
var Categories = []Category{OK, NotZip, Timeout, Private, NotFound, ServerError, OtherHTTP, Connection}

// Kept reports whether a row in this category stays in the added report.
func (c Category) Kept() bool {
	return c == OK || c == Timeout
}

// Options configures a Checker.
type Options struct {
	Timeout     time.Duration
	Attempts    int
	Concurrency int
	RatePerSec  float64
	UserAgent   string
	// Backoff is the delay before a timeout retry. Zero means 500ms.
	Backoff time.Duration
}

// Result is the outcome for one row.
type Result struct {
	Slug     string
	URL      string
	Category Category
	Status   int
	Err      string
}

// Summary counts results by category.
type Summary struct {
	Total   int
	Counts  map[Category]int
	Elapsed time.Duration
}

// Percent returns the share of c in the total, 0 to 100.
func (s Summary) Percent(c Category) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Counts[c]) * 100 / float64(s.Total)
}

// Lines renders the summary one category per line, e.g. "OK: 3 (75.0%)".
func (s Summary) Lines() []string {
	out := make([]string, 0, len(Categories))
	for _, c := range Categories {
		out = append(out, fmt.Sprintf("%s: %d (%.1f%%)", c, s.Counts[c], s.Percent(c)))
	}
	return out
}

// Checker issues GET requests against row download links.
type Checker struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
}

// NewChecker creates a Checker, filling zero options with defaults.
func NewChecker(opts Options) *Checker {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 10
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "dcat-harvester/1.0"
	}
	return &Checker{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
	}
}

// Check classifies a single URL. Timeouts are retried up to Attempts times;
// if a retry gets a response, that response decides the category.
func (c *Checker) Check(ctx context.Context, url string) Result {
	res := Result{URL: url}
	if strings.TrimSpace(url) == "" {
		res.Category = Connection
		res.Err = "no download link"
		return res
	}

	policy := resilience.Policy{
		Attempts:  c.opts.Attempts,
		Backoff:   c.opts.Backoff,
		Retryable: resilience.IsTimeout,
		OnRetry:   resilience.LogRetry("linkcheck", url),
	}
	resp, err := resilience.DoVal(ctx, policy, func(ctx context.Context) (*http.Response, error) {
		return c.get(ctx, url)
	})
	if err != nil {
		res.Err = err.Error()
		if resilience.IsTimeout(err) {
			res.Category = Timeout
		} else {
			res.Category = Connection
		}
		return res
	}
	defer resp.Body.Close() //nolint:errcheck

	res.Status = resp.StatusCode
	res.Category = classify(resp)
	return res
}

func (c *Checker) get(ctx context.Context, url string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "linkcheck: rate limit")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "linkcheck: build request for %s", url)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "linkcheck: get %s", url)
	}
	return resp, nil
}

// classify maps a response to a category without reading the body.
func classify(resp *http.Response) Category {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return NotFound
	case resp.StatusCode == http.StatusInternalServerError:
		return ServerError
	case resp.StatusCode >= 400:
		return OtherHTTP
	}
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mt == "application/json" {
		return NotZip
	}
	if strings.EqualFold(strings.TrimSpace(resp.Header.Get("Cache-Control")), "private") {
		return Private
	}
	return OK
}

// Run checks every row with a bounded worker pool and returns the rows that
// should stay, in input order, with per-row results and a summary.
func (c *Checker) Run(ctx context.Context, rows []model.MetadataRow) ([]model.MetadataRow, []Result, Summary, error) {
	log := zap.L().With(zap.String("component", "linkcheck"))
	start := time.Now()

	results := make([]Result, len(rows))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	var mu sync.Mutex
	done := 0
	for i := range rows {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			r := c.Check(gCtx, rows[i].LinkURL())
			r.Slug = rows[i].Slug
			results[i] = r

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			if n%100 == 0 {
				log.Info("link check progress", zap.Int("done", n), zap.Int("total", len(rows)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, Summary{}, eris.Wrap(err, "linkcheck: run")
	}

	sum := Summary{Total: len(rows), Counts: make(map[Category]int, len(Categories))}
	kept := make([]model.MetadataRow, 0, len(rows))
	for i, r := range results {
		sum.Counts[r.Category]++
		if r.Category.Kept() {
			kept = append(kept, rows[i])
		} else {
			log.Debug("link dropped",
				zap.String("slug", r.Slug),
				zap.String("url", r.URL),
				zap.String("category", string(r.Category)),
			)
		}
	}
	sum.Elapsed = time.Since(start)

	fields := []zap.Field{
		zap.Int("total", sum.Total),
		zap.Int("kept", len(kept)),
		zap.Duration("elapsed", sum.Elapsed),
	}
	for _, cat := range Categories {
		fields = append(fields, zap.String(string(cat), fmt.Sprintf("%d (%.1f%%)", sum.Counts[cat], sum.Percent(cat))))
	}
	log.Info("link check complete", fields...)

	return kept, results, sum, nil
}
