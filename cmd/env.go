package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/db"
	"github.com/sells-group/dcat-harvester/internal/fetcher"
	"github.com/sells-group/dcat-harvester/internal/ledger"
	"github.com/sells-group/dcat-harvester/internal/linkcheck"
	"github.com/sells-group/dcat-harvester/internal/places"
)

func newFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		RatePerSec: cfg.Fetch.RatePerSec,
	})
}

func newChecker() *linkcheck.Checker {
	return linkcheck.NewChecker(linkcheck.Options{
		Timeout:     time.Duration(cfg.LinkCheck.TimeoutSecs) * time.Second,
		Attempts:    cfg.LinkCheck.Attempts,
		Concurrency: cfg.LinkCheck.Concurrency,
		RatePerSec:  cfg.LinkCheck.RatePerSec,
		UserAgent:   cfg.Fetch.UserAgent,
	})
}

// openPlaces returns the configured boundary source. The returned func
// releases the database pool, if any.
func openPlaces(ctx context.Context) (places.Source, func(), error) {
	if cfg.Boundaries.Driver != "postgis" {
		return places.NewFileSource(cfg.Harvest.Path(cfg.Boundaries.Dir)), func() {}, nil
	}
	pool, err := db.Open(ctx, cfg.Boundaries.DatabaseURL)
	if err != nil {
		return nil, nil, eris.Wrap(err, "open boundary database")
	}
	return places.NewPostGISSource(pool), pool.Close, nil
}

// openLedger returns the run ledger, or ledger.Nop when it is disabled.
func openLedger(ctx context.Context) (ledger.Ledger, error) {
	if !cfg.Ledger.Enabled {
		return ledger.Nop{}, nil
	}
	l, err := ledger.Open(ctx, cfg.Harvest.Path(cfg.Ledger.Path))
	if err != nil {
		return nil, eris.Wrap(err, "open ledger")
	}
	return l, nil
}

func closeQuietly(name string, fn func() error) {
	if err := fn(); err != nil {
		zap.L().Warn("close failed", zap.String("resource", name), zap.Error(err))
	}
}

// splitAndTrim splits a comma-separated list, dropping empty entries.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func today() string {
	return time.Now().Format("20060102")
}
