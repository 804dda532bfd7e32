// Package pipeline runs a full harvest: fetch and diff every portal, enrich
// the added rows with spatial coverage, and write the run's reports.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/fetcher"
	"github.com/sells-group/dcat-harvester/internal/ledger"
	"github.com/sells-group/dcat-harvester/internal/linkcheck"
	"github.com/sells-group/dcat-harvester/internal/model"
	"github.com/sells-group/dcat-harvester/internal/places"
	"github.com/sells-group/dcat-harvester/internal/report"
	"github.com/sells-group/dcat-harvester/internal/snapshot"
)

// LinkChecker filters rows whose download links are dead.
type LinkChecker interface {
	Run(ctx context.Context, rows []model.MetadataRow) ([]model.MetadataRow, []linkcheck.Result, linkcheck.Summary, error)
}

// Deps are the collaborators of a Harvester. Places and Links may be nil:
// without Places no coverage is resolved, without Links no row is dropped
// for a dead link. Ledger defaults to ledger.Nop.
type Deps struct {
	Catalogs  fetcher.CatalogSource
	Snapshots snapshot.Store
	Places    places.Source
	Links     LinkChecker
	Sink      report.Sink
	Ledger    ledger.Ledger
}

// Options are the per-run settings.
type Options struct {
	// Date is the action date, YYYYMMDD.
	Date              string
	Portals           []model.Portal
	SkipLinkCheck     bool
	WriteRejected     bool
	IdentifierBaseURL string
	// StateCodes maps a portal code, or its first two characters, to a
	// state name.
	StateCodes map[string]string
}

// Result summarizes a run.
type Result struct {
	RunID    string
	Statuses []model.PortalStatus
	Added    []model.MetadataRow
	Removed  []model.RemovedItem
	Rejected []model.RejectedBox
	// SkippedPortals are portals whose catalog could not be used.
	SkippedPortals []string
	// SkippedStates had no reference boundaries.
	SkippedStates []string
	// Unassigned lists portal codes with no state mapping.
	Unassigned []string
	// DeadLinks counts rows dropped by the link check.
	DeadLinks   int
	LinkSummary *linkcheck.Summary
	// Reports maps report base names to written paths.
	Reports map[string]string
}

// Harvester orchestrates a run.
type Harvester struct {
	deps Deps
}

// New creates a Harvester.
func New(deps Deps) *Harvester {
	if deps.Ledger == nil {
		deps.Ledger = ledger.Nop{}
	}
	return &Harvester{deps: deps}
}

// Run harvests every portal in opts, enriches the added rows and writes the
// added, removed, status and (optionally) rejected reports. A portal that
// cannot be fetched is skipped; any other failure aborts the run.
func (h *Harvester) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Date == "" {
		return nil, eris.New("pipeline: action date is required")
	}
	if h.deps.Catalogs == nil || h.deps.Snapshots == nil || h.deps.Sink == nil {
		return nil, eris.New("pipeline: catalogs, snapshots and sink are required")
	}

	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("date", opts.Date),
	)
	log.Info("pipeline: starting harvest", zap.Int("portals", len(opts.Portals)))

	runID, err := h.deps.Ledger.Start(ctx, opts.Date)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: start run")
	}

	res, err := h.run(ctx, runID, opts)
	if err != nil {
		if ferr := h.deps.Ledger.Fail(context.WithoutCancel(ctx), runID, err); ferr != nil {
			log.Warn("pipeline: failed to record run failure", zap.Error(ferr))
		}
		return nil, err
	}
	if err := h.deps.Ledger.Complete(ctx, runID); err != nil {
		log.Warn("pipeline: failed to record run completion", zap.Error(err))
	}

	log.Info("pipeline: harvest complete",
		zap.Int("added", len(res.Added)),
		zap.Int("removed", len(res.Removed)),
		zap.Int("rejected", len(res.Rejected)),
		zap.Int("skipped_portals", len(res.SkippedPortals)),
	)
	return res, nil
}

func (h *Harvester) run(ctx context.Context, runID string, opts Options) (*Result, error) {
	res := &Result{RunID: runID, Reports: make(map[string]string)}

	var added []model.MetadataRow
	err := phase(ctx, "collect", func() error {
		var err error
		added, err = h.collect(ctx, runID, opts, res)
		return err
	})
	if err != nil {
		return nil, err
	}

	if h.deps.Links != nil && !opts.SkipLinkCheck && len(added) > 0 {
		err := phase(ctx, "linkcheck", func() error {
			kept, _, sum, err := h.deps.Links.Run(ctx, added)
			if err != nil {
				return eris.Wrap(err, "pipeline: link check")
			}
			res.DeadLinks = len(added) - len(kept)
			res.LinkSummary = &sum
			added = kept
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	err = phase(ctx, "spatial", func() error {
		var err error
		res.Added, res.Rejected, err = h.enrich(ctx, added, opts, res)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = phase(ctx, "reports", func() error {
		return h.writeReports(opts, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type reportWrite struct {
	name string
	fn   func() (string, error)
}

func (h *Harvester) writeReports(opts Options, res *Result) error {
	w := report.NewWriter(h.deps.Sink, opts.Date)
	writes := []reportWrite{
		{report.NameAdded, func() (string, error) { return w.Added(res.Added) }},
		{report.NameRemoved, func() (string, error) { return w.Removed(res.Removed) }},
		{report.NameStatus, func() (string, error) { return w.Status(res.Statuses) }},
	}
	if opts.WriteRejected {
		writes = append(writes, reportWrite{report.NameRejected, func() (string, error) { return w.Rejected(res.Rejected) }})
	}
	for _, wr := range writes {
		path, err := wr.fn()
		if err != nil {
			return eris.Wrapf(err, "pipeline: write %s report", wr.name)
		}
		res.Reports[wr.name] = path
	}
	return nil
}

// phase runs fn and logs its duration.
func phase(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(err, "pipeline: %s", name)
	}
	start := time.Now()
	err := fn()
	duration := time.Since(start).Milliseconds()
	if err != nil {
		zap.L().Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return err
	}
	zap.L().Info("pipeline: phase complete",
		zap.String("phase", name),
		zap.Int64("duration_ms", duration),
	)
	return nil
}
