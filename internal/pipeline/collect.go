package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/diff"
	"github.com/sells-group/dcat-harvester/internal/fetcher"
	"github.com/sells-group/dcat-harvester/internal/ledger"
	"github.com/sells-group/dcat-harvester/internal/model"
	"github.com/sells-group/dcat-harvester/internal/normalize"
	"github.com/sells-group/dcat-harvester/internal/report"
	"github.com/sells-group/dcat-harvester/internal/snapshot"
)

// portalOutcome is what one portal contributes to the run.
type portalOutcome struct {
	status  model.PortalStatus
	added   []model.MetadataRow
	removed []model.RemovedItem
}

// collect harvests each portal in turn and returns the normalized added
// rows of all of them. Rows are unique by slug; the first portal to report
// a slug keeps it.
func (h *Harvester) collect(ctx context.Context, runID string, opts Options, res *Result) ([]model.MetadataRow, error) {
	var added []model.MetadataRow
	seen := make(map[string]bool)

	for _, p := range opts.Portals {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: collect")
		}
		log := zap.L().With(
			zap.String("component", "pipeline.collect"),
			zap.String("portal", p.Name),
		)

		out, err := h.harvestPortal(ctx, p, opts)
		if err != nil {
			var fe *fetcher.FetchError
			if !errors.As(err, &fe) {
				return nil, err
			}
			log.Warn("portal skipped", zap.Error(err))
			res.SkippedPortals = append(res.SkippedPortals, p.Name)
			h.recordPortal(ctx, runID, ledger.PortalRecord{Portal: p.Name, Error: err.Error()})
			continue
		}

		res.Statuses = append(res.Statuses, out.status)
		res.Removed = append(res.Removed, out.removed...)
		dups := 0
		for _, row := range out.added {
			if seen[row.Slug] {
				dups++
				continue
			}
			seen[row.Slug] = true
			added = append(added, row)
		}

		log.Info("portal harvested",
			zap.Int("total", out.status.Total),
			zap.Int("added", out.status.Added),
			zap.Int("removed", out.status.Removed),
			zap.Int("rows", len(out.added)-dups),
			zap.Int("duplicate_slugs", dups),
		)
		h.recordPortal(ctx, runID, ledger.PortalRecord{
			Portal:  p.Name,
			Total:   out.status.Total,
			Added:   out.status.Added,
			Removed: out.status.Removed,
		})
	}
	return added, nil
}

func (h *Harvester) recordPortal(ctx context.Context, runID string, rec ledger.PortalRecord) {
	if err := h.deps.Ledger.RecordPortal(ctx, runID, rec); err != nil {
		zap.L().Warn("pipeline: failed to record portal", zap.String("portal", rec.Portal), zap.Error(err))
	}
}

// harvestPortal loads today's catalog (reusing a snapshot taken earlier the
// same day), diffs it against the latest earlier snapshot, and builds the
// added rows and removed items. Catalog problems come back as
// *fetcher.FetchError.
func (h *Harvester) harvestPortal(ctx context.Context, p model.Portal, opts Options) (portalOutcome, error) {
	cur, err := h.currentCatalog(ctx, p, opts.Date)
	if err != nil {
		return portalOutcome{}, err
	}
	prev, err := h.previousCatalog(p, opts.Date)
	if err != nil {
		return portalOutcome{}, err
	}

	d := diff.Compute(prev, cur)
	if d.Duplicates > 0 || d.Missing > 0 || cur.Skipped > 0 {
		zap.L().Warn("catalog has unusable records",
			zap.String("portal", p.Name),
			zap.Int("duplicate_ids", d.Duplicates),
			zap.Int("missing_ids", d.Missing),
			zap.Int("malformed", cur.Skipped),
		)
	}

	out := portalOutcome{status: report.Tally(p.Name, d.Total, d, d.FirstRun)}

	curByID := cur.Lookup()
	nopts := normalize.Options{IdentifierBaseURL: opts.IdentifierBaseURL}
	for _, id := range d.Added {
		row, ok := normalize.Record(curByID[id], p, nopts)
		if !ok {
			continue
		}
		out.added = append(out.added, row)
	}

	prevByID := prev.Lookup()
	for _, id := range d.Removed {
		rec := prevByID[id]
		out.removed = append(out.removed, model.RemovedItem{
			Identifier:  id,
			LandingPage: rec.LandingPage.Or(""),
			PortalName:  p.Name,
		})
	}
	return out, nil
}

func (h *Harvester) currentCatalog(ctx context.Context, p model.Portal, date string) (*model.Catalog, error) {
	key := snapshot.Key{Portal: p.Name, Date: date}
	exists, err := h.deps.Snapshots.Exists(key)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: check snapshot for %s", p.Name)
	}

	if exists {
		zap.L().Debug("reusing snapshot", zap.String("portal", p.Name), zap.String("date", date))
		data, err := h.deps.Snapshots.Read(key)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: read snapshot for %s", p.Name)
		}
		cat, err := model.DecodeCatalog(p.Name, date, data)
		if err != nil {
			return nil, &fetcher.FetchError{URL: p.URL, Reason: "unusable snapshot " + date, Err: err}
		}
		return cat, nil
	}

	data, err := h.deps.Catalogs.FetchCatalog(ctx, p.URL)
	if err != nil {
		return nil, err
	}
	// Only catalogs that decode become snapshots.
	cat, err := model.DecodeCatalog(p.Name, date, data)
	if err != nil {
		return nil, &fetcher.FetchError{URL: p.URL, Reason: "unusable catalog", Err: err}
	}
	if err := h.deps.Snapshots.Write(key, data); err != nil {
		return nil, eris.Wrapf(err, "pipeline: write snapshot for %s", p.Name)
	}
	return cat, nil
}

// previousCatalog returns nil when the portal has no earlier snapshot.
func (h *Harvester) previousCatalog(p model.Portal, date string) (*model.Catalog, error) {
	prevDate, ok, err := h.deps.Snapshots.Previous(p.Name, date)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: find previous snapshot for %s", p.Name)
	}
	if !ok {
		return nil, nil
	}
	data, err := h.deps.Snapshots.Read(snapshot.Key{Portal: p.Name, Date: prevDate})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read previous snapshot for %s", p.Name)
	}
	cat, err := model.DecodeCatalog(p.Name, prevDate, data)
	if err != nil {
		return nil, &fetcher.FetchError{URL: p.URL, Reason: "unusable previous snapshot " + prevDate, Err: err}
	}
	return cat, nil
}
