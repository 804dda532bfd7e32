package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/bbox"
	"github.com/sells-group/dcat-harvester/internal/coverage"
	"github.com/sells-group/dcat-harvester/internal/model"
	"github.com/sells-group/dcat-harvester/internal/places"
)

// StateFor maps a portal code to a state: an exact code entry wins over the
// entry for the code's first two characters.
func StateFor(code string, codes map[string]string) (string, bool) {
	if s, ok := codes[code]; ok {
		return s, true
	}
	if len(code) >= 2 {
		if s, ok := codes[code[:2]]; ok {
			return s, true
		}
	}
	return "", false
}

// enrich sets the Spatial Coverage of every row and withholds rows whose
// bounding box fails validation. The returned rows keep their input order.
func (h *Harvester) enrich(ctx context.Context, rows []model.MetadataRow, opts Options, res *Result) ([]model.MetadataRow, []model.RejectedBox, error) {
	log := zap.L().With(zap.String("component", "pipeline.spatial"))

	// Esri rows take the fixed coverage and skip validation.
	var spatial []model.MetadataRow
	var spatialIdx []int
	matches := make([]*places.Match, len(rows))
	for i, row := range rows {
		if row.IsEsri() {
			continue
		}
		spatial = append(spatial, row)
		spatialIdx = append(spatialIdx, i)
	}

	v := bbox.Validate(spatial)
	rejected := make(map[int]bool, len(v.Rejected))
	boxes := make([]model.RejectedBox, 0, len(v.Rejected))
	for _, r := range v.Rejected {
		rejected[spatialIdx[r.Index]] = true
		boxes = append(boxes, model.RejectedBox{
			Slug:        r.Row.Slug,
			Identifier:  r.Row.Identifier,
			Code:        r.Row.Code,
			BoundingBox: r.Row.BoundingBox,
			Reason:      r.Reason,
		})
	}
	if len(boxes) > 0 {
		log.Warn("bounding boxes rejected", zap.Int("rows", len(boxes)))
	}

	// Group by state in first-appearance order.
	var states []string
	byState := make(map[string][]bbox.Bounded)
	unassigned := make(map[string]bool)
	for _, b := range v.Clean {
		state, ok := StateFor(b.Row.Code, opts.StateCodes)
		if !ok || state == "" {
			if !unassigned[b.Row.Code] {
				unassigned[b.Row.Code] = true
				res.Unassigned = append(res.Unassigned, b.Row.Code)
			}
			continue
		}
		if _, ok := byState[state]; !ok {
			states = append(states, state)
		}
		byState[state] = append(byState[state], b)
	}
	if len(res.Unassigned) > 0 {
		log.Warn("no state for portal codes", zap.Strings("codes", res.Unassigned))
	}

	if h.deps.Places != nil {
		resolver := places.NewResolver(h.deps.Places)
		for _, state := range states {
			group := byState[state]
			r, err := resolver.Resolve(ctx, state, group)
			if err != nil {
				return nil, nil, eris.Wrapf(err, "pipeline: resolve %s", state)
			}
			if r.NoData {
				res.SkippedStates = append(res.SkippedStates, state)
				continue
			}
			for k, b := range group {
				m := r.Matches[k]
				matches[spatialIdx[b.Index]] = &m
			}
			log.Info("state resolved",
				zap.String("state", state),
				zap.Int("rows", len(group)),
				zap.Int("groups", r.Groups),
			)
		}
	}

	out := make([]model.MetadataRow, 0, len(rows)-len(rejected))
	for i, row := range rows {
		if rejected[i] {
			continue
		}
		out = append(out, row.WithCoverage(coverage.ForRow(row, matches[i])))
	}
	return out, boxes, nil
}
