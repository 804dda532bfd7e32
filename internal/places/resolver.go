package places

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/bbox"
)

// Resolution is the outcome of resolving one state's rows.
type Resolution struct {
	// Matches is parallel to the input rows.
	Matches []Match
	// Groups is the number of distinct rounded boxes queried.
	Groups int
	// NoData is set when the state has no reference boundaries; every
	// match is then empty.
	NoData bool
}

// Resolver computes place matches per state.
type Resolver struct {
	source Source
}

// NewResolver creates a resolver over source.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve opens the state's index once, queries each distinct Box.Key once
// for every relation, and hands the same Match to every row in that group.
func (r *Resolver) Resolve(ctx context.Context, state string, rows []bbox.Bounded) (Resolution, error) {
	log := zap.L().With(
		zap.String("component", "places.resolver"),
		zap.String("state", state),
	)
	res := Resolution{Matches: make([]Match, len(rows))}
	if len(rows) == 0 {
		return res, nil
	}

	ix, err := r.source.Open(ctx, state)
	if eris.Is(err, ErrNoData) {
		log.Info("no reference data for state, skipping", zap.Int("rows", len(rows)))
		res.NoData = true
		return res, nil
	}
	if err != nil {
		return res, eris.Wrapf(err, "places: open index for %s", state)
	}
	defer func() {
		if cerr := ix.Close(); cerr != nil {
			log.Warn("close index", zap.Error(cerr))
		}
	}()

	memo := make(map[string]Match)
	for i, row := range rows {
		key := row.Box.Key()
		m, ok := memo[key]
		if !ok {
			m, err = resolveBox(ctx, ix, row.Box)
			if err != nil {
				return res, eris.Wrapf(err, "places: resolve %s in %s", key, state)
			}
			memo[key] = m
		}
		res.Matches[i] = m
	}
	res.Groups = len(memo)

	log.Debug("state resolved",
		zap.Int("rows", len(rows)),
		zap.Int("groups", res.Groups),
	)
	return res, nil
}

// ResolveBox computes a single box's match against state's reference data.
func (r *Resolver) ResolveBox(ctx context.Context, state string, box bbox.Box) (Match, error) {
	res, err := r.Resolve(ctx, state, []bbox.Bounded{{Box: box}})
	if err != nil {
		return Match{}, err
	}
	if res.NoData {
		return Match{}, eris.Wrapf(ErrNoData, "places: %s", state)
	}
	return res.Matches[0], nil
}

func resolveBox(ctx context.Context, ix Index, box bbox.Box) (Match, error) {
	var m Match
	for _, rel := range Relations {
		ps, err := ix.Query(ctx, box, rel)
		if err != nil {
			return Match{}, err
		}
		m.set(rel, ps)
	}
	return m, nil
}
