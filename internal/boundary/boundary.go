// Package boundary imports Census TIGER/Line places and counties into the
// per-state reference boundaries used to resolve spatial coverage.
package boundary

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/db"
	"github.com/sells-group/dcat-harvester/internal/fetcher"
	"github.com/sells-group/dcat-harvester/internal/places"
	"github.com/sells-group/dcat-harvester/internal/tiger"
)

// Options configures an import.
type Options struct {
	Year    int
	BaseURL string
	// TempDir holds downloaded and extracted ZIPs.
	TempDir string
	// OutDir receives <State>/<State>_<Level>_bbox.json and the manifest.
	OutDir string
	// States to import by name. Empty means all.
	States []string
	// FullGeometry keeps place polygons instead of their envelopes.
	FullGeometry bool
}

// Importer downloads TIGER/Line shapefiles and writes reference boundaries.
type Importer struct {
	fetcher fetcher.Fetcher
	pool    db.Pool
}

// NewImporter creates an Importer. pool may be nil, in which case nothing
// is loaded into PostGIS.
func NewImporter(f fetcher.Fetcher, pool db.Pool) *Importer {
	return &Importer{fetcher: f, pool: pool}
}

// Run imports every requested state and updates the manifest.
func (im *Importer) Run(ctx context.Context, opts Options) (*Manifest, error) {
	log := zap.L().With(zap.String("component", "boundary.import"))

	if opts.Year == 0 {
		return nil, eris.New("boundary: year is required")
	}
	if opts.OutDir == "" {
		return nil, eris.New("boundary: output dir is required")
	}
	states, err := ResolveStates(opts.States)
	if err != nil {
		return nil, err
	}

	if im.pool != nil {
		if err := db.Migrate(ctx, im.pool); err != nil {
			return nil, eris.Wrap(err, "boundary: migrate")
		}
	}

	countyURL := tiger.DownloadURL(opts.BaseURL, tiger.County, opts.Year, "")
	countyShp, err := tiger.Download(ctx, im.fetcher, countyURL, opts.TempDir)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: download counties")
	}
	allCounties, err := tiger.ReadFeatures(countyShp)
	if err != nil {
		return nil, err
	}
	log.Info("counties loaded", zap.Int("features", len(allCounties)))

	entries := make([]StateEntry, 0, len(states))
	for _, state := range states {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "boundary: import")
		}
		entry, err := im.importState(ctx, opts, state, allCounties)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	m, err := ReadManifest(opts.OutDir)
	if err != nil {
		return nil, err
	}
	m.Year = opts.Year
	m.FullGeometry = opts.FullGeometry
	m.UpdatedAt = time.Now().UTC()
	m.Merge(entries)
	if err := WriteManifest(opts.OutDir, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (im *Importer) importState(ctx context.Context, opts Options, state string, allCounties []tiger.Feature) (StateEntry, error) {
	log := zap.L().With(
		zap.String("component", "boundary.import"),
		zap.String("state", state),
	)
	fips := tiger.StateFIPS[state]

	placeURL := tiger.DownloadURL(opts.BaseURL, tiger.Place, opts.Year, fips)
	placeShp, err := tiger.Download(ctx, im.fetcher, placeURL, opts.TempDir)
	if err != nil {
		return StateEntry{}, eris.Wrapf(err, "boundary: download places for %s", state)
	}
	placeFeats, err := tiger.ReadFeatures(placeShp)
	if err != nil {
		return StateEntry{}, err
	}

	cities, counties := Build(state, placeFeats, FilterState(allCounties, fips), opts.FullGeometry)

	entry := StateEntry{
		State:    state,
		FIPS:     fips,
		Cities:   len(cities),
		Counties: len(counties),
	}
	cityPath := StatePath(opts.OutDir, state, places.City)
	if err := WriteGeoJSON(cityPath, cities); err != nil {
		return StateEntry{}, err
	}
	entry.CityFile = relPath(opts.OutDir, cityPath)
	if state != places.DistrictOfColumbia {
		countyPath := StatePath(opts.OutDir, state, places.County)
		if err := WriteGeoJSON(countyPath, counties); err != nil {
			return StateEntry{}, err
		}
		entry.CountyFile = relPath(opts.OutDir, countyPath)
	}

	if im.pool != nil {
		n, err := Load(ctx, im.pool, state, cities, counties)
		if err != nil {
			return StateEntry{}, err
		}
		log.Info("boundaries loaded into postgis", zap.Int64("rows", n))
	}

	log.Info("state imported",
		zap.Int("cities", entry.Cities),
		zap.Int("counties", entry.Counties),
	)
	return entry, nil
}

// ResolveStates maps state names or two-digit FIPS codes to state names.
// An empty list means every state.
func ResolveStates(in []string) ([]string, error) {
	if len(in) == 0 {
		return tiger.AllStates(), nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := tiger.StateFIPS[s]; ok {
			out = append(out, s)
			continue
		}
		if name, ok := tiger.StateName(s); ok {
			out = append(out, name)
			continue
		}
		return nil, eris.Errorf("boundary: unknown state %q", s)
	}
	return out, nil
}

func relPath(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}

// Load replaces a state's rows in the boundaries table.
func Load(ctx context.Context, pool db.Pool, state string, cities, counties []places.Boundary) (int64, error) {
	rows := make([][]any, 0, len(cities)+len(counties))
	for _, set := range [][]places.Boundary{cities, counties} {
		for _, b := range set {
			wkb, err := tiger.EncodeEWKB(b.Geom)
			if err != nil {
				return 0, eris.Wrapf(err, "boundary: encode %s %s", b.Level, b.City+b.County)
			}
			rows = append(rows, []any{state, string(b.Level), b.City, b.County, b.State, wkb})
		}
	}
	n, err := db.ReplacePartition(ctx, pool, db.ReplaceConfig{
		Table:     places.BoundaryTable,
		KeyColumn: "region",
		Key:       state,
		Columns:   LoadColumns,
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "boundary: load %s", state)
	}
	return n, nil
}

// LoadColumns are the boundaries table columns written by Load.
var LoadColumns = []string{"region", "level", "city", "county", "state", "geom"}
