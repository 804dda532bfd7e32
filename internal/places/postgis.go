package places

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dcat-harvester/internal/bbox"
	"github.com/sells-group/dcat-harvester/internal/db"
)

// BoundaryTable holds imported reference boundaries.
const BoundaryTable = "harvest.boundaries"

// relationFuncs maps relations to PostGIS predicates. Only these names are
// ever interpolated into SQL.
var relationFuncs = map[Relation]string{
	Intersects: "ST_Intersects",
	Within:     "ST_Within",
	Contains:   "ST_Contains",
}

// PostGISSource serves indexes backed by the boundaries table.
type PostGISSource struct {
	pool db.Pool
}

// NewPostGISSource creates a source over pool.
func NewPostGISSource(pool db.Pool) *PostGISSource {
	return &PostGISSource{pool: pool}
}

// Open checks that the state has city boundaries.
func (s *PostGISSource) Open(ctx context.Context, state string) (Index, error) {
	var cities int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM harvest.boundaries WHERE region = $1 AND level = 'City'`,
		state,
	).Scan(&cities)
	if err != nil {
		return nil, eris.Wrapf(err, "places: count boundaries for %s", state)
	}
	if cities == 0 {
		return nil, eris.Wrapf(ErrNoData, "places: no city boundaries for %s", state)
	}
	return &PostGISIndex{pool: s.pool, state: state, cityOnly: state == DistrictOfColumbia}, nil
}

// PostGISIndex runs relation queries in the database.
type PostGISIndex struct {
	pool     db.Pool
	state    string
	cityOnly bool
}

func (ix *PostGISIndex) query(rel Relation) (string, error) {
	fn, ok := relationFuncs[rel]
	if !ok {
		return "", eris.Errorf("places: unknown relation %q", rel)
	}
	levelFilter := ""
	if ix.cityOnly {
		levelFilter = " AND level = 'City'"
	}
	return fmt.Sprintf(`
		SELECT level, city, county, state
		FROM harvest.boundaries
		WHERE region = $1%s
		  AND %s(ST_MakeEnvelope($2, $3, $4, $5, 4326), geom)
		ORDER BY CASE level WHEN 'City' THEN 0 ELSE 1 END, id
	`, levelFilter, fn), nil
}

// Query returns the places of matching boundaries, cities first.
func (ix *PostGISIndex) Query(ctx context.Context, box bbox.Box, rel Relation) ([]Place, error) {
	sql, err := ix.query(rel)
	if err != nil {
		return nil, err
	}
	rows, err := ix.pool.Query(ctx, sql, ix.state, box.MinX, box.MinY, box.MaxX, box.MaxY)
	if err != nil {
		return nil, eris.Wrapf(err, "places: %s query for %s", rel, ix.state)
	}
	defer rows.Close()

	var c collector
	for rows.Next() {
		var b Boundary
		var level string
		if err := rows.Scan(&level, &b.City, &b.County, &b.State); err != nil {
			return nil, eris.Wrap(err, "places: scan boundary row")
		}
		b.Level = Level(level)
		c.add(b.Places(ix.state, ix.cityOnly)...)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "places: iterate boundary rows")
	}
	return c.out, nil
}

// Close is a no-op; the pool belongs to the caller.
func (ix *PostGISIndex) Close() error {
	return nil
}
