package places

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/bbox"
	"github.com/sells-group/dcat-harvester/internal/tiger"
)

// Reference file extensions, in lookup order.
var fileExts = []string{".json", ".geojson", ".shp"}

// FileName is the base name, without extension, of a state's reference file
// for a level, e.g. "Minnesota_City_bbox".
func FileName(state string, level Level) string {
	return fmt.Sprintf("%s_%s_bbox", state, level)
}

// FileSource reads reference boundaries from
// <dir>/<State>/<State>_<Level>_bbox.{json,geojson,shp}.
type FileSource struct {
	dir string
}

// NewFileSource creates a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Open loads a state's boundaries into memory.
func (s *FileSource) Open(_ context.Context, state string) (Index, error) {
	log := zap.L().With(
		zap.String("component", "places.file"),
		zap.String("state", state),
	)

	cityPath, ok := s.find(state, City)
	if !ok {
		return nil, eris.Wrapf(ErrNoData, "places: no city boundaries for %s", state)
	}
	cities, err := LoadFile(cityPath, City)
	if err != nil {
		return nil, err
	}

	var counties []Boundary
	if state != DistrictOfColumbia {
		if countyPath, ok := s.find(state, County); ok {
			counties, err = LoadFile(countyPath, County)
			if err != nil {
				return nil, err
			}
		} else {
			log.Warn("no county boundaries, resolving cities only")
		}
	}

	log.Debug("reference boundaries loaded",
		zap.Int("cities", len(cities)),
		zap.Int("counties", len(counties)),
	)
	return NewFileIndex(state, cities, counties), nil
}

func (s *FileSource) find(state string, level Level) (string, bool) {
	base := filepath.Join(s.dir, state, FileName(state, level))
	for _, ext := range fileExts {
		if info, err := os.Stat(base + ext); err == nil && !info.IsDir() {
			return base + ext, true
		}
	}
	return "", false
}

// LoadFile reads a GeoJSON FeatureCollection or a shapefile of polygons.
// Features without a polygonal geometry are skipped.
func LoadFile(path string, level Level) ([]Boundary, error) {
	if filepath.Ext(path) == ".shp" {
		return loadShapefile(path, level)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "places: read %s", path)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "places: decode %s", path)
	}

	out := make([]Boundary, 0, len(fc.Features))
	for _, f := range fc.Features {
		mp := toMultiPolygon(f.Geometry)
		if mp == nil {
			continue
		}
		out = append(out, Boundary{
			Level:  level,
			City:   property(f.Properties, "City"),
			County: property(f.Properties, "County"),
			State:  property(f.Properties, "State"),
			Geom:   mp,
		})
	}
	return out, nil
}

func loadShapefile(path string, level Level) ([]Boundary, error) {
	features, err := tiger.ReadFeatures(path)
	if err != nil {
		return nil, err
	}
	out := make([]Boundary, 0, len(features))
	for _, f := range features {
		out = append(out, Boundary{
			Level:  level,
			City:   f.Attr("City"),
			County: f.Attr("County"),
			State:  f.Attr("State"),
			Geom:   f.Geom,
		})
	}
	return out, nil
}

func toMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch g := g.(type) {
	case *geom.MultiPolygon:
		return g
	case *geom.Polygon:
		return geom.NewMultiPolygonFlat(g.Layout(), g.FlatCoords(), [][]int{g.Ends()})
	}
	return nil
}

func property(props map[string]interface{}, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// FileIndex evaluates relations in memory against loaded boundaries.
type FileIndex struct {
	state    string
	cityOnly bool
	cities   []Boundary
	counties []Boundary
}

// NewFileIndex builds an index over already-loaded boundaries. For the
// District of Columbia only city names are reported.
func NewFileIndex(state string, cities, counties []Boundary) *FileIndex {
	ix := &FileIndex{state: state, cities: cities, counties: counties}
	if state == DistrictOfColumbia {
		ix.cityOnly = true
		ix.counties = nil
	}
	return ix
}

// Query returns the places of every city boundary, then every county
// boundary, standing in rel to box.
func (ix *FileIndex) Query(ctx context.Context, box bbox.Box, rel Relation) ([]Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "places: query")
	}
	var c collector
	for _, set := range [][]Boundary{ix.cities, ix.counties} {
		for _, b := range set {
			if Matches(b.Geom, box, rel) {
				c.add(b.Places(ix.state, ix.cityOnly)...)
			}
		}
	}
	return c.out, nil
}

// Close releases the loaded boundaries.
func (ix *FileIndex) Close() error {
	ix.cities, ix.counties = nil, nil
	return nil
}
