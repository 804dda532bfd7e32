package boundary

import (
	"sort"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/dcat-harvester/internal/bbox"
	"github.com/sells-group/dcat-harvester/internal/places"
	"github.com/sells-group/dcat-harvester/internal/tiger"
)

// TIGER/Line attribute names.
const (
	attrName     = "NAME"
	attrNameLSAD = "NAMELSAD"
	attrStateFP  = "STATEFP"
	attrLat      = "INTPTLAT"
	attrLon      = "INTPTLON"
)

// Build turns a state's TIGER place features and the county features of the
// same state into reference boundaries. Each place is tagged with the
// counties holding its internal point, except in the District of Columbia,
// which is resolved at city level only. Unless full is set, geometries are
// reduced to their envelopes.
func Build(state string, placeFeats, countyFeats []tiger.Feature, full bool) (cities, counties []places.Boundary) {
	if state == places.DistrictOfColumbia {
		countyFeats = nil
	}
	for _, f := range countyFeats {
		counties = append(counties, places.Boundary{
			Level:  places.County,
			County: countyName(f),
			State:  state,
			Geom:   shape(f.Geom, full),
		})
	}

	for _, f := range placeFeats {
		cities = append(cities, places.Boundary{
			Level:  places.City,
			City:   f.Attr(attrName),
			County: strings.Join(countiesAt(f, countyFeats), ", "),
			State:  state,
			Geom:   shape(f.Geom, full),
		})
	}
	sort.SliceStable(cities, func(i, j int) bool { return cities[i].City < cities[j].City })
	sort.SliceStable(counties, func(i, j int) bool { return counties[i].County < counties[j].County })
	return cities, counties
}

// FilterState keeps the features whose STATEFP is fips.
func FilterState(feats []tiger.Feature, fips string) []tiger.Feature {
	var out []tiger.Feature
	for _, f := range feats {
		if f.Attr(attrStateFP) == fips {
			out = append(out, f)
		}
	}
	return out
}

func countyName(f tiger.Feature) string {
	if n := f.Attr(attrNameLSAD); n != "" {
		return n
	}
	return f.Attr(attrName)
}

// countiesAt returns the names of the counties containing the place's
// internal point, falling back to its envelope center.
func countiesAt(place tiger.Feature, counties []tiger.Feature) []string {
	x, y, ok := internalPoint(place)
	if !ok {
		b := place.Geom.Bounds()
		x, y = (b.Min(0)+b.Max(0))/2, (b.Min(1)+b.Max(1))/2
	}
	var names []string
	for _, c := range counties {
		if places.PointIn(c.Geom, x, y) {
			names = append(names, countyName(c))
		}
	}
	return names
}

func internalPoint(f tiger.Feature) (x, y float64, ok bool) {
	lat, err := strconv.ParseFloat(f.Attr(attrLat), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(f.Attr(attrLon), 64)
	if err != nil {
		return 0, 0, false
	}
	return lon, lat, true
}

func shape(mp *geom.MultiPolygon, full bool) *geom.MultiPolygon {
	if full {
		return mp
	}
	return envelope(mp)
}

// envelope returns the bounding rectangle of mp as a one-part multipolygon.
func envelope(mp *geom.MultiPolygon) *geom.MultiPolygon {
	b := mp.Bounds()
	poly := bbox.Box{MinX: b.Min(0), MinY: b.Min(1), MaxX: b.Max(0), MaxY: b.Max(1)}.Polygon()
	out := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	if err := out.Push(poly); err != nil {
		return mp
	}
	return out
}
