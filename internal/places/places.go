// Package places resolves bounding boxes to the named cities and counties
// they overlap, using per-state reference boundaries.
package places

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/dcat-harvester/internal/bbox"
)

// ErrNoData means a state has no reference boundaries. It is a valid
// outcome: rows in that state are left unresolved.
var ErrNoData = eris.New("places: no reference data")

// DistrictOfColumbia has city-level boundaries only, and its places carry
// no county names.
const DistrictOfColumbia = "District of Columbia"

// Relation is a spatial predicate with the box as the left operand.
type Relation string

// Relations, in the order they are evaluated.
const (
	Intersects Relation = "intersects"
	Within     Relation = "within"
	Contains   Relation = "contains"
)

// Relations lists every relation.
var Relations = []Relation{Intersects, Within, Contains}

// Level is the administrative level of a boundary.
type Level string

// Levels.
const (
	City   Level = "City"
	County Level = "County"
)

// Place is a place name paired with the state it belongs to.
type Place struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// Match holds the places found for each relation.
type Match struct {
	Intersects []Place `json:"intersects,omitempty"`
	Within     []Place `json:"within,omitempty"`
	Contains   []Place `json:"contains,omitempty"`
}

// Get returns the places for one relation.
func (m Match) Get(rel Relation) []Place {
	switch rel {
	case Intersects:
		return m.Intersects
	case Within:
		return m.Within
	case Contains:
		return m.Contains
	}
	return nil
}

func (m *Match) set(rel Relation, ps []Place) {
	switch rel {
	case Intersects:
		m.Intersects = ps
	case Within:
		m.Within = ps
	case Contains:
		m.Contains = ps
	}
}

// Boundary is one reference polygon. City and County may hold several
// names joined by ", ".
type Boundary struct {
	Level  Level
	City   string
	County string
	State  string
	Geom   *geom.MultiPolygon
}

// Places lists the names a matched boundary contributes: for a city its
// city names then its county names, for a county its county names. With
// cityOnly set a city contributes its city names alone. Each is paired with
// the boundary's state, or fallback when that is blank.
func (b Boundary) Places(fallback string, cityOnly bool) []Place {
	state := strings.TrimSpace(b.State)
	if state == "" || isNaN(state) {
		state = fallback
	}
	var out []Place
	if b.Level == City {
		for _, n := range splitNames(b.City) {
			out = append(out, Place{Name: n, State: state})
		}
	}
	if cityOnly {
		return out
	}
	for _, n := range splitNames(b.County) {
		out = append(out, Place{Name: n, State: state})
	}
	return out
}

func splitNames(s string) []string {
	var out []string
	for _, n := range strings.Split(s, ", ") {
		if n = strings.TrimSpace(n); n != "" && !isNaN(n) {
			out = append(out, n)
		}
	}
	return out
}

func isNaN(s string) bool {
	return strings.EqualFold(s, "nan")
}

// collector de-duplicates places, keeping first-seen order.
type collector struct {
	seen map[Place]struct{}
	out  []Place
}

func (c *collector) add(ps ...Place) {
	if c.seen == nil {
		c.seen = make(map[Place]struct{})
	}
	for _, p := range ps {
		if _, ok := c.seen[p]; ok {
			continue
		}
		c.seen[p] = struct{}{}
		c.out = append(c.out, p)
	}
}

// Index answers overlap queries for one state.
type Index interface {
	Query(ctx context.Context, box bbox.Box, rel Relation) ([]Place, error)
	Close() error
}

// Source opens per-state indexes. Open returns an error wrapping ErrNoData
// when the state has no reference data.
type Source interface {
	Open(ctx context.Context, state string) (Index, error)
}
