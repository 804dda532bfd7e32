// Package coverage turns place matches into the Spatial Coverage column.
package coverage

import (
	"strings"

	"github.com/sells-group/dcat-harvester/internal/model"
	"github.com/sells-group/dcat-harvester/internal/places"
)

// UnitedStates is the coverage of rows published by Esri.
const UnitedStates = "United States"

// Select picks which relation's places describe a box. Contains wins when
// non-empty; otherwise nothing when intersects is empty, intersects when
// within is empty, and within otherwise.
func Select(m places.Match) []places.Place {
	switch {
	case len(m.Contains) > 0:
		return m.Contains
	case len(m.Intersects) == 0:
		return nil
	case len(m.Within) == 0:
		return m.Intersects
	default:
		return m.Within
	}
}

// Format groups places by state in order of first appearance. Each group is
// its "Place, State" entries followed by the bare state; groups are joined
// by "|".
func Format(pairs []places.Place) string {
	var states []string
	byState := make(map[string][]string)
	for _, p := range pairs {
		if _, ok := byState[p.State]; !ok {
			states = append(states, p.State)
		}
		byState[p.State] = append(byState[p.State], p.Name)
	}

	var parts []string
	for _, state := range states {
		for _, name := range byState[state] {
			parts = append(parts, name+", "+state)
		}
		parts = append(parts, state)
	}
	return strings.Join(parts, "|")
}

// ForRow returns the coverage for a row. Esri rows are always UnitedStates.
// A nil match, or one that formats to nothing, keeps the row's current
// coverage.
func ForRow(row model.MetadataRow, m *places.Match) string {
	if row.IsEsri() {
		return UnitedStates
	}
	if m == nil {
		return row.SpatialCoverage
	}
	if s := Format(Select(*m)); s != "" {
		return s
	}
	return row.SpatialCoverage
}
