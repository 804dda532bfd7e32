// Package bbox parses, rounds, and screens record bounding boxes before
// place resolution.
package bbox

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/dcat-harvester/internal/model"
)

// MaxSpan is the widest box, in degrees on either axis, that is resolved.
const MaxSpan = 10.0

// Rejection reasons.
const (
	ReasonDegenerate = "coordinate at 0 or 180"
	ReasonTooLarge   = "span exceeds 10 degrees"
)

// Box is a lon/lat rectangle in EPSG:4326.
type Box struct {
	MinX, MinY, MaxX, MaxY float64
}

// Parse reads "minX,minY,maxX,maxY" and rounds each coordinate to two
// decimals, half to even.
func Parse(s string) (Box, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Box{}, eris.Errorf("bbox: want 4 coordinates, got %d in %q", len(parts), s)
	}
	var c [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Box{}, eris.Errorf("bbox: bad coordinate %q in %q", p, s)
		}
		c[i] = round2(v)
	}
	return Box{MinX: c[0], MinY: c[1], MaxX: c[2], MaxY: c[3]}, nil
}

func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// Coords returns the corners in minX, minY, maxX, maxY order.
func (b Box) Coords() [4]float64 {
	return [4]float64{b.MinX, b.MinY, b.MaxX, b.MaxY}
}

// Key is the grouping key: rows with equal keys share one resolution.
func (b Box) Key() string {
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// Check returns a rejection reason, or "" when the box can be resolved.
func (b Box) Check() string {
	for _, c := range b.Coords() {
		if a := math.Abs(c); a == 0 || a == 180 {
			return ReasonDegenerate
		}
	}
	if b.MaxX-b.MinX > MaxSpan || b.MaxY-b.MinY > MaxSpan {
		return ReasonTooLarge
	}
	return ""
}

// Polygon returns the box as a closed counter-clockwise ring.
func (b Box) Polygon() *geom.Polygon {
	flat := []float64{
		b.MinX, b.MinY,
		b.MaxX, b.MinY,
		b.MaxX, b.MaxY,
		b.MinX, b.MaxY,
		b.MinX, b.MinY,
	}
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(4326)
}

// Bounded pairs a row with its parsed box.
type Bounded struct {
	// Index is the row's position in the slice given to Validate.
	Index int
	Row   model.MetadataRow
	Box   Box
}

// Rejected is a row withheld from resolution.
type Rejected struct {
	Index  int
	Row    model.MetadataRow
	Box    Box
	Reason string
}

// Result splits rows by what resolution can do with them.
type Result struct {
	Clean    []Bounded
	Rejected []Rejected
	// Unbounded rows have an empty or unparseable Bounding Box. They keep
	// their current coverage and are never resolved.
	Unbounded []model.MetadataRow
}

// Validate parses and screens every row, preserving input order within each
// output slice.
func Validate(rows []model.MetadataRow) Result {
	var res Result
	for i, row := range rows {
		if strings.TrimSpace(row.BoundingBox) == "" {
			res.Unbounded = append(res.Unbounded, row)
			continue
		}
		box, err := Parse(row.BoundingBox)
		if err != nil {
			res.Unbounded = append(res.Unbounded, row)
			continue
		}
		if reason := box.Check(); reason != "" {
			res.Rejected = append(res.Rejected, Rejected{Index: i, Row: row, Box: box, Reason: reason})
			continue
		}
		res.Clean = append(res.Clean, Bounded{Index: i, Row: row, Box: box})
	}
	return res
}
