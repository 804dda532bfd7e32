package places

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/lineintersector"
	"github.com/twpayne/go-geom/xy/location"

	"github.com/sells-group/dcat-harvester/internal/bbox"
)

// Matches reports whether box and the boundary polygon stand in the given
// relation, with the box as the left operand: intersects means the closed
// sets share a point, within means the box lies in the polygon, contains
// means the polygon lies in the box.
func Matches(mp *geom.MultiPolygon, box bbox.Box, rel Relation) bool {
	if mp == nil || mp.NumPolygons() == 0 {
		return false
	}
	if !boundsOverlap(mp.Bounds(), box) {
		return false
	}
	switch rel {
	case Intersects:
		return intersects(mp, box)
	case Within:
		return within(mp, box)
	case Contains:
		return contains(mp, box)
	}
	return false
}

// PointIn reports whether (x, y) lies in the closed polygon.
func PointIn(mp *geom.MultiPolygon, x, y float64) bool {
	return locateMulti(mp, x, y) != location.Exterior
}

func boundsOverlap(b *geom.Bounds, box bbox.Box) bool {
	return b.Min(0) <= box.MaxX && b.Max(0) >= box.MinX &&
		b.Min(1) <= box.MaxY && b.Max(1) >= box.MinY
}

func intersects(mp *geom.MultiPolygon, box bbox.Box) bool {
	corners := boxCorners(box)
	for _, c := range corners {
		if locateMulti(mp, c[0], c[1]) != location.Exterior {
			return true
		}
	}
	hit := false
	eachRing(mp, func(_ int, flat []float64, stride int) bool {
		for i := 0; i+stride < len(flat); i += stride {
			a := geom.Coord{flat[i], flat[i+1]}
			b := geom.Coord{flat[i+stride], flat[i+stride+1]}
			if inBox(box, a[0], a[1]) {
				hit = true
				return false
			}
			for k := 0; k < 4; k++ {
				if segmentsIntersect(a, b, corners[k], corners[(k+1)%4]) {
					hit = true
					return false
				}
			}
		}
		return true
	})
	return hit
}

// within checks each polygon part on its own; a box straddling two parts
// that touch is not within either.
func within(mp *geom.MultiPolygon, box bbox.Box) bool {
	cx, cy := (box.MinX+box.MaxX)/2, (box.MinY+box.MaxY)/2
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		if locatePolygon(p, cx, cy) != location.Interior {
			continue
		}
		crossed := false
		for j := 0; j < p.NumLinearRings() && !crossed; j++ {
			crossed = ringCrossesInterior(p.LinearRing(j).FlatCoords(), p.Stride(), box)
		}
		if !crossed {
			return true
		}
	}
	return false
}

func contains(mp *geom.MultiPolygon, box bbox.Box) bool {
	all := true
	eachRing(mp, func(ring int, flat []float64, stride int) bool {
		if ring != 0 {
			return true
		}
		for i := 0; i+1 < len(flat); i += stride {
			if !inBox(box, flat[i], flat[i+1]) {
				all = false
				return false
			}
		}
		return true
	})
	return all
}

// eachRing calls fn for every ring of every part; ring 0 is the shell.
// Iteration stops when fn returns false.
func eachRing(mp *geom.MultiPolygon, fn func(ring int, flat []float64, stride int) bool) {
	stride := mp.Stride()
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		for j := 0; j < p.NumLinearRings(); j++ {
			if !fn(j, p.LinearRing(j).FlatCoords(), stride) {
				return
			}
		}
	}
}

func boxCorners(b bbox.Box) [4]geom.Coord {
	return [4]geom.Coord{
		{b.MinX, b.MinY},
		{b.MaxX, b.MinY},
		{b.MaxX, b.MaxY},
		{b.MinX, b.MaxY},
	}
}

func inBox(b bbox.Box, x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

func locateMulti(mp *geom.MultiPolygon, x, y float64) location.Type {
	best := location.Exterior
	for i := 0; i < mp.NumPolygons(); i++ {
		switch locatePolygon(mp.Polygon(i), x, y) {
		case location.Interior:
			return location.Interior
		case location.Boundary:
			best = location.Boundary
		}
	}
	return best
}

// locatePolygon places (x, y) against the shell and holes of p. A point on
// a hole's edge is on the boundary; one inside a hole is outside.
func locatePolygon(p *geom.Polygon, x, y float64) location.Type {
	if p.NumLinearRings() == 0 {
		return location.Exterior
	}
	pt := geom.Coord{x, y}
	loc := xy.LocatePointInRing(p.Layout(), pt, p.LinearRing(0).FlatCoords())
	if loc != location.Interior {
		return loc
	}
	for j := 1; j < p.NumLinearRings(); j++ {
		switch xy.LocatePointInRing(p.Layout(), pt, p.LinearRing(j).FlatCoords()) {
		case location.Interior:
			return location.Exterior
		case location.Boundary:
			return location.Boundary
		}
	}
	return location.Interior
}

// segmentsIntersect reports whether closed segments ab and cd share a point.
func segmentsIntersect(a, b, c, d geom.Coord) bool {
	r := lineintersector.LineIntersectsLine(lineintersector.RobustLineIntersector{}, a, b, c, d)
	return r.HasIntersection()
}

// ringCrossesInterior reports whether any edge of the ring passes through
// the open interior of the box.
func ringCrossesInterior(flat []float64, stride int, box bbox.Box) bool {
	for i := 0; i+stride < len(flat); i += stride {
		if segmentInOpenBox(flat[i], flat[i+1], flat[i+stride], flat[i+stride+1], box) {
			return true
		}
	}
	return false
}

// segmentInOpenBox clips ab to the closed box (Liang-Barsky) and tests the
// midpoint of the clipped piece against the open box. A clipped piece that
// touches the interior anywhere has its midpoint inside.
func segmentInOpenBox(ax, ay, bx, by float64, box bbox.Box) bool {
	t0, t1 := 0.0, 1.0
	dx, dy := bx-ax, by-ay
	clip := func(p, q float64) bool {
		if p == 0 {
			return q >= 0
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return false
			}
			if r < t1 {
				t1 = r
			}
		}
		return true
	}
	if !clip(-dx, ax-box.MinX) || !clip(dx, box.MaxX-ax) ||
		!clip(-dy, ay-box.MinY) || !clip(dy, box.MaxY-ay) {
		return false
	}
	tm := (t0 + t1) / 2
	mx, my := ax+tm*dx, ay+tm*dy
	return mx > box.MinX && mx < box.MaxX && my > box.MinY && my < box.MaxY
}
