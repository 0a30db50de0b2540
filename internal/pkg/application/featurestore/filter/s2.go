package filter

import (
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"
)

// EarthRadiusMeters is the radius of the earth in a spherical earth model
const EarthRadiusMeters float64 = 6371 * 1000

// shape is a geometry decomposed into the s2 primitives we can reason
// about. Polygon holes are ignored.
type shape struct {
	points []s2.Point
	lines  []*s2.Polyline
	loops  []*s2.Loop
}

func pointFromCoord(c geom.Coord) s2.Point {
	// coordinates are always longitude, latitude
	return s2.PointFromLatLng(s2.LatLngFromDegrees(c.Y(), c.X()))
}

func toShape(g geom.T) (*shape, error) {
	s := &shape{}
	if err := s.add(g); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *shape) add(g geom.T) error {
	switch v := g.(type) {
	case *geom.Point:
		if !v.Empty() {
			s.points = append(s.points, pointFromCoord(v.Coords()))
		}
	case *geom.MultiPoint:
		for i := 0; i < v.NumPoints(); i++ {
			s.add(v.Point(i))
		}
	case *geom.LineString:
		s.addLine(v.Coords())
	case *geom.MultiLineString:
		for i := 0; i < v.NumLineStrings(); i++ {
			s.addLine(v.LineString(i).Coords())
		}
	case *geom.Polygon:
		l, err := loopFromPolygon(v)
		if err != nil {
			return err
		}
		s.loops = append(s.loops, l)
	case *geom.MultiPolygon:
		for i := 0; i < v.NumPolygons(); i++ {
			if err := s.add(v.Polygon(i)); err != nil {
				return err
			}
		}
	case *geom.GeometryCollection:
		for _, child := range v.Geoms() {
			if err := s.add(child); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported geometry type %T", g)
	}
	return nil
}

func (s *shape) addLine(coords []geom.Coord) {
	if len(coords) == 1 {
		s.points = append(s.points, pointFromCoord(coords[0]))
		return
	}
	if len(coords) == 0 {
		return
	}

	line := make(s2.Polyline, 0, len(coords))
	for _, c := range coords {
		line = append(line, pointFromCoord(c))
	}
	s.lines = append(s.lines, &line)
}

func (s *shape) empty() bool {
	return len(s.points) == 0 && len(s.lines) == 0 && len(s.loops) == 0
}

// loopFromPolygon converts the outer ring of a polygon to a loop. Rings are
// assumed to cover less than a hemisphere, so the orientation is flipped
// when the resulting loop turns out to be the complement.
func loopFromPolygon(p *geom.Polygon) (*s2.Loop, error) {
	if p.NumLinearRings() == 0 {
		return nil, fmt.Errorf("polygon without rings")
	}

	r := p.LinearRing(0)
	if r.NumCoords() < 4 {
		return nil, fmt.Errorf("can't convert ring with less than 4 points")
	}

	reverse := isClockwise(r)
	l := loopFromRing(r, reverse)
	if l.CapBound().Radius().Degrees() > 90 {
		l = loopFromRing(r, !reverse)
	}
	return l, nil
}

func isClockwise(r *geom.LinearRing) bool {
	var a float64
	n := r.NumCoords()
	for i := 0; i < n; i++ {
		p1 := r.Coord(i)
		p2 := r.Coord((i + 1) % n)
		a += (p2.X() - p1.X()) * (p1.Y() + p2.Y())
	}
	return a > 0
}

func loopFromRing(r *geom.LinearRing, reverse bool) *s2.Loop {
	// the closing coordinate is implicit in s2
	n := r.NumCoords()
	pts := make([]s2.Point, n-1)
	for i := 0; i < n-1; i++ {
		if reverse {
			pts[i] = pointFromCoord(r.Coord(n - 1 - i))
		} else {
			pts[i] = pointFromCoord(r.Coord(i))
		}
	}
	return s2.LoopFromPoints(pts)
}

func boundary(l *s2.Loop) *s2.Polyline {
	vertices := l.Vertices()
	line := make(s2.Polyline, 0, len(vertices)+1)
	line = append(line, vertices...)
	if len(vertices) > 0 {
		line = append(line, vertices[0])
	}
	return &line
}

func intersects(a, b *shape) bool {
	for _, p := range a.points {
		if b.containsOrTouches(p) {
			return true
		}
	}
	for _, p := range b.points {
		if a.containsOrTouches(p) {
			return true
		}
	}

	for _, la := range a.lines {
		for _, lb := range b.lines {
			if la.Intersects(lb) {
				return true
			}
		}
		for _, loop := range b.loops {
			if lineIntersectsLoop(la, loop) {
				return true
			}
		}
	}

	for _, loop := range a.loops {
		for _, lb := range b.lines {
			if lineIntersectsLoop(lb, loop) {
				return true
			}
		}
		for _, other := range b.loops {
			if loop.Intersects(other) {
				return true
			}
		}
	}

	return false
}

func lineIntersectsLoop(line *s2.Polyline, loop *s2.Loop) bool {
	for _, v := range *line {
		if loop.ContainsPoint(v) {
			return true
		}
	}
	return line.Intersects(boundary(loop))
}

var touchTolerance = s1.Angle(1e-9)

func (s *shape) containsOrTouches(p s2.Point) bool {
	for _, q := range s.points {
		if q.ApproxEqual(p) {
			return true
		}
	}
	for _, l := range s.lines {
		projected, _ := l.Project(p)
		if projected.Distance(p) <= touchTolerance {
			return true
		}
	}
	for _, l := range s.loops {
		if l.ContainsPoint(p) {
			return true
		}
	}
	return false
}

// within reports whether every part of a lies inside b
func within(a, b *shape) bool {
	if a.empty() || len(b.loops) == 0 && len(b.lines) == 0 && len(b.points) == 0 {
		return false
	}

	insideAny := func(p s2.Point) bool {
		return b.containsOrTouches(p)
	}

	for _, p := range a.points {
		if !insideAny(p) {
			return false
		}
	}
	for _, l := range a.lines {
		for _, v := range *l {
			if !insideAny(v) {
				return false
			}
		}
	}
	for _, loop := range a.loops {
		contained := false
		for _, other := range b.loops {
			if other.Contains(loop) {
				contained = true
				break
			}
		}
		if !contained {
			return false
		}
	}
	return true
}

// distance returns the smallest great-circle distance in meters between
// two shapes, zero when they intersect
func distance(a, b *shape) float64 {
	if intersects(a, b) {
		return 0
	}

	best := math.Inf(1)
	for _, p := range a.vertices() {
		if d := b.distanceTo(p); d < best {
			best = d
		}
	}
	for _, p := range b.vertices() {
		if d := a.distanceTo(p); d < best {
			best = d
		}
	}

	return best * EarthRadiusMeters
}

func (s *shape) vertices() []s2.Point {
	pts := append([]s2.Point{}, s.points...)
	for _, l := range s.lines {
		pts = append(pts, (*l)...)
	}
	for _, l := range s.loops {
		pts = append(pts, l.Vertices()...)
	}
	return pts
}

// distanceTo returns the angular distance in radians from p to the shape
func (s *shape) distanceTo(p s2.Point) float64 {
	best := math.Inf(1)
	for _, q := range s.points {
		best = math.Min(best, q.Distance(p).Radians())
	}
	for _, l := range s.lines {
		projected, _ := l.Project(p)
		best = math.Min(best, projected.Distance(p).Radians())
	}
	for _, l := range s.loops {
		if l.ContainsPoint(p) {
			return 0
		}
		projected, _ := boundary(l).Project(p)
		best = math.Min(best, projected.Distance(p).Radians())
	}
	return best
}
