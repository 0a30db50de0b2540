package filter

import (
	"fmt"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/twpayne/go-geom"
	"golang.org/x/exp/slices"
)

type SpatialOperator string

const (
	OpIntersects SpatialOperator = "Intersects"
	OpWithin     SpatialOperator = "Within"
	OpContains   SpatialOperator = "Contains"
	OpDisjoint   SpatialOperator = "Disjoint"
)

func geometryOf(f *domain.Feature, property string) geom.T {
	v, ok := f.Property(property)
	if !ok || v == nil {
		return nil
	}
	g, _ := v.(geom.T)
	return g
}

// BBox matches features whose geometry envelope overlaps the bounds
type BBox struct {
	Property string
	Bounds   *geom.Bounds
}

func NewBBox(property string, minX, minY, maxX, maxY float64) *BBox {
	b := geom.NewBounds(geom.XY).Set(minX, minY, maxX, maxY)
	return &BBox{Property: property, Bounds: b}
}

func (b *BBox) Evaluate(f *domain.Feature) bool {
	g := geometryOf(f, b.Property)
	if g == nil {
		return false
	}
	return g.Bounds().Overlaps(geom.XY, b.Bounds)
}

type Spatial struct {
	Op       SpatialOperator
	Property string
	Geometry geom.T

	shape *shape
}

func NewSpatial(op SpatialOperator, property string, g geom.T) (*Spatial, error) {
	s, err := toShape(g)
	if err != nil {
		return nil, fmt.Errorf("unable to use geometry in %s filter: %w", op, err)
	}

	return &Spatial{Op: op, Property: property, Geometry: g, shape: s}, nil
}

func Intersects(property string, g geom.T) (*Spatial, error) {
	return NewSpatial(OpIntersects, property, g)
}

func Within(property string, g geom.T) (*Spatial, error) {
	return NewSpatial(OpWithin, property, g)
}

func Contains(property string, g geom.T) (*Spatial, error) {
	return NewSpatial(OpContains, property, g)
}

func (s *Spatial) Evaluate(f *domain.Feature) bool {
	g := geometryOf(f, s.Property)
	if g == nil {
		return false
	}

	overlaps := g.Bounds().Overlaps(geom.XY, s.Geometry.Bounds())
	if !overlaps {
		return s.Op == OpDisjoint
	}

	other, err := toShape(g)
	if err != nil {
		return false
	}

	switch s.Op {
	case OpIntersects:
		return intersects(other, s.shape)
	case OpDisjoint:
		return !intersects(other, s.shape)
	case OpWithin:
		return within(other, s.shape)
	case OpContains:
		return within(s.shape, other)
	}
	return false
}

// DWithin matches features within Distance meters of the geometry
type DWithin struct {
	Property string
	Geometry geom.T
	Distance float64

	shape *shape
}

func NewDWithin(property string, g geom.T, meters float64) (*DWithin, error) {
	s, err := toShape(g)
	if err != nil {
		return nil, fmt.Errorf("unable to use geometry in DWithin filter: %w", err)
	}
	return &DWithin{Property: property, Geometry: g, Distance: meters, shape: s}, nil
}

func (d *DWithin) Evaluate(f *domain.Feature) bool {
	g := geometryOf(f, d.Property)
	if g == nil {
		return false
	}

	other, err := toShape(g)
	if err != nil || other.empty() {
		return false
	}

	return distance(other, d.shape) <= d.Distance
}

// Geodesic reports whether the filter holds a predicate evaluated on the
// sphere. Those expect longitude and latitude coordinates.
func Geodesic(f Filter) bool {
	switch v := f.(type) {
	case *Spatial, *DWithin:
		return true
	case *And:
		return slices.ContainsFunc(v.Filters, Geodesic)
	case *Or:
		return slices.ContainsFunc(v.Filters, Geodesic)
	case *Not:
		return Geodesic(v.Filter)
	}
	return false
}

// BoundsOf extracts an envelope that every match of the filter must overlap.
// It is a hint for spatial indexes; false means no such envelope is known.
func BoundsOf(f Filter) (*geom.Bounds, bool) {
	switch v := f.(type) {
	case *BBox:
		return v.Bounds, true
	case *Spatial:
		if v.Op == OpDisjoint {
			return nil, false
		}
		return v.Geometry.Bounds(), true
	case *And:
		var result *geom.Bounds
		for _, child := range v.Filters {
			b, ok := BoundsOf(child)
			if !ok {
				continue
			}
			if result == nil {
				result = b.Clone()
				continue
			}
			result = intersection(result, b)
		}
		return result, result != nil
	}
	return nil, false
}

func intersection(a, b *geom.Bounds) *geom.Bounds {
	minX := max(a.Min(0), b.Min(0))
	minY := max(a.Min(1), b.Min(1))
	maxX := min(a.Max(0), b.Max(0))
	maxY := min(a.Max(1), b.Max(1))
	if minX > maxX || minY > maxY {
		// disjoint hints, the filter itself still rejects everything
		return geom.NewBounds(geom.XY).Set(minX, minY, minX, minY)
	}
	return geom.NewBounds(geom.XY).Set(minX, minY, maxX, maxY)
}
