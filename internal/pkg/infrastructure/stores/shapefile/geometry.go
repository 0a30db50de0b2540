package shapefile

import (
	"fmt"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
)

func split(parts []int32, points []shp.Point) [][]shp.Point {
	result := make([][]shp.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		result = append(result, points[start:end])
	}
	return result
}

func flatten(points []shp.Point, flat []float64) []float64 {
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

// signedArea is positive for counter clockwise rings
func signedArea(ring []shp.Point) float64 {
	area := 0.0
	for i := range ring {
		j := (i + 1) % len(ring)
		area += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return area / 2
}

func toGeometry(shape shp.Shape) (geom.T, error) {
	switch s := shape.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Point:
		return geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{s.X, s.Y}), nil
	case *shp.MultiPoint:
		return geom.NewMultiPointFlat(geom.XY, flatten(s.Points, nil)), nil
	case *shp.PolyLine:
		lines := split(s.Parts, s.Points)
		if len(lines) == 1 {
			return geom.NewLineStringFlat(geom.XY, flatten(lines[0], nil)), nil
		}
		flat, ends := []float64{}, []int{}
		for _, l := range lines {
			flat = flatten(l, flat)
			ends = append(ends, len(flat))
		}
		return geom.NewMultiLineStringFlat(geom.XY, flat, ends), nil
	case *shp.Polygon:
		return toPolygons(split(s.Parts, s.Points))
	}
	return nil, fmt.Errorf("unsupported shape type %T", shape)
}

// toPolygons groups rings into polygons. Outer rings are clockwise and
// holes follow the outer ring they belong to.
func toPolygons(rings [][]shp.Point) (geom.T, error) {
	flat, ends, endss := []float64{}, []int{}, [][]int{}

	for _, ring := range rings {
		if signedArea(ring) <= 0 || len(endss) == 0 && len(ends) == 0 {
			if len(ends) > 0 {
				endss = append(endss, ends)
			}
			ends = []int{}
		}
		flat = flatten(ring, flat)
		ends = append(ends, len(flat))
	}
	if len(ends) > 0 {
		endss = append(endss, ends)
	}

	switch len(endss) {
	case 0:
		return nil, nil
	case 1:
		return geom.NewPolygonFlat(geom.XY, flat, endss[0]), nil
	}
	return geom.NewMultiPolygonFlat(geom.XY, flat, endss), nil
}

func points(flat []float64, stride int) []shp.Point {
	result := make([]shp.Point, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		result = append(result, shp.Point{X: flat[i], Y: flat[i+1]})
	}
	return result
}

func oriented(ring []shp.Point, clockwise bool) []shp.Point {
	if (signedArea(ring) < 0) == clockwise {
		return ring
	}
	reversed := make([]shp.Point, len(ring))
	for i, p := range ring {
		reversed[len(ring)-1-i] = p
	}
	return reversed
}

func polygonRings(p *geom.Polygon) [][]shp.Point {
	rings := [][]shp.Point{}
	for i := 0; i < p.NumLinearRings(); i++ {
		r := p.LinearRing(i)
		rings = append(rings, oriented(points(r.FlatCoords(), r.Stride()), i == 0))
	}
	return rings
}

func toShape(g geom.T) (shp.Shape, error) {
	switch v := g.(type) {
	case nil:
		return &shp.Null{}, nil
	case *geom.Point:
		return &shp.Point{X: v.X(), Y: v.Y()}, nil
	case *geom.MultiPoint:
		pts := points(v.FlatCoords(), v.Stride())
		return &shp.MultiPoint{Box: shp.BBoxFromPoints(pts), NumPoints: int32(len(pts)), Points: pts}, nil
	case *geom.LineString:
		return shp.NewPolyLine([][]shp.Point{points(v.FlatCoords(), v.Stride())}), nil
	case *geom.MultiLineString:
		parts := [][]shp.Point{}
		for i := 0; i < v.NumLineStrings(); i++ {
			l := v.LineString(i)
			parts = append(parts, points(l.FlatCoords(), l.Stride()))
		}
		return shp.NewPolyLine(parts), nil
	case *geom.Polygon:
		return polygon(polygonRings(v)), nil
	case *geom.MultiPolygon:
		rings := [][]shp.Point{}
		for i := 0; i < v.NumPolygons(); i++ {
			rings = append(rings, polygonRings(v.Polygon(i))...)
		}
		return polygon(rings), nil
	}
	return nil, fmt.Errorf("%w: %T cannot be stored in a shapefile", domain.ErrInvalidFeature, g)
}

func polygon(rings [][]shp.Point) *shp.Polygon {
	p := shp.Polygon(*shp.NewPolyLine(rings))
	return &p
}

func shapeTypeOf(features []*domain.Feature) (shp.ShapeType, error) {
	var found shp.ShapeType = shp.NULL

	for _, f := range features {
		var t shp.ShapeType
		switch f.Geometry.(type) {
		case nil:
			continue
		case *geom.Point:
			t = shp.POINT
		case *geom.MultiPoint:
			t = shp.MULTIPOINT
		case *geom.LineString, *geom.MultiLineString:
			t = shp.POLYLINE
		case *geom.Polygon, *geom.MultiPolygon:
			t = shp.POLYGON
		default:
			return shp.NULL, fmt.Errorf("%w: %T cannot be stored in a shapefile", domain.ErrInvalidFeature, f.Geometry)
		}

		if found != shp.NULL && found != t {
			return shp.NULL, fmt.Errorf("%w: a shapefile holds a single kind of geometry", domain.ErrInvalidFeature)
		}
		found = t
	}

	if found == shp.NULL {
		return shp.POINT, nil
	}
	return found, nil
}
