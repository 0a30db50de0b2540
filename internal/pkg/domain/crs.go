package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/twpayne/go-geom"
)

var ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")

// CRS identifies a coordinate reference system. Geographic systems keep
// coordinates in longitude/latitude order regardless of the authority's
// declared axis order.
type CRS struct {
	Code       string
	Name       string
	Geographic bool
}

var (
	WGS84       = CRS{Code: "EPSG:4326", Name: "WGS 84", Geographic: true}
	CRS84       = CRS{Code: "CRS:84", Name: "WGS 84 (lon/lat)", Geographic: true}
	WebMercator = CRS{Code: "EPSG:3857", Name: "WGS 84 / Pseudo-Mercator", Geographic: false}
)

const earthRadiusWebMercator float64 = 6378137.0
const maxMercatorLatitude float64 = 85.05112877980659

var crsAliases = map[string]CRS{
	"EPSG:4326": WGS84,
	"4326":      WGS84,
	"URN:OGC:DEF:CRS:EPSG::4326":                    WGS84,
	"HTTP://WWW.OPENGIS.NET/DEF/CRS/EPSG/0/4326":    WGS84,
	"CRS:84":                                        CRS84,
	"URN:OGC:DEF:CRS:OGC:1.3:CRS84":                 CRS84,
	"HTTP://WWW.OPENGIS.NET/DEF/CRS/OGC/1.3/CRS84":  CRS84,
	"EPSG:3857":                                     WebMercator,
	"3857":                                          WebMercator,
	"EPSG:900913":                                   WebMercator,
	"URN:OGC:DEF:CRS:EPSG::3857":                    WebMercator,
	"HTTP://WWW.OPENGIS.NET/DEF/CRS/EPSG/0/3857":    WebMercator,
}

// LookupCRS resolves the various spellings of the supported systems
func LookupCRS(code string) (CRS, error) {
	if code == "" {
		return WGS84, nil
	}

	crs, ok := crsAliases[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return CRS{}, fmt.Errorf("%w: %s", ErrUnsupportedCRS, code)
	}
	return crs, nil
}

func (c CRS) Equivalent(other CRS) bool {
	return c.Geographic == other.Geographic
}

type CoordTransform func(x, y float64) (float64, float64)

// Transform returns a function that converts coordinates from src to dst
func Transform(src, dst CRS) (CoordTransform, error) {
	if src.Equivalent(dst) {
		return func(x, y float64) (float64, float64) { return x, y }, nil
	}

	if src.Geographic && dst == WebMercator {
		return toWebMercator, nil
	}

	if src == WebMercator && dst.Geographic {
		return fromWebMercator, nil
	}

	return nil, fmt.Errorf("%w: no transform from %s to %s", ErrUnsupportedCRS, src.Code, dst.Code)
}

func toWebMercator(lon, lat float64) (float64, float64) {
	lat = math.Max(-maxMercatorLatitude, math.Min(maxMercatorLatitude, lat))
	x := earthRadiusWebMercator * lon * math.Pi / 180.0
	y := earthRadiusWebMercator * math.Log(math.Tan(math.Pi/4.0+lat*math.Pi/360.0))
	return x, y
}

func fromWebMercator(x, y float64) (float64, float64) {
	lon := x / earthRadiusWebMercator * 180.0 / math.Pi
	lat := (2.0*math.Atan(math.Exp(y/earthRadiusWebMercator)) - math.Pi/2.0) * 180.0 / math.Pi
	return lon, lat
}

// Reproject returns a transformed copy of g, leaving g untouched
func Reproject(g geom.T, transform CoordTransform) (geom.T, error) {
	if g == nil {
		return nil, nil
	}

	var clone geom.T

	switch v := g.(type) {
	case *geom.Point:
		clone = v.Clone()
	case *geom.LineString:
		clone = v.Clone()
	case *geom.LinearRing:
		clone = v.Clone()
	case *geom.Polygon:
		clone = v.Clone()
	case *geom.MultiPoint:
		clone = v.Clone()
	case *geom.MultiLineString:
		clone = v.Clone()
	case *geom.MultiPolygon:
		clone = v.Clone()
	case *geom.GeometryCollection:
		gc := geom.NewGeometryCollection()
		for _, child := range v.Geoms() {
			rc, err := Reproject(child, transform)
			if err != nil {
				return nil, err
			}
			if err := gc.Push(rc); err != nil {
				return nil, err
			}
		}
		return gc, nil
	default:
		return nil, fmt.Errorf("unable to reproject geometry of type %T", g)
	}

	coords := clone.FlatCoords()
	stride := clone.Stride()
	for i := 0; i+1 < len(coords); i += stride {
		coords[i], coords[i+1] = transform(coords[i], coords[i+1])
	}

	return clone, nil
}
