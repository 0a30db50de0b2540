package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/matryer/is"
	"github.com/twpayne/go-geom"
)

func TestValidateAcceptsConformingFeature(t *testing.T) {
	is := is.New(t)
	ft := roadType()

	f := NewFeature("r1", ft.Name, map[string]any{"name": "E4", "lanes": float64(2), "opened": "2019-10-15T16:15:32Z"}, nil)
	is.NoErr(ft.Validate(f))
}

func TestValidateRejectsUnknownAttribute(t *testing.T) {
	is := is.New(t)
	ft := roadType()

	f := NewFeature("r1", ft.Name, map[string]any{"name": "E4", "speed": 110}, nil)
	err := ft.Validate(f)
	is.True(errors.Is(err, ErrInvalidFeature))
}

func TestValidateRejectsFractionalInteger(t *testing.T) {
	is := is.New(t)
	ft := roadType()

	f := NewFeature("r1", ft.Name, map[string]any{"name": "E4", "lanes": 2.5}, nil)
	is.True(errors.Is(ft.Validate(f), ErrInvalidFeature))
}

func TestValidateRequiresNonNullableAttributes(t *testing.T) {
	is := is.New(t)
	ft := roadType()

	f := NewFeature("r1", ft.Name, map[string]any{"lanes": 2}, nil)
	is.True(errors.Is(ft.Validate(f), ErrInvalidFeature)) // name is required
}

func TestPropertyResolvesIdentifierAndGeometry(t *testing.T) {
	is := is.New(t)

	pt := geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{17.3, 62.4})
	f := NewFeature("r1", "roads", map[string]any{"name": "E4"}, pt)

	id, ok := f.Property(IDProperty)
	is.True(ok)
	is.Equal(id, "r1")

	g, ok := f.Property("geometry")
	is.True(ok)
	is.Equal(g, pt)

	_, ok = f.Property("missing")
	is.True(!ok)
}

func TestRetypeKeepsRequestedAttributesInOrder(t *testing.T) {
	is := is.New(t)
	ft := roadType().Retype([]string{"opened", "name", "nope"})

	is.Equal(ft.AttributeNames(), []string{"opened", "name"})
}

func TestReprojectToWebMercatorAndBack(t *testing.T) {
	is := is.New(t)

	pt := geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{17.3, 62.4})
	fwd, err := Transform(WGS84, WebMercator)
	is.NoErr(err)

	merc, err := Reproject(pt, fwd)
	is.NoErr(err)
	is.True(math.Abs(merc.FlatCoords()[0]-1925827.19) < 0.01)
	is.Equal(pt.FlatCoords()[0], 17.3) // the source geometry is untouched

	back, err := Transform(WebMercator, CRS84)
	is.NoErr(err)

	wgs, err := Reproject(merc, back)
	is.NoErr(err)
	is.True(math.Abs(wgs.FlatCoords()[0]-17.3) < 1e-9)
	is.True(math.Abs(wgs.FlatCoords()[1]-62.4) < 1e-9)
}

func TestLookupCRSUnderstandsURNs(t *testing.T) {
	is := is.New(t)

	crs, err := LookupCRS("urn:ogc:def:crs:EPSG::3857")
	is.NoErr(err)
	is.Equal(crs, WebMercator)

	_, err = LookupCRS("EPSG:31467")
	is.True(errors.Is(err, ErrUnsupportedCRS))
}

func roadType() *FeatureType {
	return NewFeatureType("roads",
		AttributeDescriptor{Name: "name", Type: String},
		AttributeDescriptor{Name: "lanes", Type: Integer, Nullable: true},
		AttributeDescriptor{Name: "opened", Type: DateTime, Nullable: true},
	)
}
