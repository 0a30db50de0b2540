package filter

import (
	"testing"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/matryer/is"
	"github.com/twpayne/go-geom"
)

func TestComparisonsOnNumbersAndNumericStrings(t *testing.T) {
	is := is.New(t)
	f := beach("b1", "Slädaviken", 17.47, 62.43)
	f.Properties["temperature"] = 18.5

	is.True(GreaterThan(Property("temperature"), Literal(18)).Evaluate(f))
	is.True(LessThanOrEqualTo(Property("temperature"), Literal("18.5")).Evaluate(f))
	is.True(!EqualTo(Property("temperature"), Literal(18)).Evaluate(f))
}

func TestCaseInsensitiveEquality(t *testing.T) {
	is := is.New(t)
	f := beach("b1", "Slädaviken", 17.47, 62.43)

	cmp := PropertyEquals("name", "SLÄDAVIKEN")
	is.True(!cmp.Evaluate(f))

	cmp.MatchCase = false
	is.True(cmp.Evaluate(f))
}

func TestNullsOnlyEqualNulls(t *testing.T) {
	is := is.New(t)
	f := beach("b1", "Slädaviken", 17.47, 62.43)

	is.True(!PropertyEquals("missing", "x").Evaluate(f))
	is.True(NotEqualTo(Property("missing"), Literal("x")).Evaluate(f))
	is.True((&IsNull{Expression: Property("missing")}).Evaluate(f))
}

func TestLikeWithWildcardsAndEscapes(t *testing.T) {
	is := is.New(t)
	f := beach("b1", "Norrstrand 50%", 17.47, 62.43)

	like, err := NewLike(Property("name"), "norr*", "*", ".", "!", false)
	is.NoErr(err)
	is.True(like.Evaluate(f))

	like, err = NewLike(Property("name"), "Norrstrand 5.!%", "*", ".", "!", true)
	is.NoErr(err)
	is.True(like.Evaluate(f))

	like, err = NewLike(Property("name"), "norr*", "*", ".", "!", true)
	is.NoErr(err)
	is.True(!like.Evaluate(f)) // case sensitive match should fail
}

func TestBetweenTimestamps(t *testing.T) {
	is := is.New(t)
	f := beach("b1", "Slädaviken", 17.47, 62.43)
	f.Properties["dateObserved"] = "2021-05-18T19:23:09Z"

	between := &Between{
		Expression: Property("dateObserved"),
		Lower:      Literal("2021-05-01T00:00:00Z"),
		Upper:      Literal("2021-06-01T00:00:00Z"),
	}
	is.True(between.Evaluate(f))
}

func TestLogicalOperatorsAndIdentity(t *testing.T) {
	is := is.New(t)
	f := beach("b1", "Slädaviken", 17.47, 62.43)

	is.True(AllOf(ID("b1", "b2"), PropertyEquals("name", "Slädaviken")).Evaluate(f))
	is.True(!AllOf(ID("b2"), Include).Evaluate(f))
	is.True(AnyOf(ID("b2"), PropertyEquals("name", "Slädaviken")).Evaluate(f))
	is.True(Negate(ID("b2")).Evaluate(f))
	is.Equal(AllOf(Include, nil), Include)
}

func TestBBoxMatchesOverlappingEnvelope(t *testing.T) {
	is := is.New(t)

	inside := beach("b1", "Slädaviken", 17.47, 62.43)
	outside := beach("b2", "Stockholm", 18.07, 59.33)

	bbox := NewBBox("geometry", 17.0, 62.0, 18.0, 63.0)
	is.True(bbox.Evaluate(inside))
	is.True(!bbox.Evaluate(outside))
}

func TestIntersectsAndWithinPolygon(t *testing.T) {
	is := is.New(t)

	area := square(17.0, 62.0, 18.0, 63.0)

	intersectsArea, err := Intersects("geometry", area)
	is.NoErr(err)
	withinArea, err := Within("geometry", area)
	is.NoErr(err)

	inside := beach("b1", "Slädaviken", 17.47, 62.43)
	outside := beach("b2", "Stockholm", 18.07, 59.33)

	is.True(intersectsArea.Evaluate(inside))
	is.True(withinArea.Evaluate(inside))
	is.True(!intersectsArea.Evaluate(outside))

	overlapping := domain.NewFeature("p1", "parks", nil, square(17.5, 62.5, 18.5, 63.5))
	is.True(intersectsArea.Evaluate(overlapping))
	is.True(!withinArea.Evaluate(overlapping))

	containsPoint, err := Contains("geometry", geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{18.0, 63.0}))
	is.NoErr(err)
	is.True(containsPoint.Evaluate(overlapping))
}

func TestIntersectingLines(t *testing.T) {
	is := is.New(t)

	road := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{17.0, 62.0}, {18.0, 63.0}})
	crossing := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{17.0, 63.0}, {18.0, 62.0}})

	flt, err := Intersects("geometry", crossing)
	is.NoErr(err)
	is.True(flt.Evaluate(domain.NewFeature("r1", "roads", nil, road)))
}

func TestDWithinUsesGreatCircleDistance(t *testing.T) {
	is := is.New(t)

	// roughly 1.1km north of the beach
	pt := geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{17.47, 62.44})
	f := beach("b1", "Slädaviken", 17.47, 62.43)

	near, err := NewDWithin("geometry", pt, 1500)
	is.NoErr(err)
	is.True(near.Evaluate(f))

	tooNear, err := NewDWithin("geometry", pt, 500)
	is.NoErr(err)
	is.True(!tooNear.Evaluate(f))
}

func TestBoundsOfAndCombinesEnvelopes(t *testing.T) {
	is := is.New(t)

	flt := AllOf(NewBBox("geometry", 0, 0, 10, 10), PropertyEquals("name", "x"), NewBBox("geometry", 5, 5, 20, 20))
	b, ok := BoundsOf(flt)
	is.True(ok)
	is.Equal(b.Min(0), 5.0)
	is.Equal(b.Max(0), 10.0)

	_, ok = BoundsOf(AnyOf(NewBBox("geometry", 0, 0, 1, 1), Include))
	is.True(!ok)
}

func TestGeodesicFindsNestedSpatialPredicates(t *testing.T) {
	is := is.New(t)

	near, err := NewDWithin("geometry", geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{17.3, 62.4}), 100)
	is.NoErr(err)

	is.True(Geodesic(AllOf(PropertyEquals("name", "x"), Negate(near))))
	is.True(!Geodesic(AnyOf(NewBBox("geometry", 0, 0, 1, 1), PropertyEquals("name", "x"))))
}

func TestCompareOrdersNilFirst(t *testing.T) {
	is := is.New(t)

	is.Equal(Compare(nil, 1), -1)
	is.Equal(Compare("b", "a"), 1)
	is.Equal(Compare(false, true), -1)
	is.Equal(Compare(int64(3), 3.0), 0)
}

func beach(id, name string, lon, lat float64) *domain.Feature {
	pt := geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{lon, lat})
	return domain.NewFeature(id, "beaches", map[string]any{"name": name}, pt)
}

func square(minX, minY, maxX, maxY float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
}
