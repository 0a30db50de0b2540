package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/matryer/is"
	"github.com/twpayne/go-geom"
)

func TestScanWithHintUsesIndex(t *testing.T) {
	is, ctx, b := testSetup(t)

	r, err := b.Scan(ctx, "lakes", geom.NewBounds(geom.XY).Set(17.0, 62.0, 18.0, 63.0))
	is.NoErr(err)

	features, err := featurestore.ReadAll(ctx, r)
	is.NoErr(err)
	is.Equal(len(features), 2)
	is.Equal(features[0].ID, "l1")
	is.Equal(features[1].ID, "l3") // l2 has no geometry and is never a hint match
}

func TestScanWithoutHintKeepsInsertionOrder(t *testing.T) {
	is, ctx, b := testSetup(t)

	r, err := b.Scan(ctx, "lakes", nil)
	is.NoErr(err)

	features, err := featurestore.ReadAll(ctx, r)
	is.NoErr(err)
	is.Equal(len(features), 4)
	is.Equal(features[3].ID, "l4")
}

func TestPutReplacesAndReindexes(t *testing.T) {
	is, ctx, b := testSetup(t)

	moved := domain.NewFeature("l1", "lakes", map[string]any{"name": "Moved"}, point(10, 10))
	is.NoErr(b.Put(ctx, "lakes", []*domain.Feature{moved}))

	r, err := b.Scan(ctx, "lakes", geom.NewBounds(geom.XY).Set(17.0, 62.0, 18.0, 63.0))
	is.NoErr(err)
	features, err := featurestore.ReadAll(ctx, r)
	is.NoErr(err)
	is.Equal(len(features), 1)

	r, err = b.Scan(ctx, "lakes", nil)
	is.NoErr(err)
	features, err = featurestore.ReadAll(ctx, r)
	is.NoErr(err)
	is.Equal(features[0].Properties["name"], "Moved") // position kept
}

func TestScannedFeaturesAreCopies(t *testing.T) {
	is, ctx, b := testSetup(t)

	r, _ := b.Scan(ctx, "lakes", nil)
	features, _ := featurestore.ReadAll(ctx, r)
	features[0].Properties["name"] = "Changed"

	r, _ = b.Scan(ctx, "lakes", nil)
	again, _ := featurestore.ReadAll(ctx, r)
	is.Equal(again[0].Properties["name"], "Storsjön")
}

func TestDeleteAndSchemaErrors(t *testing.T) {
	is, ctx, b := testSetup(t)

	is.NoErr(b.Delete(ctx, "lakes", []string{"l1", "missing"}))
	r, _ := b.Scan(ctx, "lakes", nil)
	features, _ := featurestore.ReadAll(ctx, r)
	is.Equal(len(features), 3)

	err := b.CreateSchema(ctx, domain.NewFeatureType("lakes"))
	is.True(errors.Is(err, featurestore.ErrTypeExists))

	is.NoErr(b.DeleteSchema(ctx, "lakes"))
	_, err = b.Scan(ctx, "lakes", nil)
	is.True(errors.Is(err, featurestore.ErrNoSuchType))

	names, err := b.TypeNames(ctx)
	is.NoErr(err)
	is.Equal(len(names), 0)
}

func TestApplyWritesNothingOnStaleRevisionOrUnknownType(t *testing.T) {
	is, ctx, b := testSetup(t)

	revision, err := b.Revision(ctx, "lakes")
	is.NoErr(err)
	is.Equal(revision, uint64(2)) // created and filled

	put := featurestore.Change{TypeName: "lakes", Put: []*domain.Feature{
		domain.NewFeature("l5", "lakes", map[string]any{"name": "Vättern"}, point(14.5, 58.3)),
	}}

	err = b.Apply(ctx, map[string]uint64{"lakes": revision - 1}, []featurestore.Change{put})
	is.True(errors.Is(err, featurestore.ErrConflict))

	err = b.Apply(ctx, nil, []featurestore.Change{put, {TypeName: "rivers", Delete: []string{"r1"}}})
	is.True(errors.Is(err, featurestore.ErrNoSuchType))

	r, _ := b.Scan(ctx, "lakes", nil)
	features, _ := featurestore.ReadAll(ctx, r)
	is.Equal(len(features), 4)

	is.NoErr(b.Apply(ctx, map[string]uint64{"lakes": revision}, []featurestore.Change{
		{TypeName: "lakes", Put: put.Put, Delete: []string{"l2"}},
	}))

	r, _ = b.Scan(ctx, "lakes", nil)
	features, _ = featurestore.ReadAll(ctx, r)
	is.Equal(len(features), 4)
	is.Equal(features[3].ID, "l5")

	revision, _ = b.Revision(ctx, "lakes")
	is.Equal(revision, uint64(3))
}

func testSetup(t *testing.T) (*is.I, context.Context, *Backend) {
	is := is.New(t)
	ctx := context.Background()

	b := NewBackend()
	is.NoErr(b.CreateSchema(ctx, domain.NewFeatureType("lakes",
		domain.AttributeDescriptor{Name: "name", Type: domain.String},
	)))

	is.NoErr(b.Put(ctx, "lakes", []*domain.Feature{
		domain.NewFeature("l1", "lakes", map[string]any{"name": "Storsjön"}, point(17.2, 62.4)),
		domain.NewFeature("l2", "lakes", map[string]any{"name": "Okänd"}, nil),
		domain.NewFeature("l3", "lakes", map[string]any{"name": "Ljustern"}, point(17.9, 62.9)),
		domain.NewFeature("l4", "lakes", map[string]any{"name": "Mälaren"}, point(17.0, 59.4)),
	}))

	return is, ctx, b
}

func point(lon, lat float64) *geom.Point {
	return geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{lon, lat})
}
