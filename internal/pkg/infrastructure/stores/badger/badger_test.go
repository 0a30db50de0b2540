package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore/filter"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/matryer/is"
	"github.com/twpayne/go-geom"
)

func TestFeaturesKeepInsertionOrder(t *testing.T) {
	is, ctx, store := testSetup(t)

	features := readAll(is, ctx, store, featurestore.NewQuery("beaches"))
	is.Equal(ids(features), []string{"z", "a", "m"})
	is.Equal(features[0].Properties["visits"], int64(3))
}

func TestReplacingKeepsPosition(t *testing.T) {
	is, ctx, store := testSetup(t)

	is.NoErr(store.UpdateFeatures(ctx, "beaches", filter.ID("z"), map[string]any{"visits": 4}))

	features := readAll(is, ctx, store, featurestore.NewQuery("beaches"))
	is.Equal(ids(features), []string{"z", "a", "m"})
	is.Equal(features[0].Properties["visits"], int64(4))
}

func TestSpatialHintSkipsDistantFeatures(t *testing.T) {
	is, ctx, store := testSetup(t)

	q := featurestore.NewQuery("beaches").WithFilter(filter.NewBBox("geometry", 17, 62, 18, 63))
	features := readAll(is, ctx, store, q)
	is.Equal(ids(features), []string{"z", "a"})
}

func TestRemoveAndDeleteSchema(t *testing.T) {
	is, ctx, store := testSetup(t)

	is.NoErr(store.RemoveFeatures(ctx, "beaches", filter.ID("a")))
	is.Equal(ids(readAll(is, ctx, store, featurestore.NewQuery("beaches"))), []string{"z", "m"})

	is.NoErr(store.DeleteSchema(ctx, "beaches"))
	_, err := store.Reader(ctx, featurestore.NewQuery("beaches"))
	is.True(errors.Is(err, featurestore.ErrNoSuchType))

	names, err := store.TypeNames(ctx)
	is.NoErr(err)
	is.Equal(len(names), 0)
}

func TestCreateExistingSchemaFails(t *testing.T) {
	is, ctx, store := testSetup(t)

	err := store.CreateSchema(ctx, domain.NewFeatureType("beaches"))
	is.True(errors.Is(err, featurestore.ErrTypeExists))
}

func TestRevisionSurvivesReopen(t *testing.T) {
	is, ctx := is.New(t), context.Background()
	path := t.TempDir()

	store, err := Open(ctx, "test", path)
	is.NoErr(err)
	is.NoErr(store.CreateSchema(ctx, domain.NewFeatureType("beaches",
		domain.AttributeDescriptor{Name: "name", Type: domain.String},
	)))
	_, err = store.AddFeatures(ctx, "beaches", []*domain.Feature{
		domain.NewFeature("z", "", map[string]any{"name": "Dyket"}, point(17.6, 62.3)),
	})
	is.NoErr(err)
	is.NoErr(store.Close())

	reopened, err := Open(ctx, "test", path)
	is.NoErr(err)
	defer reopened.Close()

	revision, err := reopened.(featurestore.Versioned).Revision(ctx, "beaches")
	is.NoErr(err)
	is.Equal(revision, uint64(2))
}

func TestStaleApplyWritesNothing(t *testing.T) {
	is, ctx, store := testSetup(t)
	versioned := store.(featurestore.Versioned)

	revision, err := versioned.Revision(ctx, "beaches")
	is.NoErr(err)

	is.NoErr(store.RemoveFeatures(ctx, "beaches", filter.ID("m")))

	err = versioned.Apply(ctx, map[string]uint64{"beaches": revision}, []featurestore.Change{
		{TypeName: "beaches", Delete: []string{"z", "a"}},
	})
	is.True(errors.Is(err, featurestore.ErrConflict))
	is.Equal(ids(readAll(is, ctx, store, featurestore.NewQuery("beaches"))), []string{"z", "a"})
}

func testSetup(t *testing.T) (*is.I, context.Context, featurestore.DataStore) {
	is := is.New(t)
	ctx := context.Background()

	store, err := Open(ctx, "test", "")
	is.NoErr(err)
	t.Cleanup(func() { store.Close() })

	is.NoErr(store.CreateSchema(ctx, domain.NewFeatureType("beaches",
		domain.AttributeDescriptor{Name: "name", Type: domain.String},
		domain.AttributeDescriptor{Name: "visits", Type: domain.Integer, Nullable: true},
	)))

	_, err = store.AddFeatures(ctx, "beaches", []*domain.Feature{
		domain.NewFeature("z", "", map[string]any{"name": "Dyket", "visits": 3}, point(17.6, 62.3)),
		domain.NewFeature("a", "", map[string]any{"name": "Vivstavarv"}, point(17.3, 62.45)),
		domain.NewFeature("m", "", map[string]any{"name": "Stockholm"}, point(18.07, 59.33)),
	})
	is.NoErr(err)

	return is, ctx, store
}

func readAll(is *is.I, ctx context.Context, store featurestore.DataStore, q featurestore.Query) []*domain.Feature {
	r, err := store.Reader(ctx, q)
	is.NoErr(err)

	features, err := featurestore.ReadAll(ctx, r)
	is.NoErr(err)
	return features
}

func ids(features []*domain.Feature) []string {
	result := []string{}
	for _, f := range features {
		result = append(result, f.ID)
	}
	return result
}

func point(lon, lat float64) *geom.Point {
	return geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{lon, lat})
}
