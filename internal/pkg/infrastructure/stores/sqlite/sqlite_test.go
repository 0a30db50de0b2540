package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore/filter"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/matryer/is"
	"github.com/twpayne/go-geom"
)

func TestDatabaseConnection(t *testing.T) {
	is := is.New(t)

	b, err := NewBackend(context.Background(), NewSQLiteConnector(""))
	is.NoErr(err)
	is.NoErr(b.Close())
}

func TestFeaturesArePersisted(t *testing.T) {
	is, ctx := is.New(t), context.Background()
	path := filepath.Join(t.TempDir(), "features.db")

	store, err := Open(ctx, "test", path)
	is.NoErr(err)
	createBeaches(is, ctx, store)
	is.NoErr(store.Close())

	reopened, err := Open(ctx, "test", path)
	is.NoErr(err)
	defer reopened.Close()

	features := readAll(is, ctx, reopened, featurestore.NewQuery("beaches"))
	is.Equal(len(features), 3)
	is.Equal(features[0].ID, "z")
	is.Equal(features[0].Properties["visits"], int64(3))
	is.Equal(features[0].Geometry.FlatCoords(), []float64{17.6, 62.3})
	is.True(features[1].Geometry == nil)
}

func TestUpsertKeepsRowOrder(t *testing.T) {
	is, ctx, store := testSetup(t)

	is.NoErr(store.UpdateFeatures(ctx, "beaches", filter.ID("z"), map[string]any{"name": "Dyket Norra"}))

	features := readAll(is, ctx, store, featurestore.NewQuery("beaches"))
	is.Equal(ids(features), []string{"z", "a", "m"})
	is.Equal(features[0].Properties["name"], "Dyket Norra")
}

func TestBoundingBoxIsAnsweredByTheDatabase(t *testing.T) {
	is, ctx, store := testSetup(t)

	q := featurestore.NewQuery("beaches").WithFilter(filter.NewBBox("geometry", 17, 62, 18, 63))
	is.Equal(ids(readAll(is, ctx, store, q)), []string{"z"})
}

func TestJoinWithinTheSameDatabase(t *testing.T) {
	is, ctx, store := testSetup(t)

	is.NoErr(store.CreateSchema(ctx, domain.NewFeatureType("samples",
		domain.AttributeDescriptor{Name: "beach", Type: domain.String},
	)))
	_, err := store.AddFeatures(ctx, "samples", []*domain.Feature{
		domain.NewFeature("s1", "", map[string]any{"beach": "m"}, nil),
	})
	is.NoErr(err)

	q := featurestore.Query{
		TypeName: "beaches",
		Join:     &featurestore.Join{TypeName: "samples", LeftProperty: domain.IDProperty, RightProperty: "beach"},
	}
	is.Equal(ids(readAll(is, ctx, store, q)), []string{"m.s1"})
}

func TestSchemaErrors(t *testing.T) {
	is, ctx, store := testSetup(t)

	err := store.CreateSchema(ctx, domain.NewFeatureType("beaches"))
	is.True(errors.Is(err, featurestore.ErrTypeExists))

	err = store.CreateSchema(ctx, domain.NewFeatureType("bad name; drop table"))
	is.True(err != nil)

	is.NoErr(store.DeleteSchema(ctx, "beaches"))
	_, err = store.Schema(ctx, "beaches")
	is.True(errors.Is(err, featurestore.ErrNoSuchType))
}

func TestRevisionsAreSharedThroughTheDatabase(t *testing.T) {
	is, ctx := is.New(t), context.Background()
	path := filepath.Join(t.TempDir(), "features.db")

	store, err := Open(ctx, "test", path)
	is.NoErr(err)
	defer store.Close()
	createBeaches(is, ctx, store)

	other, err := Open(ctx, "other", path)
	is.NoErr(err)
	defer other.Close()

	session := featurestore.NewSession(store)
	is.NoErr(session.UpdateFeatures(ctx, "beaches", filter.ID("z"), map[string]any{"visits": 4}))

	is.NoErr(other.RemoveFeatures(ctx, "beaches", filter.ID("a")))

	err = session.Commit(ctx)
	is.True(errors.Is(err, featurestore.ErrConflict))

	revision, err := store.(featurestore.Versioned).Revision(ctx, "beaches")
	is.NoErr(err)
	is.Equal(revision, uint64(3)) // created, filled and changed by the other writer

	z := readAll(is, ctx, store, featurestore.Query{TypeName: "beaches", Filter: filter.ID("z")})
	is.Equal(z[0].Properties["visits"], int64(3))
}

func TestApplyIsAllOrNothing(t *testing.T) {
	is, ctx := is.New(t), context.Background()

	b, err := NewBackend(ctx, NewSQLiteConnector(""))
	is.NoErr(err)
	defer b.Close()

	store := featurestore.NewDataStore("test", b)
	createBeaches(is, ctx, store)

	err = b.Apply(ctx, nil, []featurestore.Change{
		{TypeName: "beaches", Delete: []string{"z", "a", "m"}},
		{TypeName: "lakes", Delete: []string{"l1"}},
	})
	is.True(errors.Is(err, featurestore.ErrNoSuchType))

	count, err := store.Count(ctx, featurestore.NewQuery("beaches"))
	is.NoErr(err)
	is.Equal(count, 3)

	revision, err := b.Revision(ctx, "beaches")
	is.NoErr(err)
	is.Equal(revision, uint64(2))
}

func testSetup(t *testing.T) (*is.I, context.Context, featurestore.DataStore) {
	is := is.New(t)
	ctx := context.Background()

	store, err := Open(ctx, "test", "")
	is.NoErr(err)
	t.Cleanup(func() { store.Close() })

	createBeaches(is, ctx, store)
	return is, ctx, store
}

func createBeaches(is *is.I, ctx context.Context, store featurestore.DataStore) {
	is.NoErr(store.CreateSchema(ctx, domain.NewFeatureType("beaches",
		domain.AttributeDescriptor{Name: "name", Type: domain.String},
		domain.AttributeDescriptor{Name: "visits", Type: domain.Integer, Nullable: true},
	)))

	_, err := store.AddFeatures(ctx, "beaches", []*domain.Feature{
		domain.NewFeature("z", "", map[string]any{"name": "Dyket", "visits": 3}, point(17.6, 62.3)),
		domain.NewFeature("a", "", map[string]any{"name": "Okänd"}, nil),
		domain.NewFeature("m", "", map[string]any{"name": "Stockholm"}, point(18.07, 59.33)),
	})
	is.NoErr(err)
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
