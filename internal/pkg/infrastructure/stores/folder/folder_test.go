package folder_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/folder"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/geojson"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/shapefile"
	"github.com/matryer/is"
	"github.com/twpayne/go-geom"
	"go.uber.org/goleak"
)

const pointsJSON string = `{"type":"FeatureCollection","features":[
	{"type":"Feature","id":"p1","geometry":{"type":"Point","coordinates":[17.3,62.4]},"properties":{"name":"one"}}
]}`

func TestFolderLoadsEveryKnownFile(t *testing.T) {
	is, ctx, dir := testSetup(t)

	is.NoErr(os.WriteFile(filepath.Join(dir, "points.geojson"), []byte(pointsJSON), 0644))
	is.NoErr(os.WriteFile(filepath.Join(dir, "other.geojson"), []byte(pointsJSON), 0644))
	is.NoErr(os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not features"), 0644))

	b, err := folder.New(ctx, dir, geojson.Format{}, shapefile.Format{})
	is.NoErr(err)

	names, err := b.TypeNames(ctx)
	is.NoErr(err)
	is.Equal(names, []string{"other", "points"})
}

func TestFolderWritesNewTypesWithFirstFormat(t *testing.T) {
	is, ctx, dir := testSetup(t)

	b, err := folder.New(ctx, dir, shapefile.Format{}, geojson.Format{})
	is.NoErr(err)
	store := featurestore.NewDataStore("test", b)

	is.NoErr(store.CreateSchema(ctx, domain.NewFeatureType("wells", domain.AttributeDescriptor{Name: "name", Type: domain.String})))
	_, err = store.AddFeatures(ctx, "wells", []*domain.Feature{
		domain.NewFeature("", "", map[string]any{"name": "Kallkällan"}, geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{17.1, 62.2})),
	})
	is.NoErr(err)

	_, err = os.Stat(filepath.Join(dir, "wells.shp"))
	is.NoErr(err)
	is.Equal(b.Files(), []string{filepath.Join(dir, "wells.shp")})

	is.NoErr(store.DeleteSchema(ctx, "wells"))
	_, err = os.Stat(filepath.Join(dir, "wells.dbf"))
	is.True(os.IsNotExist(err))
}

func TestWatchPicksUpExternalChanges(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	is, ctx, dir := testSetup(t)

	b, err := folder.New(ctx, dir, geojson.Format{})
	is.NoErr(err)
	store := featurestore.NewDataStore("test", b)

	changed := make(chan string, 10)
	b.OnChange(func(typeName string) { changed <- typeName })

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		featurestore.Watch(watchCtx, store)
	}()

	// give the watcher time to register the directory
	time.Sleep(200 * time.Millisecond)
	is.NoErr(os.WriteFile(filepath.Join(dir, "points.geojson"), []byte(pointsJSON), 0644))

	select {
	case typeName := <-changed:
		is.Equal(typeName, "points")
	case <-time.After(5 * time.Second):
		t.Fatal("no change was reported")
	}

	count, err := store.Count(ctx, featurestore.NewQuery("points"))
	is.NoErr(err)
	is.Equal(count, 1)

	revision, err := store.(featurestore.Versioned).Revision(ctx, "points")
	is.NoErr(err)
	is.True(revision > 0)

	cancel()
	<-done
}

func testSetup(t *testing.T) (*is.I, context.Context, string) {
	return is.New(t), context.Background(), t.TempDir()
}
