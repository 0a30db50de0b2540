package contextbroker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore/filter"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	"github.com/matryer/is"
	"github.com/twpayne/go-geom"
	"go.uber.org/goleak"
)

func TestOpenLoadsEntitiesFromBroker(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	ms := testutils.NewMockServiceThat(
		testutils.Expects(is, expects.AnyInput()),
		testutils.Returns(
			response.Code(http.StatusOK),
			response.ContentType("application/ld+json"),
			response.Body([]byte(beachesJSON)),
		),
	)

	store, err := Open(ctx, "broker", ms.URL(), "", []string{"Beach"}, 0)
	is.NoErr(err)
	defer store.Close()

	count, err := store.Count(ctx, featurestore.NewQuery("Beach"))
	is.NoErr(err)
	is.Equal(count, 2)
}

func TestOpenFailsWhenBrokerIsUnavailable(t *testing.T) {
	is := is.New(t)

	ms := testutils.NewMockServiceThat(
		testutils.Expects(is, expects.AnyInput()),
		testutils.Returns(response.Code(http.StatusInternalServerError)),
	)

	_, err := Open(context.Background(), "broker", ms.URL(), "default", []string{"Beach"}, time.Minute)
	is.True(err != nil)
}

func TestRefreshInfersTypesFromEntities(t *testing.T) {
	is, ctx, b := testSetup(t, beachesJSON)

	names, err := b.TypeNames(ctx)
	is.NoErr(err)
	is.Equal(names, []string{"Beach"})

	ft, err := b.Schema(ctx, "Beach")
	is.NoErr(err)

	a, ok := ft.Attribute("name")
	is.True(ok)
	is.Equal(a.Type, domain.String)

	_, ok = ft.Attribute("type")
	is.True(!ok) // the entity type is the feature type
}

func TestQueryEntitiesWithBBox(t *testing.T) {
	is, ctx, b := testSetup(t, beachesJSON)
	store := featurestore.NewDataStore("broker", b)

	q := featurestore.NewQuery("Beach").WithFilter(filter.NewBBox(domain.DefaultGeometryName, 17.0, 62.0, 18.0, 63.0))
	r, err := store.Reader(ctx, q)
	is.NoErr(err)

	features, err := featurestore.ReadAll(ctx, r)
	is.NoErr(err)
	is.Equal(len(features), 1)
	is.Equal(features[0].ID, "urn:ngsi-ld:Beach:se:sundsvall:facilities:283")
	is.Equal(features[0].Properties["name"], "Stora Läggesta")

	mp, ok := features[0].Geometry.(*geom.MultiPolygon)
	is.True(ok)
	is.Equal(mp.NumPolygons(), 1)
}

func TestEntitiesAreReadOnly(t *testing.T) {
	is, ctx, b := testSetup(t, beachesJSON)
	store := featurestore.NewDataStore("broker", b)

	_, err := store.AddFeatures(ctx, "Beach", []*domain.Feature{
		domain.NewFeature("b1", "Beach", map[string]any{"name": "new"}, nil),
	})
	is.True(errors.Is(err, featurestore.ErrReadOnly))

	err = store.RemoveFeatures(ctx, "Beach", filter.Include)
	is.True(errors.Is(err, featurestore.ErrReadOnly))

	err = store.CreateSchema(ctx, domain.NewFeatureType("Lake"))
	is.True(errors.Is(err, featurestore.ErrReadOnly))
}

func TestFailedRefreshKeepsContent(t *testing.T) {
	is, ctx, b := testSetup(t, beachesJSON)

	b.query = func(ctx context.Context, typeName string, callback func(e entityDTO)) (int, error) {
		return 0, errors.New("broker unavailable")
	}

	_, err := b.refresh(ctx)
	is.True(err != nil)

	r, err := b.Scan(ctx, "Beach", nil)
	is.NoErr(err)
	features, err := featurestore.ReadAll(ctx, r)
	is.NoErr(err)
	is.Equal(len(features), 2)
}

func TestNormalizedEntitiesAreSimplified(t *testing.T) {
	is := is.New(t)

	e := entityDTO{}
	is.NoErr(json.Unmarshal([]byte(normalizedJSON), &e))

	is.Equal(e.ID, "urn:ngsi-ld:WeatherObserved:1")
	is.Equal(e.Type, "WeatherObserved")
	is.Equal(e.Attributes["temperature"], 11.2)
	is.Equal(e.Attributes["dateObserved"], "2023-02-13T08:00:00Z")
	is.Equal(e.Attributes["refDevice"], "urn:ngsi-ld:Device:temp1")

	g, err := decodeLocation(e.Location)
	is.NoErr(err)
	is.Equal(g.(*geom.Point).Coords(), geom.Coord{17.3, 62.4})
}

func TestWatchRefreshesEntities(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	is, ctx, b := testSetup(t, beachesJSON)
	b.interval = 10 * time.Millisecond
	b.tick = time.Millisecond

	var calls atomic.Int32
	b.query = func(ctx context.Context, typeName string, callback func(e entityDTO)) (int, error) {
		calls.Add(1)
		return queryFrom(oneBeachJSON)(ctx, typeName, callback)
	}

	changed := make(chan string, 10)
	b.OnChange(func(typeName string) { changed <- typeName })

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Watch(watchCtx)
	}()

	select {
	case typeName := <-changed:
		is.Equal(typeName, "Beach")
	case <-time.After(5 * time.Second):
		t.Fatal("entities were never refreshed")
	}

	cancel()
	<-done

	is.True(calls.Load() > 0)

	r, err := b.Scan(ctx, "Beach", nil)
	is.NoErr(err)
	features, err := featurestore.ReadAll(ctx, r)
	is.NoErr(err)
	is.Equal(len(features), 1)
}

func testSetup(t *testing.T, entities string) (*is.I, context.Context, *Backend) {
	is := is.New(t)
	ctx := context.Background()

	b := newBackend(queryFrom(entities), []string{"Beach"}, time.Minute)
	_, err := b.refresh(ctx)
	is.NoErr(err)

	return is, ctx, b
}

func queryFrom(entities string) queryFunc {
	return func(ctx context.Context, typeName string, callback func(e entityDTO)) (int, error) {
		result := []entityDTO{}
		if err := json.Unmarshal([]byte(entities), &result); err != nil {
			return 0, err
		}

		count := 0
		for _, e := range result {
			if e.Type == typeName {
				callback(e)
				count++
			}
		}
		return count, nil
	}
}

const beachesJSON string = `[{
	"@context": ["https://raw.githubusercontent.com/diwise/context-broker/main/assets/jsonldcontexts/default-context.jsonld"],
	"id": "urn:ngsi-ld:Beach:se:sundsvall:facilities:283",
	"type": "Beach",
	"name": "Stora Läggesta",
	"description": "Liten strand vid Läggesta.",
	"location": {"type": "MultiPolygon", "coordinates": [[[[17.47263962458644, 62.435152221329254], [17.473786216873332, 62.43536925656754], [17.474885857246488, 62.43543825037522], [17.47263962458644, 62.435152221329254]]]]}
},{
	"@context": ["https://raw.githubusercontent.com/diwise/context-broker/main/assets/jsonldcontexts/default-context.jsonld"],
	"id": "urn:ngsi-ld:Beach:se:sundsvall:facilities:650",
	"type": "Beach",
	"name": "Slädavikens havsbad",
	"refSeeAlso": ["urn:ngsi-ld:WaterQualityObserved:SE0712281000003473"],
	"location": {"type": "Point", "coordinates": [17.1, 61.9]}
}]`

const oneBeachJSON string = `[{
	"id": "urn:ngsi-ld:Beach:se:sundsvall:facilities:650",
	"type": "Beach",
	"name": "Slädavikens havsbad",
	"location": {"type": "Point", "coordinates": [17.1, 61.9]}
}]`

const normalizedJSON string = `{
	"id": "urn:ngsi-ld:WeatherObserved:1",
	"type": "WeatherObserved",
	"dateObserved": {"type": "Property", "value": {"@type": "DateTime", "@value": "2023-02-13T08:00:00Z"}},
	"temperature": {"type": "Property", "value": 11.2},
	"refDevice": {"type": "Relationship", "object": "urn:ngsi-ld:Device:temp1"},
	"location": {"type": "GeoProperty", "value": {"type": "Point", "coordinates": [17.3, 62.4]}}
}`
