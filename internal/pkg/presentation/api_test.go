package presentation

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/catalog"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain/csw"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/memory"
	"github.com/go-chi/chi/v5"
	"github.com/matryer/is"
)

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

func NewAppForTesting(t *testing.T, svc catalog.CatalogService) (*is.I, *httptest.Server) {
	is := is.New(t)
	ctx := context.Background()

	store := memory.New("test")
	is.NoErr(store.CreateSchema(ctx, domain.NewFeatureType("places",
		domain.AttributeDescriptor{Name: "name", Type: domain.String},
	)))
	_, err := store.AddFeatures(ctx, "places", []*domain.Feature{
		domain.NewFeature("p1", "places", map[string]any{"name": "Sundsvall"}, nil),
	})
	is.NoErr(err)

	r := chi.NewRouter()
	newFeatureAPI(ctx, r, []featurestore.DataStore{store}, svc)

	return is, httptest.NewServer(r)
}

func NewTestRequest(is *is.I, ts *httptest.Server, method, path string, body io.Reader) (*http.Response, string) {
	req, _ := http.NewRequest(method, ts.URL+path, body)
	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	respBody, _ := io.ReadAll(resp.Body)
	defer resp.Body.Close()

	return resp, string(respBody)
}

func TestHealthProbe(t *testing.T) {
	is, ts := NewAppForTesting(t, nil)
	defer ts.Close()

	resp, _ := NewTestRequest(is, ts, http.MethodGet, "/health", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
}

func TestCollectionRoutes(t *testing.T) {
	is, ts := NewAppForTesting(t, nil)
	defer ts.Close()

	resp, body := NewTestRequest(is, ts, http.MethodGet, "/api/collections", nil)
	is.Equal(resp.StatusCode, http.StatusOK) // Request failed, status code not OK
	is.True(strings.Contains(body, `"id":"places"`))

	resp, body = NewTestRequest(is, ts, http.MethodGet, "/api/collections/places/items/p1", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.Contains(body, "Sundsvall"))

	resp, _ = NewTestRequest(is, ts, http.MethodDelete, "/api/collections/places/items/p1", nil)
	is.Equal(resp.StatusCode, http.StatusNoContent)

	resp, _ = NewTestRequest(is, ts, http.MethodGet, "/api/collections/places/items/p1", nil)
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestCatalogRoutesAreOnlyAddedWithACatalog(t *testing.T) {
	is, ts := NewAppForTesting(t, nil)
	defer ts.Close()

	resp, _ := NewTestRequest(is, ts, http.MethodGet, "/csw?service=CSW&request=GetCapabilities", nil)
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestCatalogRoutes(t *testing.T) {
	svc := &catalog.CatalogServiceMock{
		ExecuteFunc: func(ctx context.Context, request any) (any, error) {
			return &csw.GetRecordsResponse{Version: csw.Version}, nil
		},
	}

	is, ts := NewAppForTesting(t, svc)
	defer ts.Close()

	resp, body := NewTestRequest(is, ts, http.MethodGet, "/csw?service=CSW&request=GetRecords&typeNames=csw:Record", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.Contains(body, "GetRecordsResponse"))

	resp, _ = NewTestRequest(is, ts, http.MethodPost, "/csw",
		strings.NewReader(`<csw:GetCapabilities xmlns:csw="http://www.opengis.net/cat/csw/2.0.2" service="CSW"/>`))
	is.Equal(resp.StatusCode, http.StatusOK)

	is.Equal(len(svc.ExecuteCalls()), 2)
}
