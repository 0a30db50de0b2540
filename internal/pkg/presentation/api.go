package presentation

import (
	"compress/flate"
	"context"
	"net/http"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/catalog"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/presentation/handlers"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

type API interface {
	Start(port string) error
}

type featureAPI struct {
	router chi.Router
	log    zerolog.Logger
}

func NewAPI(ctx context.Context, r chi.Router, stores []featurestore.DataStore, svc catalog.CatalogService) API {
	return newFeatureAPI(ctx, r, stores, svc)
}

func newFeatureAPI(ctx context.Context, r chi.Router, stores []featurestore.DataStore, svc catalog.CatalogService) *featureAPI {
	log := logging.GetFromContext(ctx)

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
		Debug:            false,
	}).Handler)

	// Enable gzip compression for our responses
	compressor := middleware.NewCompressor(
		flate.DefaultCompression,
		"application/json", "application/geo+json", "application/xml",
	)
	r.Use(compressor.Handler)
	r.Use(otelchi.Middleware("featurestore-api", otelchi.WithChiRoutes(r)))

	a := &featureAPI{
		router: r,
		log:    log,
	}

	a.addFeatureHandlers(r, log, stores)
	a.addProbeHandlers(r)

	if svc != nil {
		r.Get("/csw", handlers.NewCatalogHandler(log, svc))
		r.Post("/csw", handlers.NewCatalogHandler(log, svc))
	}

	return a
}

func (a *featureAPI) Start(port string) error {
	a.log.Info().Msgf("Starting featurestore-api on port:%s", port)
	return http.ListenAndServe(":"+port, a.router)
}

func (a *featureAPI) addFeatureHandlers(r chi.Router, log zerolog.Logger, stores []featurestore.DataStore) {
	r.Route("/api/collections", func(r chi.Router) {
		r.Get("/", handlers.NewRetrieveCollectionsHandler(log, stores))
		r.Get("/{type}", handlers.NewRetrieveCollectionHandler(log, stores))
		r.Get("/{type}/items", handlers.NewRetrieveFeaturesHandler(log, stores))
		r.Post("/{type}/items", handlers.NewCreateFeaturesHandler(log, stores))
		r.Get("/{type}/items/{id}", handlers.NewRetrieveFeatureByIDHandler(log, stores))
		r.Delete("/{type}/items/{id}", handlers.NewDeleteFeatureHandler(log, stores))
	})
}

func (a *featureAPI) addProbeHandlers(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
