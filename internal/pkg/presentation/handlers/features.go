package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore/filter"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/codec"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("geotoolkit/api")

const (
	DefaultLimit int = 100
	MaxLimit     int = 10000

	maxBodySize int64 = 16 << 20
)

var errBadRequest = errors.New("bad request")

type collectionInfo struct {
	ID           string                       `json:"id"`
	Store        string                       `json:"store"`
	GeometryName string                       `json:"geometryName"`
	CRS          string                       `json:"crs"`
	Attributes   []domain.AttributeDescriptor `json:"attributes"`
	Count        *int                         `json:"count,omitempty"`
	BBox         []float64                    `json:"bbox,omitempty"`
}

type featureCollection struct {
	Type           string             `json:"type"`
	NumberMatched  int                `json:"numberMatched"`
	NumberReturned int                `json:"numberReturned"`
	Features       []*geojson.Feature `json:"features"`
}

// findStore returns the first store that holds the feature type
func findStore(ctx context.Context, stores []featurestore.DataStore, typeName string) (featurestore.DataStore, *domain.FeatureType, error) {
	for _, s := range stores {
		ft, err := s.Schema(ctx, typeName)
		if errors.Is(err, featurestore.ErrNoSuchType) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return s, ft, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", featurestore.ErrNoSuchType, typeName)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, featurestore.ErrNoSuchType), errors.Is(err, featurestore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest), errors.Is(err, featurestore.ErrInvalidQuery),
		errors.Is(err, domain.ErrInvalidFeature), errors.Is(err, domain.ErrUnsupportedCRS):
		return http.StatusBadRequest
	case errors.Is(err, featurestore.ErrConflict), errors.Is(err, featurestore.ErrTypeExists):
		return http.StatusConflict
	case errors.Is(err, featurestore.ErrReadOnly):
		return http.StatusMethodNotAllowed
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, contentType string, statusCode int, body any) {
	responseBody, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Type", contentType)
	w.WriteHeader(statusCode)
	w.Write(responseBody)
}

func NewRetrieveCollectionsHandler(logger zerolog.Logger, stores []featurestore.DataStore) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "retrieve-collections")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		collections := []collectionInfo{}
		seen := map[string]bool{}

		for _, s := range stores {
			var typeNames []string
			typeNames, err = s.TypeNames(ctx)
			if err != nil {
				log.Error().Err(err).Msgf("failed to list types of store %s", s.Name())
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			for _, typeName := range typeNames {
				if seen[typeName] {
					continue
				}
				seen[typeName] = true

				var ft *domain.FeatureType
				if ft, err = s.Schema(ctx, typeName); err != nil {
					log.Error().Err(err).Msgf("failed to read schema of %s", typeName)
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				collections = append(collections, describe(s, ft))
			}
		}

		writeJSON(w, log, "application/json", http.StatusOK, struct {
			Data []collectionInfo `json:"data"`
		}{collections})
	})
}

func describe(s featurestore.DataStore, ft *domain.FeatureType) collectionInfo {
	return collectionInfo{
		ID:           ft.Name,
		Store:        s.Name(),
		GeometryName: ft.Geometry(),
		CRS:          ft.CRS,
		Attributes:   ft.Attributes,
	}
}

func NewRetrieveCollectionHandler(logger zerolog.Logger, stores []featurestore.DataStore) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "retrieve-collection")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		typeName, _ := url.QueryUnescape(chi.URLParam(r, "type"))

		store, ft, err := findStore(ctx, stores, typeName)
		if err != nil {
			w.WriteHeader(statusOf(err))
			return
		}

		info := describe(store, ft)
		q := featurestore.NewQuery(typeName)

		count, err := store.Count(ctx, q)
		if err != nil {
			log.Error().Err(err).Msgf("failed to count features of %s", typeName)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		info.Count = &count

		q.CRS = domain.WGS84.Code
		bounds, err := store.Bounds(ctx, q)
		if err != nil {
			log.Error().Err(err).Msgf("failed to compute extent of %s", typeName)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if bounds != nil {
			info.BBox = []float64{bounds.Min(0), bounds.Min(1), bounds.Max(0), bounds.Max(1)}
		}

		writeJSON(w, log, "application/json", http.StatusOK, struct {
			Data collectionInfo `json:"data"`
		}{info})
	})
}

var reservedParameters = map[string]bool{
	"bbox": true, "limit": true, "offset": true, "sortby": true, "crs": true, "properties": true, "f": true,
}

// queryFromParameters turns the query string of an items request into a
// feature query. Parameters that are not reserved filter on equality with
// the attribute of the same name.
func queryFromParameters(params url.Values, ft *domain.FeatureType) (featurestore.Query, error) {
	q := featurestore.NewQuery(ft.Name)
	q.MaxFeatures = DefaultLimit

	if v := params.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return q, fmt.Errorf("%w: limit must be a positive integer", errBadRequest)
		}
		q.MaxFeatures = min(limit, MaxLimit)
	}

	if v := params.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return q, fmt.Errorf("%w: offset must be zero or more", errBadRequest)
		}
		q.StartIndex = offset
	}

	filters := []filter.Filter{}

	if v := params.Get("bbox"); v != "" {
		bbox, err := bboxFilter(v, ft)
		if err != nil {
			return q, err
		}
		filters = append(filters, bbox)
	}

	if v := params.Get("sortby"); v != "" {
		q.SortBy = featurestore.ParseSortBy(v)
		for _, sb := range q.SortBy {
			if _, ok := ft.Attribute(sb.Property); !ok && sb.Property != domain.IDProperty {
				return q, fmt.Errorf("%w: unable to sort by unknown attribute %s", errBadRequest, sb.Property)
			}
		}
	}

	if v := params.Get("properties"); v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				q.Properties = append(q.Properties, p)
			}
		}
	}

	q.CRS = params.Get("crs")

	for name, values := range params {
		if reservedParameters[name] {
			continue
		}
		if _, ok := ft.Attribute(name); !ok {
			return q, fmt.Errorf("%w: unknown parameter %s", errBadRequest, name)
		}
		filters = append(filters, filter.PropertyEquals(name, values[0]))
	}

	q.Filter = filter.AllOf(filters...)

	return q, q.Validate()
}

// bboxFilter parses minLon,minLat,maxLon,maxLat into a filter in the
// native crs of the feature type
func bboxFilter(value string, ft *domain.FeatureType) (filter.Filter, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w: bbox needs four comma separated numbers", errBadRequest)
	}

	corners := [4]float64{}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid bbox coordinate %q", errBadRequest, p)
		}
		corners[i] = f
	}

	if corners[0] > corners[2] || corners[1] > corners[3] {
		return nil, fmt.Errorf("%w: bbox minimum exceeds its maximum", errBadRequest)
	}

	native, err := domain.LookupCRS(ft.CRS)
	if err != nil {
		return nil, err
	}

	transform, err := domain.Transform(domain.WGS84, native)
	if err != nil {
		return nil, err
	}

	minX, minY := transform(corners[0], corners[1])
	maxX, maxY := transform(corners[2], corners[3])

	return filter.NewBBox(ft.Geometry(), minX, minY, maxX, maxY), nil
}

func NewRetrieveFeaturesHandler(logger zerolog.Logger, stores []featurestore.DataStore) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "retrieve-features")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		typeName, _ := url.QueryUnescape(chi.URLParam(r, "type"))

		store, ft, err := findStore(ctx, stores, typeName)
		if err != nil {
			w.WriteHeader(statusOf(err))
			return
		}

		q, err := queryFromParameters(r.URL.Query(), ft)
		if err != nil {
			log.Error().Err(err).Msg("bad request")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		matched, err := store.Count(ctx, q.Unpaged())
		if err != nil {
			log.Error().Err(err).Msgf("failed to count features of %s", typeName)
			w.WriteHeader(statusOf(err))
			return
		}

		reader, err := store.Reader(ctx, q)
		if err != nil {
			log.Error().Err(err).Msgf("failed to read features of %s", typeName)
			w.WriteHeader(statusOf(err))
			return
		}

		features, err := featurestore.ReadAll(ctx, reader)
		if err != nil {
			log.Error().Err(err).Msgf("failed to read features of %s", typeName)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		fc := featureCollection{
			Type:           "FeatureCollection",
			NumberMatched:  matched,
			NumberReturned: len(features),
			Features:       make([]*geojson.Feature, 0, len(features)),
		}
		for _, f := range features {
			fc.Features = append(fc.Features, codec.ToGeoJSON(f))
		}

		writeJSON(w, log, "application/geo+json", http.StatusOK, fc)
	})
}

func NewRetrieveFeatureByIDHandler(logger zerolog.Logger, stores []featurestore.DataStore) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "retrieve-feature-by-id")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		typeName, _ := url.QueryUnescape(chi.URLParam(r, "type"))
		featureID, _ := url.QueryUnescape(chi.URLParam(r, "id"))
		if featureID == "" {
			err = fmt.Errorf("no feature id supplied in path")
			log.Error().Err(err).Msg("bad request")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		store, _, err := findStore(ctx, stores, typeName)
		if err != nil {
			w.WriteHeader(statusOf(err))
			return
		}

		q := featurestore.NewQuery(typeName).WithFilter(filter.ID(featureID))
		q.CRS = r.URL.Query().Get("crs")

		reader, err := store.Reader(ctx, q)
		if err != nil {
			log.Error().Err(err).Msgf("failed to read feature %s", featureID)
			w.WriteHeader(statusOf(err))
			return
		}

		features, err := featurestore.ReadAll(ctx, reader)
		if err != nil {
			log.Error().Err(err).Msgf("failed to read feature %s", featureID)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if len(features) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		writeJSON(w, log, "application/geo+json", http.StatusOK, codec.ToGeoJSON(features[0]))
	})
}

func NewDeleteFeatureHandler(logger zerolog.Logger, stores []featurestore.DataStore) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "delete-feature")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		typeName, _ := url.QueryUnescape(chi.URLParam(r, "type"))
		featureID, _ := url.QueryUnescape(chi.URLParam(r, "id"))

		store, _, err := findStore(ctx, stores, typeName)
		if err != nil {
			w.WriteHeader(statusOf(err))
			return
		}

		byID := filter.ID(featureID)

		count, err := store.Count(ctx, featurestore.NewQuery(typeName).WithFilter(byID))
		if err != nil {
			w.WriteHeader(statusOf(err))
			return
		}
		if count == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		session := featurestore.NewSession(store)
		if err = session.RemoveFeatures(ctx, typeName, byID); err == nil {
			err = session.Commit(ctx)
		}

		if err != nil {
			log.Error().Err(err).Msgf("failed to delete feature %s", featureID)
			w.WriteHeader(statusOf(err))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

// NewCreateFeaturesHandler accepts a GeoJSON Feature or FeatureCollection
// and adds every feature in one commit
func NewCreateFeaturesHandler(logger zerolog.Logger, stores []featurestore.DataStore) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "create-features")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		typeName, _ := url.QueryUnescape(chi.URLParam(r, "type"))

		store, ft, err := findStore(ctx, stores, typeName)
		if err != nil {
			w.WriteHeader(statusOf(err))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			log.Error().Err(err).Msg("failed to read request body")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		decoded, _, err := codec.DecodeFeatures(body)
		if err != nil {
			log.Error().Err(err).Msg("failed to decode features")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		features := make([]*domain.Feature, 0, len(decoded))
		ids := []string{}
		for _, gf := range decoded {
			features = append(features, codec.FromGeoJSON(ft, gf))
			if gf.ID != "" {
				ids = append(ids, gf.ID)
			}
		}

		if len(ids) > 0 {
			var existing int
			existing, err = store.Count(ctx, featurestore.NewQuery(typeName).WithFilter(filter.ID(ids...)))
			if err != nil {
				w.WriteHeader(statusOf(err))
				return
			}
			if existing > 0 {
				err = fmt.Errorf("%w: %d of the features already exist", featurestore.ErrConflict, existing)
				log.Error().Err(err).Msg("conflict")
				w.WriteHeader(http.StatusConflict)
				return
			}
		}

		session := featurestore.NewSession(store)

		created, err := session.AddFeatures(ctx, typeName, features)
		if err == nil {
			err = session.Commit(ctx)
		}

		if err != nil {
			log.Error().Err(err).Msgf("failed to add features to %s", typeName)
			w.WriteHeader(statusOf(err))
			return
		}

		if len(created) == 1 {
			w.Header().Add("Location", fmt.Sprintf("/api/collections/%s/items/%s", url.PathEscape(typeName), url.PathEscape(created[0])))
		}

		writeJSON(w, log, "application/json", http.StatusCreated, struct {
			IDs []string `json:"ids"`
		}{created})
	})
}
