package contextbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/codec"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/memory"
	contextbroker "github.com/diwise/context-broker/pkg/ngsild/client"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("geotoolkit/stores/contextbroker")

const (
	DefaultTenant          string        = "default"
	DefaultRefreshInterval time.Duration = 5 * time.Minute
)

type queryFunc func(ctx context.Context, typeName string, callback func(e entityDTO)) (int, error)

// Backend serves the entities of a set of NGSI-LD types as read only
// feature types. The entities are kept in memory and refreshed from the
// broker for as long as Watch runs.
type Backend struct {
	query queryFunc
	types []string

	interval time.Duration
	retry    time.Duration
	tick     time.Duration

	mu       sync.RWMutex
	mem      *memory.Backend
	onChange []func(typeName string)
}

// Open loads the entities of the given types from the broker
func Open(ctx context.Context, name, brokerURL, tenant string, types []string, interval time.Duration) (featurestore.DataStore, error) {
	if tenant == "" {
		tenant = DefaultTenant
	}

	query := func(ctx context.Context, typeName string, callback func(e entityDTO)) (int, error) {
		return contextbroker.QueryEntities(ctx, brokerURL, tenant, typeName, nil, callback)
	}

	b := newBackend(query, types, interval)
	if _, err := b.refresh(ctx); err != nil {
		return nil, err
	}

	return featurestore.NewDataStore(name, b), nil
}

func newBackend(query queryFunc, types []string, interval time.Duration) *Backend {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	return &Backend{
		query:    query,
		types:    types,
		interval: interval,
		retry:    10 * time.Second,
		tick:     time.Second,
		mem:      memory.NewBackend(),
	}
}

// refresh replaces the content of every type in one go. Nothing changes
// when one of the types fails to load.
func (b *Backend) refresh(ctx context.Context) (count int, err error) {
	ctx, span := tracer.Start(ctx, "refresh-entities")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetFromContext(ctx)
	mem := memory.NewBackend()

	for _, typeName := range b.types {
		entities := []*geojson.Feature{}

		_, err = b.query(ctx, typeName, func(e entityDTO) {
			gf := &geojson.Feature{ID: e.ID, Properties: e.Attributes}

			if len(e.Location) > 0 {
				g, err := decodeLocation(e.Location)
				if err != nil {
					log.Warn().Err(err).Msgf("ignoring location of %s", e.ID)
				}
				gf.Geometry = g
			}

			entities = append(entities, gf)
		})
		if err != nil {
			err = fmt.Errorf("failed to retrieve %s entities from context broker: %w", typeName, err)
			return 0, err
		}

		schema := codec.InferSchema(typeName, entities)
		if err = mem.CreateSchema(ctx, schema); err != nil {
			return 0, err
		}

		features := make([]*domain.Feature, 0, len(entities))
		for _, gf := range entities {
			features = append(features, codec.FromGeoJSON(schema, gf))
		}

		if err = mem.Put(ctx, typeName, features); err != nil {
			return 0, err
		}

		count += len(features)
	}

	b.mu.Lock()
	b.mem = mem
	listeners := append([]func(string){}, b.onChange...)
	b.mu.Unlock()

	for _, typeName := range b.types {
		for _, fn := range listeners {
			fn(typeName)
		}
	}

	return count, nil
}

// Watch refreshes the entities on every interval, or sooner after a failed
// refresh, until the context is cancelled
func (b *Backend) Watch(ctx context.Context) error {
	logger := logging.GetFromContext(ctx)

	nextRefreshTime := time.Now().Add(b.interval)

	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("context broker refresh exiting")
			return nil
		case now := <-ticker.C:
			if now.Before(nextRefreshTime) {
				continue
			}

			rctx, span := tracer.Start(ctx, "watch-entities")
			_, rctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, rctx)

			count, err := b.refresh(rctx)
			if err != nil {
				log.Error().Err(err).Msg("failed to refresh entities")
				nextRefreshTime = time.Now().Add(b.retry)
			} else {
				log.Info().Msgf("refreshed %d entities", count)
				nextRefreshTime = time.Now().Add(b.interval)
			}

			tracing.RecordAnyErrorAndEndSpan(err, span)
		}
	}
}

func (b *Backend) OnChange(fn func(typeName string)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.onChange = append(b.onChange, fn)
}

func (b *Backend) current() *memory.Backend {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.mem
}

func (b *Backend) TypeNames(ctx context.Context) ([]string, error) {
	return b.current().TypeNames(ctx)
}

func (b *Backend) Schema(ctx context.Context, typeName string) (*domain.FeatureType, error) {
	return b.current().Schema(ctx, typeName)
}

func (b *Backend) Scan(ctx context.Context, typeName string, hint *geom.Bounds) (featurestore.FeatureReader, error) {
	return b.current().Scan(ctx, typeName, hint)
}

func (b *Backend) CreateSchema(ctx context.Context, ft *domain.FeatureType) error {
	return fmt.Errorf("%w: entity types are defined by the context broker", featurestore.ErrReadOnly)
}

func (b *Backend) DeleteSchema(ctx context.Context, typeName string) error {
	return fmt.Errorf("%w: entity types are defined by the context broker", featurestore.ErrReadOnly)
}

func (b *Backend) Put(ctx context.Context, typeName string, features []*domain.Feature) error {
	return fmt.Errorf("%w: %s entities can not be modified", featurestore.ErrReadOnly, typeName)
}

func (b *Backend) Delete(ctx context.Context, typeName string, ids []string) error {
	return fmt.Errorf("%w: %s entities can not be modified", featurestore.ErrReadOnly, typeName)
}

func (b *Backend) Close() error {
	return nil
}

// entityDTO holds an entity in either the simplified or the normalized
// NGSI-LD representation
type entityDTO struct {
	ID         string
	Type       string
	Location   json.RawMessage
	Attributes map[string]any
}

func (e *entityDTO) UnmarshalJSON(data []byte) error {
	members := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}

	e.Attributes = map[string]any{}

	for name, raw := range members {
		var err error

		switch name {
		case "@context":
			continue
		case "id":
			err = json.Unmarshal(raw, &e.ID)
		case "type":
			err = json.Unmarshal(raw, &e.Type)
		case "location":
			e.Location = raw
		default:
			var v any
			if err = json.Unmarshal(raw, &v); err == nil {
				e.Attributes[name] = simplify(v)
			}
		}

		if err != nil {
			return fmt.Errorf("invalid entity member %s: %w", name, err)
		}
	}

	return nil
}

// simplify turns normalized properties and relationships as well as typed
// values like {"@type": "DateTime", "@value": "..."} into plain values
func simplify(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	if value, ok := m["@value"]; ok {
		return value
	}

	switch m["type"] {
	case "Property", "GeoProperty":
		return simplify(m["value"])
	case "Relationship":
		return m["object"]
	}

	return v
}

func decodeLocation(raw json.RawMessage) (geom.T, error) {
	property := struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}{}
	if err := json.Unmarshal(raw, &property); err != nil {
		return nil, err
	}
	if property.Type == "GeoProperty" {
		raw = property.Value
	}

	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return g, nil
}
