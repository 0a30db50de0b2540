package featurestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore/filter"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"github.com/twpayne/go-geom"
)

// NewDataStore builds a complete data store on top of a backend. Queries
// are answered by wrapping the backend's scans, and every modification
// moves the revision of the touched type.
func NewDataStore(name string, backend Backend) DataStore {
	s := &dataStore{
		name:      name,
		backend:   backend,
		revisions: map[string]uint64{},
	}

	if n, ok := backend.(ChangeNotifier); ok {
		n.OnChange(s.bump)
	}

	return s
}

type dataStore struct {
	name    string
	backend Backend

	revisionMutex sync.Mutex
	revisions     map[string]uint64

	writeMutex sync.Mutex
}

func (s *dataStore) Name() string {
	return s.name
}

func (s *dataStore) TypeNames(ctx context.Context) ([]string, error) {
	return s.backend.TypeNames(ctx)
}

func (s *dataStore) Schema(ctx context.Context, typeName string) (*domain.FeatureType, error) {
	return s.backend.Schema(ctx, typeName)
}

func (s *dataStore) CreateSchema(ctx context.Context, ft *domain.FeatureType) error {
	if ft == nil || ft.Name == "" {
		return fmt.Errorf("a feature type needs a name")
	}

	if ft.GeometryName == "" {
		ft.GeometryName = domain.DefaultGeometryName
	}
	if ft.CRS == "" {
		ft.CRS = domain.WGS84.Code
	}

	if err := s.backend.CreateSchema(ctx, ft); err != nil {
		return err
	}

	s.bump(ft.Name)
	return nil
}

func (s *dataStore) DeleteSchema(ctx context.Context, typeName string) error {
	if err := s.backend.DeleteSchema(ctx, typeName); err != nil {
		return err
	}

	s.bump(typeName)
	return nil
}

func (s *dataStore) Reader(ctx context.Context, q Query) (FeatureReader, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	schema, err := s.backend.Schema(ctx, q.TypeName)
	if err != nil {
		return nil, err
	}

	hint, _ := filter.BoundsOf(q.Filter)

	raw, err := s.backend.Scan(ctx, q.TypeName, hint)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", q.TypeName, err)
	}

	return Wrap(ctx, raw, q, schema, s)
}

func (s *dataStore) matching(ctx context.Context, typeName string, flt filter.Filter) ([]*domain.Feature, error) {
	return s.read(ctx, Query{TypeName: typeName, Filter: flt})
}

func (s *dataStore) read(ctx context.Context, q Query) ([]*domain.Feature, error) {
	r, err := s.Reader(ctx, q)
	if err != nil {
		return nil, err
	}
	return ReadAll(ctx, r)
}

func (s *dataStore) AddFeatures(ctx context.Context, typeName string, features []*domain.Feature) ([]string, error) {
	var err error
	ctx, span := tracer.Start(ctx, "add-features")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	schema, err := s.backend.Schema(ctx, typeName)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(features))
	seen := map[string]struct{}{}
	for _, f := range features {
		if err = Prepare(schema, f); err != nil {
			return nil, err
		}
		if _, dup := seen[f.ID]; dup {
			err = fmt.Errorf("%w: %s appears more than once", ErrConflict, f.ID)
			return nil, err
		}
		seen[f.ID] = struct{}{}
		ids = append(ids, f.ID)
	}

	if len(features) == 0 {
		return ids, nil
	}

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	revision, err := s.Revision(ctx, typeName)
	if err != nil {
		return nil, err
	}

	existing, err := s.matching(ctx, typeName, filter.ID(ids...))
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		err = fmt.Errorf("%w: %s already exists in %s", ErrConflict, existing[0].ID, typeName)
		return nil, err
	}

	err = s.apply(ctx, map[string]uint64{typeName: revision}, []Change{{TypeName: typeName, Put: features}})
	if err != nil {
		return nil, err
	}

	log := logging.GetFromContext(ctx)
	log.Debug().Msgf("added %d features to %s/%s", len(features), s.name, typeName)

	return ids, nil
}

func (s *dataStore) UpdateFeatures(ctx context.Context, typeName string, flt filter.Filter, values map[string]any) error {
	var err error
	ctx, span := tracer.Start(ctx, "update-features")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	schema, err := s.backend.Schema(ctx, typeName)
	if err != nil {
		return err
	}

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	revision, err := s.Revision(ctx, typeName)
	if err != nil {
		return err
	}

	features, err := s.matching(ctx, typeName, flt)
	if err != nil {
		return err
	}

	if len(features) == 0 {
		return nil
	}

	updated := make([]*domain.Feature, 0, len(features))
	for _, f := range features {
		clone := f.Clone()
		if err = ApplyValues(clone, values); err != nil {
			return err
		}
		if err = schema.Validate(clone); err != nil {
			return err
		}
		updated = append(updated, clone)
	}

	err = s.apply(ctx, map[string]uint64{typeName: revision}, []Change{{TypeName: typeName, Put: updated}})
	return err
}

func (s *dataStore) RemoveFeatures(ctx context.Context, typeName string, flt filter.Filter) error {
	var err error
	ctx, span := tracer.Start(ctx, "remove-features")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	revision, err := s.Revision(ctx, typeName)
	if err != nil {
		return err
	}

	features, err := s.matching(ctx, typeName, flt)
	if err != nil {
		return err
	}

	if len(features) == 0 {
		return nil
	}

	ids := make([]string, 0, len(features))
	for _, f := range features {
		ids = append(ids, f.ID)
	}

	err = s.apply(ctx, map[string]uint64{typeName: revision}, []Change{{TypeName: typeName, Delete: ids}})
	return err
}

func (s *dataStore) Writer(ctx context.Context, typeName string, flt filter.Filter) (FeatureWriter, error) {
	schema, err := s.backend.Schema(ctx, typeName)
	if err != nil {
		return nil, err
	}

	features, err := s.matching(ctx, typeName, flt)
	if err != nil {
		return nil, err
	}

	return newFeatureWriter(s, schema, features), nil
}

func (s *dataStore) Count(ctx context.Context, q Query) (int, error) {
	q.Properties = []string{domain.IDProperty}
	q.CRS = ""

	r, err := s.Reader(ctx, q)
	if err != nil {
		return 0, err
	}

	count := 0
	err = ForEach(ctx, r, func(*domain.Feature) error {
		count++
		return nil
	})
	return count, err
}

// Bounds returns the envelope of the query's features, nil when none has
// a geometry
func (s *dataStore) Bounds(ctx context.Context, q Query) (*geom.Bounds, error) {
	r, err := s.Reader(ctx, q)
	if err != nil {
		return nil, err
	}
	return BoundsOf(ctx, r)
}

func (s *dataStore) Watch(ctx context.Context) error {
	if w, ok := s.backend.(Watcher); ok {
		return w.Watch(ctx)
	}
	<-ctx.Done()
	return nil
}

func (s *dataStore) Close() error {
	return s.backend.Close()
}

// Revision reads the revision kept by a transactional backend, or the one
// kept by this data store for every other backend
func (s *dataStore) Revision(ctx context.Context, typeName string) (uint64, error) {
	if tb, ok := s.backend.(TransactionalBackend); ok {
		return tb.Revision(ctx, typeName)
	}

	s.revisionMutex.Lock()
	defer s.revisionMutex.Unlock()

	return s.revisions[typeName], nil
}

func (s *dataStore) Apply(ctx context.Context, expected map[string]uint64, changes []Change) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	return s.apply(ctx, expected, changes)
}

// apply hands the changes to a transactional backend. Other backends get
// them one by one, and the ones already written are undone from a snapshot
// when a later one fails.
func (s *dataStore) apply(ctx context.Context, expected map[string]uint64, changes []Change) error {
	if tb, ok := s.backend.(TransactionalBackend); ok {
		return tb.Apply(ctx, expected, changes)
	}

	for typeName, revision := range expected {
		current, _ := s.Revision(ctx, typeName)
		if current != revision {
			return fmt.Errorf("%w: %s changed from revision %d to %d", ErrConflict, typeName, revision, current)
		}
	}

	undo := make([]Change, 0, len(changes))
	for _, c := range changes {
		previous, err := s.snapshot(ctx, c)
		if err != nil {
			s.restore(ctx, undo)
			return err
		}

		undo = append(undo, previous)
		s.bump(c.TypeName)

		if err := s.write(ctx, c); err != nil {
			s.restore(ctx, undo)
			return fmt.Errorf("failed to write changes to %s: %w", c.TypeName, err)
		}
	}

	return nil
}

func (s *dataStore) write(ctx context.Context, c Change) error {
	if len(c.Put) > 0 {
		if err := s.backend.Put(ctx, c.TypeName, c.Put); err != nil {
			return err
		}
	}
	if len(c.Delete) > 0 {
		return s.backend.Delete(ctx, c.TypeName, c.Delete)
	}
	return nil
}

// snapshot returns the change that brings back what c is about to replace
func (s *dataStore) snapshot(ctx context.Context, c Change) (Change, error) {
	touched := make([]string, 0, len(c.Put)+len(c.Delete))
	for _, f := range c.Put {
		touched = append(touched, f.ID)
	}
	touched = append(touched, c.Delete...)

	r, err := s.backend.Scan(ctx, c.TypeName, nil)
	if err != nil {
		return Change{}, err
	}

	existing, err := ReadAll(ctx, FilterReader(r, filter.ID(touched...)))
	if err != nil {
		return Change{}, err
	}

	found := map[string]struct{}{}
	for _, f := range existing {
		found[f.ID] = struct{}{}
	}

	previous := Change{TypeName: c.TypeName, Put: existing}
	for _, f := range c.Put {
		if _, ok := found[f.ID]; !ok {
			previous.Delete = append(previous.Delete, f.ID)
		}
	}
	return previous, nil
}

func (s *dataStore) restore(ctx context.Context, undo []Change) {
	log := logging.GetFromContext(ctx)

	for i := len(undo) - 1; i >= 0; i-- {
		c := undo[i]
		if len(c.Delete) > 0 {
			if err := s.backend.Delete(ctx, c.TypeName, c.Delete); err != nil {
				log.Error().Err(err).Msgf("failed to undo additions to %s/%s", s.name, c.TypeName)
			}
		}
		if len(c.Put) > 0 {
			if err := s.backend.Put(ctx, c.TypeName, c.Put); err != nil {
				log.Error().Err(err).Msgf("failed to restore features of %s/%s", s.name, c.TypeName)
			}
		}
		s.bump(c.TypeName)
	}
}

func (s *dataStore) bump(typeName string) {
	s.revisionMutex.Lock()
	defer s.revisionMutex.Unlock()

	s.revisions[typeName]++
}

// Prepare readies a feature for insertion into a type: it gets an id if it
// has none and is validated against the schema.
func Prepare(schema *domain.FeatureType, f *domain.Feature) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.Type = schema.Name
	f.GeometryName = schema.Geometry()
	if f.Properties == nil {
		f.Properties = map[string]any{}
	}
	return schema.Validate(f)
}

// ApplyValues sets properties on the feature, routing the geometry
// property to the feature geometry
func ApplyValues(f *domain.Feature, values map[string]any) error {
	for k, v := range values {
		if k == f.GeometryName {
			if v == nil {
				f.Geometry = nil
				continue
			}
			g, ok := v.(geom.T)
			if !ok {
				return fmt.Errorf("%w: %s can not be set to a %T", domain.ErrInvalidFeature, k, v)
			}
			f.Geometry = g
			continue
		}
		f.Properties[k] = v
	}
	return nil
}

func BoundsOf(ctx context.Context, r FeatureReader) (*geom.Bounds, error) {
	var bounds *geom.Bounds
	err := ForEach(ctx, r, func(f *domain.Feature) error {
		if f.Geometry == nil {
			return nil
		}
		if bounds == nil {
			bounds = f.Geometry.Bounds().Clone()
			return nil
		}
		bounds.Extend(f.Geometry)
		return nil
	})
	return bounds, err
}
