package featurestore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore/filter"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
)

type deltaKind int

const (
	addDelta deltaKind = iota
	updateDelta
	removeDelta
)

// delta is a single pending change recorded by a session
type delta struct {
	kind     deltaKind
	typeName string
	features []*domain.Feature
	filter   filter.Filter
	values   map[string]any
}

// view is a feature type as seen through the pending deltas. It remembers
// which ids the store holds and which features the deltas touched, so the
// net change can be handed to the store in one go.
type view struct {
	schema   *domain.FeatureType
	features []*domain.Feature
	stored   map[string]struct{}
	dirty    map[string]struct{}
}

func newView(schema *domain.FeatureType, features []*domain.Feature) *view {
	v := &view{
		schema:   schema,
		features: features,
		stored:   map[string]struct{}{},
		dirty:    map[string]struct{}{},
	}
	for _, f := range features {
		v.stored[f.ID] = struct{}{}
	}
	return v
}

func (v *view) contains(id string) bool {
	for _, f := range v.features {
		if f.ID == id {
			return true
		}
	}
	return false
}

func (v *view) apply(d delta) error {
	switch d.kind {
	case addDelta:
		for _, f := range d.features {
			if v.contains(f.ID) {
				return fmt.Errorf("%w: %s already exists in %s", ErrConflict, f.ID, d.typeName)
			}
			v.features = append(v.features, f.Clone())
			v.dirty[f.ID] = struct{}{}
		}
	case updateDelta:
		for i, f := range v.features {
			if !filter.Evaluate(d.filter, f) {
				continue
			}
			clone := f.Clone()
			if err := ApplyValues(clone, d.values); err != nil {
				return err
			}
			if err := v.schema.Validate(clone); err != nil {
				return err
			}
			v.features[i] = clone
			v.dirty[f.ID] = struct{}{}
		}
	case removeDelta:
		kept := v.features[:0]
		for _, f := range v.features {
			if !filter.Evaluate(d.filter, f) {
				kept = append(kept, f)
			}
		}
		v.features = kept
	}
	return nil
}

// change folds the deltas into what the store has to do. A feature added
// and then updated is written once, with its final values.
func (v *view) change() Change {
	c := Change{TypeName: v.schema.Name}

	present := map[string]struct{}{}
	for _, f := range v.features {
		present[f.ID] = struct{}{}
		if _, ok := v.dirty[f.ID]; ok {
			c.Put = append(c.Put, f)
		}
	}

	for id := range v.stored {
		if _, ok := present[id]; !ok {
			c.Delete = append(c.Delete, id)
		}
	}
	sort.Strings(c.Delete)

	return c
}

// Session records modifications as a list of deltas over a data store.
// Readers obtained from the session see the store as if the deltas were
// applied. Commit folds them into one change per type and applies those
// together, failing with ErrConflict when another writer changed a touched
// type in the meantime.
type Session struct {
	store DataStore

	mu        sync.Mutex
	deltas    []delta
	revisions map[string]uint64
}

func NewSession(store DataStore) *Session {
	return &Session{
		store:     store,
		revisions: map[string]uint64{},
	}
}

func (s *Session) Store() DataStore {
	return s.store
}

// HasChanges reports whether there are uncommitted deltas
func (s *Session) HasChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.deltas) > 0
}

func (s *Session) observe(ctx context.Context, typeName string) error {
	versioned, ok := s.store.(Versioned)
	if !ok {
		return nil
	}
	if _, seen := s.revisions[typeName]; seen {
		return nil
	}

	revision, err := versioned.Revision(ctx, typeName)
	if err != nil {
		return err
	}

	s.revisions[typeName] = revision
	return nil
}

func (s *Session) record(ctx context.Context, d delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.observe(ctx, d.typeName); err != nil {
		return err
	}

	s.deltas = append(s.deltas, d)
	return nil
}

func (s *Session) Schema(ctx context.Context, typeName string) (*domain.FeatureType, error) {
	return s.store.Schema(ctx, typeName)
}

func (s *Session) AddFeatures(ctx context.Context, typeName string, features []*domain.Feature) ([]string, error) {
	schema, err := s.store.Schema(ctx, typeName)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(features))
	for _, f := range features {
		if err := Prepare(schema, f); err != nil {
			return nil, err
		}
		ids = append(ids, f.ID)
	}

	err = s.record(ctx, delta{kind: addDelta, typeName: typeName, features: features})
	return ids, err
}

func (s *Session) UpdateFeatures(ctx context.Context, typeName string, flt filter.Filter, values map[string]any) error {
	if _, err := s.store.Schema(ctx, typeName); err != nil {
		return err
	}
	return s.record(ctx, delta{kind: updateDelta, typeName: typeName, filter: flt, values: values})
}

func (s *Session) RemoveFeatures(ctx context.Context, typeName string, flt filter.Filter) error {
	if _, err := s.store.Schema(ctx, typeName); err != nil {
		return err
	}
	return s.record(ctx, delta{kind: removeDelta, typeName: typeName, filter: flt})
}

func (s *Session) pending(typeName string) []delta {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deltasOf(typeName)
}

func (s *Session) deltasOf(typeName string) []delta {
	result := []delta{}
	for _, d := range s.deltas {
		if d.typeName == typeName {
			result = append(result, d)
		}
	}
	return result
}

// view reads the stored features of a type and replays the pending deltas
// over them
func (s *Session) view(ctx context.Context, typeName string, deltas []delta) (*view, error) {
	schema, err := s.store.Schema(ctx, typeName)
	if err != nil {
		return nil, err
	}

	base, err := s.store.Reader(ctx, Query{TypeName: typeName})
	if err != nil {
		return nil, err
	}

	features, err := ReadAll(ctx, base)
	if err != nil {
		return nil, err
	}

	v := newView(schema, features)
	for _, d := range deltas {
		if err := v.apply(d); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Reader reads through the pending deltas
func (s *Session) Reader(ctx context.Context, q Query) (FeatureReader, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	deltas := s.pending(q.TypeName)
	if len(deltas) == 0 && (q.Join == nil || len(s.pending(q.Join.TypeName)) == 0) {
		return s.store.Reader(ctx, q)
	}

	v, err := s.view(ctx, q.TypeName, deltas)
	if err != nil {
		return nil, err
	}

	return Wrap(ctx, NewSliceReader(v.features), q, v.schema, s)
}

// changes validates every pending delta and folds them into one change per
// touched type, in the order the types were first touched
func (s *Session) changes(ctx context.Context) ([]Change, error) {
	changes := []Change{}
	seen := map[string]struct{}{}

	for _, d := range s.deltas {
		if _, ok := seen[d.typeName]; ok {
			continue
		}
		seen[d.typeName] = struct{}{}

		v, err := s.view(ctx, d.typeName, s.deltasOf(d.typeName))
		if err != nil {
			return nil, err
		}

		c := v.change()
		if len(c.Put) > 0 || len(c.Delete) > 0 {
			changes = append(changes, c)
		}
	}

	return changes, nil
}

// Commit writes the pending changes to the store, all of them or none. A
// failed commit keeps the deltas so the caller can decide to roll back. On
// success the session is reset and can be reused.
func (s *Session) Commit(ctx context.Context) error {
	var err error
	ctx, span := tracer.Start(ctx, "commit-session")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.deltas) == 0 {
		s.reset()
		return nil
	}

	changes, err := s.changes(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare commit: %w", err)
	}

	if versioned, ok := s.store.(Versioned); ok {
		err = versioned.Apply(ctx, s.revisions, changes)
	} else {
		err = s.replay(ctx, changes)
	}

	if err != nil {
		return err
	}

	log := logging.GetFromContext(ctx)
	log.Debug().Msgf("committed %d changes to %s", len(s.deltas), s.store.Name())

	s.reset()
	return nil
}

// replay writes the changes through the plain data store operations, for
// stores that can not apply them in one go
func (s *Session) replay(ctx context.Context, changes []Change) error {
	for _, c := range changes {
		removed := append([]string{}, c.Delete...)
		for _, f := range c.Put {
			removed = append(removed, f.ID)
		}

		if err := s.store.RemoveFeatures(ctx, c.TypeName, filter.ID(removed...)); err != nil {
			return err
		}
		if len(c.Put) > 0 {
			if _, err := s.store.AddFeatures(ctx, c.TypeName, c.Put); err != nil {
				return err
			}
		}
	}
	return nil
}

// Rollback drops every pending delta
func (s *Session) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
}

func (s *Session) reset() {
	s.deltas = nil
	s.revisions = map[string]uint64{}
}
