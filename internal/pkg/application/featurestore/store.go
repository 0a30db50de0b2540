package featurestore

import (
	"context"
	"errors"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore/filter"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/twpayne/go-geom"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("geotoolkit/featurestore")

var (
	ErrNoSuchType   = errors.New("no such feature type")
	ErrTypeExists   = errors.New("feature type already exists")
	ErrNotFound     = errors.New("feature not found")
	ErrConflict     = errors.New("concurrent modification")
	ErrReadOnly     = errors.New("data store is read only")
	ErrWriterClosed = errors.New("feature writer is closed")
	ErrNoCurrent    = errors.New("no current feature")
	ErrInvalidQuery = errors.New("invalid query")
)

// FeatureReader streams features. Next returns io.EOF once exhausted.
type FeatureReader interface {
	Next(ctx context.Context) (*domain.Feature, error)
	Close() error
}

// FeatureWriter walks the features matching a filter and lets the caller
// replace or remove them, or append new ones. Changes are persisted on Close.
type FeatureWriter interface {
	Next(ctx context.Context) (*domain.Feature, error)
	Write(ctx context.Context) error
	Remove(ctx context.Context) error
	Append(ctx context.Context, f *domain.Feature) error
	Close() error
}

// FeatureSource is the read/modify surface shared by data stores and sessions
type FeatureSource interface {
	Schema(ctx context.Context, typeName string) (*domain.FeatureType, error)
	Reader(ctx context.Context, q Query) (FeatureReader, error)
	AddFeatures(ctx context.Context, typeName string, features []*domain.Feature) ([]string, error)
	UpdateFeatures(ctx context.Context, typeName string, flt filter.Filter, values map[string]any) error
	RemoveFeatures(ctx context.Context, typeName string, flt filter.Filter) error
}

type DataStore interface {
	FeatureSource

	Name() string
	TypeNames(ctx context.Context) ([]string, error)
	CreateSchema(ctx context.Context, ft *domain.FeatureType) error
	DeleteSchema(ctx context.Context, typeName string) error
	Writer(ctx context.Context, typeName string, flt filter.Filter) (FeatureWriter, error)
	Count(ctx context.Context, q Query) (int, error)
	Bounds(ctx context.Context, q Query) (*geom.Bounds, error)
	Close() error
}

// Change is the net effect of a commit on one feature type. Put inserts or
// replaces features by id, Delete removes ids.
type Change struct {
	TypeName string
	Put      []*domain.Feature
	Delete   []string
}

// Versioned stores keep a revision per feature type that moves on every
// modification, enabling optimistic commits.
type Versioned interface {
	Revision(ctx context.Context, typeName string) (uint64, error)
	// Apply writes all of the changes or none of them. It fails with
	// ErrConflict when a type is no longer at its expected revision.
	Apply(ctx context.Context, expected map[string]uint64, changes []Change) error
}

// TransactionalBackend is a backend that keeps its own revisions and can
// apply a set of changes in a single transaction
type TransactionalBackend interface {
	Backend
	Versioned
}

// Backend is what a concrete source has to provide. NewDataStore turns it
// into a complete DataStore.
type Backend interface {
	TypeNames(ctx context.Context) ([]string, error)
	Schema(ctx context.Context, typeName string) (*domain.FeatureType, error)
	CreateSchema(ctx context.Context, ft *domain.FeatureType) error
	DeleteSchema(ctx context.Context, typeName string) error

	// Scan returns every feature of the type. Backends with a spatial
	// index may use hint to skip features not overlapping it.
	Scan(ctx context.Context, typeName string, hint *geom.Bounds) (FeatureReader, error)
	// Put inserts or replaces features by id
	Put(ctx context.Context, typeName string, features []*domain.Feature) error
	Delete(ctx context.Context, typeName string, ids []string) error
	Close() error
}

// ChangeNotifier is implemented by backends whose content can change
// outside of the data store, like files edited by other programs
type ChangeNotifier interface {
	OnChange(fn func(typeName string))
}

// Watcher is implemented by backends that follow external changes for as
// long as Watch runs
type Watcher interface {
	Watch(ctx context.Context) error
}

// Watch blocks until ctx is done, keeping the store in sync with external
// changes when its backend supports that
func Watch(ctx context.Context, store DataStore) error {
	if w, ok := store.(Watcher); ok {
		return w.Watch(ctx)
	}
	<-ctx.Done()
	return nil
}
