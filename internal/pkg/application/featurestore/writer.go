package featurestore

import (
	"context"
	"io"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
)

type featureWriter struct {
	store  *dataStore
	schema *domain.FeatureType

	features []*domain.Feature
	pos      int
	current  *domain.Feature

	written  []*domain.Feature
	appended []*domain.Feature
	removed  []string

	closed bool
}

func newFeatureWriter(store *dataStore, schema *domain.FeatureType, features []*domain.Feature) *featureWriter {
	return &featureWriter{
		store:    store,
		schema:   schema,
		features: features,
	}
}

// Next returns a modifiable copy of the next matching feature
func (w *featureWriter) Next(ctx context.Context) (*domain.Feature, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w.pos >= len(w.features) {
		w.current = nil
		return nil, io.EOF
	}

	w.current = w.features[w.pos].Clone()
	w.pos++
	return w.current, nil
}

func (w *featureWriter) Write(ctx context.Context) error {
	if w.closed {
		return ErrWriterClosed
	}
	if w.current == nil {
		return ErrNoCurrent
	}
	if err := w.schema.Validate(w.current); err != nil {
		return err
	}

	w.written = append(w.written, w.current)
	w.current = nil
	return nil
}

func (w *featureWriter) Remove(ctx context.Context) error {
	if w.closed {
		return ErrWriterClosed
	}
	if w.current == nil {
		return ErrNoCurrent
	}

	w.removed = append(w.removed, w.current.ID)
	w.current = nil
	return nil
}

func (w *featureWriter) Append(ctx context.Context, f *domain.Feature) error {
	if w.closed {
		return ErrWriterClosed
	}
	if err := Prepare(w.schema, f); err != nil {
		return err
	}

	w.appended = append(w.appended, f)
	return nil
}

// Close flushes every written, appended and removed feature to the backend
// as a single change
func (w *featureWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	c := Change{
		TypeName: w.schema.Name,
		Put:      append(w.written, w.appended...),
		Delete:   w.removed,
	}
	if len(c.Put) == 0 && len(c.Delete) == 0 {
		return nil
	}

	return w.store.Apply(context.Background(), nil, []Change{c})
}
