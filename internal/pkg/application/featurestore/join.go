package featurestore

import (
	"context"
	"fmt"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
)

type joinReader struct {
	left  FeatureReader
	join  Join
	index map[string][]*domain.Feature

	current *domain.Feature
	matches []*domain.Feature
}

// JoinReader performs a hash join of the left reader against the features
// of join.TypeName read from src. Joined features carry the right
// properties prefixed with the right type name.
func JoinReader(ctx context.Context, left FeatureReader, join Join, src FeatureSource) (FeatureReader, error) {
	right, err := src.Reader(ctx, Query{TypeName: join.TypeName, Filter: join.Filter})
	if err != nil {
		return nil, fmt.Errorf("failed to read join type %s: %w", join.TypeName, err)
	}

	index := map[string][]*domain.Feature{}
	err = ForEach(ctx, right, func(f *domain.Feature) error {
		v, ok := f.Property(join.RightProperty)
		if !ok || v == nil {
			return nil
		}
		key := joinKey(v)
		index[key] = append(index[key], f)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &joinReader{left: left, join: join, index: index}, nil
}

func joinKey(v any) string {
	if f, ok := domain.ToFloat(v); ok {
		return fmt.Sprintf("%g", f)
	}
	return fmt.Sprint(v)
}

func (r *joinReader) Next(ctx context.Context) (*domain.Feature, error) {
	for {
		if r.current != nil && len(r.matches) > 0 {
			right := r.matches[0]
			r.matches = r.matches[1:]
			return r.combine(r.current, right), nil
		}

		f, err := r.left.Next(ctx)
		if err != nil {
			return nil, err
		}

		var matches []*domain.Feature
		if v, ok := f.Property(r.join.LeftProperty); ok && v != nil {
			matches = r.index[joinKey(v)]
		}

		if len(matches) == 0 {
			if r.join.Kind == LeftJoin {
				r.current = nil
				return r.combine(f, nil), nil
			}
			continue
		}

		r.current = f
		r.matches = append([]*domain.Feature{}, matches...)
	}
}

func (r *joinReader) combine(left, right *domain.Feature) *domain.Feature {
	joined := left.Clone()
	if right == nil {
		return joined
	}

	joined.ID = left.ID + "." + right.ID
	for k, v := range right.Properties {
		joined.Properties[r.join.TypeName+"."+k] = v
	}
	if right.Geometry != nil {
		joined.Properties[r.join.TypeName+"."+right.GeometryName] = right.Geometry
	}
	return joined
}

func (r *joinReader) Close() error {
	return r.left.Close()
}
