package featurestore

import (
	"context"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore/filter"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/twpayne/go-geom"
)

// FeatureCollection is a lazy view of the features a query selects from a
// source. Nothing is read until one of the reading methods is called, and
// derived collections only refine the query.
type FeatureCollection struct {
	source FeatureSource
	query  Query
}

func NewFeatureCollection(source FeatureSource, q Query) *FeatureCollection {
	return &FeatureCollection{source: source, query: q}
}

func (c *FeatureCollection) Query() Query {
	return c.query
}

func (c *FeatureCollection) TypeName() string {
	return c.query.TypeName
}

func (c *FeatureCollection) Schema(ctx context.Context) (*domain.FeatureType, error) {
	schema, err := c.source.Schema(ctx, c.query.TypeName)
	if err != nil {
		return nil, err
	}
	return schema.Retype(c.query.Properties), nil
}

func (c *FeatureCollection) Features(ctx context.Context) (FeatureReader, error) {
	return c.source.Reader(ctx, c.query)
}

func (c *FeatureCollection) ToSlice(ctx context.Context) ([]*domain.Feature, error) {
	r, err := c.Features(ctx)
	if err != nil {
		return nil, err
	}
	return ReadAll(ctx, r)
}

func (c *FeatureCollection) ForEach(ctx context.Context, fn func(f *domain.Feature) error) error {
	r, err := c.Features(ctx)
	if err != nil {
		return err
	}
	return ForEach(ctx, r, fn)
}

func (c *FeatureCollection) Size(ctx context.Context) (int, error) {
	count := 0
	err := c.ForEach(ctx, func(*domain.Feature) error {
		count++
		return nil
	})
	return count, err
}

func (c *FeatureCollection) Bounds(ctx context.Context) (*geom.Bounds, error) {
	r, err := c.Features(ctx)
	if err != nil {
		return nil, err
	}
	return BoundsOf(ctx, r)
}

func (c *FeatureCollection) derive(q Query) *FeatureCollection {
	return &FeatureCollection{source: c.source, query: q}
}

// Subset narrows the collection. The filter is combined with the
// collection's own filter and therefore applies before any paging.
func (c *FeatureCollection) Subset(flt filter.Filter) *FeatureCollection {
	return c.derive(c.query.WithFilter(flt))
}

func (c *FeatureCollection) Sorted(sortBy ...SortBy) *FeatureCollection {
	q := c.query
	q.SortBy = sortBy
	return c.derive(q)
}

// Page selects maxFeatures features starting at startIndex within the
// collection's current page
func (c *FeatureCollection) Page(startIndex, maxFeatures int) *FeatureCollection {
	q := c.query
	q.StartIndex += startIndex
	q.MaxFeatures = maxFeatures

	if c.query.MaxFeatures > 0 {
		remaining := max(c.query.MaxFeatures-startIndex, 0)
		if remaining == 0 {
			// MaxFeatures 0 means unbounded, so an exhausted page excludes everything
			q.Filter = filter.Exclude
		}
		if maxFeatures == 0 || maxFeatures > remaining {
			q.MaxFeatures = remaining
		}
	}

	return c.derive(q)
}

func (c *FeatureCollection) Retype(properties ...string) *FeatureCollection {
	q := c.query
	q.Properties = properties
	return c.derive(q)
}

func (c *FeatureCollection) Reprojected(crs string) *FeatureCollection {
	q := c.query
	q.CRS = crs
	return c.derive(q)
}

func (c *FeatureCollection) Joined(join Join) *FeatureCollection {
	q := c.query
	q.Join = &join
	return c.derive(q)
}

func (c *FeatureCollection) Add(ctx context.Context, features ...*domain.Feature) ([]string, error) {
	return c.source.AddFeatures(ctx, c.query.TypeName, features)
}

// Update sets values on every feature matching the collection's filter
func (c *FeatureCollection) Update(ctx context.Context, values map[string]any) error {
	return c.source.UpdateFeatures(ctx, c.query.TypeName, c.query.Filter, values)
}

// Remove deletes every feature matching the collection's filter
func (c *FeatureCollection) Remove(ctx context.Context) error {
	return c.source.RemoveFeatures(ctx, c.query.TypeName, c.query.Filter)
}
