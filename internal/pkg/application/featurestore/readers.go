package featurestore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore/filter"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"golang.org/x/exp/slices"
)

type sliceReader struct {
	features []*domain.Feature
	pos      int
}

// NewSliceReader streams the given features in order
func NewSliceReader(features []*domain.Feature) FeatureReader {
	return &sliceReader{features: features}
}

func (r *sliceReader) Next(ctx context.Context) (*domain.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.pos >= len(r.features) {
		return nil, io.EOF
	}
	f := r.features[r.pos]
	r.pos++
	return f, nil
}

func (r *sliceReader) Close() error {
	return nil
}

// ReadAll drains and closes the reader
func ReadAll(ctx context.Context, r FeatureReader) ([]*domain.Feature, error) {
	defer r.Close()

	features := []*domain.Feature{}
	for {
		f, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return features, nil
		}
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
}

// ForEach calls fn for every feature of the reader and closes it
func ForEach(ctx context.Context, r FeatureReader, fn func(f *domain.Feature) error) error {
	defer r.Close()

	for {
		f, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err = fn(f); err != nil {
			return err
		}
	}
}

type filterReader struct {
	FeatureReader
	filter filter.Filter
}

func FilterReader(r FeatureReader, flt filter.Filter) FeatureReader {
	if filter.IsInclude(flt) {
		return r
	}
	return &filterReader{FeatureReader: r, filter: flt}
}

func (r *filterReader) Next(ctx context.Context) (*domain.Feature, error) {
	for {
		f, err := r.FeatureReader.Next(ctx)
		if err != nil {
			return nil, err
		}
		if r.filter.Evaluate(f) {
			return f, nil
		}
	}
}

type offsetReader struct {
	FeatureReader
	skip int
}

func OffsetReader(r FeatureReader, startIndex int) FeatureReader {
	if startIndex <= 0 {
		return r
	}
	return &offsetReader{FeatureReader: r, skip: startIndex}
}

func (r *offsetReader) Next(ctx context.Context) (*domain.Feature, error) {
	for r.skip > 0 {
		if _, err := r.FeatureReader.Next(ctx); err != nil {
			return nil, err
		}
		r.skip--
	}
	return r.FeatureReader.Next(ctx)
}

type limitReader struct {
	FeatureReader
	remaining int
}

func LimitReader(r FeatureReader, maxFeatures int) FeatureReader {
	if maxFeatures <= 0 {
		return r
	}
	return &limitReader{FeatureReader: r, remaining: maxFeatures}
}

func (r *limitReader) Next(ctx context.Context) (*domain.Feature, error) {
	if r.remaining <= 0 {
		return nil, io.EOF
	}
	f, err := r.FeatureReader.Next(ctx)
	if err == nil {
		r.remaining--
	}
	return f, err
}

type retypeReader struct {
	FeatureReader
	properties []string
}

// RetypeReader keeps only the named properties. The geometry is kept only
// when its name is listed.
func RetypeReader(r FeatureReader, properties []string) FeatureReader {
	if len(properties) == 0 {
		return r
	}
	return &retypeReader{FeatureReader: r, properties: properties}
}

func (r *retypeReader) Next(ctx context.Context) (*domain.Feature, error) {
	f, err := r.FeatureReader.Next(ctx)
	if err != nil {
		return nil, err
	}

	retyped := &domain.Feature{
		ID:           f.ID,
		Type:         f.Type,
		GeometryName: f.GeometryName,
		Properties:   make(map[string]any, len(r.properties)),
	}

	for _, p := range r.properties {
		if p == f.GeometryName {
			retyped.Geometry = f.Geometry
			continue
		}
		if v, ok := f.Properties[p]; ok {
			retyped.Properties[p] = v
		}
	}

	return retyped, nil
}

// Comparator builds an ordering over features from sort specifications
func Comparator(sortBy []SortBy) func(a, b *domain.Feature) int {
	return func(a, b *domain.Feature) int {
		for _, sb := range sortBy {
			av, _ := a.Property(sb.Property)
			bv, _ := b.Property(sb.Property)

			c := filter.Compare(av, bv)
			if sb.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}
}

type sortReader struct {
	source FeatureReader
	sortBy []SortBy
	sorted FeatureReader
}

// SortReader buffers the source and returns it stably sorted
func SortReader(r FeatureReader, sortBy []SortBy) FeatureReader {
	if len(sortBy) == 0 {
		return r
	}
	return &sortReader{source: r, sortBy: sortBy}
}

func (r *sortReader) Next(ctx context.Context) (*domain.Feature, error) {
	if r.sorted == nil {
		features, err := ReadAll(ctx, r.source)
		if err != nil {
			return nil, err
		}
		slices.SortStableFunc(features, Comparator(r.sortBy))
		r.sorted = NewSliceReader(features)
	}
	return r.sorted.Next(ctx)
}

func (r *sortReader) Close() error {
	return r.source.Close()
}

type reprojectReader struct {
	FeatureReader
	transform domain.CoordTransform
}

// ReprojectReader converts geometries from the source CRS to the target CRS
func ReprojectReader(r FeatureReader, source, target string) (FeatureReader, error) {
	if target == "" {
		return r, nil
	}

	src, err := domain.LookupCRS(source)
	if err != nil {
		return nil, err
	}
	dst, err := domain.LookupCRS(target)
	if err != nil {
		return nil, err
	}
	if src.Equivalent(dst) {
		return r, nil
	}

	transform, err := domain.Transform(src, dst)
	if err != nil {
		return nil, err
	}

	return &reprojectReader{FeatureReader: r, transform: transform}, nil
}

func (r *reprojectReader) Next(ctx context.Context) (*domain.Feature, error) {
	f, err := r.FeatureReader.Next(ctx)
	if err != nil {
		return nil, err
	}
	if f.Geometry == nil {
		return f, nil
	}

	g, err := domain.Reproject(f.Geometry, r.transform)
	if err != nil {
		return nil, fmt.Errorf("failed to reproject feature %s: %w", f.ID, err)
	}

	clone := f.Clone()
	clone.Geometry = g
	return clone, nil
}

// Wrap decorates a raw reader of q.TypeName with everything else the
// query asks for. Joins read their right hand side from src.
func Wrap(ctx context.Context, r FeatureReader, q Query, schema *domain.FeatureType, src FeatureSource) (FeatureReader, error) {
	if filter.Geodesic(q.Filter) {
		if crs, err := domain.LookupCRS(schema.CRS); err == nil && !crs.Geographic {
			r.Close()
			return nil, fmt.Errorf("%w: spatial operators need geographic coordinates, %s is in %s", ErrInvalidQuery, q.TypeName, crs.Code)
		}
	}

	r = FilterReader(r, q.Filter)

	if q.Join != nil {
		joined, err := JoinReader(ctx, r, *q.Join, src)
		if err != nil {
			r.Close()
			return nil, err
		}
		r = joined
	}

	r = SortReader(r, q.SortBy)
	r = OffsetReader(r, q.StartIndex)
	r = LimitReader(r, q.MaxFeatures)
	r = RetypeReader(r, q.Properties)

	reprojected, err := ReprojectReader(r, schema.CRS, q.CRS)
	if err != nil {
		r.Close()
		return nil, err
	}

	return reprojected, nil
}
