package featurestore

import (
	"container/heap"
	"context"
	"errors"
	"io"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
)

type mergeHead struct {
	feature *domain.Feature
	source  int
}

type mergeHeap struct {
	heads   []mergeHead
	compare func(a, b *domain.Feature) int
}

func (h *mergeHeap) Len() int { return len(h.heads) }

func (h *mergeHeap) Less(i, j int) bool {
	c := h.compare(h.heads[i].feature, h.heads[j].feature)
	if c == 0 {
		return h.heads[i].source < h.heads[j].source
	}
	return c < 0
}

func (h *mergeHeap) Swap(i, j int) { h.heads[i], h.heads[j] = h.heads[j], h.heads[i] }

func (h *mergeHeap) Push(x any) { h.heads = append(h.heads, x.(mergeHead)) }

func (h *mergeHeap) Pop() any {
	last := h.heads[len(h.heads)-1]
	h.heads = h.heads[:len(h.heads)-1]
	return last
}

type mergeReader struct {
	sources []FeatureReader
	heap    *mergeHeap
	primed  bool
}

// MergeSorted combines readers that are each sorted by sortBy into a single
// sorted stream. Equal features are returned in the order of their readers.
func MergeSorted(readers []FeatureReader, sortBy []SortBy) FeatureReader {
	return &mergeReader{
		sources: readers,
		heap:    &mergeHeap{compare: Comparator(sortBy)},
	}
}

// Concat returns the features of each reader in turn
func Concat(readers ...FeatureReader) FeatureReader {
	return MergeSorted(readers, nil)
}

func (r *mergeReader) advance(ctx context.Context, source int) error {
	f, err := r.sources[source].Next(ctx)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	heap.Push(r.heap, mergeHead{feature: f, source: source})
	return nil
}

func (r *mergeReader) Next(ctx context.Context) (*domain.Feature, error) {
	if !r.primed {
		r.primed = true
		for i := range r.sources {
			if err := r.advance(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	if r.heap.Len() == 0 {
		return nil, io.EOF
	}

	head := heap.Pop(r.heap).(mergeHead)
	if err := r.advance(ctx, head.source); err != nil {
		return nil, err
	}

	return head.feature, nil
}

func (r *mergeReader) Close() error {
	var errs []error
	for _, s := range r.sources {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
