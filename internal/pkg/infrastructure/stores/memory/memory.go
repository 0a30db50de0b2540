package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/dhconnelly/rtreego"
	"github.com/twpayne/go-geom"
)

// minimum extent given to degenerate (point or axis aligned) envelopes,
// rtreego refuses rectangles without area
const epsilon float64 = 1e-9

type indexEntry struct {
	id   string
	rect rtreego.Rect
}

func (e *indexEntry) Bounds() rtreego.Rect {
	return e.rect
}

func rectFromBounds(b *geom.Bounds) (rtreego.Rect, bool) {
	if b == nil || b.IsEmpty() {
		return rtreego.Rect{}, false
	}

	point := rtreego.Point{b.Min(0), b.Min(1)}
	lengths := []float64{
		max(b.Max(0)-b.Min(0), epsilon),
		max(b.Max(1)-b.Min(1), epsilon),
	}

	rect, err := rtreego.NewRect(point, lengths)
	if err != nil {
		return rtreego.Rect{}, false
	}
	return rect, true
}

type featureTable struct {
	schema   *domain.FeatureType
	features map[string]*domain.Feature
	order    []string
	rtree    *rtreego.Rtree
	entries  map[string]*indexEntry
}

func newFeatureTable(ft *domain.FeatureType) *featureTable {
	return &featureTable{
		schema:   ft,
		features: map[string]*domain.Feature{},
		rtree:    rtreego.NewTree(2, 25, 50),
		entries:  map[string]*indexEntry{},
	}
}

func (t *featureTable) put(f *domain.Feature) {
	if _, exists := t.features[f.ID]; !exists {
		t.order = append(t.order, f.ID)
	}
	t.unindex(f.ID)

	t.features[f.ID] = f.Clone()

	if rect, ok := rectFromBounds(f.Bounds()); ok {
		entry := &indexEntry{id: f.ID, rect: rect}
		t.entries[f.ID] = entry
		t.rtree.Insert(entry)
	}
}

func (t *featureTable) unindex(id string) {
	if entry, ok := t.entries[id]; ok {
		t.rtree.Delete(entry)
		delete(t.entries, id)
	}
}

func (t *featureTable) remove(id string) {
	if _, ok := t.features[id]; !ok {
		return
	}

	t.unindex(id)
	delete(t.features, id)

	for i, other := range t.order {
		if other == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *featureTable) scan(hint *geom.Bounds) []*domain.Feature {
	var candidates map[string]struct{}

	if rect, ok := rectFromBounds(hint); ok {
		candidates = map[string]struct{}{}
		for _, s := range t.rtree.SearchIntersect(rect) {
			candidates[s.(*indexEntry).id] = struct{}{}
		}
	}

	result := make([]*domain.Feature, 0, len(t.order))
	for _, id := range t.order {
		if candidates != nil {
			if _, ok := candidates[id]; !ok {
				continue
			}
		}
		result = append(result, t.features[id].Clone())
	}
	return result
}

var _ featurestore.TransactionalBackend = &Backend{}

// Backend keeps every feature in memory, with an R-tree per type to answer
// bounding box hints. Every modification moves the revision of its type.
type Backend struct {
	mu        sync.RWMutex
	tables    map[string]*featureTable
	revisions map[string]uint64
}

func NewBackend() *Backend {
	return &Backend{
		tables:    map[string]*featureTable{},
		revisions: map[string]uint64{},
	}
}

// New returns a ready to use in-memory data store
func New(name string) featurestore.DataStore {
	return featurestore.NewDataStore(name, NewBackend())
}

func (b *Backend) TypeNames(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.tables))
	for name := range b.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (b *Backend) table(typeName string) (*featureTable, error) {
	t, ok := b.tables[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", featurestore.ErrNoSuchType, typeName)
	}
	return t, nil
}

func (b *Backend) Schema(ctx context.Context, typeName string) (*domain.FeatureType, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, err := b.table(typeName)
	if err != nil {
		return nil, err
	}
	clone := *t.schema
	return &clone, nil
}

func (b *Backend) CreateSchema(ctx context.Context, ft *domain.FeatureType) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.tables[ft.Name]; exists {
		return fmt.Errorf("%w: %s", featurestore.ErrTypeExists, ft.Name)
	}

	clone := *ft
	b.tables[ft.Name] = newFeatureTable(&clone)
	b.revisions[ft.Name]++
	return nil
}

func (b *Backend) DeleteSchema(ctx context.Context, typeName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.table(typeName); err != nil {
		return err
	}
	delete(b.tables, typeName)
	b.revisions[typeName]++
	return nil
}

func (b *Backend) Scan(ctx context.Context, typeName string, hint *geom.Bounds) (featurestore.FeatureReader, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, err := b.table(typeName)
	if err != nil {
		return nil, err
	}
	return featurestore.NewSliceReader(t.scan(hint)), nil
}

func (b *Backend) Put(ctx context.Context, typeName string, features []*domain.Feature) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.table(typeName)
	if err != nil {
		return err
	}

	for _, f := range features {
		t.put(f)
	}
	b.revisions[typeName]++
	return nil
}

func (b *Backend) Delete(ctx context.Context, typeName string, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.table(typeName)
	if err != nil {
		return err
	}

	for _, id := range ids {
		t.remove(id)
	}
	b.revisions[typeName]++
	return nil
}

func (b *Backend) Revision(ctx context.Context, typeName string) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.revisions[typeName], nil
}

// Apply checks revisions and types before touching anything, so once the
// writing starts it can not fail halfway
func (b *Backend) Apply(ctx context.Context, expected map[string]uint64, changes []featurestore.Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for typeName, revision := range expected {
		if current := b.revisions[typeName]; current != revision {
			return fmt.Errorf("%w: %s changed from revision %d to %d", featurestore.ErrConflict, typeName, revision, current)
		}
	}

	tables := make([]*featureTable, 0, len(changes))
	for _, c := range changes {
		t, err := b.table(c.TypeName)
		if err != nil {
			return err
		}
		tables = append(tables, t)
	}

	for i, c := range changes {
		for _, f := range c.Put {
			tables[i].put(f)
		}
		for _, id := range c.Delete {
			tables[i].remove(id)
		}
		b.revisions[c.TypeName]++
	}
	return nil
}

func (b *Backend) Close() error {
	return nil
}
