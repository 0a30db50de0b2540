package folder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/memory"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/twpayne/go-geom"
	"golang.org/x/sync/errgroup"
)

// Format reads and writes the features of one type to a single file
type Format interface {
	Extension() string
	Read(path, typeName string) (*domain.FeatureType, []*domain.Feature, error)
	Write(path string, ft *domain.FeatureType, features []*domain.Feature) error
}

// SchemaChecker is implemented by formats that can not hold every feature
// type. CreateSchema refuses the types they reject.
type SchemaChecker interface {
	CheckSchema(ft *domain.FeatureType) error
}

type fileStamp struct {
	size    int64
	modTime int64
}

// Backend keeps the content of a directory of feature files in memory.
// Every file is a feature type named after the file, and modifications
// rewrite the file of the touched type.
type Backend struct {
	dir     string
	formats []Format
	create  Format
	single  string

	mem *memory.Backend

	mu        sync.Mutex
	files     map[string]string
	formatFor map[string]Format
	stamps    map[string]fileStamp
	listeners []func(typeName string)
}

// New loads every file in dir that one of the formats understands. New
// types are written with the first format.
func New(ctx context.Context, dir string, formats ...Format) (*Backend, error) {
	if len(formats) == 0 {
		return nil, errors.New("a folder store needs at least one format")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	b := newBackend(dir, formats)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	paths := []string{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if b.formatOf(e.Name()) != nil {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}

	if err := b.loadAll(ctx, paths); err != nil {
		return nil, err
	}

	return b, nil
}

// NewFile serves a single file as a store with one type. The file is
// created when it does not exist yet.
func NewFile(ctx context.Context, path string, format Format) (*Backend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	b := newBackend(filepath.Dir(path), []Format{format})
	b.single = path

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return b, nil
	}

	if err := b.loadAll(ctx, []string{path}); err != nil {
		return nil, err
	}
	return b, nil
}

func newBackend(dir string, formats []Format) *Backend {
	return &Backend{
		dir:       dir,
		formats:   formats,
		create:    formats[0],
		mem:       memory.NewBackend(),
		files:     map[string]string{},
		formatFor: map[string]Format{},
		stamps:    map[string]fileStamp{},
	}
}

func typeNameOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (b *Backend) formatOf(path string) Format {
	if b.single != "" {
		if path != b.single {
			return nil
		}
		return b.create
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range b.formats {
		if f.Extension() == ext {
			return f
		}
	}
	return nil
}

type loaded struct {
	path     string
	format   Format
	schema   *domain.FeatureType
	features []*domain.Feature
}

func (b *Backend) loadAll(ctx context.Context, paths []string) error {
	results := make([]loaded, len(paths))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			format := b.formatOf(path)
			schema, features, err := format.Read(path, typeNameOf(path))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			results[i] = loaded{path: path, format: format, schema: schema, features: features}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, l := range results {
		if err := b.install(ctx, l); err != nil {
			return err
		}
	}

	log := logging.GetFromContext(ctx)
	log.Info().Msgf("loaded %d feature files from %s", len(results), b.dir)
	return nil
}

func (b *Backend) install(ctx context.Context, l loaded) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	typeName := l.schema.Name
	if other, exists := b.files[typeName]; exists && other != l.path {
		return fmt.Errorf("%w: %s is provided by both %s and %s", featurestore.ErrTypeExists, typeName, other, l.path)
	}

	_ = b.mem.DeleteSchema(ctx, typeName)
	if err := b.mem.CreateSchema(ctx, l.schema); err != nil {
		return err
	}
	if err := b.mem.Put(ctx, typeName, l.features); err != nil {
		return err
	}

	b.files[typeName] = l.path
	b.formatFor[typeName] = l.format
	b.stamps[l.path] = stampOf(l.path)
	return nil
}

func stampOf(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{size: info.Size(), modTime: info.ModTime().UnixNano()}
}

// OnChange registers a listener for types that were changed on disk by
// someone else
func (b *Backend) OnChange(fn func(typeName string)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.listeners = append(b.listeners, fn)
}

func (b *Backend) TypeNames(ctx context.Context) ([]string, error) {
	return b.mem.TypeNames(ctx)
}

func (b *Backend) Schema(ctx context.Context, typeName string) (*domain.FeatureType, error) {
	return b.mem.Schema(ctx, typeName)
}

func (b *Backend) CreateSchema(ctx context.Context, ft *domain.FeatureType) error {
	path := filepath.Join(b.dir, ft.Name+b.create.Extension())

	if b.single != "" {
		names, _ := b.mem.TypeNames(ctx)
		if len(names) > 0 || ft.Name != typeNameOf(b.single) {
			return fmt.Errorf("%w: %s only holds the type %s", featurestore.ErrReadOnly, b.single, typeNameOf(b.single))
		}
		path = b.single
	}

	if checker, ok := b.create.(SchemaChecker); ok {
		if err := checker.CheckSchema(ft); err != nil {
			return err
		}
	}

	if err := b.mem.CreateSchema(ctx, ft); err != nil {
		return err
	}

	b.mu.Lock()
	b.files[ft.Name] = path
	b.formatFor[ft.Name] = b.create
	b.mu.Unlock()

	return b.save(ctx, ft.Name)
}

func (b *Backend) DeleteSchema(ctx context.Context, typeName string) error {
	if err := b.mem.DeleteSchema(ctx, typeName); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.files[typeName]
	delete(b.files, typeName)
	delete(b.formatFor, typeName)
	delete(b.stamps, path)

	matches, _ := filepath.Glob(strings.TrimSuffix(path, filepath.Ext(path)) + ".*")
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (b *Backend) Scan(ctx context.Context, typeName string, hint *geom.Bounds) (featurestore.FeatureReader, error) {
	return b.mem.Scan(ctx, typeName, hint)
}

func (b *Backend) Put(ctx context.Context, typeName string, features []*domain.Feature) error {
	if err := b.mem.Put(ctx, typeName, features); err != nil {
		return err
	}
	return b.save(ctx, typeName)
}

func (b *Backend) Delete(ctx context.Context, typeName string, ids []string) error {
	if err := b.mem.Delete(ctx, typeName, ids); err != nil {
		return err
	}
	return b.save(ctx, typeName)
}

func (b *Backend) save(ctx context.Context, typeName string) error {
	schema, err := b.mem.Schema(ctx, typeName)
	if err != nil {
		return err
	}

	r, err := b.mem.Scan(ctx, typeName, nil)
	if err != nil {
		return err
	}
	features, err := featurestore.ReadAll(ctx, r)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.files[typeName]
	if err := b.formatFor[typeName].Write(path, schema, features); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	b.stamps[path] = stampOf(path)
	return nil
}

// reload reads a file again after it changed on disk. Files that still
// carry the stamp of our own last write are skipped.
func (b *Backend) reload(ctx context.Context, path string) error {
	b.mu.Lock()
	stamp, known := b.stamps[path]
	b.mu.Unlock()

	if known && stamp == stampOf(path) {
		return nil
	}

	format := b.formatOf(path)
	schema, features, err := format.Read(path, typeNameOf(path))
	if err != nil {
		return err
	}

	if err := b.install(ctx, loaded{path: path, format: format, schema: schema, features: features}); err != nil {
		return err
	}

	b.notify(schema.Name)
	return nil
}

func (b *Backend) forget(ctx context.Context, path string) {
	typeName := typeNameOf(path)

	b.mu.Lock()
	if b.files[typeName] != path {
		b.mu.Unlock()
		return
	}
	delete(b.files, typeName)
	delete(b.formatFor, typeName)
	delete(b.stamps, path)
	b.mu.Unlock()

	_ = b.mem.DeleteSchema(ctx, typeName)
	b.notify(typeName)
}

func (b *Backend) notify(typeName string) {
	b.mu.Lock()
	listeners := append([]func(string){}, b.listeners...)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(typeName)
	}
}

// Files lists the files backing each type, sorted by type name
func (b *Backend) Files() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.files))
	for n := range b.files {
		names = append(names, n)
	}
	sort.Strings(names)

	paths := make([]string, 0, len(names))
	for _, n := range names {
		paths = append(paths, b.files[n])
	}
	return paths
}

func (b *Backend) Close() error {
	return b.mem.Close()
}
