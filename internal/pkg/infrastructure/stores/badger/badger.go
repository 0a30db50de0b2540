package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/codec"
	"github.com/dgraph-io/badger/v4"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/rs/zerolog"
	"github.com/twpayne/go-geom"
)

// key layout, with a zero byte between the parts:
//
//	s <type>          schema
//	f <type> <seq>    feature record, seq keeps insertion order
//	i <type> <id>     seq of the feature with that id
//	r <type>          revision of the type
const separator byte = 0

var sequenceKey = []byte("!seq")

func schemaKey(typeName string) []byte {
	return append([]byte{'s', separator}, typeName...)
}

func featurePrefix(typeName string) []byte {
	p := append([]byte{'f', separator}, typeName...)
	return append(p, separator)
}

func featureKey(typeName string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(featurePrefix(typeName), seq)
}

func indexPrefix(typeName string) []byte {
	p := append([]byte{'i', separator}, typeName...)
	return append(p, separator)
}

func indexKey(typeName, id string) []byte {
	return append(indexPrefix(typeName), id...)
}

func revisionKey(typeName string) []byte {
	return append([]byte{'r', separator}, typeName...)
}

var _ featurestore.TransactionalBackend = &Backend{}

// Backend persists features in a badger database
type Backend struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens or creates the database at path. An empty path keeps the
// database in memory.
func Open(ctx context.Context, name, path string) (featurestore.DataStore, error) {
	b, err := NewBackend(ctx, path)
	if err != nil {
		return nil, err
	}
	return featurestore.NewDataStore(name, b), nil
}

func NewBackend(ctx context.Context, path string) (*Backend, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(&logger{log: logging.GetFromContext(ctx)})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	seq, err := db.GetSequence(sequenceKey, 1000)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Backend{db: db, seq: seq}, nil
}

func (b *Backend) TypeNames(ctx context.Context) ([]string, error) {
	names := []string{}
	prefix := schemaKey("")

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})

	sort.Strings(names)
	return names, err
}

func getSchema(txn *badger.Txn, typeName string) (*domain.FeatureType, error) {
	item, err := txn.Get(schemaKey(typeName))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", featurestore.ErrNoSuchType, typeName)
	}
	if err != nil {
		return nil, err
	}

	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return codec.UnmarshalSchema(data)
}

func (b *Backend) Schema(ctx context.Context, typeName string) (*domain.FeatureType, error) {
	var schema *domain.FeatureType
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		schema, err = getSchema(txn, typeName)
		return err
	})
	return schema, err
}

func (b *Backend) CreateSchema(ctx context.Context, ft *domain.FeatureType) error {
	data, err := codec.MarshalSchema(ft)
	if err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(schemaKey(ft.Name))
		if err == nil {
			return fmt.Errorf("%w: %s", featurestore.ErrTypeExists, ft.Name)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(schemaKey(ft.Name), data); err != nil {
			return err
		}
		return bump(txn, ft.Name)
	})
}

func (b *Backend) DeleteSchema(ctx context.Context, typeName string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := getSchema(txn, typeName); err != nil {
			return err
		}
		if err := txn.Delete(schemaKey(typeName)); err != nil {
			return err
		}
		return bump(txn, typeName)
	})
	if err != nil {
		return err
	}

	return b.db.DropPrefix(featurePrefix(typeName), indexPrefix(typeName))
}

func revisionOf(txn *badger.Txn, typeName string) (uint64, error) {
	item, err := txn.Get(revisionKey(typeName))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	data, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}

func bump(txn *badger.Txn, typeName string) error {
	revision, err := revisionOf(txn, typeName)
	if err != nil {
		return err
	}
	return txn.Set(revisionKey(typeName), binary.BigEndian.AppendUint64(nil, revision+1))
}

func (b *Backend) Revision(ctx context.Context, typeName string) (uint64, error) {
	var revision uint64
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		revision, err = revisionOf(txn, typeName)
		return err
	})
	return revision, err
}

func (b *Backend) Put(ctx context.Context, typeName string, features []*domain.Feature) error {
	return b.Apply(ctx, nil, []featurestore.Change{{TypeName: typeName, Put: features}})
}

func (b *Backend) Delete(ctx context.Context, typeName string, ids []string) error {
	return b.Apply(ctx, nil, []featurestore.Change{{TypeName: typeName, Delete: ids}})
}

// Apply writes every change and moves the touched revisions in one
// transaction. Reading the revisions makes badger reject the commit when
// another transaction moved them first.
func (b *Backend) Apply(ctx context.Context, expected map[string]uint64, changes []featurestore.Change) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		for typeName, revision := range expected {
			current, err := revisionOf(txn, typeName)
			if err != nil {
				return err
			}
			if current != revision {
				return fmt.Errorf("%w: %s changed from revision %d to %d", featurestore.ErrConflict, typeName, revision, current)
			}
		}

		for _, c := range changes {
			if _, err := getSchema(txn, c.TypeName); err != nil {
				return err
			}
			if err := b.put(txn, c.TypeName, c.Put); err != nil {
				return err
			}
			if err := remove(txn, c.TypeName, c.Delete); err != nil {
				return err
			}
			if err := bump(txn, c.TypeName); err != nil {
				return err
			}
		}
		return nil
	})

	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %s", featurestore.ErrConflict, err.Error())
	}
	return err
}

func (b *Backend) put(txn *badger.Txn, typeName string, features []*domain.Feature) error {
	for _, f := range features {
		data, err := codec.MarshalFeature(f)
		if err != nil {
			return err
		}

		seq, err := b.sequenceOf(txn, typeName, f.ID)
		if err != nil {
			return err
		}

		if err := txn.Set(featureKey(typeName, seq), data); err != nil {
			return err
		}
	}
	return nil
}

// sequenceOf returns the sequence number of an existing feature, or
// allocates one for a new feature
func (b *Backend) sequenceOf(txn *badger.Txn, typeName, id string) (uint64, error) {
	item, err := txn.Get(indexKey(typeName, id))
	if err == nil {
		data, err := item.ValueCopy(nil)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(data), nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return 0, err
	}

	seq, err := b.seq.Next()
	if err != nil {
		return 0, err
	}

	err = txn.Set(indexKey(typeName, id), binary.BigEndian.AppendUint64(nil, seq))
	return seq, err
}

func remove(txn *badger.Txn, typeName string, ids []string) error {
	for _, id := range ids {
		item, err := txn.Get(indexKey(typeName, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if err := txn.Delete(featureKey(typeName, binary.BigEndian.Uint64(data))); err != nil {
			return err
		}
		if err := txn.Delete(indexKey(typeName, id)); err != nil {
			return err
		}
	}
	return nil
}

// Scan streams the features of a type from a read only transaction that
// stays open until the reader is closed
func (b *Backend) Scan(ctx context.Context, typeName string, hint *geom.Bounds) (featurestore.FeatureReader, error) {
	txn := b.db.NewTransaction(false)

	schema, err := getSchema(txn, typeName)
	if err != nil {
		txn.Discard()
		return nil, err
	}

	prefix := featurePrefix(typeName)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	it.Seek(prefix)

	return &scanReader{txn: txn, it: it, prefix: prefix, schema: schema, hint: hint}, nil
}

type scanReader struct {
	txn    *badger.Txn
	it     *badger.Iterator
	prefix []byte
	schema *domain.FeatureType
	hint   *geom.Bounds
	closed bool
}

func (r *scanReader) Next(ctx context.Context) (*domain.Feature, error) {
	for {
		if r.closed || !r.it.ValidForPrefix(r.prefix) {
			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := r.it.Item().ValueCopy(nil)
		r.it.Next()
		if err != nil {
			return nil, err
		}

		f, err := codec.UnmarshalFeature(data, r.schema)
		if err != nil {
			return nil, err
		}

		if r.hint != nil && (f.Geometry == nil || !r.hint.Overlaps(geom.XY, f.Geometry.Bounds())) {
			continue
		}
		return f, nil
	}
}

func (r *scanReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.it.Close()
	r.txn.Discard()
	return nil
}

func (b *Backend) Close() error {
	return errors.Join(b.seq.Release(), b.db.Close())
}

type logger struct {
	log zerolog.Logger
}

func (l *logger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}

func (l *logger) Warningf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *logger) Infof(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *logger) Debugf(format string, args ...any) {
	l.log.Trace().Msgf(format, args...)
}
