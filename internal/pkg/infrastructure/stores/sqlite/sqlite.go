package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/codec"
	"github.com/twpayne/go-geom"

	_ "modernc.org/sqlite"
)

// ConnectorFunc is used to inject a database connection method into NewBackend
type ConnectorFunc func() (*sql.DB, error)

// NewSQLiteConnector opens the database file at path, or a private in
// memory database when path is empty
func NewSQLiteConnector(path string) ConnectorFunc {
	return func() (*sql.DB, error) {
		dsn := path
		if dsn == "" {
			dsn = "file::memory:"
		}

		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}

		// a single connection keeps in memory databases alive and
		// serializes writers
		db.SetMaxOpenConns(1)

		if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, err
		}

		return db, nil
	}
}

var validTypeName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func tableName(typeName string) (string, error) {
	if !validTypeName.MatchString(typeName) {
		return "", fmt.Errorf("%q can not be used as a table name", typeName)
	}
	return `"ft_` + typeName + `"`, nil
}

var _ featurestore.TransactionalBackend = &Backend{}

// Backend keeps each feature type in a table of its own. Geometries are
// stored as WKB next to their envelope, properties as a JSON document.
type Backend struct {
	db *sql.DB
}

func Open(ctx context.Context, name, path string) (featurestore.DataStore, error) {
	b, err := NewBackend(ctx, NewSQLiteConnector(path))
	if err != nil {
		return nil, err
	}
	return featurestore.NewDataStore(name, b), nil
}

func NewBackend(ctx context.Context, connect ConnectorFunc) (*Backend, error) {
	db, err := connect()
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, ddl := range []string{`
	CREATE TABLE IF NOT EXISTS feature_types (
		name TEXT PRIMARY KEY,
		definition TEXT NOT NULL
	);`, `
	CREATE TABLE IF NOT EXISTS revisions (
		name TEXT PRIMARY KEY,
		revision INTEGER NOT NULL
	);`} {
		if _, err = db.ExecContext(ctx, ddl); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Backend{db: db}, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx. With a single
// connection every statement inside a transaction has to go through it.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (b *Backend) TypeNames(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT name FROM feature_types ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func schemaOf(ctx context.Context, q queryer, typeName string) (*domain.FeatureType, error) {
	var definition string
	err := q.QueryRowContext(ctx, "SELECT definition FROM feature_types WHERE name = ?", typeName).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", featurestore.ErrNoSuchType, typeName)
	}
	if err != nil {
		return nil, err
	}
	return codec.UnmarshalSchema([]byte(definition))
}

func revisionOf(ctx context.Context, q queryer, typeName string) (uint64, error) {
	var revision int64
	err := q.QueryRowContext(ctx, "SELECT revision FROM revisions WHERE name = ?", typeName).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return uint64(revision), err
}

func bump(ctx context.Context, q queryer, typeName string) error {
	_, err := q.ExecContext(ctx, `INSERT INTO revisions(name, revision) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET revision = revision + 1`, typeName)
	return err
}

func (b *Backend) Schema(ctx context.Context, typeName string) (*domain.FeatureType, error) {
	return schemaOf(ctx, b.db, typeName)
}

// Revision is kept in the database, so writers in other processes move it too
func (b *Backend) Revision(ctx context.Context, typeName string) (uint64, error) {
	return revisionOf(ctx, b.db, typeName)
}

func (b *Backend) CreateSchema(ctx context.Context, ft *domain.FeatureType) error {
	table, err := tableName(ft.Name)
	if err != nil {
		return err
	}

	definition, err := codec.MarshalSchema(ft)
	if err != nil {
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := schemaOf(ctx, tx, ft.Name); err == nil {
		return fmt.Errorf("%w: %s", featurestore.ErrTypeExists, ft.Name)
	}

	_, err = tx.ExecContext(ctx, `CREATE TABLE `+table+` (
		fid TEXT NOT NULL UNIQUE,
		properties TEXT NOT NULL,
		geometry BLOB,
		min_x REAL, min_y REAL, max_x REAL, max_y REAL
	)`)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, "INSERT INTO feature_types(name, definition) VALUES (?, ?)", ft.Name, string(definition)); err != nil {
		return err
	}
	if err = bump(ctx, tx, ft.Name); err != nil {
		return err
	}

	return tx.Commit()
}

func (b *Backend) DeleteSchema(ctx context.Context, typeName string) error {
	table, err := tableName(typeName)
	if err != nil {
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := schemaOf(ctx, tx, typeName); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, "DROP TABLE "+table); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM feature_types WHERE name = ?", typeName); err != nil {
		return err
	}
	if err = bump(ctx, tx, typeName); err != nil {
		return err
	}

	return tx.Commit()
}

func (b *Backend) Put(ctx context.Context, typeName string, features []*domain.Feature) error {
	return b.Apply(ctx, nil, []featurestore.Change{{TypeName: typeName, Put: features}})
}

func (b *Backend) Delete(ctx context.Context, typeName string, ids []string) error {
	return b.Apply(ctx, nil, []featurestore.Change{{TypeName: typeName, Delete: ids}})
}

// Apply writes every change and moves the touched revisions in a single
// transaction
func (b *Backend) Apply(ctx context.Context, expected map[string]uint64, changes []featurestore.Change) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for typeName, revision := range expected {
		current, err := revisionOf(ctx, tx, typeName)
		if err != nil {
			return err
		}
		if current != revision {
			return fmt.Errorf("%w: %s changed from revision %d to %d", featurestore.ErrConflict, typeName, revision, current)
		}
	}

	for _, c := range changes {
		if _, err := schemaOf(ctx, tx, c.TypeName); err != nil {
			return err
		}

		table, err := tableName(c.TypeName)
		if err != nil {
			return err
		}

		if err := put(ctx, tx, table, c.Put); err != nil {
			return err
		}
		if err := remove(ctx, tx, table, c.Delete); err != nil {
			return err
		}
		if err := bump(ctx, tx, c.TypeName); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func put(ctx context.Context, tx *sql.Tx, table string, features []*domain.Feature) error {
	if len(features) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+table+` (fid, properties, geometry, min_x, min_y, max_x, max_y)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fid) DO UPDATE SET
			properties = excluded.properties,
			geometry = excluded.geometry,
			min_x = excluded.min_x, min_y = excluded.min_y,
			max_x = excluded.max_x, max_y = excluded.max_y`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range features {
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return err
		}

		wkb, err := codec.MarshalGeometry(f.Geometry)
		if err != nil {
			return err
		}

		var minX, minY, maxX, maxY sql.NullFloat64
		if bounds := f.Bounds(); bounds != nil && !bounds.IsEmpty() {
			minX = sql.NullFloat64{Float64: bounds.Min(0), Valid: true}
			minY = sql.NullFloat64{Float64: bounds.Min(1), Valid: true}
			maxX = sql.NullFloat64{Float64: bounds.Max(0), Valid: true}
			maxY = sql.NullFloat64{Float64: bounds.Max(1), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, f.ID, string(props), wkb, minX, minY, maxX, maxY); err != nil {
			return fmt.Errorf("failed to store %s: %w", f.ID, err)
		}
	}

	return nil
}

func remove(ctx context.Context, tx *sql.Tx, table string, ids []string) error {
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE fid = ?", id); err != nil {
			return err
		}
	}
	return nil
}

// Scan reads the whole result before returning. With a single connection an
// open result set would block every other statement, joins included.
func (b *Backend) Scan(ctx context.Context, typeName string, hint *geom.Bounds) (featurestore.FeatureReader, error) {
	schema, err := schemaOf(ctx, b.db, typeName)
	if err != nil {
		return nil, err
	}

	table, err := tableName(typeName)
	if err != nil {
		return nil, err
	}

	query := "SELECT fid, properties, geometry FROM " + table
	args := []any{}
	if hint != nil && !hint.IsEmpty() {
		query += " WHERE max_x >= ? AND min_x <= ? AND max_y >= ? AND min_y <= ?"
		args = append(args, hint.Min(0), hint.Max(0), hint.Min(1), hint.Max(1))
	}
	query += " ORDER BY rowid"

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	features := []*domain.Feature{}
	for rows.Next() {
		var (
			id    string
			props string
			wkb   []byte
		)
		if err := rows.Scan(&id, &props, &wkb); err != nil {
			return nil, err
		}

		values := map[string]any{}
		if err := json.Unmarshal([]byte(props), &values); err != nil {
			return nil, fmt.Errorf("failed to decode properties of %s: %w", id, err)
		}

		g, err := codec.UnmarshalGeometry(wkb)
		if err != nil {
			return nil, fmt.Errorf("failed to decode geometry of %s: %w", id, err)
		}

		f := domain.NewFeature(id, schema.Name, codec.Restore(schema, values), g)
		f.GeometryName = schema.Geometry()
		features = append(features, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return featurestore.NewSliceReader(features), nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}
