package stores

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/matryer/is"
)

func TestLoadConfig(t *testing.T) {
	is := is.New(t)

	configs, err := LoadConfig(strings.NewReader(storesYAML))
	is.NoErr(err)
	is.Equal(len(configs), 3)

	is.Equal(configs[0], Config{Name: "records", Kind: KindMemory})
	is.Equal(configs[1].Path, "/opt/data/beaches")
	is.True(configs[1].Watch)
	is.Equal(configs[1].Options["format"], "shapefile")
	is.Equal(configs[2].Kind, KindSQLite)
}

func TestLoadConfigRejectsDuplicateNames(t *testing.T) {
	is := is.New(t)

	_, err := LoadConfig(strings.NewReader("stores:\n  - name: a\n  - name: a\n"))
	is.True(err != nil)
}

func TestOpenEveryKind(t *testing.T) {
	is, ctx := is.New(t), context.Background()
	dir := t.TempDir()

	configs := []Config{
		{Name: "mem", Kind: KindMemory},
		{Name: "json", Kind: KindGeoJSON, Path: filepath.Join(dir, "points.geojson")},
		{Name: "shp", Kind: KindShapefile, Path: filepath.Join(dir, "shapes", "lines.shp")},
		{Name: "folder", Kind: KindFolder, Path: filepath.Join(dir, "folder")},
		{Name: "kv", Kind: KindBadger},
		{Name: "sql", Kind: KindSQLite},
	}

	opened, err := OpenAll(ctx, configs)
	is.NoErr(err)
	is.Equal(len(opened), len(configs))

	for i, s := range opened {
		is.Equal(s.Name(), configs[i].Name)
		is.NoErr(s.CreateSchema(ctx, domain.NewFeatureType(typeNameFor(configs[i]))))
		names, err := s.TypeNames(ctx)
		is.NoErr(err)
		is.Equal(len(names), 1)
		is.NoErr(s.Close())
	}
}

func TestOpenUnknownKind(t *testing.T) {
	is := is.New(t)

	_, err := Open(context.Background(), Config{Name: "x", Kind: "oracle"})
	is.True(err != nil)
}

func TestOpenContextBrokerValidatesOptions(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	_, err := Open(ctx, Config{Name: "cb", Kind: KindContextBroker, Path: "http://localhost:1"})
	is.True(err != nil) // entity types are required

	_, err = Open(ctx, Config{Name: "cb", Kind: KindContextBroker, Path: "http://localhost:1",
		Options: map[string]string{"types": "Beach", "interval": "often"}})
	is.True(err != nil) // the interval must be a duration
}

func typeNameFor(cfg Config) string {
	if cfg.Path != "" && filepath.Ext(cfg.Path) != "" {
		base := filepath.Base(cfg.Path)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return "things"
}

const storesYAML string = `
stores:
  - name: records
    kind: memory
  - name: beaches
    kind: folder
    path: /opt/data/beaches
    watch: true
    options:
      format: shapefile
  - name: archive
    kind: sqlite
    path: /var/lib/archive.db
`
