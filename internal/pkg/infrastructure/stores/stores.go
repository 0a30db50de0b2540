package stores

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/badger"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/contextbroker"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/folder"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/geojson"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/memory"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/shapefile"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/sqlite"
	"gopkg.in/yaml.v2"
)

const (
	KindMemory    string = "memory"
	KindGeoJSON   string = "geojson"
	KindShapefile string = "shapefile"
	KindFolder    string = "folder"
	KindBadger    string = "badger"
	KindSQLite    string = "sqlite"

	KindContextBroker string = "contextbroker"
)

// Config describes one data store to mount
type Config struct {
	Name    string            `yaml:"name"`
	Kind    string            `yaml:"kind"`
	Path    string            `yaml:"path"`
	Watch   bool              `yaml:"watch"`
	Options map[string]string `yaml:"options"`
}

type configFile struct {
	Stores []Config `yaml:"stores"`
}

// LoadConfig reads a yaml document with a list of stores
//
//	stores:
//	  - name: beaches
//	    kind: folder
//	    path: /opt/data/beaches
//	    options:
//	      format: shapefile
func LoadConfig(r io.Reader) ([]Config, error) {
	contents, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	cfg := configFile{}
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode store configuration: %w", err)
	}

	names := map[string]bool{}
	for i, s := range cfg.Stores {
		if s.Name == "" {
			return nil, fmt.Errorf("store %d has no name", i+1)
		}
		if names[s.Name] {
			return nil, fmt.Errorf("store %s is configured more than once", s.Name)
		}
		names[s.Name] = true
	}

	return cfg.Stores, nil
}

// Open builds the data store a configuration describes
func Open(ctx context.Context, cfg Config) (featurestore.DataStore, error) {
	switch strings.ToLower(cfg.Kind) {
	case KindMemory, "":
		return memory.New(cfg.Name), nil
	case KindGeoJSON:
		return geojson.Open(ctx, cfg.Name, cfg.Path)
	case KindShapefile:
		return shapefile.Open(ctx, cfg.Name, cfg.Path)
	case KindFolder:
		formats := []folder.Format{geojson.Format{}, shapefile.Format{}}
		if cfg.Options["format"] == KindShapefile {
			formats = []folder.Format{shapefile.Format{}, geojson.Format{}}
		}
		b, err := folder.New(ctx, cfg.Path, formats...)
		if err != nil {
			return nil, err
		}
		return featurestore.NewDataStore(cfg.Name, b), nil
	case KindBadger:
		return badger.Open(ctx, cfg.Name, cfg.Path)
	case KindSQLite:
		return sqlite.Open(ctx, cfg.Name, cfg.Path)
	case KindContextBroker:
		return openContextBroker(ctx, cfg)
	}

	return nil, fmt.Errorf("unknown store kind %q for %s", cfg.Kind, cfg.Name)
}

// openContextBroker mounts the entities of a NGSI-LD context broker. Path
// holds the broker url and the types option lists the entity types to load.
func openContextBroker(ctx context.Context, cfg Config) (featurestore.DataStore, error) {
	types := []string{}
	for _, t := range strings.Split(cfg.Options["types"], ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("no entity types configured for %s", cfg.Name)
	}

	interval := contextbroker.DefaultRefreshInterval
	if value, ok := cfg.Options["interval"]; ok {
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid refresh interval %q for %s", value, cfg.Name)
		}
		interval = d
	}

	return contextbroker.Open(ctx, cfg.Name, cfg.Path, cfg.Options["tenant"], types, interval)
}

// OpenAll opens every configured store, closing the ones already opened
// when one fails
func OpenAll(ctx context.Context, configs []Config) ([]featurestore.DataStore, error) {
	result := []featurestore.DataStore{}
	for _, cfg := range configs {
		s, err := Open(ctx, cfg)
		if err != nil {
			for _, opened := range result {
				opened.Close()
			}
			return nil, fmt.Errorf("failed to open store %s: %w", cfg.Name, err)
		}
		result = append(result, s)
	}
	return result, nil
}
