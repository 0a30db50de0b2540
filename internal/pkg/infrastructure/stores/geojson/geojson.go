package geojson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/codec"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/folder"
)

const Extension string = ".geojson"

// Format stores a feature type as a GeoJSON FeatureCollection. The schema is
// kept as a foreign member and inferred from the properties when missing.
type Format struct{}

var _ folder.Format = Format{}

// Open serves a single GeoJSON file as a data store
func Open(ctx context.Context, name, path string) (featurestore.DataStore, error) {
	b, err := folder.NewFile(ctx, path, Format{})
	if err != nil {
		return nil, err
	}
	return featurestore.NewDataStore(name, b), nil
}

func (Format) Extension() string {
	return Extension
}

func (Format) Read(path, typeName string) (*domain.FeatureType, []*domain.Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	gfs, schema, err := codec.DecodeFeatures(data)
	if err != nil {
		return nil, nil, err
	}

	if schema == nil {
		schema = codec.InferSchema(typeName, gfs)
	}
	schema.Name = typeName
	if schema.GeometryName == "" {
		schema.GeometryName = domain.DefaultGeometryName
	}
	if schema.CRS == "" {
		schema.CRS = domain.WGS84.Code
	}

	features := make([]*domain.Feature, 0, len(gfs))
	for i, gf := range gfs {
		f := codec.FromGeoJSON(schema, gf)
		if f.ID == "" {
			f.ID = fmt.Sprintf("%s.%d", typeName, i+1)
		}
		if err := schema.Validate(f); err != nil {
			return nil, nil, fmt.Errorf("feature %s: %w", f.ID, err)
		}
		features = append(features, f)
	}

	return schema, features, nil
}

// Write replaces the file through a temporary file in the same directory
func (Format) Write(path string, ft *domain.FeatureType, features []*domain.Feature) error {
	data, err := json.Marshal(codec.NewDocument(ft, features))
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*"+Extension)
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
