// Package codec holds the encodings shared by the persistent stores: JSON
// records with WKB geometries for the key value and sql stores, and GeoJSON
// for files and the http api.
package codec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

type record struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
	Geometry   []byte         `json:"geometry,omitempty"`
}

func MarshalGeometry(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	return wkb.Marshal(g, binary.LittleEndian)
}

func UnmarshalGeometry(data []byte) (geom.T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return wkb.Unmarshal(data)
}

func MarshalFeature(f *domain.Feature) ([]byte, error) {
	g, err := MarshalGeometry(f.Geometry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode geometry of %s: %w", f.ID, err)
	}

	return json.Marshal(record{ID: f.ID, Properties: f.Properties, Geometry: g})
}

func UnmarshalFeature(data []byte, ft *domain.FeatureType) (*domain.Feature, error) {
	r := record{}
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}

	g, err := UnmarshalGeometry(r.Geometry)
	if err != nil {
		return nil, fmt.Errorf("failed to decode geometry of %s: %w", r.ID, err)
	}

	f := domain.NewFeature(r.ID, ft.Name, Restore(ft, r.Properties), g)
	f.GeometryName = ft.Geometry()
	return f, nil
}

func MarshalSchema(ft *domain.FeatureType) ([]byte, error) {
	return json.Marshal(ft)
}

func UnmarshalSchema(data []byte) (*domain.FeatureType, error) {
	ft := &domain.FeatureType{}
	if err := json.Unmarshal(data, ft); err != nil {
		return nil, err
	}
	return ft, nil
}

// Restore brings json decoded values back to the types the schema declares.
// Numbers decode as float64, so integer attributes are converted back.
func Restore(ft *domain.FeatureType, props map[string]any) map[string]any {
	if props == nil {
		return map[string]any{}
	}

	for name, v := range props {
		a, ok := ft.Attribute(name)
		if !ok || a.Type != domain.Integer {
			continue
		}
		if f, ok := v.(float64); ok && f == math.Trunc(f) {
			props[name] = int64(f)
		}
	}
	return props
}
