package codec

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Document is a GeoJSON feature collection carrying the schema of its
// features as a foreign member, so that typed files survive a round trip
type Document struct {
	Type        string              `json:"type"`
	FeatureType *domain.FeatureType `json:"featureType,omitempty"`
	Features    []*geojson.Feature  `json:"features"`
}

func NewDocument(ft *domain.FeatureType, features []*domain.Feature) *Document {
	doc := &Document{
		Type:        "FeatureCollection",
		FeatureType: ft,
		Features:    make([]*geojson.Feature, 0, len(features)),
	}
	for _, f := range features {
		doc.Features = append(doc.Features, ToGeoJSON(f))
	}
	return doc
}

func ToGeoJSON(f *domain.Feature) *geojson.Feature {
	props := make(map[string]any, len(f.Properties))
	for k, v := range f.Properties {
		props[k] = v
	}

	return &geojson.Feature{
		ID:         f.ID,
		Geometry:   f.Geometry,
		Properties: props,
	}
}

// FromGeoJSON converts a decoded feature. Properties that the schema uses
// as geometry are moved to the feature geometry.
func FromGeoJSON(ft *domain.FeatureType, gf *geojson.Feature) *domain.Feature {
	props := map[string]any{}
	for k, v := range gf.Properties {
		props[k] = v
	}

	f := domain.NewFeature(gf.ID, ft.Name, Restore(ft, props), gf.Geometry)
	f.GeometryName = ft.Geometry()
	delete(f.Properties, f.GeometryName)
	return f
}

// DecodeFeatures reads either a FeatureCollection or a single Feature
func DecodeFeatures(data []byte) ([]*geojson.Feature, *domain.FeatureType, error) {
	header := struct {
		Type string `json:"type"`
	}{}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, nil, err
	}

	switch header.Type {
	case "FeatureCollection":
		doc := Document{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, nil, err
		}
		return doc.Features, doc.FeatureType, nil
	case "Feature":
		f := &geojson.Feature{}
		if err := json.Unmarshal(data, f); err != nil {
			return nil, nil, err
		}
		return []*geojson.Feature{f}, nil, nil
	}

	return nil, nil, fmt.Errorf("unexpected geojson type %q", header.Type)
}

// InferSchema derives a feature type from the properties found in a set of
// features. Every attribute is nullable and values of mixed kinds widen to Any.
func InferSchema(name string, features []*geojson.Feature) *domain.FeatureType {
	kinds := map[string]domain.AttributeType{}

	for _, f := range features {
		for k, v := range f.Properties {
			kind, seen := kinds[k]
			inferred := inferType(v)

			switch {
			case !seen || kind == "":
				kinds[k] = inferred
			case inferred != "" && inferred != kind:
				kinds[k] = domain.Any
			}
		}
	}

	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)

	attributes := make([]domain.AttributeDescriptor, 0, len(names))
	for _, n := range names {
		kind := kinds[n]
		if kind == "" {
			kind = domain.Any
		}
		attributes = append(attributes, domain.AttributeDescriptor{Name: n, Type: kind, Nullable: true})
	}

	return domain.NewFeatureType(name, attributes...)
}

func inferType(v any) domain.AttributeType {
	switch v.(type) {
	case nil:
		return ""
	case string:
		return domain.String
	case float64:
		return domain.Float
	case bool:
		return domain.Boolean
	}
	return domain.Any
}
