package domain

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/twpayne/go-geom"
)

const (
	// IDProperty is the pseudo property that resolves to a feature's identifier
	IDProperty string = "@id"
	// DefaultGeometryName is used when a feature type does not name its geometry
	DefaultGeometryName string = "geometry"
)

var ErrInvalidFeature = errors.New("invalid feature")

type AttributeType string

const (
	String   AttributeType = "string"
	Integer  AttributeType = "integer"
	Float    AttributeType = "float"
	Boolean  AttributeType = "boolean"
	DateTime AttributeType = "datetime"
	Geometry AttributeType = "geometry"
	// Any accepts every value, used for nested or untyped properties
	Any AttributeType = "any"
)

type AttributeDescriptor struct {
	Name     string        `json:"name" yaml:"name"`
	Type     AttributeType `json:"type" yaml:"type"`
	Nullable bool          `json:"nullable" yaml:"nullable"`
}

// FeatureType describes the schema shared by all features of a type
type FeatureType struct {
	Name         string                `json:"name"`
	Attributes   []AttributeDescriptor `json:"attributes"`
	GeometryName string                `json:"geometryName,omitempty"`
	CRS          string                `json:"crs,omitempty"`
}

func NewFeatureType(name string, attributes ...AttributeDescriptor) *FeatureType {
	return &FeatureType{
		Name:         name,
		Attributes:   attributes,
		GeometryName: DefaultGeometryName,
		CRS:          WGS84.Code,
	}
}

func (ft *FeatureType) Attribute(name string) (AttributeDescriptor, bool) {
	for _, a := range ft.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeDescriptor{}, false
}

func (ft *FeatureType) AttributeNames() []string {
	names := make([]string, 0, len(ft.Attributes))
	for _, a := range ft.Attributes {
		names = append(names, a.Name)
	}
	return names
}

func (ft *FeatureType) Geometry() string {
	if ft.GeometryName == "" {
		return DefaultGeometryName
	}
	return ft.GeometryName
}

// Retype returns a copy of the feature type restricted to the named attributes.
// An empty list keeps every attribute.
func (ft *FeatureType) Retype(properties []string) *FeatureType {
	clone := *ft
	if len(properties) == 0 {
		clone.Attributes = append([]AttributeDescriptor{}, ft.Attributes...)
		return &clone
	}

	clone.Attributes = []AttributeDescriptor{}
	for _, p := range properties {
		if a, ok := ft.Attribute(p); ok {
			clone.Attributes = append(clone.Attributes, a)
		}
	}
	return &clone
}

// Validate checks that the feature conforms to the feature type
func (ft *FeatureType) Validate(f *Feature) error {
	for name, value := range f.Properties {
		a, ok := ft.Attribute(name)
		if !ok {
			return fmt.Errorf("%w: unknown attribute %s on type %s", ErrInvalidFeature, name, ft.Name)
		}
		if value == nil {
			if !a.Nullable {
				return fmt.Errorf("%w: attribute %s may not be null", ErrInvalidFeature, name)
			}
			continue
		}
		if !a.Type.accepts(value) {
			return fmt.Errorf("%w: attribute %s expects %s, got %T", ErrInvalidFeature, name, a.Type, value)
		}
	}

	for _, a := range ft.Attributes {
		if a.Nullable {
			continue
		}
		if _, ok := f.Properties[a.Name]; !ok {
			return fmt.Errorf("%w: missing attribute %s", ErrInvalidFeature, a.Name)
		}
	}

	return nil
}

func (t AttributeType) accepts(value any) bool {
	switch t {
	case String:
		_, ok := value.(string)
		return ok
	case Integer:
		f, ok := ToFloat(value)
		return ok && f == math.Trunc(f)
	case Float:
		_, ok := ToFloat(value)
		return ok
	case Boolean:
		_, ok := value.(bool)
		return ok
	case DateTime:
		_, ok := ToTime(value)
		return ok
	case Geometry:
		_, ok := value.(geom.T)
		return ok
	case Any:
		return true
	}
	return false
}

// Feature is a single record of a feature type. Properties never contain
// the default geometry, it is kept in Geometry.
type Feature struct {
	ID           string
	Type         string
	GeometryName string
	Properties   map[string]any
	Geometry     geom.T
}

func NewFeature(id, typeName string, properties map[string]any, g geom.T) *Feature {
	if properties == nil {
		properties = map[string]any{}
	}
	return &Feature{
		ID:           id,
		Type:         typeName,
		GeometryName: DefaultGeometryName,
		Properties:   properties,
		Geometry:     g,
	}
}

// Property resolves a property name against the feature, including the
// identifier and geometry pseudo properties.
func (f *Feature) Property(name string) (any, bool) {
	if name == IDProperty {
		return f.ID, true
	}
	if v, ok := f.Properties[name]; ok {
		return v, true
	}
	if name == f.GeometryName || (f.GeometryName == "" && name == DefaultGeometryName) {
		if f.Geometry == nil {
			return nil, true
		}
		return f.Geometry, true
	}
	return nil, false
}

func (f *Feature) Clone() *Feature {
	props := make(map[string]any, len(f.Properties))
	for k, v := range f.Properties {
		props[k] = v
	}
	return &Feature{
		ID:           f.ID,
		Type:         f.Type,
		GeometryName: f.GeometryName,
		Properties:   props,
		Geometry:     f.Geometry,
	}
}

func (f *Feature) Bounds() *geom.Bounds {
	if f.Geometry == nil {
		return nil
	}
	return f.Geometry.Bounds()
}

// ToFloat converts any numeric value to a float64
func ToFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func ToTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
