package catalog

import (
	"fmt"
	"strings"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain/csw"
	"github.com/twpayne/go-geom"
)

// RecordType is the feature type holding catalogue records
const RecordType string = "Record"

// bounding boxes are written in lon/lat order under this crs
const recordCRS string = "urn:ogc:def:crs:OGC:1.3:CRS84"

var textProperties = []string{
	"title", "type", "abstract", "modified", "creator", "publisher",
	"contributor", "language", "source", "rights", "date", "description",
}

var listProperties = []string{"subject", "format", "relation", "spatial", "references"}

func isListProperty(name string) bool {
	for _, p := range listProperties {
		if p == name {
			return true
		}
	}
	return false
}

func RecordSchema() *domain.FeatureType {
	attributes := []domain.AttributeDescriptor{}
	for _, p := range textProperties {
		attributes = append(attributes, domain.AttributeDescriptor{Name: p, Type: domain.String, Nullable: true})
	}
	for _, p := range listProperties {
		attributes = append(attributes, domain.AttributeDescriptor{Name: p, Type: domain.Any, Nullable: true})
	}
	return domain.NewFeatureType(RecordType, attributes...)
}

func toFeature(r csw.Record) (*domain.Feature, error) {
	text := map[string]string{
		"title":       r.Title,
		"type":        r.Type,
		"abstract":    r.Abstract,
		"modified":    r.Modified,
		"creator":     r.Creator,
		"publisher":   r.Publisher,
		"contributor": r.Contributor,
		"language":    r.Language,
		"source":      r.Source,
		"rights":      r.Rights,
		"date":        r.Date,
		"description": r.Description,
	}

	lists := map[string][]string{
		"subject":    r.Subject,
		"format":     r.Format,
		"relation":   r.Relation,
		"spatial":    r.Spatial,
		"references": r.References,
	}

	props := map[string]any{}
	for k, v := range text {
		if v = strings.TrimSpace(v); v != "" {
			props[k] = v
		}
	}
	for k, v := range lists {
		if len(v) > 0 {
			values := make([]any, 0, len(v))
			for _, s := range v {
				values = append(values, s)
			}
			props[k] = values
		}
	}

	var g geom.T
	if len(r.BoundingBox) > 0 {
		var err error
		if g, err = boundingBoxGeometry(r.BoundingBox[0]); err != nil {
			return nil, err
		}
	}

	return domain.NewFeature(strings.TrimSpace(r.Identifier), RecordType, props, g), nil
}

func boundingBoxGeometry(bbox csw.BoundingBox) (geom.T, error) {
	corners, err := bbox.Corners()
	if err != nil {
		return nil, csw.NewServiceError(csw.InvalidParameterValue, "BoundingBox", "%s", err.Error())
	}
	return envelopeGeometry(bbox.CRS, corners)
}

// envelopeGeometry returns a polygon in lon/lat, or a point when the
// envelope is degenerate
func envelopeGeometry(srs string, corners [4]float64) (geom.T, error) {
	if swapsAxes(srs) {
		corners = [4]float64{corners[1], corners[0], corners[3], corners[2]}
	}

	transform, err := transformFrom(srs)
	if err != nil {
		return nil, err
	}

	minX, minY := transform(corners[0], corners[1])
	maxX, maxY := transform(corners[2], corners[3])

	if minX == maxX && minY == maxY {
		return geom.NewPoint(geom.XY).SetCoords(geom.Coord{minX, minY})
	}

	return geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
}

// swapsAxes reports whether the crs uses the lat/lon axis order of the
// epsg definition instead of lon/lat
func swapsAxes(srs string) bool {
	s := strings.ToLower(srs)
	return strings.Contains(s, "urn:ogc:def:crs:epsg") && strings.HasSuffix(s, ":4326") ||
		strings.Contains(s, "urn:x-ogc:def:crs:epsg") && strings.HasSuffix(s, ":4326") ||
		strings.HasPrefix(s, "http://www.opengis.net/def/crs/epsg/0/4326")
}

func transformFrom(srs string) (domain.CoordTransform, error) {
	if swapsAxes(srs) {
		srs = domain.WGS84.Code
	}

	crs, err := domain.LookupCRS(srs)
	if err != nil {
		return nil, csw.NewServiceError(csw.InvalidParameterValue, "srsName", "%s", err.Error())
	}
	return domain.Transform(crs, domain.WGS84)
}

func toRecord(f *domain.Feature) csw.Record {
	r := csw.Record{
		Identifier:  f.ID,
		Title:       stringOf(f.Properties["title"]),
		Type:        stringOf(f.Properties["type"]),
		Abstract:    stringOf(f.Properties["abstract"]),
		Modified:    stringOf(f.Properties["modified"]),
		Creator:     stringOf(f.Properties["creator"]),
		Publisher:   stringOf(f.Properties["publisher"]),
		Contributor: stringOf(f.Properties["contributor"]),
		Language:    stringOf(f.Properties["language"]),
		Source:      stringOf(f.Properties["source"]),
		Rights:      stringOf(f.Properties["rights"]),
		Date:        stringOf(f.Properties["date"]),
		Description: stringOf(f.Properties["description"]),
		Subject:     stringsOf(f.Properties["subject"]),
		Format:      stringsOf(f.Properties["format"]),
		Relation:    stringsOf(f.Properties["relation"]),
		Spatial:     stringsOf(f.Properties["spatial"]),
		References:  stringsOf(f.Properties["references"]),
	}

	if f.Geometry != nil && len(f.Geometry.FlatCoords()) > 0 {
		b := f.Geometry.Bounds()
		r.BoundingBox = []csw.BoundingBox{
			csw.NewBoundingBox(recordCRS, b.Min(0), b.Min(1), b.Max(0), b.Max(1)),
		}
	}

	return r
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fmt.Sprint(v)
}

func stringsOf(v any) []string {
	switch values := v.(type) {
	case nil:
		return nil
	case []string:
		return values
	case []any:
		result := make([]string, 0, len(values))
		for _, e := range values {
			if s := stringOf(e); s != "" {
				result = append(result, s)
			}
		}
		return result
	case string:
		if values == "" {
			return nil
		}
		return []string{values}
	}
	return []string{fmt.Sprint(v)}
}

// valuesOf returns every record property of the feature, with nil for
// the missing ones, so that an update replaces the whole record
func valuesOf(f *domain.Feature) map[string]any {
	values := map[string]any{domain.DefaultGeometryName: f.Geometry}
	for _, p := range textProperties {
		values[p] = f.Properties[p]
	}
	for _, p := range listProperties {
		values[p] = f.Properties[p]
	}
	return values
}
