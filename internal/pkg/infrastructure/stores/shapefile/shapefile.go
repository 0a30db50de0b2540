package shapefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/folder"
	"github.com/jonas-p/go-shp"
)

const Extension string = ".shp"

// dbf field names are limited to ten characters
const maxFieldName int = 10

const dateLayout string = "20060102"

// Format reads and writes ESRI shapefiles. Attributes live in the dbf file
// next to the shp file and features are identified by their record number.
type Format struct{}

var (
	_ folder.Format        = Format{}
	_ folder.SchemaChecker = Format{}
)

// Open serves a single shapefile as a data store
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
	r, err := shp.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	var fields []shp.Field
	if _, err := os.Stat(strings.TrimSuffix(path, filepath.Ext(path)) + ".dbf"); err == nil {
		fields = r.Fields()
	}
	attributes := make([]domain.AttributeDescriptor, 0, len(fields))
	for _, f := range fields {
		attributes = append(attributes, domain.AttributeDescriptor{
			Name:     fieldName(f),
			Type:     attributeType(f),
			Nullable: true,
		})
	}

	schema := domain.NewFeatureType(typeName, attributes...)
	schema.CRS = crsOf(path)

	features := []*domain.Feature{}
	for r.Next() {
		n, shape := r.Shape()

		g, err := toGeometry(shape)
		if err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", n+1, err)
		}

		props := map[string]any{}
		for i, a := range schema.Attributes {
			props[a.Name] = parseValue(a.Type, r.ReadAttribute(n, i))
		}

		f := domain.NewFeature(fmt.Sprintf("%s.%d", typeName, n+1), typeName, props, g)
		features = append(features, f)
	}

	if err := r.Err(); err != nil {
		return nil, nil, err
	}

	return schema, features, nil
}

func fieldName(f shp.Field) string {
	return strings.TrimRight(string(f.Name[:]), "\x00 ")
}

func attributeType(f shp.Field) domain.AttributeType {
	switch f.Fieldtype {
	case 'N':
		if f.Precision > 0 {
			return domain.Float
		}
		return domain.Integer
	case 'F':
		return domain.Float
	case 'D':
		return domain.DateTime
	case 'L':
		return domain.Boolean
	}
	return domain.String
}

func parseValue(t domain.AttributeType, raw string) any {
	raw = strings.TrimSpace(strings.Trim(raw, "\x00"))
	if raw == "" {
		return nil
	}

	switch t {
	case domain.Integer:
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
		return nil
	case domain.Float:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
		return nil
	case domain.DateTime:
		if v, err := time.Parse(dateLayout, raw); err == nil {
			return v
		}
		return nil
	case domain.Boolean:
		switch strings.ToUpper(raw) {
		case "T", "Y":
			return true
		case "F", "N":
			return false
		}
		return nil
	}
	return raw
}

func formatValue(t domain.AttributeType, v any) string {
	if v == nil {
		return ""
	}

	switch t {
	case domain.Integer:
		if f, ok := domain.ToFloat(v); ok {
			return strconv.FormatInt(int64(f), 10)
		}
	case domain.Float:
		if f, ok := domain.ToFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case domain.DateTime:
		if tm, ok := domain.ToTime(v); ok {
			return tm.Format(dateLayout)
		}
	case domain.Boolean:
		if b, ok := v.(bool); ok && b {
			return "T"
		}
		return "F"
	}
	return fmt.Sprint(v)
}

// CheckSchema rejects feature types a dbf file can not hold without losing
// attributes
func (Format) CheckSchema(ft *domain.FeatureType) error {
	for _, a := range ft.Attributes {
		if a.Name == ft.Geometry() {
			continue
		}

		switch {
		case len(a.Name) > maxFieldName:
			return fmt.Errorf("%w: shapefile attribute names are limited to %d characters, %s is longer", domain.ErrInvalidFeature, maxFieldName, a.Name)
		case a.Type == domain.Geometry:
			return fmt.Errorf("%w: a shapefile holds a single geometry, %s is a second one", domain.ErrInvalidFeature, a.Name)
		case a.Type == domain.Any:
			return fmt.Errorf("%w: untyped attribute %s can not be stored in a shapefile", domain.ErrInvalidFeature, a.Name)
		}
	}
	return nil
}

func field(a domain.AttributeDescriptor) shp.Field {
	name := a.Name

	switch a.Type {
	case domain.Integer:
		return shp.NumberField(name, 18)
	case domain.Float:
		return shp.FloatField(name, 24, 8)
	case domain.DateTime:
		return shp.DateField(name)
	case domain.Boolean:
		f := shp.StringField(name, 1)
		f.Fieldtype = 'L'
		return f
	}
	return shp.StringField(name, 254)
}

func crsOf(path string) string {
	prj, err := os.ReadFile(strings.TrimSuffix(path, filepath.Ext(path)) + ".prj")
	if err == nil && strings.Contains(strings.ToLower(string(prj)), "mercator") {
		return domain.WebMercator.Code
	}
	return domain.WGS84.Code
}

// Write creates the shp, shx and dbf files under temporary names and moves
// them in place once complete
func (format Format) Write(path string, ft *domain.FeatureType, features []*domain.Feature) error {
	if err := format.CheckSchema(ft); err != nil {
		return err
	}

	shapeType, err := shapeTypeOf(features)
	if err != nil {
		return err
	}

	attributes := []domain.AttributeDescriptor{}
	fields := []shp.Field{}
	for _, a := range ft.Attributes {
		if a.Name == ft.Geometry() {
			continue
		}
		attributes = append(attributes, a)
		fields = append(fields, field(a))
	}

	base := strings.TrimSuffix(path, filepath.Ext(path))
	tmpBase := filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(base))

	w, err := shp.Create(tmpBase+Extension, shapeType)
	if err != nil {
		return err
	}

	if len(fields) > 0 {
		if err := w.SetFields(fields); err != nil {
			w.Close()
			return err
		}
	}

	for _, f := range features {
		shape, err := toShape(f.Geometry)
		if err != nil {
			w.Close()
			return fmt.Errorf("feature %s: %w", f.ID, err)
		}

		row := int(w.Write(shape))
		for i, a := range attributes {
			if err := w.WriteAttribute(row, i, formatValue(a.Type, f.Properties[a.Name])); err != nil {
				w.Close()
				return err
			}
		}
	}

	w.Close()

	if len(fields) == 0 {
		// no attributes, no dbf file
		os.Remove(tmpBase + ".dbf")
		os.Remove(base + ".dbf")
	} else if err := os.Rename(tmpBase+".dbf", base+".dbf"); err != nil {
		return err
	}

	for _, ext := range []string{".shx", Extension} {
		if err := os.Rename(tmpBase+ext, base+ext); err != nil {
			return err
		}
	}

	return writeProjection(base, ft.CRS)
}

func writeProjection(base, code string) error {
	crs, err := domain.LookupCRS(code)
	if err != nil {
		return err
	}

	prj := wgs84WKT
	if !crs.Geographic {
		prj = webMercatorWKT
	}
	return os.WriteFile(base+".prj", []byte(prj), 0644)
}

const wgs84WKT string = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

const webMercatorWKT string = `PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Mercator_Auxiliary_Sphere"],PARAMETER["False_Easting",0.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",0.0],PARAMETER["Standard_Parallel_1",0.0],PARAMETER["Auxiliary_Sphere_Type",0.0],UNIT["Meter",1.0]]`
