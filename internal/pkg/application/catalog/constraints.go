package catalog

import (
	"strings"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore/filter"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain/csw"
	"github.com/twpayne/go-geom"
)

// anyText is the queryable that matches against every text element
const anyText string = "anytext"

// queryable resolves a csw queryable, with or without its prefix, to the
// record property holding it
func queryable(name string) (string, error) {
	local := strings.TrimSpace(name)
	if i := strings.LastIndex(local, ":"); i >= 0 {
		local = local[i+1:]
	}
	local = strings.ToLower(local)

	switch local {
	case "identifier":
		return domain.IDProperty, nil
	case "", "boundingbox", "bbox", "envelope", "geometry":
		return domain.DefaultGeometryName, nil
	case anyText:
		return anyText, nil
	}

	for _, p := range textProperties {
		if p == local {
			return p, nil
		}
	}
	if isListProperty(local) {
		return local, nil
	}

	return "", csw.NewServiceError(csw.InvalidParameterValue, "PropertyName", "%s is not a supported queryable", name)
}

// eachValue matches list properties when one of the values matches
type eachValue struct {
	property string
	filter   filter.Filter
}

func (e *eachValue) Evaluate(f *domain.Feature) bool {
	v, _ := f.Property(e.property)

	values, ok := v.([]any)
	if !ok {
		if s, ok := v.([]string); ok {
			for _, str := range s {
				values = append(values, str)
			}
		} else {
			return e.filter.Evaluate(f)
		}
	}

	for _, value := range values {
		single := &domain.Feature{ID: f.ID, Properties: map[string]any{e.property: value}}
		if e.filter.Evaluate(single) {
			return true
		}
	}
	return false
}

// onProperty builds a filter on the property behind a queryable. AnyText
// matches when any text or list property matches.
func onProperty(name string, build func(expr filter.Expression) (filter.Filter, error)) (filter.Filter, error) {
	property, err := queryable(name)
	if err != nil {
		return nil, err
	}

	if property == anyText {
		filters := []filter.Filter{}
		for _, p := range append(append([]string{}, textProperties...), listProperties...) {
			f, err := onProperty(p, build)
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		}
		return filter.AnyOf(filters...), nil
	}

	f, err := build(filter.Property(property))
	if err != nil {
		return nil, err
	}

	if isListProperty(property) {
		return &eachValue{property: property, filter: f}, nil
	}
	return f, nil
}

// toFilter translates an ogc filter into a feature filter
func toFilter(c *csw.Constraint) (filter.Filter, error) {
	if c == nil {
		return filter.Include, nil
	}

	if c.CqlText != "" {
		return nil, csw.NewServiceError(csw.InvalidParameterValue, "Constraint", "CQL_TEXT constraints are not supported, use FILTER")
	}

	if c.Filter == nil {
		return filter.Include, nil
	}

	if c.Filter.Count() == 0 {
		return nil, csw.NewServiceError(csw.InvalidParameterValue, "Constraint", "the filter has no operator")
	}

	return allOf(c.Filter.Operators)
}

func allOf(ops csw.Operators) (filter.Filter, error) {
	filters, err := translate(ops)
	if err != nil {
		return nil, err
	}
	return filter.AllOf(filters...), nil
}

func translate(ops csw.Operators) ([]filter.Filter, error) {
	result := []filter.Filter{}
	add := func(f filter.Filter, err error) error {
		if err != nil {
			return err
		}
		result = append(result, f)
		return nil
	}

	for _, and := range ops.And {
		if err := add(allOf(and)); err != nil {
			return nil, err
		}
	}

	for _, or := range ops.Or {
		filters, err := translate(or)
		if err != nil {
			return nil, err
		}
		result = append(result, filter.AnyOf(filters...))
	}

	for _, not := range ops.Not {
		f, err := allOf(not)
		if err != nil {
			return nil, err
		}
		result = append(result, filter.Negate(f))
	}

	comparisons := []struct {
		ops   []csw.BinaryComparison
		build func(left, right filter.Expression) *filter.Comparison
	}{
		{ops.PropertyIsEqualTo, filter.EqualTo},
		{ops.PropertyIsNotEqualTo, filter.NotEqualTo},
		{ops.PropertyIsLessThan, filter.LessThan},
		{ops.PropertyIsGreaterThan, filter.GreaterThan},
		{ops.PropertyIsLessThanOrEqualTo, filter.LessThanOrEqualTo},
		{ops.PropertyIsGreaterThanOrEqualTo, filter.GreaterThanOrEqualTo},
	}

	for _, c := range comparisons {
		for _, bc := range c.ops {
			if err := add(comparison(bc, c.build)); err != nil {
				return nil, err
			}
		}
	}

	for _, like := range ops.PropertyIsLike {
		if err := add(likeFilter(like)); err != nil {
			return nil, err
		}
	}

	for _, isNull := range ops.PropertyIsNull {
		property, err := queryable(isNull.PropertyName)
		if err != nil {
			return nil, err
		}
		result = append(result, &filter.IsNull{Expression: filter.Property(property)})
	}

	for _, between := range ops.PropertyIsBetween {
		f, err := onProperty(between.PropertyName, func(expr filter.Expression) (filter.Filter, error) {
			return &filter.Between{
				Expression: expr,
				Lower:      filter.Literal(between.LowerBoundary.Literal),
				Upper:      filter.Literal(between.UpperBoundary.Literal),
			}, nil
		})
		if err := add(f, err); err != nil {
			return nil, err
		}
	}

	for _, bbox := range ops.BBOX {
		if err := add(bboxFilter(bbox)); err != nil {
			return nil, err
		}
	}

	spatials := []struct {
		op  filter.SpatialOperator
		ops []csw.BinarySpatial
	}{
		{filter.OpIntersects, ops.Intersects},
		{filter.OpWithin, ops.Within},
		{filter.OpContains, ops.Contains},
		{filter.OpDisjoint, ops.Disjoint},
	}

	for _, s := range spatials {
		for _, bs := range s.ops {
			if err := add(spatialFilter(s.op, bs)); err != nil {
				return nil, err
			}
		}
	}

	for _, dw := range ops.DWithin {
		if err := add(dwithinFilter(dw)); err != nil {
			return nil, err
		}
	}

	ids := []string{}
	for _, fid := range ops.FeatureID {
		ids = append(ids, fid.FID)
	}
	for _, gid := range ops.GmlObjectID {
		ids = append(ids, gid.ID)
	}
	if len(ids) > 0 {
		result = append(result, filter.ID(ids...))
	}

	return result, nil
}

func comparison(bc csw.BinaryComparison, build func(left, right filter.Expression) *filter.Comparison) (filter.Filter, error) {
	return onProperty(bc.PropertyName, func(expr filter.Expression) (filter.Filter, error) {
		c := build(expr, filter.Literal(bc.Literal))
		if bc.MatchCase != nil {
			c.MatchCase = *bc.MatchCase
		}
		return c, nil
	})
}

func likeFilter(like csw.PropertyIsLike) (filter.Filter, error) {
	matchCase := true
	if like.MatchCase != nil {
		matchCase = *like.MatchCase
	}

	return onProperty(like.PropertyName, func(expr filter.Expression) (filter.Filter, error) {
		f, err := filter.NewLike(expr, like.Literal, like.WildCard, like.SingleChar, like.EscapeCharacter(), matchCase)
		if err != nil {
			return nil, csw.NewServiceError(csw.InvalidParameterValue, "PropertyIsLike", "%s", err.Error())
		}
		return f, nil
	})
}

func geometryProperty(name string) (string, error) {
	property, err := queryable(name)
	if err != nil {
		return "", err
	}
	if property != domain.DefaultGeometryName {
		return "", csw.NewServiceError(csw.InvalidParameterValue, "PropertyName", "%s is not a spatial queryable", name)
	}
	return property, nil
}

func bboxFilter(bbox csw.BBOX) (filter.Filter, error) {
	property, err := geometryProperty(bbox.PropertyName)
	if err != nil {
		return nil, err
	}

	if bbox.Envelope == nil {
		return nil, csw.NewServiceError(csw.InvalidParameterValue, "BBOX", "BBOX needs an envelope")
	}

	g, err := toGeometry(csw.Geometry{Envelope: bbox.Envelope})
	if err != nil {
		return nil, err
	}

	b := g.Bounds()
	return filter.NewBBox(property, b.Min(0), b.Min(1), b.Max(0), b.Max(1)), nil
}

func spatialFilter(op filter.SpatialOperator, bs csw.BinarySpatial) (filter.Filter, error) {
	property, err := geometryProperty(bs.PropertyName)
	if err != nil {
		return nil, err
	}

	g, err := toGeometry(bs.Geometry)
	if err != nil {
		return nil, err
	}

	f, err := filter.NewSpatial(op, property, g)
	if err != nil {
		return nil, csw.NewServiceError(csw.InvalidParameterValue, string(op), "%s", err.Error())
	}
	return f, nil
}

func dwithinFilter(dw csw.DWithin) (filter.Filter, error) {
	property, err := geometryProperty(dw.PropertyName)
	if err != nil {
		return nil, err
	}

	g, err := toGeometry(dw.Geometry)
	if err != nil {
		return nil, err
	}

	var factor float64
	switch strings.ToLower(dw.Distance.Units) {
	case "", "m", "meter", "meters", "metre", "metres", "urn:ogc:def:uom:epsg::9001":
		factor = 1
	case "km", "kilometer", "kilometers", "kilometre", "kilometres":
		factor = 1000
	default:
		return nil, csw.NewServiceError(csw.InvalidParameterValue, "Distance", "unsupported distance unit %s", dw.Distance.Units)
	}

	f, err := filter.NewDWithin(property, g, dw.Distance.Value*factor)
	if err != nil {
		return nil, csw.NewServiceError(csw.InvalidParameterValue, "DWithin", "%s", err.Error())
	}
	return f, nil
}

// toGeometry converts a gml operand to a lon/lat geometry
func toGeometry(g csw.Geometry) (geom.T, error) {
	invalid := func(err error) error {
		return csw.NewServiceError(csw.InvalidParameterValue, "Geometry", "%s", err.Error())
	}

	switch {
	case g.Envelope != nil:
		corners, err := g.Envelope.Corners()
		if err != nil {
			return nil, invalid(err)
		}
		return envelopeGeometry(g.Envelope.SrsName, corners)

	case g.Point != nil:
		coords, err := g.Point.Positions()
		if err != nil || len(coords) != 2 {
			return nil, csw.NewServiceError(csw.InvalidParameterValue, "Point", "a point needs exactly two coordinates")
		}
		flat, err := lonLat(g.Point.SrsName, coords)
		if err != nil {
			return nil, err
		}
		return geom.NewPointFlat(geom.XY, flat), nil

	case g.LineString != nil:
		coords, err := g.LineString.Positions()
		if err != nil || len(coords) < 4 || len(coords)%2 != 0 {
			return nil, csw.NewServiceError(csw.InvalidParameterValue, "LineString", "a line needs at least two positions")
		}
		flat, err := lonLat(g.LineString.SrsName, coords)
		if err != nil {
			return nil, err
		}
		return geom.NewLineStringFlat(geom.XY, flat), nil

	case g.Polygon != nil:
		rings := append([]csw.Ring{g.Polygon.Exterior}, g.Polygon.Interior...)
		flat := []float64{}
		ends := []int{}
		for _, ring := range rings {
			coords, err := ring.LinearRing.Positions()
			if err != nil || len(coords) < 8 || len(coords)%2 != 0 {
				return nil, csw.NewServiceError(csw.InvalidParameterValue, "Polygon", "a ring needs at least four positions")
			}
			ringCoords, err := lonLat(g.Polygon.SrsName, coords)
			if err != nil {
				return nil, err
			}
			flat = append(flat, ringCoords...)
			ends = append(ends, len(flat))
		}
		return geom.NewPolygonFlat(geom.XY, flat, ends), nil
	}

	return nil, csw.NewServiceError(csw.InvalidParameterValue, "Geometry", "a supported gml geometry is required")
}

func lonLat(srs string, coords []float64) ([]float64, error) {
	transform, err := transformFrom(srs)
	if err != nil {
		return nil, err
	}

	swap := swapsAxes(srs)
	result := make([]float64, len(coords))
	for i := 0; i+1 < len(coords); i += 2 {
		x, y := coords[i], coords[i+1]
		if swap {
			x, y = y, x
		}
		result[i], result[i+1] = transform(x, y)
	}
	return result, nil
}

// toSortBy maps sort properties to record properties
func toSortBy(sb *csw.SortBy) ([]featurestore.SortBy, error) {
	if sb == nil {
		return nil, nil
	}

	result := []featurestore.SortBy{}
	for _, sp := range sb.SortProperty {
		property, err := queryable(sp.PropertyName)
		if err != nil {
			return nil, err
		}
		if property == anyText || property == domain.DefaultGeometryName {
			return nil, csw.NewServiceError(csw.InvalidParameterValue, "SortBy", "unable to sort by %s", sp.PropertyName)
		}

		switch strings.ToUpper(sp.SortOrder) {
		case "", "ASC":
			result = append(result, featurestore.SortBy{Property: property})
		case "DESC":
			result = append(result, featurestore.SortBy{Property: property, Descending: true})
		default:
			return nil, csw.NewServiceError(csw.InvalidParameterValue, "SortOrder", "invalid sort order %s", sp.SortOrder)
		}
	}
	return result, nil
}
