package csw

import (
	"encoding/xml"
)

// Operators holds the operators of a filter or of a logical operator.
// The order between operators of different kinds is not kept, which does
// not matter for the and/or/not combinations they are used in.
type Operators struct {
	And []Operators `xml:"http://www.opengis.net/ogc And"`
	Or  []Operators `xml:"http://www.opengis.net/ogc Or"`
	Not []Operators `xml:"http://www.opengis.net/ogc Not"`

	PropertyIsEqualTo              []BinaryComparison  `xml:"http://www.opengis.net/ogc PropertyIsEqualTo"`
	PropertyIsNotEqualTo           []BinaryComparison  `xml:"http://www.opengis.net/ogc PropertyIsNotEqualTo"`
	PropertyIsLessThan             []BinaryComparison  `xml:"http://www.opengis.net/ogc PropertyIsLessThan"`
	PropertyIsGreaterThan          []BinaryComparison  `xml:"http://www.opengis.net/ogc PropertyIsGreaterThan"`
	PropertyIsLessThanOrEqualTo    []BinaryComparison  `xml:"http://www.opengis.net/ogc PropertyIsLessThanOrEqualTo"`
	PropertyIsGreaterThanOrEqualTo []BinaryComparison  `xml:"http://www.opengis.net/ogc PropertyIsGreaterThanOrEqualTo"`
	PropertyIsLike                 []PropertyIsLike    `xml:"http://www.opengis.net/ogc PropertyIsLike"`
	PropertyIsNull                 []PropertyIsNull    `xml:"http://www.opengis.net/ogc PropertyIsNull"`
	PropertyIsBetween              []PropertyIsBetween `xml:"http://www.opengis.net/ogc PropertyIsBetween"`

	BBOX       []BBOX          `xml:"http://www.opengis.net/ogc BBOX"`
	Intersects []BinarySpatial `xml:"http://www.opengis.net/ogc Intersects"`
	Within     []BinarySpatial `xml:"http://www.opengis.net/ogc Within"`
	Contains   []BinarySpatial `xml:"http://www.opengis.net/ogc Contains"`
	Disjoint   []BinarySpatial `xml:"http://www.opengis.net/ogc Disjoint"`
	DWithin    []DWithin       `xml:"http://www.opengis.net/ogc DWithin"`

	FeatureID   []FeatureID   `xml:"http://www.opengis.net/ogc FeatureId"`
	GmlObjectID []GmlObjectID `xml:"http://www.opengis.net/ogc GmlObjectId"`
}

// Count returns the number of direct children
func (o Operators) Count() int {
	return len(o.And) + len(o.Or) + len(o.Not) +
		len(o.PropertyIsEqualTo) + len(o.PropertyIsNotEqualTo) +
		len(o.PropertyIsLessThan) + len(o.PropertyIsGreaterThan) +
		len(o.PropertyIsLessThanOrEqualTo) + len(o.PropertyIsGreaterThanOrEqualTo) +
		len(o.PropertyIsLike) + len(o.PropertyIsNull) + len(o.PropertyIsBetween) +
		len(o.BBOX) + len(o.Intersects) + len(o.Within) + len(o.Contains) +
		len(o.Disjoint) + len(o.DWithin) +
		len(o.FeatureID) + len(o.GmlObjectID)
}

type Filter struct {
	XMLName xml.Name `xml:"http://www.opengis.net/ogc Filter"`
	Operators
}

type BinaryComparison struct {
	MatchCase    *bool  `xml:"matchCase,attr,omitempty"`
	PropertyName string `xml:"http://www.opengis.net/ogc PropertyName"`
	Literal      string `xml:"http://www.opengis.net/ogc Literal"`
}

type PropertyIsLike struct {
	WildCard     string `xml:"wildCard,attr"`
	SingleChar   string `xml:"singleChar,attr"`
	EscapeChar   string `xml:"escapeChar,attr,omitempty"`
	Escape       string `xml:"escape,attr,omitempty"`
	MatchCase    *bool  `xml:"matchCase,attr,omitempty"`
	PropertyName string `xml:"http://www.opengis.net/ogc PropertyName"`
	Literal      string `xml:"http://www.opengis.net/ogc Literal"`
}

// EscapeCharacter returns the escape character, accepting the filter 1.0
// attribute name as well
func (l PropertyIsLike) EscapeCharacter() string {
	if l.EscapeChar != "" {
		return l.EscapeChar
	}
	return l.Escape
}

type PropertyIsNull struct {
	PropertyName string `xml:"http://www.opengis.net/ogc PropertyName"`
}

type PropertyIsBetween struct {
	PropertyName  string   `xml:"http://www.opengis.net/ogc PropertyName"`
	LowerBoundary Boundary `xml:"http://www.opengis.net/ogc LowerBoundary"`
	UpperBoundary Boundary `xml:"http://www.opengis.net/ogc UpperBoundary"`
}

type Boundary struct {
	Literal string `xml:"http://www.opengis.net/ogc Literal"`
}

type BBOX struct {
	PropertyName string    `xml:"http://www.opengis.net/ogc PropertyName,omitempty"`
	Envelope     *Envelope `xml:"http://www.opengis.net/gml Envelope"`
}

// Geometry is one of the gml geometries allowed as a spatial operand
type Geometry struct {
	Envelope   *Envelope   `xml:"http://www.opengis.net/gml Envelope,omitempty"`
	Point      *Point      `xml:"http://www.opengis.net/gml Point,omitempty"`
	LineString *LineString `xml:"http://www.opengis.net/gml LineString,omitempty"`
	Polygon    *Polygon    `xml:"http://www.opengis.net/gml Polygon,omitempty"`
}

type BinarySpatial struct {
	PropertyName string `xml:"http://www.opengis.net/ogc PropertyName"`
	Geometry
}

type DWithin struct {
	PropertyName string `xml:"http://www.opengis.net/ogc PropertyName"`
	Geometry
	Distance Distance `xml:"http://www.opengis.net/ogc Distance"`
}

type Distance struct {
	Units string  `xml:"units,attr"`
	Value float64 `xml:",chardata"`
}

type FeatureID struct {
	FID string `xml:"fid,attr"`
}

type GmlObjectID struct {
	ID string `xml:"http://www.opengis.net/gml id,attr"`
}

type Envelope struct {
	SrsName     string `xml:"srsName,attr,omitempty"`
	LowerCorner string `xml:"http://www.opengis.net/gml lowerCorner"`
	UpperCorner string `xml:"http://www.opengis.net/gml upperCorner"`
}

// Corners returns minX, minY, maxX and maxY
func (e Envelope) Corners() ([4]float64, error) {
	return BoundingBox{LowerCorner: e.LowerCorner, UpperCorner: e.UpperCorner}.Corners()
}

type Point struct {
	SrsName     string `xml:"srsName,attr,omitempty"`
	Pos         string `xml:"http://www.opengis.net/gml pos,omitempty"`
	Coordinates string `xml:"http://www.opengis.net/gml coordinates,omitempty"`
}

type LineString struct {
	SrsName string   `xml:"srsName,attr,omitempty"`
	PosList string   `xml:"http://www.opengis.net/gml posList,omitempty"`
	Pos     []string `xml:"http://www.opengis.net/gml pos,omitempty"`
}

type Polygon struct {
	SrsName  string `xml:"srsName,attr,omitempty"`
	Exterior Ring   `xml:"http://www.opengis.net/gml exterior"`
	Interior []Ring `xml:"http://www.opengis.net/gml interior,omitempty"`
}

type Ring struct {
	LinearRing LineString `xml:"http://www.opengis.net/gml LinearRing"`
}

// Positions returns the flat coordinates of a point
func (p Point) Positions() ([]float64, error) {
	if p.Pos != "" {
		return parsePositions(p.Pos)
	}
	return parsePositions(p.Coordinates)
}

// Positions returns the flat coordinates of a line or ring
func (l LineString) Positions() ([]float64, error) {
	if l.PosList != "" {
		return parsePositions(l.PosList)
	}

	result := []float64{}
	for _, pos := range l.Pos {
		coords, err := parsePositions(pos)
		if err != nil {
			return nil, err
		}
		result = append(result, coords...)
	}
	return result, nil
}

type SortBy struct {
	SortProperty []SortProperty `xml:"http://www.opengis.net/ogc SortProperty"`
}

type SortProperty struct {
	PropertyName string `xml:"http://www.opengis.net/ogc PropertyName"`
	SortOrder    string `xml:"http://www.opengis.net/ogc SortOrder,omitempty"`
}
