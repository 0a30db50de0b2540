package csw

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

const (
	NamespaceCSW   string = "http://www.opengis.net/cat/csw/2.0.2"
	NamespaceOWS   string = "http://www.opengis.net/ows"
	NamespaceOGC   string = "http://www.opengis.net/ogc"
	NamespaceGML   string = "http://www.opengis.net/gml"
	NamespaceDC    string = "http://purl.org/dc/elements/1.1/"
	NamespaceDCT   string = "http://purl.org/dc/terms/"
	NamespaceXLink string = "http://www.w3.org/1999/xlink"

	Service string = "CSW"
	Version string = "2.0.2"
)

// ows exception codes
const (
	OperationNotSupported    string = "OperationNotSupported"
	MissingParameterValue    string = "MissingParameterValue"
	InvalidParameterValue    string = "InvalidParameterValue"
	VersionNegotiationFailed string = "VersionNegotiationFailed"
	NoApplicableCode         string = "NoApplicableCode"
)

type ExceptionReport struct {
	XMLName    xml.Name    `xml:"http://www.opengis.net/ows ExceptionReport"`
	Version    string      `xml:"version,attr"`
	Language   string      `xml:"language,attr,omitempty"`
	Exceptions []Exception `xml:"http://www.opengis.net/ows Exception"`
}

type Exception struct {
	ExceptionCode string   `xml:"exceptionCode,attr"`
	Locator       string   `xml:"locator,attr,omitempty"`
	ExceptionText []string `xml:"http://www.opengis.net/ows ExceptionText,omitempty"`
}

// ServiceError is an error that is reported to clients as an ows exception
type ServiceError struct {
	Code    string
	Locator string
	Text    string
}

func (e *ServiceError) Error() string {
	if e.Locator != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Locator, e.Text)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Text)
}

func (e *ServiceError) Report() *ExceptionReport {
	ex := Exception{ExceptionCode: e.Code, Locator: e.Locator}
	if e.Text != "" {
		ex.ExceptionText = []string{e.Text}
	}
	return &ExceptionReport{Version: "1.2.0", Exceptions: []Exception{ex}}
}

func NewServiceError(code, locator, format string, args ...any) *ServiceError {
	return &ServiceError{Code: code, Locator: locator, Text: fmt.Sprintf(format, args...)}
}

type BoundingBox struct {
	CRS         string `xml:"crs,attr,omitempty"`
	Dimensions  int    `xml:"dimensions,attr,omitempty"`
	LowerCorner string `xml:"http://www.opengis.net/ows LowerCorner"`
	UpperCorner string `xml:"http://www.opengis.net/ows UpperCorner"`
}

func NewBoundingBox(crs string, minX, minY, maxX, maxY float64) BoundingBox {
	return BoundingBox{
		CRS:         crs,
		LowerCorner: formatCorner(minX, minY),
		UpperCorner: formatCorner(maxX, maxY),
	}
}

func formatCorner(x, y float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64) + " " + strconv.FormatFloat(y, 'f', -1, 64)
}

// Corners returns minX, minY, maxX and maxY
func (b BoundingBox) Corners() ([4]float64, error) {
	result := [4]float64{}

	lower, err := parsePositions(b.LowerCorner)
	if err != nil || len(lower) != 2 {
		return result, fmt.Errorf("invalid lower corner %q", b.LowerCorner)
	}
	upper, err := parsePositions(b.UpperCorner)
	if err != nil || len(upper) != 2 {
		return result, fmt.Errorf("invalid upper corner %q", b.UpperCorner)
	}

	return [4]float64{lower[0], lower[1], upper[0], upper[1]}, nil
}

func parsePositions(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\n' || r == '\t' || r == '\r'
	})

	result := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

type Capabilities struct {
	XMLName               xml.Name              `xml:"http://www.opengis.net/cat/csw/2.0.2 Capabilities"`
	Version               string                `xml:"version,attr"`
	ServiceIdentification ServiceIdentification `xml:"http://www.opengis.net/ows ServiceIdentification"`
	ServiceProvider       ServiceProvider       `xml:"http://www.opengis.net/ows ServiceProvider"`
	OperationsMetadata    OperationsMetadata    `xml:"http://www.opengis.net/ows OperationsMetadata"`
	FilterCapabilities    *FilterCapabilities   `xml:"http://www.opengis.net/ogc Filter_Capabilities,omitempty"`
}

type ServiceIdentification struct {
	Title              string    `xml:"http://www.opengis.net/ows Title"`
	Abstract           string    `xml:"http://www.opengis.net/ows Abstract,omitempty"`
	Keywords           *Keywords `xml:"http://www.opengis.net/ows Keywords,omitempty"`
	ServiceType        string    `xml:"http://www.opengis.net/ows ServiceType"`
	ServiceTypeVersion []string  `xml:"http://www.opengis.net/ows ServiceTypeVersion"`
	Fees               string    `xml:"http://www.opengis.net/ows Fees,omitempty"`
	AccessConstraints  string    `xml:"http://www.opengis.net/ows AccessConstraints,omitempty"`
}

type Keywords struct {
	Keyword []string `xml:"http://www.opengis.net/ows Keyword"`
}

type ServiceProvider struct {
	ProviderName   string          `xml:"http://www.opengis.net/ows ProviderName"`
	ProviderSite   *OnlineResource `xml:"http://www.opengis.net/ows ProviderSite,omitempty"`
	ServiceContact ServiceContact  `xml:"http://www.opengis.net/ows ServiceContact"`
}

type OnlineResource struct {
	Href string `xml:"http://www.w3.org/1999/xlink href,attr"`
}

type ServiceContact struct {
	IndividualName string `xml:"http://www.opengis.net/ows IndividualName,omitempty"`
	PositionName   string `xml:"http://www.opengis.net/ows PositionName,omitempty"`
}

type OperationsMetadata struct {
	Operations  []Operation `xml:"http://www.opengis.net/ows Operation"`
	Parameters  []Domain    `xml:"http://www.opengis.net/ows Parameter,omitempty"`
	Constraints []Domain    `xml:"http://www.opengis.net/ows Constraint,omitempty"`
}

type Operation struct {
	Name        string   `xml:"name,attr"`
	DCP         DCP      `xml:"http://www.opengis.net/ows DCP"`
	Parameters  []Domain `xml:"http://www.opengis.net/ows Parameter,omitempty"`
	Constraints []Domain `xml:"http://www.opengis.net/ows Constraint,omitempty"`
}

type DCP struct {
	HTTP HTTP `xml:"http://www.opengis.net/ows HTTP"`
}

type HTTP struct {
	Get  []OnlineResource `xml:"http://www.opengis.net/ows Get,omitempty"`
	Post []OnlineResource `xml:"http://www.opengis.net/ows Post,omitempty"`
}

type Domain struct {
	Name   string   `xml:"name,attr"`
	Values []string `xml:"http://www.opengis.net/ows Value"`
}

type FilterCapabilities struct {
	SpatialCapabilities SpatialCapabilities `xml:"http://www.opengis.net/ogc Spatial_Capabilities"`
	ScalarCapabilities  ScalarCapabilities  `xml:"http://www.opengis.net/ogc Scalar_Capabilities"`
	IDCapabilities      IDCapabilities      `xml:"http://www.opengis.net/ogc Id_Capabilities"`
}

type SpatialCapabilities struct {
	GeometryOperands []string          `xml:"http://www.opengis.net/ogc GeometryOperands>GeometryOperand"`
	SpatialOperators []SpatialOperator `xml:"http://www.opengis.net/ogc SpatialOperators>SpatialOperator"`
}

type SpatialOperator struct {
	Name string `xml:"name,attr"`
}

type ScalarCapabilities struct {
	LogicalOperators    *struct{} `xml:"http://www.opengis.net/ogc LogicalOperators,omitempty"`
	ComparisonOperators []string  `xml:"http://www.opengis.net/ogc ComparisonOperators>ComparisonOperator"`
}

type IDCapabilities struct {
	EID []struct{} `xml:"http://www.opengis.net/ogc EID"`
	FID []struct{} `xml:"http://www.opengis.net/ogc FID"`
}
