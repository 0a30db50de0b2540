package csw

import (
	"encoding/xml"
)

// result types
const (
	ResultTypeHits     string = "hits"
	ResultTypeResults  string = "results"
	ResultTypeValidate string = "validate"
)

const (
	OutputFormatXML    string = "application/xml"
	OutputSchemaRecord string = NamespaceCSW
)

type GetCapabilities struct {
	XMLName        xml.Name        `xml:"http://www.opengis.net/cat/csw/2.0.2 GetCapabilities"`
	Service        string          `xml:"service,attr"`
	AcceptVersions *AcceptVersions `xml:"http://www.opengis.net/ows AcceptVersions,omitempty"`
	Sections       *Sections       `xml:"http://www.opengis.net/ows Sections,omitempty"`
	AcceptFormats  *AcceptFormats  `xml:"http://www.opengis.net/ows AcceptFormats,omitempty"`
}

type AcceptVersions struct {
	Version []string `xml:"http://www.opengis.net/ows Version"`
}

type Sections struct {
	Section []string `xml:"http://www.opengis.net/ows Section"`
}

type AcceptFormats struct {
	OutputFormat []string `xml:"http://www.opengis.net/ows OutputFormat"`
}

type DescribeRecord struct {
	XMLName        xml.Name `xml:"http://www.opengis.net/cat/csw/2.0.2 DescribeRecord"`
	Service        string   `xml:"service,attr"`
	Version        string   `xml:"version,attr"`
	OutputFormat   string   `xml:"outputFormat,attr,omitempty"`
	SchemaLanguage string   `xml:"schemaLanguage,attr,omitempty"`
	TypeName       []string `xml:"http://www.opengis.net/cat/csw/2.0.2 TypeName,omitempty"`
}

type DescribeRecordResponse struct {
	XMLName         xml.Name          `xml:"http://www.opengis.net/cat/csw/2.0.2 DescribeRecordResponse"`
	SchemaComponent []SchemaComponent `xml:"http://www.opengis.net/cat/csw/2.0.2 SchemaComponent"`
}

type SchemaComponent struct {
	TargetNamespace string `xml:"targetNamespace,attr"`
	SchemaLanguage  string `xml:"schemaLanguage,attr"`
	Content         string `xml:",innerxml"`
}

type GetRecords struct {
	XMLName       xml.Name `xml:"http://www.opengis.net/cat/csw/2.0.2 GetRecords"`
	Service       string   `xml:"service,attr"`
	Version       string   `xml:"version,attr"`
	RequestID     string   `xml:"requestId,attr,omitempty"`
	ResultType    string   `xml:"resultType,attr,omitempty"`
	OutputFormat  string   `xml:"outputFormat,attr,omitempty"`
	OutputSchema  string   `xml:"outputSchema,attr,omitempty"`
	StartPosition int      `xml:"startPosition,attr,omitempty"`
	MaxRecords    *int     `xml:"maxRecords,attr,omitempty"`
	Query         *Query   `xml:"http://www.opengis.net/cat/csw/2.0.2 Query"`
}

type Query struct {
	TypeNames      string          `xml:"typeNames,attr"`
	ElementSetName *ElementSetName `xml:"http://www.opengis.net/cat/csw/2.0.2 ElementSetName,omitempty"`
	ElementName    []string        `xml:"http://www.opengis.net/cat/csw/2.0.2 ElementName,omitempty"`
	Constraint     *Constraint     `xml:"http://www.opengis.net/cat/csw/2.0.2 Constraint,omitempty"`
	SortBy         *SortBy         `xml:"http://www.opengis.net/ogc SortBy,omitempty"`
}

type ElementSetName struct {
	TypeNames string `xml:"typeNames,attr,omitempty"`
	Value     string `xml:",chardata"`
}

type Constraint struct {
	Version string  `xml:"version,attr"`
	Filter  *Filter `xml:"http://www.opengis.net/ogc Filter,omitempty"`
	CqlText string  `xml:"http://www.opengis.net/cat/csw/2.0.2 CqlText,omitempty"`
}

type GetRecordById struct {
	XMLName        xml.Name        `xml:"http://www.opengis.net/cat/csw/2.0.2 GetRecordById"`
	Service        string          `xml:"service,attr"`
	Version        string          `xml:"version,attr"`
	OutputFormat   string          `xml:"outputFormat,attr,omitempty"`
	OutputSchema   string          `xml:"outputSchema,attr,omitempty"`
	ID             []string        `xml:"http://www.opengis.net/cat/csw/2.0.2 Id"`
	ElementSetName *ElementSetName `xml:"http://www.opengis.net/cat/csw/2.0.2 ElementSetName,omitempty"`
}

type Transaction struct {
	XMLName         xml.Name `xml:"http://www.opengis.net/cat/csw/2.0.2 Transaction"`
	Service         string   `xml:"service,attr"`
	Version         string   `xml:"version,attr"`
	VerboseResponse bool     `xml:"verboseResponse,attr,omitempty"`
	RequestID       string   `xml:"requestId,attr,omitempty"`
	Insert          []Insert `xml:"http://www.opengis.net/cat/csw/2.0.2 Insert,omitempty"`
	Update          []Update `xml:"http://www.opengis.net/cat/csw/2.0.2 Update,omitempty"`
	Delete          []Delete `xml:"http://www.opengis.net/cat/csw/2.0.2 Delete,omitempty"`
}

type Insert struct {
	Handle string   `xml:"handle,attr,omitempty"`
	Record []Record `xml:"http://www.opengis.net/cat/csw/2.0.2 Record"`
}

// Update either replaces a whole record or sets record properties on the
// records matching the constraint
type Update struct {
	Handle         string           `xml:"handle,attr,omitempty"`
	Record         *Record          `xml:"http://www.opengis.net/cat/csw/2.0.2 Record,omitempty"`
	RecordProperty []RecordProperty `xml:"http://www.opengis.net/cat/csw/2.0.2 RecordProperty,omitempty"`
	Constraint     *Constraint      `xml:"http://www.opengis.net/cat/csw/2.0.2 Constraint,omitempty"`
}

type RecordProperty struct {
	Name  string `xml:"http://www.opengis.net/cat/csw/2.0.2 Name"`
	Value string `xml:"http://www.opengis.net/cat/csw/2.0.2 Value,omitempty"`
}

type Delete struct {
	TypeName   string     `xml:"typeName,attr,omitempty"`
	Handle     string     `xml:"handle,attr,omitempty"`
	Constraint Constraint `xml:"http://www.opengis.net/cat/csw/2.0.2 Constraint"`
}

type Harvest struct {
	XMLName         xml.Name `xml:"http://www.opengis.net/cat/csw/2.0.2 Harvest"`
	Service         string   `xml:"service,attr"`
	Version         string   `xml:"version,attr"`
	Source          string   `xml:"http://www.opengis.net/cat/csw/2.0.2 Source"`
	ResourceType    string   `xml:"http://www.opengis.net/cat/csw/2.0.2 ResourceType"`
	ResourceFormat  string   `xml:"http://www.opengis.net/cat/csw/2.0.2 ResourceFormat,omitempty"`
	HarvestInterval string   `xml:"http://www.opengis.net/cat/csw/2.0.2 HarvestInterval,omitempty"`
	ResponseHandler []string `xml:"http://www.opengis.net/cat/csw/2.0.2 ResponseHandler,omitempty"`
}
