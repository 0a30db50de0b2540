package csw

import (
	"encoding/xml"
)

// element set names
const (
	Brief   string = "brief"
	Summary string = "summary"
	Full    string = "full"
)

type BriefRecord struct {
	XMLName     xml.Name      `xml:"http://www.opengis.net/cat/csw/2.0.2 BriefRecord"`
	Identifier  string        `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Title       string        `xml:"http://purl.org/dc/elements/1.1/ title"`
	Type        string        `xml:"http://purl.org/dc/elements/1.1/ type,omitempty"`
	BoundingBox []BoundingBox `xml:"http://www.opengis.net/ows BoundingBox,omitempty"`
}

type SummaryRecord struct {
	XMLName     xml.Name      `xml:"http://www.opengis.net/cat/csw/2.0.2 SummaryRecord"`
	Identifier  string        `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Title       string        `xml:"http://purl.org/dc/elements/1.1/ title"`
	Type        string        `xml:"http://purl.org/dc/elements/1.1/ type,omitempty"`
	Subject     []string      `xml:"http://purl.org/dc/elements/1.1/ subject,omitempty"`
	Format      []string      `xml:"http://purl.org/dc/elements/1.1/ format,omitempty"`
	Relation    []string      `xml:"http://purl.org/dc/elements/1.1/ relation,omitempty"`
	Modified    string        `xml:"http://purl.org/dc/terms/ modified,omitempty"`
	Abstract    string        `xml:"http://purl.org/dc/terms/ abstract,omitempty"`
	Spatial     []string      `xml:"http://purl.org/dc/terms/ spatial,omitempty"`
	BoundingBox []BoundingBox `xml:"http://www.opengis.net/ows BoundingBox,omitempty"`
}

// Record is the full dublin core representation of a catalogue entry
type Record struct {
	XMLName     xml.Name      `xml:"http://www.opengis.net/cat/csw/2.0.2 Record"`
	Identifier  string        `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Title       string        `xml:"http://purl.org/dc/elements/1.1/ title"`
	Type        string        `xml:"http://purl.org/dc/elements/1.1/ type,omitempty"`
	Subject     []string      `xml:"http://purl.org/dc/elements/1.1/ subject,omitempty"`
	Format      []string      `xml:"http://purl.org/dc/elements/1.1/ format,omitempty"`
	Relation    []string      `xml:"http://purl.org/dc/elements/1.1/ relation,omitempty"`
	Creator     string        `xml:"http://purl.org/dc/elements/1.1/ creator,omitempty"`
	Publisher   string        `xml:"http://purl.org/dc/elements/1.1/ publisher,omitempty"`
	Contributor string        `xml:"http://purl.org/dc/elements/1.1/ contributor,omitempty"`
	Language    string        `xml:"http://purl.org/dc/elements/1.1/ language,omitempty"`
	Source      string        `xml:"http://purl.org/dc/elements/1.1/ source,omitempty"`
	Rights      string        `xml:"http://purl.org/dc/elements/1.1/ rights,omitempty"`
	Date        string        `xml:"http://purl.org/dc/elements/1.1/ date,omitempty"`
	Description string        `xml:"http://purl.org/dc/elements/1.1/ description,omitempty"`
	Modified    string        `xml:"http://purl.org/dc/terms/ modified,omitempty"`
	Abstract    string        `xml:"http://purl.org/dc/terms/ abstract,omitempty"`
	Spatial     []string      `xml:"http://purl.org/dc/terms/ spatial,omitempty"`
	References  []string      `xml:"http://purl.org/dc/terms/ references,omitempty"`
	BoundingBox []BoundingBox `xml:"http://www.opengis.net/ows BoundingBox,omitempty"`
}

func (r Record) Brief() BriefRecord {
	return BriefRecord{
		Identifier:  r.Identifier,
		Title:       r.Title,
		Type:        r.Type,
		BoundingBox: r.BoundingBox,
	}
}

func (r Record) Summary() SummaryRecord {
	return SummaryRecord{
		Identifier:  r.Identifier,
		Title:       r.Title,
		Type:        r.Type,
		Subject:     r.Subject,
		Format:      r.Format,
		Relation:    r.Relation,
		Modified:    r.Modified,
		Abstract:    r.Abstract,
		Spatial:     r.Spatial,
		BoundingBox: r.BoundingBox,
	}
}

// Records holds records of any element set, as found in search results
// and GetRecordById responses
type Records struct {
	Records        []Record        `xml:"http://www.opengis.net/cat/csw/2.0.2 Record,omitempty"`
	SummaryRecords []SummaryRecord `xml:"http://www.opengis.net/cat/csw/2.0.2 SummaryRecord,omitempty"`
	BriefRecords   []BriefRecord   `xml:"http://www.opengis.net/cat/csw/2.0.2 BriefRecord,omitempty"`
}

// Add appends the record in the representation of the element set
func (rs *Records) Add(r Record, elementSet string) {
	switch elementSet {
	case Brief:
		rs.BriefRecords = append(rs.BriefRecords, r.Brief())
	case Summary:
		rs.SummaryRecords = append(rs.SummaryRecords, r.Summary())
	default:
		rs.Records = append(rs.Records, r)
	}
}

func (rs Records) Len() int {
	return len(rs.Records) + len(rs.SummaryRecords) + len(rs.BriefRecords)
}

// All returns every record as a full record, leaving the elements missing
// from brief and summary records empty
func (rs Records) All() []Record {
	result := make([]Record, 0, rs.Len())
	result = append(result, rs.Records...)

	for _, s := range rs.SummaryRecords {
		result = append(result, Record{
			Identifier:  s.Identifier,
			Title:       s.Title,
			Type:        s.Type,
			Subject:     s.Subject,
			Format:      s.Format,
			Relation:    s.Relation,
			Modified:    s.Modified,
			Abstract:    s.Abstract,
			Spatial:     s.Spatial,
			BoundingBox: s.BoundingBox,
		})
	}

	for _, b := range rs.BriefRecords {
		result = append(result, Record{
			Identifier:  b.Identifier,
			Title:       b.Title,
			Type:        b.Type,
			BoundingBox: b.BoundingBox,
		})
	}

	return result
}
