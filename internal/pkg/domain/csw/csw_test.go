package csw

import (
	"encoding/xml"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/matryer/is"
)

func TestDecodeGetRecords(t *testing.T) {
	is := is.New(t)

	request, err := Decode([]byte(getRecordsXML))
	is.NoErr(err)

	gr, ok := request.(*GetRecords)
	is.True(ok)

	maxRecords := 5
	expected := &GetRecords{
		Service:       "CSW",
		Version:       "2.0.2",
		ResultType:    "results",
		StartPosition: 2,
		MaxRecords:    &maxRecords,
		Query: &Query{
			TypeNames:      "csw:Record",
			ElementSetName: &ElementSetName{Value: "summary"},
			Constraint: &Constraint{
				Version: "1.1.0",
				Filter: &Filter{
					Operators: Operators{
						And: []Operators{{
							PropertyIsLike: []PropertyIsLike{{
								WildCard: "%", SingleChar: "_", EscapeChar: "\\",
								PropertyName: "dc:title", Literal: "%beach%",
							}},
							BBOX: []BBOX{{
								PropertyName: "ows:BoundingBox",
								Envelope:     &Envelope{LowerCorner: "17 62", UpperCorner: "18 63"},
							}},
						}},
					},
				},
			},
			SortBy: &SortBy{SortProperty: []SortProperty{{PropertyName: "dc:title", SortOrder: "DESC"}}},
		},
	}

	if diff := cmp.Diff(expected, gr, cmpopts.IgnoreTypes(xml.Name{})); diff != "" {
		t.Errorf("unexpected request (-want +got):\n%s", diff)
	}
}

func TestDecodeTransaction(t *testing.T) {
	is := is.New(t)

	request, err := Decode([]byte(transactionXML))
	is.NoErr(err)

	tx := request.(*Transaction)
	is.Equal(len(tx.Insert), 1)
	is.Equal(tx.Insert[0].Record[0].Identifier, "rec-1")
	is.Equal(tx.Insert[0].Record[0].Subject, []string{"water", "beach"})

	bounds, err := tx.Insert[0].Record[0].BoundingBox[0].Corners()
	is.NoErr(err)
	is.Equal(bounds, [4]float64{17.1, 62.2, 17.5, 62.6})

	is.Equal(len(tx.Update), 1)
	is.Equal(tx.Update[0].RecordProperty[0], RecordProperty{Name: "dc:title", Value: "Renamed"})
	is.Equal(tx.Update[0].Constraint.Filter.FeatureID[0].FID, "rec-2")

	is.Equal(len(tx.Delete), 1)
	is.Equal(tx.Delete[0].Constraint.Filter.PropertyIsEqualTo[0].Literal, "dataset")
}

func TestDecodeRejectsUnknownRequests(t *testing.T) {
	is := is.New(t)

	_, err := Decode([]byte(`<Describe xmlns="http://www.opengis.net/cat/csw/2.0.2"/>`))
	se := &ServiceError{}
	is.True(errors.As(err, &se))
	is.Equal(se.Code, OperationNotSupported)

	_, err = Decode([]byte(`not xml at all`))
	is.True(errors.As(err, &se))
	is.Equal(se.Code, NoApplicableCode)
}

func TestMarshalSearchResults(t *testing.T) {
	is := is.New(t)

	response := GetRecordsResponse{
		Version:      Version,
		SearchStatus: SearchStatus{Timestamp: "2024-05-01T10:00:00Z"},
		SearchResults: SearchResults{
			ElementSet:              Brief,
			NumberOfRecordsMatched:  3,
			NumberOfRecordsReturned: 1,
			NextRecord:              2,
		},
	}
	response.SearchResults.Add(Record{
		Identifier:  "rec-1",
		Title:       "Beaches",
		Abstract:    "not part of brief records",
		BoundingBox: []BoundingBox{NewBoundingBox("EPSG:4326", 17.1, 62.2, 17.5, 62.6)},
	}, Brief)

	data, err := xml.Marshal(response)
	is.NoErr(err)
	is.True(strings.Contains(string(data), `numberOfRecordsMatched="3"`))
	is.True(!strings.Contains(string(data), "not part of brief records"))

	decoded := GetRecordsResponse{}
	is.NoErr(xml.Unmarshal(data, &decoded))

	records := decoded.SearchResults.All()
	is.Equal(len(records), 1)

	expected := Record{
		Identifier:  "rec-1",
		Title:       "Beaches",
		BoundingBox: []BoundingBox{{CRS: "EPSG:4326", LowerCorner: "17.1 62.2", UpperCorner: "17.5 62.6"}},
	}
	if diff := cmp.Diff(expected, records[0], cmpopts.IgnoreTypes(xml.Name{})); diff != "" {
		t.Errorf("unexpected record (-want +got):\n%s", diff)
	}
}

func TestParseKVPGetRecords(t *testing.T) {
	is := is.New(t)

	values := url.Values{}
	values.Set("service", "CSW")
	values.Set("Request", "GetRecords")
	values.Set("typeNames", "csw:Record")
	values.Set("elementSetName", "brief")
	values.Set("startPosition", "11")
	values.Set("maxRecords", "20")
	values.Set("sortBy", "dc:title:D,dct:modified")
	values.Set("constraintLanguage", "FILTER")
	values.Set("constraint", `<Filter><PropertyIsEqualTo><PropertyName>dc:type</PropertyName><Literal>dataset</Literal></PropertyIsEqualTo></Filter>`)

	request, err := ParseKVP(values)
	is.NoErr(err)

	gr := request.(*GetRecords)
	is.Equal(gr.StartPosition, 11)
	is.Equal(*gr.MaxRecords, 20)
	is.Equal(gr.Query.ElementSetName.Value, "brief")
	is.Equal(gr.Query.SortBy.SortProperty, []SortProperty{
		{PropertyName: "dc:title", SortOrder: "DESC"},
		{PropertyName: "dct:modified", SortOrder: "ASC"},
	})
	is.Equal(gr.Query.Constraint.Filter.PropertyIsEqualTo[0], BinaryComparison{PropertyName: "dc:type", Literal: "dataset"})
}

func TestParseKVPErrors(t *testing.T) {
	is := is.New(t)

	cases := map[string]struct {
		query string
		code  string
	}{
		"no request":        {"service=CSW", MissingParameterValue},
		"wrong service":     {"service=WMS&request=GetCapabilities", InvalidParameterValue},
		"unknown operation": {"request=GetDomain", OperationNotSupported},
		"no type names":     {"request=GetRecords", MissingParameterValue},
		"bad max records":   {"request=GetRecords&typeNames=csw:Record&maxRecords=-1", InvalidParameterValue},
		"no id":             {"request=GetRecordById", MissingParameterValue},
		"bad language":      {"request=GetRecords&typeNames=csw:Record&constraintLanguage=SQL&constraint=x", InvalidParameterValue},
	}

	for name, tc := range cases {
		values, err := url.ParseQuery(tc.query)
		is.NoErr(err)

		_, err = ParseKVP(values)
		se := &ServiceError{}
		is.True(errors.As(err, &se)) // name
		if se.Code != tc.code {
			t.Errorf("%s: expected %s, got %s", name, tc.code, se.Code)
		}
	}
}

func TestParseKVPCqlConstraintIsKept(t *testing.T) {
	is := is.New(t)

	values, _ := url.ParseQuery("request=GetRecords&typeNames=csw:Record&constraintLanguage=CQL_TEXT&constraint=dc:title%20like%20'%25a%25'")
	request, err := ParseKVP(values)
	is.NoErr(err)
	is.Equal(request.(*GetRecords).Query.Constraint.CqlText, "dc:title like '%a%'")
}

func TestExceptionReport(t *testing.T) {
	is := is.New(t)

	err := NewServiceError(InvalidParameterValue, "outputSchema", "schema %s is not supported", "iso")
	data, merr := xml.Marshal(err.Report())
	is.NoErr(merr)

	report := ExceptionReport{}
	is.NoErr(xml.Unmarshal(data, &report))
	is.Equal(report.Exceptions[0].ExceptionCode, InvalidParameterValue)
	is.Equal(report.Exceptions[0].Locator, "outputSchema")
	is.Equal(report.Exceptions[0].ExceptionText, []string{"schema iso is not supported"})
}

func TestParseDuration(t *testing.T) {
	is := is.New(t)

	d, err := ParseDuration("P1DT2H30M")
	is.NoErr(err)
	is.Equal(d, 26*time.Hour+30*time.Minute)

	d, err = ParseDuration("PT90S")
	is.NoErr(err)
	is.Equal(d, 90*time.Second)

	for _, invalid := range []string{"", "P", "PT", "1D", "P1DT"} {
		_, err = ParseDuration(invalid)
		is.True(err != nil) // invalid duration
	}
}

const getRecordsXML string = `<?xml version="1.0" encoding="UTF-8"?>
<csw:GetRecords xmlns:csw="http://www.opengis.net/cat/csw/2.0.2"
    xmlns:ogc="http://www.opengis.net/ogc" xmlns:gml="http://www.opengis.net/gml"
    service="CSW" version="2.0.2" resultType="results" startPosition="2" maxRecords="5">
  <csw:Query typeNames="csw:Record">
    <csw:ElementSetName>summary</csw:ElementSetName>
    <csw:Constraint version="1.1.0">
      <ogc:Filter>
        <ogc:And>
          <ogc:PropertyIsLike wildCard="%" singleChar="_" escapeChar="\">
            <ogc:PropertyName>dc:title</ogc:PropertyName>
            <ogc:Literal>%beach%</ogc:Literal>
          </ogc:PropertyIsLike>
          <ogc:BBOX>
            <ogc:PropertyName>ows:BoundingBox</ogc:PropertyName>
            <gml:Envelope>
              <gml:lowerCorner>17 62</gml:lowerCorner>
              <gml:upperCorner>18 63</gml:upperCorner>
            </gml:Envelope>
          </ogc:BBOX>
        </ogc:And>
      </ogc:Filter>
    </csw:Constraint>
    <ogc:SortBy>
      <ogc:SortProperty>
        <ogc:PropertyName>dc:title</ogc:PropertyName>
        <ogc:SortOrder>DESC</ogc:SortOrder>
      </ogc:SortProperty>
    </ogc:SortBy>
  </csw:Query>
</csw:GetRecords>`

const transactionXML string = `<?xml version="1.0" encoding="UTF-8"?>
<csw:Transaction xmlns:csw="http://www.opengis.net/cat/csw/2.0.2"
    xmlns:ogc="http://www.opengis.net/ogc" xmlns:dc="http://purl.org/dc/elements/1.1/"
    xmlns:dct="http://purl.org/dc/terms/" xmlns:ows="http://www.opengis.net/ows"
    service="CSW" version="2.0.2">
  <csw:Insert>
    <csw:Record>
      <dc:identifier>rec-1</dc:identifier>
      <dc:title>Beaches in Sundsvall</dc:title>
      <dc:type>dataset</dc:type>
      <dc:subject>water</dc:subject>
      <dc:subject>beach</dc:subject>
      <dct:abstract>Bathing places</dct:abstract>
      <ows:BoundingBox crs="EPSG:4326">
        <ows:LowerCorner>17.1 62.2</ows:LowerCorner>
        <ows:UpperCorner>17.5 62.6</ows:UpperCorner>
      </ows:BoundingBox>
    </csw:Record>
  </csw:Insert>
  <csw:Update>
    <csw:RecordProperty>
      <csw:Name>dc:title</csw:Name>
      <csw:Value>Renamed</csw:Value>
    </csw:RecordProperty>
    <csw:Constraint version="1.1.0">
      <ogc:Filter><ogc:FeatureId fid="rec-2"/></ogc:Filter>
    </csw:Constraint>
  </csw:Update>
  <csw:Delete typeName="csw:Record">
    <csw:Constraint version="1.1.0">
      <ogc:Filter>
        <ogc:PropertyIsEqualTo>
          <ogc:PropertyName>dc:type</ogc:PropertyName>
          <ogc:Literal>dataset</ogc:Literal>
        </ogc:PropertyIsEqualTo>
      </ogc:Filter>
    </csw:Constraint>
  </csw:Delete>
</csw:Transaction>`
