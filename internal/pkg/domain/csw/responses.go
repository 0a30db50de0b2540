package csw

import (
	"encoding/xml"
)

type GetRecordsResponse struct {
	XMLName       xml.Name      `xml:"http://www.opengis.net/cat/csw/2.0.2 GetRecordsResponse"`
	Version       string        `xml:"version,attr,omitempty"`
	RequestID     string        `xml:"http://www.opengis.net/cat/csw/2.0.2 RequestId,omitempty"`
	SearchStatus  SearchStatus  `xml:"http://www.opengis.net/cat/csw/2.0.2 SearchStatus"`
	SearchResults SearchResults `xml:"http://www.opengis.net/cat/csw/2.0.2 SearchResults"`
}

type SearchStatus struct {
	Timestamp string `xml:"timestamp,attr,omitempty"`
}

type SearchResults struct {
	ResultSetID             string `xml:"resultSetId,attr,omitempty"`
	ElementSet              string `xml:"elementSet,attr,omitempty"`
	RecordSchema            string `xml:"recordSchema,attr,omitempty"`
	NumberOfRecordsMatched  int    `xml:"numberOfRecordsMatched,attr"`
	NumberOfRecordsReturned int    `xml:"numberOfRecordsReturned,attr"`
	NextRecord              int    `xml:"nextRecord,attr"`
	Expires                 string `xml:"expires,attr,omitempty"`
	Records
}

type GetRecordByIdResponse struct {
	XMLName xml.Name `xml:"http://www.opengis.net/cat/csw/2.0.2 GetRecordByIdResponse"`
	Records
}

type TransactionResponse struct {
	XMLName            xml.Name           `xml:"http://www.opengis.net/cat/csw/2.0.2 TransactionResponse"`
	Version            string             `xml:"version,attr,omitempty"`
	TransactionSummary TransactionSummary `xml:"http://www.opengis.net/cat/csw/2.0.2 TransactionSummary"`
	InsertResult       []InsertResult     `xml:"http://www.opengis.net/cat/csw/2.0.2 InsertResult,omitempty"`
}

type TransactionSummary struct {
	RequestID     string `xml:"requestId,attr,omitempty"`
	TotalInserted int    `xml:"http://www.opengis.net/cat/csw/2.0.2 totalInserted"`
	TotalUpdated  int    `xml:"http://www.opengis.net/cat/csw/2.0.2 totalUpdated"`
	TotalDeleted  int    `xml:"http://www.opengis.net/cat/csw/2.0.2 totalDeleted"`
}

type InsertResult struct {
	HandleRef   string        `xml:"handleRef,attr,omitempty"`
	BriefRecord []BriefRecord `xml:"http://www.opengis.net/cat/csw/2.0.2 BriefRecord"`
}

type HarvestResponse struct {
	XMLName             xml.Name             `xml:"http://www.opengis.net/cat/csw/2.0.2 HarvestResponse"`
	Acknowledgement     *Acknowledgement     `xml:"http://www.opengis.net/cat/csw/2.0.2 Acknowledgement,omitempty"`
	TransactionResponse *TransactionResponse `xml:"http://www.opengis.net/cat/csw/2.0.2 TransactionResponse,omitempty"`
}

// Acknowledgement is returned for requests that are processed later, like
// harvests that will be repeated on an interval
type Acknowledgement struct {
	XMLName       xml.Name      `xml:"http://www.opengis.net/cat/csw/2.0.2 Acknowledgement"`
	TimeStamp     string        `xml:"timeStamp,attr"`
	EchoedRequest EchoedRequest `xml:"http://www.opengis.net/cat/csw/2.0.2 EchoedRequest"`
	RequestID     string        `xml:"http://www.opengis.net/cat/csw/2.0.2 RequestId,omitempty"`
}

type EchoedRequest struct {
	Content string `xml:",innerxml"`
}
