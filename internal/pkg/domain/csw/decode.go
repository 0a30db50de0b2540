package csw

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Decode reads an xml encoded request and returns a pointer to one of
// GetCapabilities, DescribeRecord, GetRecords, GetRecordById, Transaction
// or Harvest
func Decode(body []byte) (any, error) {
	root, err := rootElement(body)
	if err != nil {
		return nil, NewServiceError(NoApplicableCode, "", "unable to parse request: %s", err.Error())
	}

	if root.Space != NamespaceCSW {
		return nil, NewServiceError(OperationNotSupported, root.Local, "unknown request element {%s}%s", root.Space, root.Local)
	}

	var request any

	switch root.Local {
	case "GetCapabilities":
		request = &GetCapabilities{}
	case "DescribeRecord":
		request = &DescribeRecord{}
	case "GetRecords":
		request = &GetRecords{}
	case "GetRecordById":
		request = &GetRecordById{}
	case "Transaction":
		request = &Transaction{}
	case "Harvest":
		request = &Harvest{}
	default:
		return nil, NewServiceError(OperationNotSupported, root.Local, "operation %s is not supported", root.Local)
	}

	if err := xml.Unmarshal(body, request); err != nil {
		return nil, NewServiceError(NoApplicableCode, root.Local, "unable to parse request: %s", err.Error())
	}

	return request, nil
}

func rootElement(body []byte) (xml.Name, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return xml.Name{}, errors.New("document has no root element")
			}
			return xml.Name{}, err
		}

		if start, ok := tok.(xml.StartElement); ok {
			return start.Name, nil
		}
	}
}

var durationPattern = regexp.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseDuration parses ISO 8601 durations like P1D or PT30M as used by
// harvest intervals. Years and months count as 365 and 30 days.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" || (len(s) > 0 && s[len(s)-1] == 'T') {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	units := []time.Duration{
		365 * 24 * time.Hour,
		30 * 24 * time.Hour,
		24 * time.Hour,
		time.Hour,
		time.Minute,
	}

	var d time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d += time.Duration(n) * unit
	}

	if m[6] != "" {
		seconds, err := strconv.ParseFloat(m[6], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d += time.Duration(seconds * float64(time.Second))
	}

	return d, nil
}

// DecodeRecords reads the records of a harvested document, which may be a
// single csw:Record or a GetRecords or GetRecordById response
func DecodeRecords(body []byte) ([]Record, error) {
	root, err := rootElement(body)
	if err != nil {
		return nil, err
	}

	if root.Space == NamespaceOWS && root.Local == "ExceptionReport" {
		report := ExceptionReport{}
		if err := xml.Unmarshal(body, &report); err != nil {
			return nil, err
		}
		if len(report.Exceptions) > 0 {
			ex := report.Exceptions[0]
			return nil, &ServiceError{Code: ex.ExceptionCode, Locator: ex.Locator, Text: strings.Join(ex.ExceptionText, " ")}
		}
		return nil, errors.New("source answered with an empty exception report")
	}

	if root.Space != NamespaceCSW {
		return nil, fmt.Errorf("unsupported document {%s}%s", root.Space, root.Local)
	}

	switch root.Local {
	case "Record":
		r := Record{}
		if err := xml.Unmarshal(body, &r); err != nil {
			return nil, err
		}
		return []Record{r}, nil
	case "GetRecordsResponse":
		response := GetRecordsResponse{}
		if err := xml.Unmarshal(body, &response); err != nil {
			return nil, err
		}
		return response.SearchResults.All(), nil
	case "GetRecordByIdResponse":
		response := GetRecordByIdResponse{}
		if err := xml.Unmarshal(body, &response); err != nil {
			return nil, err
		}
		return response.All(), nil
	}

	return nil, fmt.Errorf("unsupported document {%s}%s", root.Space, root.Local)
}
