package csw

import (
	"encoding/xml"
	"net/url"
	"strconv"
	"strings"
)

type kvp map[string]string

func normalize(values url.Values) kvp {
	params := kvp{}
	for k, v := range values {
		if len(v) > 0 {
			params[strings.ToUpper(k)] = v[0]
		}
	}
	return params
}

func (p kvp) list(key string) []string {
	result := []string{}
	for _, s := range strings.Split(p[key], ",") {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	return result
}

func (p kvp) required(key string) (string, error) {
	v := strings.TrimSpace(p[key])
	if v == "" {
		return "", NewServiceError(MissingParameterValue, strings.ToLower(key), "parameter %s is required", key)
	}
	return v, nil
}

func (p kvp) integer(key string) (*int, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return nil, nil
	}

	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return nil, NewServiceError(InvalidParameterValue, strings.ToLower(key), "%s must be a non negative integer", key)
	}
	return &i, nil
}

// ParseKVP reads a request from the key value pairs of a GET request.
// Parameter names are case insensitive.
func ParseKVP(values url.Values) (any, error) {
	p := normalize(values)

	request, err := p.required("REQUEST")
	if err != nil {
		return nil, err
	}

	if service := p["SERVICE"]; service != "" && !strings.EqualFold(service, Service) {
		return nil, NewServiceError(InvalidParameterValue, "service", "service %s is not supported", service)
	}

	switch strings.ToLower(request) {
	case "getcapabilities":
		return p.getCapabilities(), nil
	case "describerecord":
		return p.describeRecord(), nil
	case "getrecords":
		return p.getRecords()
	case "getrecordbyid":
		return p.getRecordByID()
	case "harvest":
		return p.harvest()
	}

	return nil, NewServiceError(OperationNotSupported, "request", "operation %s is not supported", request)
}

func (p kvp) getCapabilities() *GetCapabilities {
	r := &GetCapabilities{Service: Service}

	if versions := p.list("ACCEPTVERSIONS"); len(versions) > 0 {
		r.AcceptVersions = &AcceptVersions{Version: versions}
	}
	if sections := p.list("SECTIONS"); len(sections) > 0 {
		r.Sections = &Sections{Section: sections}
	}
	if formats := p.list("ACCEPTFORMATS"); len(formats) > 0 {
		r.AcceptFormats = &AcceptFormats{OutputFormat: formats}
	}

	return r
}

func (p kvp) describeRecord() *DescribeRecord {
	return &DescribeRecord{
		Service:        Service,
		Version:        p["VERSION"],
		OutputFormat:   p["OUTPUTFORMAT"],
		SchemaLanguage: p["SCHEMALANGUAGE"],
		TypeName:       p.list("TYPENAME"),
	}
}

func (p kvp) getRecords() (*GetRecords, error) {
	r := &GetRecords{
		Service:      Service,
		Version:      p["VERSION"],
		RequestID:    p["REQUESTID"],
		ResultType:   p["RESULTTYPE"],
		OutputFormat: p["OUTPUTFORMAT"],
		OutputSchema: p["OUTPUTSCHEMA"],
	}

	start, err := p.integer("STARTPOSITION")
	if err != nil {
		return nil, err
	}
	if start != nil {
		r.StartPosition = *start
	}

	if r.MaxRecords, err = p.integer("MAXRECORDS"); err != nil {
		return nil, err
	}

	typeNames, err := p.required("TYPENAMES")
	if err != nil {
		return nil, err
	}

	q := &Query{TypeNames: typeNames, ElementName: p.list("ELEMENTNAME")}

	if esn := p["ELEMENTSETNAME"]; esn != "" {
		q.ElementSetName = &ElementSetName{Value: esn}
	}

	if sortBy := p.list("SORTBY"); len(sortBy) > 0 {
		q.SortBy = &SortBy{}
		for _, s := range sortBy {
			// property names may carry a prefix, so the order is the last part
			sp := SortProperty{PropertyName: s, SortOrder: "ASC"}
			if i := strings.LastIndex(s, ":"); i >= 0 {
				switch strings.ToUpper(s[i+1:]) {
				case "D", "DESC":
					sp = SortProperty{PropertyName: s[:i], SortOrder: "DESC"}
				case "A", "ASC":
					sp = SortProperty{PropertyName: s[:i], SortOrder: "ASC"}
				}
			}
			if sp.PropertyName == "" {
				return nil, NewServiceError(InvalidParameterValue, "sortby", "invalid sort property %q", s)
			}
			q.SortBy.SortProperty = append(q.SortBy.SortProperty, sp)
		}
	}

	if constraint := p["CONSTRAINT"]; constraint != "" {
		c, err := p.constraint(constraint)
		if err != nil {
			return nil, err
		}
		q.Constraint = c
	}

	r.Query = q
	return r, nil
}

func (p kvp) constraint(text string) (*Constraint, error) {
	c := &Constraint{Version: p["CONSTRAINT_LANGUAGE_VERSION"]}

	language := strings.ToUpper(p["CONSTRAINTLANGUAGE"])
	switch language {
	case "CQL_TEXT":
		c.CqlText = text
		return c, nil
	case "FILTER", "":
		if c.Version == "" {
			c.Version = "1.1.0"
		}
	default:
		return nil, NewServiceError(InvalidParameterValue, "constraintlanguage", "constraint language %s is not supported", language)
	}

	f := &Filter{}
	if err := xml.Unmarshal([]byte(withFilterNamespaces(text)), f); err != nil {
		return nil, NewServiceError(InvalidParameterValue, "constraint", "unable to parse filter: %s", err.Error())
	}
	c.Filter = f

	return c, nil
}

// withFilterNamespaces declares the ogc and gml namespaces on filters that
// are passed without them, which is common in hand written urls
func withFilterNamespaces(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "<Filter") {
		return text
	}

	declarations := ""
	if !strings.Contains(text, `xmlns="`) {
		declarations += ` xmlns="` + NamespaceOGC + `"`
	}
	if !strings.Contains(text, "xmlns:gml=") {
		declarations += ` xmlns:gml="` + NamespaceGML + `"`
	}

	return "<Filter" + declarations + text[len("<Filter"):]
}

func (p kvp) getRecordByID() (*GetRecordById, error) {
	if _, err := p.required("ID"); err != nil {
		return nil, err
	}

	r := &GetRecordById{
		Service:      Service,
		Version:      p["VERSION"],
		OutputFormat: p["OUTPUTFORMAT"],
		OutputSchema: p["OUTPUTSCHEMA"],
		ID:           p.list("ID"),
	}

	if esn := p["ELEMENTSETNAME"]; esn != "" {
		r.ElementSetName = &ElementSetName{Value: esn}
	}

	return r, nil
}

func (p kvp) harvest() (*Harvest, error) {
	source, err := p.required("SOURCE")
	if err != nil {
		return nil, err
	}

	resourceType, err := p.required("RESOURCETYPE")
	if err != nil {
		return nil, err
	}

	return &Harvest{
		Service:         Service,
		Version:         p["VERSION"],
		Source:          source,
		ResourceType:    resourceType,
		ResourceFormat:  p["RESOURCEFORMAT"],
		HarvestInterval: p["HARVESTINTERVAL"],
		ResponseHandler: p.list("RESPONSEHANDLER"),
	}, nil
}
