package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore/filter"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain/csw"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
)

func checkOutput(format, schema string) error {
	switch format {
	case "", csw.OutputFormatXML, "text/xml":
	default:
		return csw.NewServiceError(csw.InvalidParameterValue, "outputFormat", "output format %s is not supported", format)
	}

	if schema != "" && schema != csw.OutputSchemaRecord && !isRecordType(schema) {
		return csw.NewServiceError(csw.InvalidParameterValue, "outputSchema", "output schema %s is not supported", schema)
	}
	return nil
}

func elementSetOf(esn *csw.ElementSetName) (string, error) {
	if esn == nil || strings.TrimSpace(esn.Value) == "" {
		return csw.Summary, nil
	}

	switch value := strings.ToLower(strings.TrimSpace(esn.Value)); value {
	case csw.Brief, csw.Summary, csw.Full:
		return value, nil
	}
	return "", csw.NewServiceError(csw.InvalidParameterValue, "ElementSetName", "unknown element set %s", esn.Value)
}

// searchFor validates a GetRecords request and turns it into a record
// query and the element set of the response
func (s *catalogSvc) searchFor(req *csw.GetRecords) (featurestore.Query, string, error) {
	q := featurestore.NewQuery(RecordType)

	if err := checkVersion(req.Version); err != nil {
		return q, "", err
	}
	if err := checkOutput(req.OutputFormat, req.OutputSchema); err != nil {
		return q, "", err
	}

	switch strings.ToLower(req.ResultType) {
	case "", csw.ResultTypeHits, csw.ResultTypeResults, csw.ResultTypeValidate:
	default:
		return q, "", csw.NewServiceError(csw.InvalidParameterValue, "resultType", "unknown result type %s", req.ResultType)
	}

	if req.Query == nil || strings.TrimSpace(req.Query.TypeNames) == "" {
		return q, "", csw.NewServiceError(csw.MissingParameterValue, "typeNames", "a query with type names is required")
	}

	for _, tn := range strings.Fields(strings.ReplaceAll(req.Query.TypeNames, ",", " ")) {
		if !isRecordType(tn) {
			return q, "", csw.NewServiceError(csw.InvalidParameterValue, "typeNames", "type %s is not known, only csw:Record is", tn)
		}
	}

	elementSet, err := elementSetOf(req.Query.ElementSetName)
	if err != nil {
		return q, "", err
	}
	if len(req.Query.ElementName) > 0 {
		elementSet = csw.Full
	}

	if q.Filter, err = toFilter(req.Query.Constraint); err != nil {
		return q, "", err
	}

	if q.SortBy, err = toSortBy(req.Query.SortBy); err != nil {
		return q, "", err
	}

	return q, elementSet, nil
}

func (s *catalogSvc) GetRecords(ctx context.Context, req *csw.GetRecords) (*csw.GetRecordsResponse, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-records")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	q, elementSet, err := s.searchFor(req)
	if err != nil {
		return nil, err
	}

	start := req.StartPosition
	if start <= 0 {
		start = 1
	}

	maxRecords := DefaultMaxRecords
	if req.MaxRecords != nil {
		if *req.MaxRecords < 0 {
			return nil, csw.NewServiceError(csw.InvalidParameterValue, "maxRecords", "maxRecords can not be negative, got %d", *req.MaxRecords)
		}
		maxRecords = *req.MaxRecords
	}

	matched, err := s.count(ctx, q)
	if err != nil {
		return nil, err
	}

	response := &csw.GetRecordsResponse{
		Version:      csw.Version,
		RequestID:    req.RequestID,
		SearchStatus: csw.SearchStatus{Timestamp: now()},
		SearchResults: csw.SearchResults{
			ElementSet:             elementSet,
			RecordSchema:           csw.OutputSchemaRecord,
			NumberOfRecordsMatched: matched,
		},
	}

	if strings.EqualFold(req.ResultType, csw.ResultTypeHits) || maxRecords == 0 {
		if start <= matched {
			response.SearchResults.NextRecord = start
		}
		return response, nil
	}

	q.StartIndex = start - 1
	q.MaxFeatures = maxRecords

	features, err := s.search(ctx, q)
	if err != nil {
		return nil, err
	}

	for _, f := range features {
		response.SearchResults.Add(toRecord(f), elementSet)
	}

	returned := len(features)
	response.SearchResults.NumberOfRecordsReturned = returned
	if next := start + returned; returned > 0 && next <= matched {
		response.SearchResults.NextRecord = next
	}

	log := logging.GetFromContext(ctx)
	log.Debug().Msgf("returning %d of %d matching records", returned, matched)

	return response, nil
}

// readers returns a reader per store. Stores without records contribute
// nothing.
func (s *catalogSvc) readers(ctx context.Context, q featurestore.Query) ([]featurestore.FeatureReader, error) {
	readers := []featurestore.FeatureReader{}
	for _, store := range s.stores {
		r, err := store.Reader(ctx, q)
		if errors.Is(err, featurestore.ErrNoSuchType) {
			continue
		}
		if err != nil {
			for _, opened := range readers {
				opened.Close()
			}
			return nil, err
		}
		readers = append(readers, r)
	}
	return readers, nil
}

// search reads a page of records from every store. Each store sorts its own
// records and the sorted streams are merged before the page is cut.
func (s *catalogSvc) search(ctx context.Context, q featurestore.Query) ([]*domain.Feature, error) {
	if len(s.stores) == 1 {
		r, err := s.primary.Reader(ctx, q)
		if err != nil {
			return nil, err
		}
		return featurestore.ReadAll(ctx, r)
	}

	perStore := q.Unpaged()
	if q.MaxFeatures > 0 {
		perStore.MaxFeatures = q.StartIndex + q.MaxFeatures
	}

	readers, err := s.readers(ctx, perStore)
	if err != nil {
		return nil, err
	}

	var merged featurestore.FeatureReader
	if len(q.SortBy) > 0 {
		merged = featurestore.MergeSorted(readers, q.SortBy)
	} else {
		merged = featurestore.Concat(readers...)
	}

	paged := featurestore.LimitReader(featurestore.OffsetReader(merged, q.StartIndex), q.MaxFeatures)
	return featurestore.ReadAll(ctx, paged)
}

func (s *catalogSvc) count(ctx context.Context, q featurestore.Query) (int, error) {
	total := 0
	for _, store := range s.stores {
		n, err := store.Count(ctx, q.Unpaged())
		if errors.Is(err, featurestore.ErrNoSuchType) {
			continue
		}
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (s *catalogSvc) GetRecordById(ctx context.Context, req *csw.GetRecordById) (*csw.GetRecordByIdResponse, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-record-by-id")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if err = checkVersion(req.Version); err != nil {
		return nil, err
	}
	if err = checkOutput(req.OutputFormat, req.OutputSchema); err != nil {
		return nil, err
	}

	ids := []string{}
	for _, id := range req.ID {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		err = csw.NewServiceError(csw.MissingParameterValue, "Id", "at least one record id is required")
		return nil, err
	}

	elementSet, err := elementSetOf(req.ElementSetName)
	if err != nil {
		return nil, err
	}

	readers, err := s.readers(ctx, featurestore.NewQuery(RecordType).WithFilter(filter.ID(ids...)))
	if err != nil {
		return nil, err
	}

	features, err := featurestore.ReadAll(ctx, featurestore.Concat(readers...))
	if err != nil {
		return nil, err
	}

	byID := map[string]*domain.Feature{}
	for _, f := range features {
		if _, seen := byID[f.ID]; !seen {
			byID[f.ID] = f
		}
	}

	response := &csw.GetRecordByIdResponse{}
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			response.Add(toRecord(f), elementSet)
		}
	}

	return response, nil
}
