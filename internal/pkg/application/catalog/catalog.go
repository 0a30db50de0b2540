package catalog

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain/csw"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("geotoolkit/catalog")

const (
	DefaultMaxRecords      int           = 10
	DefaultHarvestInterval time.Duration = time.Hour
)

//go:generate moq -rm -out catalog_mock.go . CatalogService

// CatalogService answers csw requests from records kept in feature stores
type CatalogService interface {
	// Execute dispatches one of the request types decoded by the csw package
	Execute(ctx context.Context, request any) (any, error)

	GetCapabilities(ctx context.Context, req *csw.GetCapabilities) (*csw.Capabilities, error)
	DescribeRecord(ctx context.Context, req *csw.DescribeRecord) (*csw.DescribeRecordResponse, error)
	GetRecords(ctx context.Context, req *csw.GetRecords) (*csw.GetRecordsResponse, error)
	GetRecordById(ctx context.Context, req *csw.GetRecordById) (*csw.GetRecordByIdResponse, error)
	Transaction(ctx context.Context, req *csw.Transaction) (*csw.TransactionResponse, error)
	Harvest(ctx context.Context, req *csw.Harvest) (*csw.HarvestResponse, error)

	Start(ctx context.Context)
	Shutdown()
}

type Config struct {
	Title    string
	Abstract string
	Keywords []string
	Provider string
	// URL is where the service is reachable, used in the capabilities
	URL string
	// HarvestInterval applies to the configured sources
	HarvestInterval time.Duration
	// HarvestSources are harvested once the service starts, and then again
	// on every interval
	HarvestSources []string
}

type catalogSvc struct {
	cfg Config

	// records are written to the primary store, and searched in it and the
	// additional stores
	primary featurestore.DataStore
	stores  []featurestore.DataStore

	client    *http.Client
	harvester *harvester
}

// New creates a catalog writing records to primary. Searches also include
// the records of the additional stores.
func New(ctx context.Context, cfg Config, primary featurestore.DataStore, additional ...featurestore.DataStore) (CatalogService, error) {
	return newCatalogService(ctx, cfg, primary, additional...)
}

func newCatalogService(ctx context.Context, cfg Config, primary featurestore.DataStore, additional ...featurestore.DataStore) (*catalogSvc, error) {
	if primary == nil {
		return nil, errors.New("a catalog needs a record store")
	}

	if _, err := primary.Schema(ctx, RecordType); errors.Is(err, featurestore.ErrNoSuchType) {
		if err = primary.CreateSchema(ctx, RecordSchema()); err != nil {
			return nil, fmt.Errorf("failed to create record type in %s: %w", primary.Name(), err)
		}
		log := logging.GetFromContext(ctx)
		log.Info().Msgf("created record type in store %s", primary.Name())
	} else if err != nil {
		return nil, err
	}

	if cfg.HarvestInterval <= 0 {
		cfg.HarvestInterval = DefaultHarvestInterval
	}

	svc := &catalogSvc{
		cfg:     cfg,
		primary: primary,
		stores:  append([]featurestore.DataStore{primary}, additional...),
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
	}
	svc.harvester = newHarvester(svc.harvest)

	for _, source := range cfg.HarvestSources {
		svc.harvester.Register(source, cfg.HarvestInterval)
		svc.harvester.Due(source)
	}

	return svc, nil
}

func (s *catalogSvc) Start(ctx context.Context) {
	log := logging.GetFromContext(ctx)
	log.Info().Msg("starting catalog service")
	s.harvester.Start(ctx)
}

func (s *catalogSvc) Shutdown() {
	s.harvester.Shutdown()
}

func (s *catalogSvc) Execute(ctx context.Context, request any) (any, error) {
	switch r := request.(type) {
	case *csw.GetCapabilities:
		return s.GetCapabilities(ctx, r)
	case *csw.DescribeRecord:
		return s.DescribeRecord(ctx, r)
	case *csw.GetRecords:
		if strings.EqualFold(r.ResultType, csw.ResultTypeValidate) {
			return s.validate(r)
		}
		return s.GetRecords(ctx, r)
	case *csw.GetRecordById:
		return s.GetRecordById(ctx, r)
	case *csw.Transaction:
		return s.Transaction(ctx, r)
	case *csw.Harvest:
		return s.Harvest(ctx, r)
	}

	return nil, csw.NewServiceError(csw.OperationNotSupported, "request", "unsupported request %T", request)
}

// validate checks a GetRecords request without running it
func (s *catalogSvc) validate(req *csw.GetRecords) (*csw.Acknowledgement, error) {
	if _, _, err := s.searchFor(req); err != nil {
		return nil, err
	}

	echo, err := xml.Marshal(req)
	if err != nil {
		return nil, err
	}

	return &csw.Acknowledgement{
		TimeStamp:     now(),
		EchoedRequest: csw.EchoedRequest{Content: string(echo)},
		RequestID:     req.RequestID,
	}, nil
}

func checkVersion(version string) error {
	if version != "" && version != csw.Version {
		return csw.NewServiceError(csw.InvalidParameterValue, "version", "version %s is not supported, use %s", version, csw.Version)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (s *catalogSvc) GetCapabilities(ctx context.Context, req *csw.GetCapabilities) (*csw.Capabilities, error) {
	if req.AcceptVersions != nil && len(req.AcceptVersions.Version) > 0 {
		supported := false
		for _, v := range req.AcceptVersions.Version {
			supported = supported || v == csw.Version
		}
		if !supported {
			return nil, csw.NewServiceError(csw.VersionNegotiationFailed, "acceptVersions", "only version %s is supported", csw.Version)
		}
	}

	endpoint := []csw.OnlineResource{{Href: s.cfg.URL}}
	dcp := csw.DCP{HTTP: csw.HTTP{Get: endpoint, Post: endpoint}}

	operation := func(name string, parameters ...csw.Domain) csw.Operation {
		return csw.Operation{Name: name, DCP: dcp, Parameters: parameters}
	}

	typeNames := csw.Domain{Name: "typeNames", Values: []string{"csw:Record"}}
	outputFormat := csw.Domain{Name: "outputFormat", Values: []string{csw.OutputFormatXML}}
	outputSchema := csw.Domain{Name: "outputSchema", Values: []string{csw.OutputSchemaRecord}}
	elementSetName := csw.Domain{Name: "ElementSetName", Values: []string{csw.Brief, csw.Summary, csw.Full}}

	caps := &csw.Capabilities{
		Version: csw.Version,
		ServiceIdentification: csw.ServiceIdentification{
			Title:              s.cfg.Title,
			Abstract:           s.cfg.Abstract,
			ServiceType:        csw.Service,
			ServiceTypeVersion: []string{csw.Version},
			Fees:               "NONE",
			AccessConstraints:  "NONE",
		},
		ServiceProvider: csw.ServiceProvider{
			ProviderName: s.cfg.Provider,
		},
		OperationsMetadata: csw.OperationsMetadata{
			Operations: []csw.Operation{
				operation("GetCapabilities", csw.Domain{Name: "sections", Values: []string{"ServiceIdentification", "ServiceProvider", "OperationsMetadata", "Filter_Capabilities"}}),
				operation("DescribeRecord", csw.Domain{Name: "typeName", Values: []string{"csw:Record"}}, outputFormat,
					csw.Domain{Name: "schemaLanguage", Values: []string{"http://www.w3.org/XML/Schema"}}),
				operation("GetRecords", typeNames, outputFormat, outputSchema,
					csw.Domain{Name: "resultType", Values: []string{csw.ResultTypeHits, csw.ResultTypeResults, csw.ResultTypeValidate}},
					elementSetName,
					csw.Domain{Name: "CONSTRAINTLANGUAGE", Values: []string{"Filter"}}),
				operation("GetRecordById", outputFormat, outputSchema, elementSetName),
				operation("Transaction"),
				operation("Harvest", csw.Domain{Name: "ResourceType", Values: []string{csw.NamespaceCSW}}),
			},
			Parameters: []csw.Domain{
				{Name: "service", Values: []string{csw.Service}},
				{Name: "version", Values: []string{csw.Version}},
			},
		},
		FilterCapabilities: &csw.FilterCapabilities{
			SpatialCapabilities: csw.SpatialCapabilities{
				GeometryOperands: []string{"gml:Envelope", "gml:Point", "gml:LineString", "gml:Polygon"},
				SpatialOperators: []csw.SpatialOperator{
					{Name: "BBOX"}, {Name: "Intersects"}, {Name: "Within"},
					{Name: "Contains"}, {Name: "Disjoint"}, {Name: "DWithin"},
				},
			},
			ScalarCapabilities: csw.ScalarCapabilities{
				LogicalOperators: &struct{}{},
				ComparisonOperators: []string{
					"EqualTo", "NotEqualTo", "LessThan", "GreaterThan",
					"LessThanEqualTo", "GreaterThanEqualTo", "Like", "NullCheck", "Between",
				},
			},
			IDCapabilities: csw.IDCapabilities{EID: []struct{}{{}}, FID: []struct{}{{}}},
		},
	}

	if len(s.cfg.Keywords) > 0 {
		caps.ServiceIdentification.Keywords = &csw.Keywords{Keyword: s.cfg.Keywords}
	}
	if s.cfg.URL != "" {
		caps.ServiceProvider.ProviderSite = &csw.OnlineResource{Href: s.cfg.URL}
	}

	return caps, nil
}

func (s *catalogSvc) DescribeRecord(ctx context.Context, req *csw.DescribeRecord) (*csw.DescribeRecordResponse, error) {
	if err := checkVersion(req.Version); err != nil {
		return nil, err
	}

	for _, tn := range req.TypeName {
		if !isRecordType(tn) {
			return nil, csw.NewServiceError(csw.InvalidParameterValue, "typeName", "type %s is not known, only csw:Record is", tn)
		}
	}

	if req.SchemaLanguage != "" && !strings.Contains(strings.ToLower(req.SchemaLanguage), "xml") {
		return nil, csw.NewServiceError(csw.InvalidParameterValue, "schemaLanguage", "schema language %s is not supported", req.SchemaLanguage)
	}

	return &csw.DescribeRecordResponse{
		SchemaComponent: []csw.SchemaComponent{{
			TargetNamespace: csw.NamespaceCSW,
			SchemaLanguage:  "http://www.w3.org/XML/Schema",
			Content:         recordSchemaXSD,
		}},
	}, nil
}

func isRecordType(typeName string) bool {
	local := typeName
	if i := strings.LastIndex(local, ":"); i >= 0 {
		local = local[i+1:]
	}
	return local == RecordType
}

const recordSchemaXSD string = `<xsd:schema xmlns:xsd="http://www.w3.org/2001/XMLSchema" ` +
	`xmlns:csw="http://www.opengis.net/cat/csw/2.0.2" xmlns:dc="http://purl.org/dc/elements/1.1/" ` +
	`targetNamespace="http://www.opengis.net/cat/csw/2.0.2" elementFormDefault="qualified">` +
	`<xsd:element name="Record" type="csw:RecordType"/>` +
	`<xsd:complexType name="RecordType"><xsd:complexContent>` +
	`<xsd:extension base="csw:DCMIRecordType"><xsd:sequence>` +
	`<xsd:element name="AnyText" type="csw:EmptyType" minOccurs="0" maxOccurs="unbounded"/>` +
	`<xsd:element ref="ows:BoundingBox" xmlns:ows="http://www.opengis.net/ows" minOccurs="0" maxOccurs="unbounded"/>` +
	`</xsd:sequence></xsd:extension></xsd:complexContent></xsd:complexType>` +
	`</xsd:schema>`
