package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/catalog"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain/csw"
	"github.com/rs/zerolog"
)

func TestCatalogHandlerParsesKeyValueRequests(t *testing.T) {
	is, r, ts := setupTest(t)
	defer ts.Close()

	svc := &catalog.CatalogServiceMock{
		ExecuteFunc: func(ctx context.Context, request any) (any, error) {
			if req, ok := request.(*csw.GetRecordById); !ok || req.ID[0] != "r1" {
				return nil, errors.New("unexpected request")
			}
			return &csw.GetRecordByIdResponse{}, nil
		},
	}
	r.Get("/csw", NewCatalogHandler(zerolog.Logger{}, svc))

	resp, body := newGetRequest(is, ts, "application/xml", "/csw?service=CSW&version=2.0.2&request=GetRecordById&id=r1", nil)

	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(resp.Header.Get("Content-Type"), "application/xml")
	is.True(strings.HasPrefix(body, "<?xml"))
	is.True(strings.Contains(body, "GetRecordByIdResponse"))
	is.Equal(len(svc.ExecuteCalls()), 1)
}

func TestCatalogHandlerDecodesPostedRequests(t *testing.T) {
	is, r, ts := setupTest(t)
	defer ts.Close()

	svc := &catalog.CatalogServiceMock{
		ExecuteFunc: func(ctx context.Context, request any) (any, error) {
			return &csw.TransactionResponse{Version: csw.Version}, nil
		},
	}
	r.Post("/csw", NewCatalogHandler(zerolog.Logger{}, svc))

	const transaction string = `<csw:Transaction xmlns:csw="http://www.opengis.net/cat/csw/2.0.2" service="CSW" version="2.0.2">
		<csw:Delete typeName="csw:Record">
			<csw:Constraint version="1.1.0">
				<ogc:Filter xmlns:ogc="http://www.opengis.net/ogc">
					<ogc:PropertyIsEqualTo><ogc:PropertyName>dc:identifier</ogc:PropertyName><ogc:Literal>r1</ogc:Literal></ogc:PropertyIsEqualTo>
				</ogc:Filter>
			</csw:Constraint>
		</csw:Delete>
	</csw:Transaction>`

	resp, body := newRequest(is, ts, http.MethodPost, "/csw", strings.NewReader(transaction))

	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.Contains(body, "TransactionResponse"))
	is.Equal(len(svc.ExecuteCalls()), 1)

	_, ok := svc.ExecuteCalls()[0].Request.(*csw.Transaction)
	is.True(ok) // the posted document should be decoded as a transaction
}

func TestCatalogHandlerReportsMalformedRequests(t *testing.T) {
	is, r, ts := setupTest(t)
	defer ts.Close()

	svc := &catalog.CatalogServiceMock{}
	r.Get("/csw", NewCatalogHandler(zerolog.Logger{}, svc))
	r.Post("/csw", NewCatalogHandler(zerolog.Logger{}, svc))

	resp, body := newRequest(is, ts, http.MethodPost, "/csw", strings.NewReader("<csw:GetRecords"))
	is.Equal(resp.StatusCode, http.StatusBadRequest)
	is.True(strings.Contains(body, "ExceptionReport"))
	is.True(strings.Contains(body, csw.NoApplicableCode))

	resp, body = newGetRequest(is, ts, "application/xml", "/csw?service=CSW", nil)
	is.Equal(resp.StatusCode, http.StatusBadRequest)
	is.True(strings.Contains(body, csw.MissingParameterValue))

	is.Equal(len(svc.ExecuteCalls()), 0) // malformed requests should never reach the catalog
}

func TestCatalogHandlerMapsErrorsToStatusCodes(t *testing.T) {
	is, r, ts := setupTest(t)
	defer ts.Close()

	var failure error
	svc := &catalog.CatalogServiceMock{
		ExecuteFunc: func(ctx context.Context, request any) (any, error) {
			return nil, failure
		},
	}
	r.Get("/csw", NewCatalogHandler(zerolog.Logger{}, svc))

	for _, tc := range []struct {
		err    error
		status int
		code   string
	}{
		{csw.NewServiceError(csw.InvalidParameterValue, "typeNames", "unknown type"), http.StatusBadRequest, csw.InvalidParameterValue},
		{featurestore.ErrConflict, http.StatusConflict, csw.NoApplicableCode},
		{errors.New("disk full"), http.StatusInternalServerError, csw.NoApplicableCode},
	} {
		failure = tc.err

		resp, body := newGetRequest(is, ts, "application/xml", "/csw?service=CSW&request=GetCapabilities", nil)
		is.Equal(resp.StatusCode, tc.status)
		is.True(strings.Contains(body, `exceptionCode="`+tc.code+`"`))
	}
}
