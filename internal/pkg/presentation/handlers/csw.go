package handlers

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/catalog"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain/csw"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/rs/zerolog"
)

// NewCatalogHandler serves csw requests, either as key value pairs in the
// query of a GET or as an xml document POSTed in the body
func NewCatalogHandler(logger zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "csw-request")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		response, err := executeCatalogRequest(ctx, r, svc)
		if err != nil {
			log.Error().Err(err).Msg("csw request failed")
			writeException(w, log, err)
			return
		}

		writeXML(w, log, http.StatusOK, response)
	})
}

func executeCatalogRequest(ctx context.Context, r *http.Request, svc catalog.CatalogService) (any, error) {
	var request any
	var err error

	if r.Method == http.MethodPost {
		var body []byte
		body, err = io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			return nil, csw.NewServiceError(csw.NoApplicableCode, "", "failed to read request: %s", err.Error())
		}
		request, err = csw.Decode(body)
	} else {
		request, err = csw.ParseKVP(r.URL.Query())
	}

	if err != nil {
		return nil, err
	}

	return svc.Execute(ctx, request)
}

func writeXML(w http.ResponseWriter, log zerolog.Logger, statusCode int, body any) {
	responseBody, err := xml.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	w.Write([]byte(xml.Header))
	w.Write(responseBody)
}

func writeException(w http.ResponseWriter, log zerolog.Logger, err error) {
	statusCode := http.StatusBadRequest

	serviceErr := &csw.ServiceError{}
	if !errors.As(err, &serviceErr) {
		statusCode = http.StatusInternalServerError
		if errors.Is(err, featurestore.ErrConflict) {
			statusCode = http.StatusConflict
		}
		serviceErr = csw.NewServiceError(csw.NoApplicableCode, "", "%s", err.Error())
	}

	writeXML(w, log, statusCode, serviceErr.Report())
}
