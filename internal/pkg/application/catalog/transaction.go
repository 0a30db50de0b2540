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

// Transaction applies inserts, then updates, then deletes to a session that
// is committed as a whole. Nothing is written when an action fails.
func (s *catalogSvc) Transaction(ctx context.Context, req *csw.Transaction) (*csw.TransactionResponse, error) {
	var err error
	ctx, span := tracer.Start(ctx, "transaction")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if err = checkVersion(req.Version); err != nil {
		return nil, err
	}

	if len(req.Insert)+len(req.Update)+len(req.Delete) == 0 {
		err = csw.NewServiceError(csw.MissingParameterValue, "Transaction", "the transaction has no action")
		return nil, err
	}

	session := featurestore.NewSession(s.primary)
	response := &csw.TransactionResponse{
		Version:            csw.Version,
		TransactionSummary: csw.TransactionSummary{RequestID: req.RequestID},
	}

	for _, insert := range req.Insert {
		var result *csw.InsertResult
		if result, err = s.insert(ctx, session, insert); err != nil {
			return nil, err
		}
		response.TransactionSummary.TotalInserted += len(result.BriefRecord)
		response.InsertResult = append(response.InsertResult, *result)
	}

	for _, update := range req.Update {
		var n int
		if n, err = s.update(ctx, session, update); err != nil {
			return nil, err
		}
		response.TransactionSummary.TotalUpdated += n
	}

	for _, del := range req.Delete {
		var n int
		if n, err = s.delete(ctx, session, del); err != nil {
			return nil, err
		}
		response.TransactionSummary.TotalDeleted += n
	}

	if err = session.Commit(ctx); err != nil {
		return nil, err
	}

	summary := response.TransactionSummary
	log := logging.GetFromContext(ctx)
	log.Info().Msgf("transaction committed: %d inserted, %d updated, %d deleted",
		summary.TotalInserted, summary.TotalUpdated, summary.TotalDeleted)

	return response, nil
}

func invalidRecord(err error, locator string) error {
	if errors.Is(err, domain.ErrInvalidFeature) {
		return csw.NewServiceError(csw.InvalidParameterValue, locator, "%s", err.Error())
	}
	return err
}

func countIn(ctx context.Context, session *featurestore.Session, flt filter.Filter) (int, error) {
	r, err := session.Reader(ctx, featurestore.NewQuery(RecordType).WithFilter(flt))
	if err != nil {
		return 0, err
	}

	features, err := featurestore.ReadAll(ctx, r)
	return len(features), err
}

func (s *catalogSvc) insert(ctx context.Context, session *featurestore.Session, insert csw.Insert) (*csw.InsertResult, error) {
	if len(insert.Record) == 0 {
		return nil, csw.NewServiceError(csw.MissingParameterValue, "Insert", "insert without records")
	}

	features := []*domain.Feature{}
	seen := map[string]bool{}

	for _, r := range insert.Record {
		f, err := toFeature(r)
		if err != nil {
			return nil, err
		}

		if f.ID != "" {
			n, err := countIn(ctx, session, filter.ID(f.ID))
			if err != nil {
				return nil, err
			}
			if n > 0 || seen[f.ID] {
				return nil, csw.NewServiceError(csw.InvalidParameterValue, "Insert", "record %s already exists", f.ID)
			}
			seen[f.ID] = true
		}

		features = append(features, f)
	}

	if _, err := session.AddFeatures(ctx, RecordType, features); err != nil {
		return nil, invalidRecord(err, "Insert")
	}

	result := &csw.InsertResult{HandleRef: insert.Handle}
	for _, f := range features {
		result.BriefRecord = append(result.BriefRecord, toRecord(f).Brief())
	}

	return result, nil
}

func (s *catalogSvc) update(ctx context.Context, session *featurestore.Session, update csw.Update) (int, error) {
	var flt filter.Filter
	var values map[string]any

	if update.Record != nil {
		f, err := toFeature(*update.Record)
		if err != nil {
			return 0, err
		}
		if f.ID == "" {
			return 0, csw.NewServiceError(csw.MissingParameterValue, "Update", "a replacement record needs an identifier")
		}
		flt, values = filter.ID(f.ID), valuesOf(f)
	} else {
		if update.Constraint == nil {
			return 0, csw.NewServiceError(csw.MissingParameterValue, "Constraint", "an update of record properties needs a constraint")
		}
		if len(update.RecordProperty) == 0 {
			return 0, csw.NewServiceError(csw.MissingParameterValue, "RecordProperty", "an update needs a record or record properties")
		}

		var err error
		if flt, err = toFilter(update.Constraint); err != nil {
			return 0, err
		}
		if values, err = propertyValues(update.RecordProperty); err != nil {
			return 0, err
		}
	}

	n, err := countIn(ctx, session, flt)
	if err != nil || n == 0 {
		return 0, err
	}

	if err := session.UpdateFeatures(ctx, RecordType, flt, values); err != nil {
		return 0, invalidRecord(err, "Update")
	}
	return n, nil
}

func propertyValues(properties []csw.RecordProperty) (map[string]any, error) {
	values := map[string]any{}

	for _, rp := range properties {
		property, err := queryable(rp.Name)
		if err != nil {
			return nil, err
		}

		switch {
		case property == domain.IDProperty || property == anyText || property == domain.DefaultGeometryName:
			return nil, csw.NewServiceError(csw.InvalidParameterValue, "RecordProperty", "%s can not be updated by property", rp.Name)
		case strings.TrimSpace(rp.Value) == "":
			values[property] = nil
		case isListProperty(property):
			values[property] = []any{strings.TrimSpace(rp.Value)}
		default:
			values[property] = strings.TrimSpace(rp.Value)
		}
	}

	return values, nil
}

func (s *catalogSvc) delete(ctx context.Context, session *featurestore.Session, del csw.Delete) (int, error) {
	if del.TypeName != "" && !isRecordType(del.TypeName) {
		return 0, csw.NewServiceError(csw.InvalidParameterValue, "typeName", "type %s is not known", del.TypeName)
	}
	if del.Constraint.Filter == nil && del.Constraint.CqlText == "" {
		return 0, csw.NewServiceError(csw.MissingParameterValue, "Constraint", "a delete needs a constraint")
	}

	flt, err := toFilter(&del.Constraint)
	if err != nil {
		return 0, err
	}

	n, err := countIn(ctx, session, flt)
	if err != nil || n == 0 {
		return 0, err
	}

	if err := session.RemoveFeatures(ctx, RecordType, flt); err != nil {
		return 0, err
	}
	return n, nil
}
