package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore/filter"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain/csw"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
)

const maxHarvestSize int64 = 32 << 20

func (s *catalogSvc) Harvest(ctx context.Context, req *csw.Harvest) (*csw.HarvestResponse, error) {
	if err := checkVersion(req.Version); err != nil {
		return nil, err
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		return nil, csw.NewServiceError(csw.MissingParameterValue, "Source", "a harvest needs a source")
	}

	if u, err := url.Parse(source); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, csw.NewServiceError(csw.InvalidParameterValue, "Source", "%s is not an http url", source)
	}

	if rt := strings.TrimSpace(req.ResourceType); rt != csw.NamespaceCSW && !isRecordType(rt) {
		return nil, csw.NewServiceError(csw.InvalidParameterValue, "ResourceType", "resource type %s is not supported", req.ResourceType)
	}

	if len(req.ResponseHandler) > 0 {
		return nil, csw.NewServiceError(csw.InvalidParameterValue, "ResponseHandler", "asynchronous harvesting is not supported")
	}

	var interval time.Duration
	if req.HarvestInterval != "" {
		var err error
		if interval, err = csw.ParseDuration(req.HarvestInterval); err != nil || interval <= 0 {
			return nil, csw.NewServiceError(csw.InvalidParameterValue, "HarvestInterval", "invalid harvest interval %s", req.HarvestInterval)
		}
	}

	summary, err := s.harvest(ctx, source)
	if err != nil {
		return nil, err
	}

	if interval > 0 {
		s.harvester.Register(source, interval)
	}

	return &csw.HarvestResponse{
		TransactionResponse: &csw.TransactionResponse{
			Version:            csw.Version,
			TransactionSummary: summary,
		},
	}, nil
}

// harvest fetches the records of a source and inserts or replaces them in
// the primary store
func (s *catalogSvc) harvest(ctx context.Context, source string) (summary csw.TransactionSummary, err error) {
	ctx, span := tracer.Start(ctx, "harvest")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetFromContext(ctx)

	records, err := s.fetch(ctx, source)
	if err != nil {
		return summary, err
	}

	session := featurestore.NewSession(s.primary)

	for _, r := range records {
		f, err := toFeature(r)
		if err != nil {
			log.Warn().Err(err).Msgf("skipping harvested record %s", r.Identifier)
			continue
		}
		if f.ID == "" {
			log.Warn().Msgf("skipping harvested record without identifier from %s", source)
			continue
		}

		n, err := countIn(ctx, session, filter.ID(f.ID))
		if err != nil {
			return summary, err
		}

		if n > 0 {
			if err = session.UpdateFeatures(ctx, RecordType, filter.ID(f.ID), valuesOf(f)); err != nil {
				return summary, invalidRecord(err, "Harvest")
			}
			summary.TotalUpdated++
			continue
		}

		if _, err = session.AddFeatures(ctx, RecordType, []*domain.Feature{f}); err != nil {
			return summary, invalidRecord(err, "Harvest")
		}
		summary.TotalInserted++
	}

	if err = session.Commit(ctx); err != nil {
		return summary, err
	}

	log.Info().Msgf("harvested %s: %d inserted, %d updated", source, summary.TotalInserted, summary.TotalUpdated)

	return summary, nil
}

func (s *catalogSvc) fetch(ctx context.Context, source string) ([]csw.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, csw.NewServiceError(csw.NoApplicableCode, "Source", "%s answered with status code %d", source, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHarvestSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", source, err)
	}

	records, err := csw.DecodeRecords(body)
	if err != nil {
		return nil, csw.NewServiceError(csw.InvalidParameterValue, "Source", "unable to harvest %s: %s", source, err.Error())
	}

	return records, nil
}

type harvestSource struct {
	url      string
	interval time.Duration
	next     time.Time
}

// harvester repeats registered harvests on their interval for as long as it
// is running
type harvester struct {
	harvest func(ctx context.Context, source string) (csw.TransactionSummary, error)

	tick  time.Duration
	retry time.Duration

	mu      sync.Mutex
	sources map[string]*harvestSource
	done    chan struct{}
	stopped chan struct{}
}

func newHarvester(harvest func(ctx context.Context, source string) (csw.TransactionSummary, error)) *harvester {
	return &harvester{
		harvest: harvest,
		tick:    time.Second,
		retry:   10 * time.Second,
		sources: map[string]*harvestSource{},
	}
}

// Register schedules the source to be harvested again after interval
func (h *harvester) Register(source string, interval time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sources[source] = &harvestSource{url: source, interval: interval, next: time.Now().Add(interval)}
}

// Due makes a registered source be harvested on the next tick
func (h *harvester) Due(source string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if hs, ok := h.sources[source]; ok {
		hs.next = time.Now()
	}
}

func (h *harvester) Sources() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]string, 0, len(h.sources))
	for s := range h.sources {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

func (h *harvester) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done != nil {
		return
	}

	h.done = make(chan struct{})
	h.stopped = make(chan struct{})

	go h.run(ctx, h.done, h.stopped)
}

func (h *harvester) Shutdown() {
	h.mu.Lock()
	done, stopped := h.done, h.stopped
	h.done, h.stopped = nil, nil
	h.mu.Unlock()

	if done == nil {
		return
	}

	close(done)
	<-stopped
}

func (h *harvester) run(ctx context.Context, done, stopped chan struct{}) {
	defer close(stopped)

	logger := logging.GetFromContext(ctx)
	logger.Info().Msg("harvester started")

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("harvester exiting")
			return
		case <-done:
			logger.Info().Msg("harvester exiting")
			return
		case <-ticker.C:
			h.refresh(ctx)
		}
	}
}

func (h *harvester) due(now time.Time) []*harvestSource {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := []*harvestSource{}
	for _, hs := range h.sources {
		if !now.Before(hs.next) {
			result = append(result, hs)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].url < result[j].url })
	return result
}

func (h *harvester) refresh(ctx context.Context) {
	for _, hs := range h.due(time.Now()) {
		var err error
		hctx, span := tracer.Start(ctx, "refresh-harvest-source")
		_, hctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logging.GetFromContext(ctx), hctx)

		_, err = h.harvest(hctx, hs.url)

		next := time.Now().Add(hs.interval)
		if err != nil {
			log.Error().Err(err).Msgf("failed to harvest %s", hs.url)
			next = time.Now().Add(h.retry)
		}

		h.mu.Lock()
		hs.next = next
		h.mu.Unlock()

		tracing.RecordAnyErrorAndEndSpan(err, span)
	}
}
