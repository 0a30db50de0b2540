package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/catalog"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain/csw"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/memory"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/presentation"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const serviceName string = "featurestore-api"

var storeConfigFileName string

func loadStoreConfig(ctx context.Context, path string) []stores.Config {
	log := logging.GetFromContext(ctx)

	configfile, err := os.Open(path)
	if err != nil {
		log.Info().Msgf("failed to open the store configuration %s, serving an empty memory store.", path)
		return []stores.Config{{Name: "records", Kind: stores.KindMemory}}
	}
	defer configfile.Close()

	configs, err := stores.LoadConfig(configfile)
	if err != nil {
		log.Fatal().Err(err).Msgf("unable to load store configuration from %s", path)
	}

	return configs
}

// harvestInterval accepts both go durations like 90m and iso 8601
// durations like PT90M
func harvestInterval(log zerolog.Logger, value string) time.Duration {
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if d, err := csw.ParseDuration(value); err == nil {
		return d
	}

	log.Warn().Msgf("ignoring invalid harvest interval %s", value)
	return catalog.DefaultHarvestInterval
}

func harvestSources(value string) []string {
	sources := []string{}
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}
	return sources
}

// recordStore picks the store that catalog records are written to, and
// returns the remaining stores to search as well
func recordStore(ctx context.Context, all []featurestore.DataStore, name string) (featurestore.DataStore, []featurestore.DataStore) {
	for i, s := range all {
		if s.Name() == name {
			others := append(append([]featurestore.DataStore{}, all[:i]...), all[i+1:]...)
			return s, others
		}
	}

	log := logging.GetFromContext(ctx)
	log.Info().Msgf("no store named %s, keeping catalog records in memory", name)
	return memory.New(name), all
}

func main() {
	serviceVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion)
	defer cleanup()

	log.Info().Msgf("Starting up %s ...", serviceName)

	flag.StringVar(&storeConfigFileName, "config", "/opt/geotoolkit/stores.yaml", "A yaml file listing the data stores to mount")
	flag.Parse()

	configs := loadStoreConfig(ctx, storeConfigFileName)

	mounted, err := stores.OpenAll(ctx, configs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open data stores, shutting down...")
	}
	defer func() {
		for _, s := range mounted {
			s.Close()
		}
	}()

	for i, cfg := range configs {
		if !cfg.Watch {
			continue
		}

		go func(s featurestore.DataStore) {
			if err := featurestore.Watch(ctx, s); err != nil {
				log.Error().Err(err).Msgf("stopped watching store %s", s.Name())
			}
		}(mounted[i])
	}

	primary, additional := recordStore(ctx, mounted, env.GetVariableOrDefault(log, "CSW_RECORD_STORE", "records"))

	port := env.GetVariableOrDefault(log, "SERVICE_PORT", "8880")

	cfg := catalog.Config{
		Title:           env.GetVariableOrDefault(log, "CSW_TITLE", "Feature store catalog"),
		Abstract:        os.Getenv("CSW_ABSTRACT"),
		Provider:        os.Getenv("CSW_PROVIDER"),
		URL:             env.GetVariableOrDefault(log, "CSW_URL", "http://localhost:"+port+"/csw"),
		HarvestInterval: harvestInterval(log, env.GetVariableOrDefault(log, "CSW_HARVEST_INTERVAL", "1h")),
		HarvestSources:  harvestSources(os.Getenv("CSW_HARVEST_SOURCES")),
	}

	catalogSvc, err := catalog.New(ctx, cfg, primary, additional...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create catalog service")
	}
	catalogSvc.Start(ctx)
	defer catalogSvc.Shutdown()

	r := chi.NewRouter()
	app := presentation.NewAPI(ctx, r, append([]featurestore.DataStore{primary}, additional...), catalogSvc)

	err = app.Start(port)
	if err != nil {
		log.Fatal().Msgf("failed to start router: %s", err.Error())
	}
}
