package main

import (
	"context"
	"testing"
	"time"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/memory"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestHarvestIntervalAcceptsBothNotations(t *testing.T) {
	is := is.New(t)

	is.Equal(harvestInterval(zerolog.Logger{}, "90m"), 90*time.Minute)
	is.Equal(harvestInterval(zerolog.Logger{}, "PT90M"), 90*time.Minute)
	is.Equal(harvestInterval(zerolog.Logger{}, "soon"), time.Hour) // invalid intervals should fall back to the default
}

func TestHarvestSources(t *testing.T) {
	is := is.New(t)

	is.Equal(harvestSources(""), []string{})
	is.Equal(harvestSources(" http://a/csw ,,http://b/csw"), []string{"http://a/csw", "http://b/csw"})
}

func TestRecordStore(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	a, b, c := memory.New("a"), memory.New("records"), memory.New("c")
	all := []featurestore.DataStore{a, b, c}

	primary, others := recordStore(ctx, all, "records")
	is.Equal(primary.Name(), "records")
	is.Equal(len(others), 2)
	is.Equal(others[0].Name(), "a")
	is.Equal(others[1].Name(), "c")
	is.Equal(len(all), 3) // the mounted stores should be left untouched

	primary, others = recordStore(ctx, all, "catalog")
	is.Equal(primary.Name(), "catalog")
	is.Equal(len(others), 3)
}
