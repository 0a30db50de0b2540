package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var configFileName string

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	root := newRootCommand(log)
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(log zerolog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "featurectl",
		Short:        "Inspect and move features between configured data stores",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configFileName, "config", "c", "/opt/geotoolkit/stores.yaml", "A yaml file listing the data stores")

	root.AddCommand(newTypesCommand(log), newDumpCommand(log), newCopyCommand(log))

	return root
}

// openStores mounts every configured store. The returned func closes them.
func openStores(ctx context.Context, path string) ([]featurestore.DataStore, func(), error) {
	configfile, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store configuration: %w", err)
	}
	defer configfile.Close()

	configs, err := stores.LoadConfig(configfile)
	if err != nil {
		return nil, nil, err
	}

	mounted, err := stores.OpenAll(ctx, configs)
	if err != nil {
		return nil, nil, err
	}

	return mounted, func() {
		for _, s := range mounted {
			s.Close()
		}
	}, nil
}

func storeNamed(all []featurestore.DataStore, name string) (featurestore.DataStore, error) {
	for _, s := range all {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("no store named %s", name)
}

// storeWithType returns the named store, or the first store holding the
// type when no name is given
func storeWithType(ctx context.Context, all []featurestore.DataStore, name, typeName string) (featurestore.DataStore, error) {
	if name != "" {
		s, err := storeNamed(all, name)
		if err != nil {
			return nil, err
		}
		if _, err = s.Schema(ctx, typeName); err != nil {
			return nil, err
		}
		return s, nil
	}

	for _, s := range all {
		_, err := s.Schema(ctx, typeName)
		if errors.Is(err, featurestore.ErrNoSuchType) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	return nil, fmt.Errorf("%w: %s", featurestore.ErrNoSuchType, typeName)
}
