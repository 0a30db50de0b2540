package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore/filter"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/infrastructure/stores/codec"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newTypesCommand(log zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "types [store...]",
		Short: "List the feature types of the configured stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			all, closeAll, err := openStores(ctx, configFileName)
			if err != nil {
				return err
			}
			defer closeAll()

			selected := all
			if len(args) > 0 {
				selected = []featurestore.DataStore{}
				for _, name := range args {
					s, err := storeNamed(all, name)
					if err != nil {
						return err
					}
					selected = append(selected, s)
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STORE\tTYPE\tCRS\tCOUNT")

			for _, s := range selected {
				typeNames, err := s.TypeNames(ctx)
				if err != nil {
					return fmt.Errorf("failed to list types of %s: %w", s.Name(), err)
				}

				for _, typeName := range typeNames {
					ft, err := s.Schema(ctx, typeName)
					if err != nil {
						return err
					}

					count, err := s.Count(ctx, featurestore.NewQuery(typeName))
					if err != nil {
						return err
					}

					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.Name(), typeName, ft.CRS, count)
				}
			}

			return tw.Flush()
		},
	}
}

type dumpOptions struct {
	store      string
	where      []string
	sortBy     string
	crs        string
	properties []string
	offset     int
	limit      int
}

func newDumpCommand(log zerolog.Logger) *cobra.Command {
	opts := dumpOptions{}

	cmd := &cobra.Command{
		Use:   "dump <type>",
		Short: "Write the features of a type as a GeoJSON feature collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			typeName := args[0]

			all, closeAll, err := openStores(ctx, configFileName)
			if err != nil {
				return err
			}
			defer closeAll()

			s, err := storeWithType(ctx, all, opts.store, typeName)
			if err != nil {
				return err
			}

			ft, err := s.Schema(ctx, typeName)
			if err != nil {
				return err
			}

			q, err := opts.query(ft)
			if err != nil {
				return err
			}

			reader, err := s.Reader(ctx, q)
			if err != nil {
				return err
			}

			features, err := featurestore.ReadAll(ctx, reader)
			if err != nil {
				return err
			}

			log.Info().Msgf("dumping %d features of %s from %s", len(features), typeName, s.Name())

			doc := codec.NewDocument(ft.Retype(q.Properties), features)
			if q.CRS != "" {
				doc.FeatureType.CRS = q.CRS
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}

	cmd.Flags().StringVarP(&opts.store, "store", "s", "", "read from this store instead of the first one holding the type")
	cmd.Flags().StringArrayVarP(&opts.where, "where", "w", nil, "only dump features where attribute=value")
	cmd.Flags().StringVar(&opts.sortBy, "sortby", "", "sort by attributes, prefix with - for descending order")
	cmd.Flags().StringVar(&opts.crs, "crs", "", "reproject geometries to this crs")
	cmd.Flags().StringSliceVarP(&opts.properties, "properties", "p", nil, "only include these properties")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "skip this many features")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "dump at most this many features")

	return cmd
}

func (opts dumpOptions) query(ft *domain.FeatureType) (featurestore.Query, error) {
	q := featurestore.NewQuery(ft.Name)
	q.StartIndex = opts.offset
	q.MaxFeatures = opts.limit
	q.CRS = opts.crs
	q.Properties = opts.properties
	q.SortBy = featurestore.ParseSortBy(opts.sortBy)

	filters := []filter.Filter{}
	for _, w := range opts.where {
		name, value, ok := strings.Cut(w, "=")
		if !ok {
			return q, fmt.Errorf("%w: expected attribute=value, got %s", featurestore.ErrInvalidQuery, w)
		}
		if _, known := ft.Attribute(name); !known && name != domain.IDProperty {
			return q, fmt.Errorf("%w: %s has no attribute %s", featurestore.ErrInvalidQuery, ft.Name, name)
		}
		filters = append(filters, filter.PropertyEquals(name, value))
	}
	q.Filter = filter.AllOf(filters...)

	return q, q.Validate()
}

func newCopyCommand(log zerolog.Logger) *cobra.Command {
	var from, as string

	cmd := &cobra.Command{
		Use:   "copy <type> <target store>",
		Short: "Copy every feature of a type into another store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			typeName, targetName := args[0], args[1]

			all, closeAll, err := openStores(ctx, configFileName)
			if err != nil {
				return err
			}
			defer closeAll()

			source, err := storeWithType(ctx, all, from, typeName)
			if err != nil {
				return err
			}

			target, err := storeNamed(all, targetName)
			if err != nil {
				return err
			}

			if source == target && (as == "" || as == typeName) {
				return errors.New("refusing to copy a type onto itself")
			}

			ft, err := source.Schema(ctx, typeName)
			if err != nil {
				return err
			}

			targetType := *ft
			targetType.Attributes = append([]domain.AttributeDescriptor{}, ft.Attributes...)
			if as != "" {
				targetType.Name = as
			}

			if _, err = target.Schema(ctx, targetType.Name); errors.Is(err, featurestore.ErrNoSuchType) {
				if err = target.CreateSchema(ctx, &targetType); err != nil {
					return fmt.Errorf("failed to create %s in %s: %w", targetType.Name, target.Name(), err)
				}
				log.Info().Msgf("created type %s in %s", targetType.Name, target.Name())
			} else if err != nil {
				return err
			}

			reader, err := source.Reader(ctx, featurestore.NewQuery(typeName))
			if err != nil {
				return err
			}

			features, err := featurestore.ReadAll(ctx, reader)
			if err != nil {
				return err
			}

			session := featurestore.NewSession(target)
			if _, err = session.AddFeatures(ctx, targetType.Name, features); err != nil {
				return err
			}
			if err = session.Commit(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "copied %d features of %s from %s to %s\n", len(features), typeName, source.Name(), target.Name())
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "copy from this store instead of the first one holding the type")
	cmd.Flags().StringVar(&as, "as", "", "name of the type in the target store")

	return cmd
}
