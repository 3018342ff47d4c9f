package main

import (
	"errors"
	"fleet-dispatch-service/internal/adapters/repositories"
	"fleet-dispatch-service/internal/app"
	"fleet-dispatch-service/internal/config"
	"fleet-dispatch-service/internal/ports"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persistent distance cache",
	}
	cmd.AddCommand(newCacheInitCmd(c))
	cmd.AddCommand(newCachePruneCmd(c))
	cmd.AddCommand(newCacheExportCmd(c))
	cmd.AddCommand(newCacheImportCmd(c))
	return cmd
}

// withStore opens the configured store for the duration of fn.
func withStore(cmd *cobra.Command, cfg *config.Config, fn func(ports.DistanceCacheStore) error) error {
	store, closeStore, err := app.OpenStore(cmd.Context(), cfg.Cache)
	if err != nil {
		return err
	}
	defer closeStore()
	if store == nil {
		return errors.New("cache backend is none; set cache.backend to sqlite, postgres or redis")
	}
	return fn(store)
}

func newCacheInitCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "init",
		Short:   "Create the distance sample schema",
		PreRunE: c.load,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, c.cfg, func(ports.DistanceCacheStore) error {
				fmt.Fprintf(cmd.OutOrStdout(), "%s distance cache ready\n", c.cfg.Cache.Backend)
				return nil
			})
		},
	}
}

func newCachePruneCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "prune",
		Short:   "Delete samples older than the cache TTL",
		PreRunE: c.load,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := c.cfg.Params()
			if err != nil {
				return err
			}
			cutoff := time.Now().Add(-params.CacheTTL).Unix()

			return withStore(cmd, c.cfg, func(store ports.DistanceCacheStore) error {
				n, err := store.PruneBefore(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d samples\n", n)
				return nil
			})
		},
	}
}

func newCacheExportCmd(c *cli) *cobra.Command {
	var (
		output string
		all    bool
	)

	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Write fresh samples as JSON",
		PreRunE: c.load,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := c.cfg.Params()
			if err != nil {
				return err
			}
			since := time.Now().Add(-params.CacheTTL).Unix()
			if all {
				since = math.MinInt64
			}

			return withStore(cmd, c.cfg, func(store ports.DistanceCacheStore) error {
				samples, err := store.LoadSamples(cmd.Context(), since)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create %s: %w", output, err)
					}
					defer f.Close()
					w = f
				}
				return repositories.WriteSamplesJSON(w, samples)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "destination file, - for stdout")
	cmd.Flags().BoolVar(&all, "all", false, "include samples older than the cache TTL")
	return cmd
}

func newCacheImportCmd(c *cli) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:     "import",
		Short:   "Load samples from a JSON file written by export",
		PreRunE: c.load,
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := repositories.ReadSamplesJSON(input)
			if err != nil {
				return err
			}

			return withStore(cmd, c.cfg, func(store ports.DistanceCacheStore) error {
				if err := store.SaveSamples(cmd.Context(), samples); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d samples\n", len(samples))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "samples JSON file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
