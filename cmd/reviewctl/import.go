package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mealsfly_review/internal/adapters/directory"
	redisad "mealsfly_review/internal/adapters/redis"
	"mealsfly_review/internal/app"
	"mealsfly_review/internal/domain"
	"mealsfly_review/internal/shared"
	"mealsfly_review/internal/storage"
)

func newImportCmd(cfg *shared.Config) *cobra.Command {
	var (
		workers int
		rps     int
		only    []string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert restaurants from the upstream directory",
		Long: `Pulls restaurant records from DIRECTORY_BASE_URL and upserts them by external id.
Review state of restaurants that already exist is never changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if workers <= 0 {
				workers = cfg.ImportWorkers
			}
			log.Info().
				Str("base", cfg.DirectoryBase).
				Int("workers", workers).
				Msg("import starting")

			dir, err := directory.New(cfg.DirectoryBase, cfg.DirectoryKey, rps)
			if err != nil {
				return err
			}
			store, closeStore, err := storage.Open(ctx, cfg.StoreDriver, cfg.MySQLDSN, cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer closeStore()

			var cache domain.Cache
			if cfg.RedisAddr != "" {
				rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
				defer rc.Close()
				cache = rc
			}
			svc := app.NewImportService(dir, store, cache)

			if len(only) > 0 {
				for _, id := range only {
					created, err := svc.ImportRestaurant(ctx, id)
					if err != nil {
						return fmt.Errorf("import %s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s created=%t\n", id, created)
				}
				return nil
			}

			rep, err := svc.ImportAll(ctx, workers)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created=%d updated=%d skipped=%d failed=%d\n",
				rep.Created, rep.Updated, rep.Skipped, rep.Failed)
			if rep.Failed > 0 {
				return fmt.Errorf("%d restaurants failed to import", rep.Failed)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent fetches (default IMPORT_WORKERS)")
	cmd.Flags().IntVar(&rps, "rps", 5, "directory requests per second")
	cmd.Flags().StringSliceVar(&only, "id", nil, "import only these external ids")
	return cmd
}
