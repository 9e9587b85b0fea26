// Command reviewctl runs operator tasks against the review store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mealsfly_review/internal/adapters/observability"
	"mealsfly_review/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg shared.Config
	root := &cobra.Command{
		Use:           "reviewctl",
		Short:         "Operator tooling for the restaurant review service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = shared.Load()
			log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
		},
	}
	root.AddCommand(newImportCmd(&cfg), newCreateAdminCmd(&cfg))
	return root
}
