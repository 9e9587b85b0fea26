package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mealsfly_review/internal/adapters/auth"
	"mealsfly_review/internal/app"
	"mealsfly_review/internal/shared"
	"mealsfly_review/internal/storage"
)

func newCreateAdminCmd(cfg *shared.Config) *cobra.Command {
	var name, username string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the admin account if it does not exist",
		Long:  "The password is read from REVIEWCTL_ADMIN_PASSWORD so it never shows up in shell history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("REVIEWCTL_ADMIN_PASSWORD")
			if password == "" {
				return errors.New("REVIEWCTL_ADMIN_PASSWORD is not set")
			}
			store, closeStore, err := storage.Open(cmd.Context(), cfg.StoreDriver, cfg.MySQLDSN, cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer closeStore()

			users := app.NewUserService(store, auth.NewHasher(0), nil, nil)
			u, created, err := users.EnsureAdmin(cmd.Context(), name, username, password)
			if err != nil {
				return err
			}
			state := "exists"
			if created {
				state = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s (id %d) %s\n", u.Username, u.ID, state)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&username, "username", "admin", "login name")
	return cmd
}
