package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/canteen/internal/models"
	"github.com/mmynk/canteen/internal/storage/sqlstore"
)

// newGrantStaffCommand changes a user's role directly in the database. There
// is no RPC for it: kitchen accounts are provisioned by whoever runs the server.
func newGrantStaffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant-staff <email>",
		Short: "Give a registered user the kitchen staff role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.Database.DSN, _ = cmd.Flags().GetString("db")
			}
			revoke, _ := cmd.Flags().GetBool("revoke")

			store, err := sqlstore.Open(sqlstore.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer store.Close()

			role := models.RoleStaff
			if revoke {
				role = models.RoleDiner
			}
			user, err := store.SetRole(cmd.Context(), args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Email, user.Role)
			return nil
		},
	}
	cmd.Flags().String("db", "", "Database DSN or SQLite path (overrides config)")
	cmd.Flags().Bool("revoke", false, "Demote the user back to diner")
	return cmd
}
