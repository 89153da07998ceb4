package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markb/livedocs/internal/config"
	"github.com/markb/livedocs/internal/handshake"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Manage pending Google sign-in handshakes",
}

var flowsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired handshake flows",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("db") {
			cfg.DBPath, _ = cmd.Flags().GetString("db")
		}

		database, err := openDatabase(cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()

		store := handshake.NewStore(database.DB)
		removed, err := store.CleanupExpired(cmd.Context())
		if err != nil {
			return err
		}
		pending, err := store.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired flow(s), %d pending\n", removed, pending)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flowsCmd)
	flowsCmd.AddCommand(flowsCleanupCmd)
	flowsCleanupCmd.Flags().String("db", "livedocs.db", "Path to database file")
}
