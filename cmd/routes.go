package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markb/livedocs/internal/config"
	"github.com/markb/livedocs/internal/routeguard"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Inspect the route guard",
}

var routesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List public route patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		guard, err := loadGuard(cmd)
		if err != nil {
			return err
		}
		for _, p := range guard.PublicRoutes() {
			fmt.Fprintln(cmd.OutOrStdout(), p.String())
		}
		return nil
	},
}

var routesCheckCmd = &cobra.Command{
	Use:   "check <path>...",
	Short: "Show whether paths are public, protected or skipped by the guard",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		guard, err := loadGuard(cmd)
		if err != nil {
			return err
		}
		for _, path := range args {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", guard.Classify(path), path)
		}
		return nil
	},
}

// loadGuard builds a guard from LIVEDOCS_PUBLIC_ROUTES plus --public-route.
func loadGuard(cmd *cobra.Command) (*routeguard.Guard, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	extra, _ := cmd.Flags().GetStringSlice("public-route")
	return routeguard.New(nil, append(cfg.PublicRoutes, extra...)...)
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.AddCommand(routesListCmd, routesCheckCmd)
	routesCmd.PersistentFlags().StringSlice("public-route", nil, "Extra public route pattern (repeatable)")
}
