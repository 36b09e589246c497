package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Retention and lifecycle operations",
}

var retentionEnforceCmd = &cobra.Command{
	Use:   "enforce",
	Short: "Run one retention sweep",
	RunE:  runRetentionEnforce,
}

func init() {
	retentionCmd.AddCommand(retentionEnforceCmd)
	rootCmd.AddCommand(retentionCmd)
}

func runRetentionEnforce(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	result := app.Enforcer.Enforce()
	fmt.Printf("Retention sweep done: %d deleted, %d archived\n",
		result.Deleted, result.Archived)
	return nil
}
