package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore from backups",
}

var restoreLatestCmd = &cobra.Command{
	Use:   "latest <environment>",
	Short: "Restore the newest verified backup into an environment",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestoreLatest,
}

func init() {
	restoreCmd.AddCommand(restoreLatestCmd)
	rootCmd.AddCommand(restoreCmd)
}

func runRestoreLatest(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	op, err := app.Orchestrator.RestoreLatest(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Restored backup %s into %s (recovery %s)\n",
		op.BackupID, op.TargetEnvironment, op.ID)
	return nil
}
