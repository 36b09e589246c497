package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pitrEnv string

var pitrCmd = &cobra.Command{
	Use:   "pitr <timestamp> [backupId]",
	Short: "Point-in-time recovery",
	Long: `Restore state as of the given RFC 3339 timestamp. The latest
completed-and-verified backup at or before the timestamp is selected
unless an explicit backup id is given.`,
	Example: `  bastion pitr 2026-08-28T14:00:00Z
  bastion pitr 2026-08-28T14:00:00Z full_1756320000000_a1b2c3d4 --env staging`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPITR,
}

func init() {
	pitrCmd.Flags().StringVar(&pitrEnv, "env", "", "target environment")
	rootCmd.AddCommand(pitrCmd)
}

func runPITR(cmd *cobra.Command, args []string) error {
	target, err := time.Parse(time.RFC3339, args[0])
	if err != nil {
		return fmt.Errorf("timestamp must be RFC 3339 (e.g. 2026-08-28T14:00:00Z): %w", err)
	}
	backupID := ""
	if len(args) == 2 {
		backupID = args[1]
	}

	app, err := buildApp()
	if err != nil {
		return err
	}

	op, err := app.Orchestrator.PointInTimeRecovery(target, backupID, pitrEnv)
	if err != nil {
		return err
	}
	fmt.Printf("Recovery %s staged from backup %s\n", op.ID, op.BackupID)

	if err := app.Orchestrator.Execute(cmd.Context(), op.ID); err != nil {
		return err
	}
	fmt.Printf("Recovery %s completed into %s\n", op.ID, op.TargetEnvironment)
	return nil
}
