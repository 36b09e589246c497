package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var drCmd = &cobra.Command{
	Use:   "dr",
	Short: "Disaster recovery operations",
}

var drPlansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List disaster-recovery plans",
	RunE:  runDRPlans,
}

var drTestCmd = &cobra.Command{
	Use:   "test <planId>",
	Short: "Run a recovery drill against a plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runDRTest,
}

var drFailoverCmd = &cobra.Command{
	Use:   "failover <planId> <region>",
	Short: "Execute a managed failover",
	Args:  cobra.ExactArgs(2),
	RunE:  runDRFailover,
}

func init() {
	drCmd.AddCommand(drPlansCmd, drTestCmd, drFailoverCmd)
	rootCmd.AddCommand(drCmd)
}

func runDRPlans(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	plans := app.Orchestrator.ListPlans()
	if len(plans) == 0 {
		fmt.Println("No disaster-recovery plans configured.")
		return nil
	}

	for _, p := range plans {
		fmt.Printf("%s  %s  RPO %dm  RTO %dm  regions %v", p.ID, p.Name,
			p.RPOMinutes, p.RTOMinutes, p.FailoverRegions)
		if p.LastTest != nil {
			fmt.Printf("  last test %s (%s)",
				p.LastTest.Format("2006-01-02"), p.LastTestResult)
		}
		fmt.Println()
	}
	return nil
}

func runDRTest(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	result, err := app.Orchestrator.RunTest(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if !result.Success {
		fmt.Printf("Drill %s FAILED (backup %s):\n", result.ID, result.BackupID)
		for _, e := range result.DataValidation.Errors {
			fmt.Printf("    %s\n", e)
		}
		return fmt.Errorf("recovery drill failed")
	}

	fmt.Printf("Drill %s passed: backup %s restored into %s, %d records validated\n",
		result.ID, result.BackupID, result.TargetEnvironment,
		result.DataValidation.RecordsVerified)
	return nil
}

func runDRFailover(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	op, err := app.Orchestrator.ManagedFailover(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Failover %s staged to region %s\n", op.ID, op.TargetRegion)

	if err := app.Orchestrator.Execute(cmd.Context(), op.ID); err != nil {
		return err
	}
	fmt.Printf("Failover %s completed\n", op.ID)
	return nil
}
