package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bastionproject/bastion/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [backupId]",
	Short: "Verify backup integrity",
	Long: `Verify one backup by id, or every backup due for verification
when no id is given. A backup is due when it has never been verified or
its last verification is older than seven days.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		check := app.Verifier.VerifyOne(args[0])
		printCheck(check)
		if !check.Restorable {
			return fmt.Errorf("backup %s is not restorable", args[0])
		}
		return nil
	}

	checks := app.Verifier.VerifyDue()
	if len(checks) == 0 {
		fmt.Println("No backups due for verification.")
		return nil
	}

	failed := 0
	for _, check := range checks {
		printCheck(check)
		if !check.Restorable {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d backups failed verification", failed, len(checks))
	}
	fmt.Printf("All %d backups verified.\n", len(checks))
	return nil
}

func printCheck(check *verify.IntegrityCheck) {
	state := "OK"
	if !check.Restorable {
		state = "FAILED"
	}
	fmt.Printf("%-40s %s\n", check.BackupID, state)
	for _, e := range check.Errors {
		fmt.Printf("    %s\n", e)
	}
}
