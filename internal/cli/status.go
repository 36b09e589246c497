package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bastionproject/bastion/internal/backup"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backup subsystem status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	records, err := app.Store.List()
	if err != nil {
		return err
	}
	stats := backup.ComputeStats(records)

	fmt.Println("Bastion Status")
	fmt.Println("==============")
	fmt.Printf("Backup root:  %s\n", app.Config.BackupRoot)
	fmt.Printf("Backups:      %d (%s total)\n", stats.Total, humanize.Bytes(uint64(stats.TotalSize)))
	fmt.Printf("Success rate: %.0f%%\n", stats.SuccessRate*100)
	if stats.LastFull != nil {
		fmt.Printf("Last full:    %s (%s)\n",
			stats.LastFull.Format(time.RFC3339), humanize.Time(*stats.LastFull))
	} else {
		fmt.Println("Last full:    never")
	}
	if stats.LastIncremental != nil {
		fmt.Printf("Last incr:    %s (%s)\n",
			stats.LastIncremental.Format(time.RFC3339), humanize.Time(*stats.LastIncremental))
	}

	dash := app.Monitor.BuildDashboard()
	fmt.Printf("Storage:      %s of %s\n",
		dash.StorageUsedHuman, humanize.Bytes(uint64(dash.StorageCapacity)))
	fmt.Printf("Open alerts:  %d\n", len(dash.ActiveAlerts))
	for _, alert := range dash.ActiveAlerts {
		fmt.Printf("    [%s] %s: %s\n", alert.Severity, alert.Type, alert.Message)
	}

	drStatus := app.Orchestrator.GetStatus()
	fmt.Printf("DR plans:     %d", len(drStatus.Plans))
	if drStatus.IsFailoverActive {
		fmt.Print("  (FAILOVER ACTIVE)")
	}
	fmt.Println()
	return nil
}
