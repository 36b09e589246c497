package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create backups",
}

var backupFullCmd = &cobra.Command{
	Use:   "full [key=value...]",
	Short: "Create a full database backup",
	Example: `  bastion backup full
  bastion backup full operator=alice reason=pre-migration`,
	RunE: runBackupFull,
}

var backupIncrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Create an incremental database backup",
	RunE:  runBackupIncremental,
}

var backupDocumentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Create a document corpus backup",
	RunE:  runBackupDocuments,
}

func init() {
	backupCmd.AddCommand(backupFullCmd, backupIncrementalCmd, backupDocumentsCmd)
	rootCmd.AddCommand(backupCmd)
}

func parseTags(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid tag %q, expected key=value", arg)
		}
		tags[key] = value
	}
	return tags, nil
}

func runBackupFull(cmd *cobra.Command, args []string) error {
	tags, err := parseTags(args)
	if err != nil {
		return err
	}

	app, err := buildApp()
	if err != nil {
		return err
	}

	rec, err := app.DBProducer.ProduceFull(cmd.Context(), tags)
	if err != nil {
		return err
	}

	fmt.Printf("Backup %s completed (%s in %s)\n",
		rec.ID, humanize.Bytes(uint64(rec.Size)), humanize.Comma(rec.Duration)+"ms")
	return nil
}

func runBackupIncremental(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	rec, err := app.DBProducer.ProduceIncremental(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Backup %s completed (%s)\n", rec.ID, humanize.Bytes(uint64(rec.Size)))
	return nil
}

func runBackupDocuments(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	rec, err := app.DocProducer.Produce(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Backup %s completed (%s)\n", rec.ID, humanize.Bytes(uint64(rec.Size)))
	return nil
}
