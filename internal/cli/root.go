// Package cli is the bastion operator surface.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bastionproject/bastion/internal/config"
	"github.com/bastionproject/bastion/internal/logging"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// App state
	cfg     *config.Config
	cfgErr  error
	cfgPath string
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "bastion",
	Short: "Backup, verification and disaster recovery",
	Long: `Bastion produces, verifies and retains backups of a relational
store and a document corpus, replicates artifacts to configured storage
locations, monitors backup health, and orchestrates disaster recovery.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// SetVersion sets the version string.
func SetVersion(v string) {
	Version = v
	rootCmd.Version = v
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func initConfig() {
	cfg, cfgErr = config.Load(cfgPath)
}

func initLogging() {
	if cfg == nil {
		logging.InitDefault()
		return
	}
	_ = logging.Init(logging.Config{
		Level:       cfg.Logging.Level,
		JSON:        cfg.Logging.JSON,
		Development: cfg.Logging.Development,
	})
}

// RequireConfig returns the loaded config or the load error.
func RequireConfig() (*config.Config, error) {
	if cfgErr != nil {
		return nil, cfgErr
	}
	return cfg, nil
}
