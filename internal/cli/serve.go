package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bastionproject/bastion/internal/api"
	"github.com/bastionproject/bastion/internal/logging"
	"github.com/bastionproject/bastion/internal/scheduler"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server with scheduled jobs",
	Long: `Start the HTTP API server. Scheduled full, incremental and
document backups, verification sweeps, retention enforcement and health
checks run while the server is up.`,
	Example: `  bastion serve
  bastion serve --addr :9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	apiCfg := app.Config.API
	if serveAddr != "" {
		apiCfg.ListenAddr = serveAddr
	}

	sched, err := registerJobs(app)
	if err != nil {
		return err
	}

	server := api.NewServer(apiCfg, api.Deps{
		Store:        app.Store,
		DBProducer:   app.DBProducer,
		DocProducer:  app.DocProducer,
		Verifier:     app.Verifier,
		Enforcer:     app.Enforcer,
		Monitor:      app.Monitor,
		Alerts:       app.Alerts,
		Orchestrator: app.Orchestrator,
		Scheduler:    sched,
	})

	sched.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		sched.Stop()
		return err
	case <-stop:
	}

	logging.Info("shutting down")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// registerJobs wires the periodic jobs from the configured schedules.
func registerJobs(app *App) (*scheduler.Scheduler, error) {
	sched := scheduler.New()
	schedules := app.Config.Schedules

	jobs := []struct {
		name string
		expr string
		fn   scheduler.JobFunc
	}{
		{"full-backup", schedules.FullBackup, func(ctx context.Context) error {
			_, err := app.DBProducer.ProduceFull(ctx, map[string]string{"trigger": "scheduled"})
			return err
		}},
		{"incremental-backup", schedules.IncrementalBackup, func(ctx context.Context) error {
			_, err := app.DBProducer.ProduceIncremental(ctx)
			return err
		}},
		{"document-backup", schedules.DocumentBackup, func(ctx context.Context) error {
			_, err := app.DocProducer.Produce(ctx)
			return err
		}},
		{"verification", schedules.Verification, func(ctx context.Context) error {
			app.Verifier.VerifyDue()
			return nil
		}},
		{"retention", schedules.Retention, func(ctx context.Context) error {
			app.Enforcer.Enforce()
			return nil
		}},
		{"health-check", schedules.HealthCheck, func(ctx context.Context) error {
			app.Monitor.RunChecks(ctx)
			return nil
		}},
	}

	for _, job := range jobs {
		if err := sched.Register(job.name, job.expr, job.fn); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", job.name, err)
		}
	}
	return sched, nil
}
