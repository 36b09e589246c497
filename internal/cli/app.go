package cli

import (
	"fmt"

	"github.com/bastionproject/bastion/internal/backup"
	"github.com/bastionproject/bastion/internal/config"
	"github.com/bastionproject/bastion/internal/logging"
	"github.com/bastionproject/bastion/internal/monitor"
	"github.com/bastionproject/bastion/internal/recovery"
	"github.com/bastionproject/bastion/internal/retention"
	"github.com/bastionproject/bastion/internal/tools"
	"github.com/bastionproject/bastion/internal/verify"
)

// App holds the wired application components. Every command builds one
// from the loaded config; serve keeps it alive behind the HTTP server.
type App struct {
	Config *config.Config
	Layout backup.Layout
	Store  *backup.Store
	Dumper tools.Dumper

	DBProducer  *backup.DatabaseProducer
	DocProducer *backup.DocumentProducer

	Verifier     *verify.Verifier
	Enforcer     *retention.Enforcer
	Alerts       *monitor.AlertStore
	Monitor      *monitor.Engine
	Orchestrator *recovery.Orchestrator
}

// buildApp wires all components from the loaded config.
func buildApp() (*App, error) {
	cfg, err := RequireConfig()
	if err != nil {
		return nil, err
	}

	layout := backup.NewLayout(cfg.BackupRoot)
	if err := layout.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("prepare backup root: %w", err)
	}

	store, err := backup.NewStore(layout)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	preflightTools(cfg)

	dumper := tools.NewPgDumper(cfg.Database, cfg.ToolTimeout)
	copier := tools.NewCLICopier(cfg.ToolTimeout)
	replicator := backup.NewReplicator(copier, cfg.Storage.Locations)
	guard := &backup.Guard{}

	app := &App{
		Config: cfg,
		Layout: layout,
		Store:  store,
		Dumper: dumper,
		DBProducer: backup.NewDatabaseProducer(layout, store, dumper,
			replicator, guard, cfg.Database, cfg.Retention.DefaultDays),
		DocProducer: backup.NewDocumentProducer(layout, store, dumper,
			replicator, guard, cfg.Documents, cfg.Retention.DefaultDays),
		Verifier: verify.NewVerifier(layout, store),
		Enforcer: retention.NewEnforcer(layout, store),
	}

	alerts, err := monitor.NewAlertStore(layout.AlertsDir())
	if err != nil {
		return nil, fmt.Errorf("open alert store: %w", err)
	}
	app.Alerts = alerts

	channels := []monitor.Channel{monitor.LogChannel{}}
	if cfg.Monitoring.WebhookURL != "" {
		channels = append(channels, monitor.NewWebhookChannel(cfg.Monitoring.WebhookURL))
	}
	app.Monitor = monitor.NewEngine(layout, store, alerts,
		monitor.NewNotifier(channels...), cfg.Storage.CapacityBytes,
		cfg.Monitoring.InProgressTimeout)

	orchestrator, err := recovery.NewOrchestrator(layout, store, dumper)
	if err != nil {
		return nil, fmt.Errorf("open recovery orchestrator: %w", err)
	}
	app.Orchestrator = orchestrator

	return app, nil
}

// providerCLIs maps storage providers to the CLI they are uploaded with.
var providerCLIs = map[string]string{
	"aws":   "aws",
	"azure": "az",
	"gcp":   "gcloud",
}

// preflightTools warns about external binaries missing from PATH. The app
// still starts; the affected operation fails with a clear error when run.
func preflightTools(cfg *config.Config) {
	required := []string{"pg_dump", "pg_restore", "psql"}
	for _, loc := range cfg.Storage.Locations {
		if cli, ok := providerCLIs[loc.Provider]; ok {
			required = append(required, cli)
		}
	}

	seen := make(map[string]bool, len(required))
	for _, tool := range required {
		if seen[tool] {
			continue
		}
		seen[tool] = true
		if !tools.IsInstalled(tool) {
			logging.Warn("required tool not found on PATH", logging.String("tool", tool))
		}
	}
}
