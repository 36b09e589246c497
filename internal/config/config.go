// Package config manages bastion configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables (highest priority). Environment variables map
// onto config paths with BASTION_ prefix, e.g. BASTION_DATABASE_HOST sets
// database.host.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"bastion.yaml",
	"bastion.yml",
	"/etc/bastion/bastion.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "BASTION_CONFIG"

// envPrefix is stripped from environment variables before mapping.
const envPrefix = "BASTION_"

// DatabaseConfig describes the relational store being backed up.
type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`

	// SideArtifacts also produces human-readable schema-only and
	// data-only dumps next to the primary artifact.
	SideArtifacts bool `koanf:"side_artifacts"`

	// Compress gzips the primary dump after checksumming.
	Compress bool `koanf:"compress"`
}

// DocumentsConfig describes the unstructured document corpus.
type DocumentsConfig struct {
	Path string `koanf:"path"`

	// Encrypt encrypts the document archive after checksumming.
	Encrypt    bool   `koanf:"encrypt"`
	Passphrase string `koanf:"passphrase"`
}

// StorageLocation is a named replication target.
type StorageLocation struct {
	Name     string `koanf:"name"`
	Provider string `koanf:"provider"` // aws, azure or gcp
	Bucket   string `koanf:"bucket"`
	Prefix   string `koanf:"prefix"`
}

// StorageConfig describes replication targets and capacity.
type StorageConfig struct {
	Locations []StorageLocation `koanf:"locations"`

	// CapacityBytes is the ceiling used for capacity-pressure alerts.
	CapacityBytes int64 `koanf:"capacity_bytes"`
}

// SchedulesConfig holds schedule expressions for periodic jobs.
// Expressions accept keywords (hourly, daily, weekly), intervals
// ("every 6h") or 5-field cron syntax.
type SchedulesConfig struct {
	FullBackup        string `koanf:"full_backup"`
	IncrementalBackup string `koanf:"incremental_backup"`
	DocumentBackup    string `koanf:"document_backup"`
	Verification      string `koanf:"verification"`
	Retention         string `koanf:"retention"`
	HealthCheck       string `koanf:"health_check"`
}

// RetentionConfig holds lifecycle settings.
type RetentionConfig struct {
	// DefaultDays is how long new backups are retained before becoming
	// eligible for lifecycle action.
	DefaultDays int `koanf:"default_days"`
}

// MonitoringConfig holds alerting thresholds and channels.
type MonitoringConfig struct {
	// InProgressTimeout is how long a backup may stay IN_PROGRESS before
	// a stuck-backup alert is raised. Alert only, never an automatic kill.
	InProgressTimeout time.Duration `koanf:"in_progress_timeout"`

	// WebhookURL, when set, enables the webhook notification channel.
	WebhookURL string `koanf:"webhook_url"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	ListenAddr        string  `koanf:"listen_addr"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	BurstSize         int     `koanf:"burst_size"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level       string `koanf:"level"`
	JSON        bool   `koanf:"json"`
	Development bool   `koanf:"development"`
}

// Config is the root bastion configuration.
type Config struct {
	// BackupRoot is the directory holding all artifacts and metadata.
	BackupRoot string `koanf:"backup_root"`

	// ToolTimeout bounds every external process invocation.
	ToolTimeout time.Duration `koanf:"tool_timeout"`

	Database   DatabaseConfig   `koanf:"database"`
	Documents  DocumentsConfig  `koanf:"documents"`
	Storage    StorageConfig    `koanf:"storage"`
	Schedules  SchedulesConfig  `koanf:"schedules"`
	Retention  RetentionConfig  `koanf:"retention"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		BackupRoot:  "/var/lib/bastion/backups",
		ToolTimeout: 30 * time.Minute,
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			User:          "postgres",
			Name:          "app",
			SideArtifacts: true,
			Compress:      false,
		},
		Documents: DocumentsConfig{
			Path: "/var/lib/bastion/documents",
		},
		Storage: StorageConfig{
			CapacityBytes: 100 << 30, // 100 GiB
		},
		Schedules: SchedulesConfig{
			FullBackup:        "0 2 * * *",
			IncrementalBackup: "every 6h",
			DocumentBackup:    "0 3 * * *",
			Verification:      "weekly",
			Retention:         "0 4 * * *",
			HealthCheck:       "every 5m",
		},
		Retention: RetentionConfig{
			DefaultDays: 30,
		},
		Monitoring: MonitoringConfig{
			InProgressTimeout: 2 * time.Hour,
		},
		API: APIConfig{
			ListenAddr:        ":8080",
			RequestsPerSecond: 10,
			BurstSize:         20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and the
// environment. path overrides file discovery when non-empty.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as runtime faults.
func (c *Config) Validate() error {
	if c.BackupRoot == "" {
		return fmt.Errorf("backup_root is required")
	}
	if c.Storage.CapacityBytes <= 0 {
		return fmt.Errorf("storage.capacity_bytes must be positive")
	}
	if c.Retention.DefaultDays <= 0 {
		return fmt.Errorf("retention.default_days must be positive")
	}
	if c.Documents.Encrypt && c.Documents.Passphrase == "" {
		return fmt.Errorf("documents.passphrase is required when encryption is enabled")
	}
	for i, loc := range c.Storage.Locations {
		if loc.Name == "" {
			return fmt.Errorf("storage.locations[%d]: name is required", i)
		}
		switch loc.Provider {
		case "aws", "azure", "gcp":
		default:
			return fmt.Errorf("storage.locations[%d]: unknown provider %q", i, loc.Provider)
		}
		if loc.Bucket == "" {
			return fmt.Errorf("storage.locations[%d]: bucket is required", i)
		}
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
