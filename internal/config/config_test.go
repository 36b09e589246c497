package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/var/lib/bastion/backups", cfg.BackupRoot)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 30*time.Minute, cfg.ToolTimeout)
	assert.Equal(t, 30, cfg.Retention.DefaultDays)
	assert.Equal(t, "0 2 * * *", cfg.Schedules.FullBackup)
	assert.Equal(t, ":8080", cfg.API.ListenAddr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	// A named but missing file is an error, not a silent fallback.
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bastion.yaml")
	body := `
backup_root: /srv/backups
database:
  host: db.internal
  port: 5433
storage:
  locations:
    - name: primary-s3
      provider: aws
      bucket: acme-backups
      prefix: prod
retention:
  default_days: 14
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/backups", cfg.BackupRoot)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, 14, cfg.Retention.DefaultDays)
	require.Len(t, cfg.Storage.Locations, 1)
	assert.Equal(t, "primary-s3", cfg.Storage.Locations[0].Name)

	// Unset fields keep their defaults.
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, ":8080", cfg.API.ListenAddr)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bastion.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  host: from-file\n"), 0o644))

	t.Setenv("BASTION_DATABASE_HOST", "from-env")
	t.Setenv("BASTION_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing root", func(c *Config) { c.BackupRoot = "" }, "backup_root"},
		{"zero capacity", func(c *Config) { c.Storage.CapacityBytes = 0 }, "capacity_bytes"},
		{"zero retention", func(c *Config) { c.Retention.DefaultDays = 0 }, "retention.default_days"},
		{"encrypt without passphrase", func(c *Config) { c.Documents.Encrypt = true }, "passphrase"},
		{"location without name", func(c *Config) {
			c.Storage.Locations = []StorageLocation{{Provider: "aws", Bucket: "b"}}
		}, "name is required"},
		{"unknown provider", func(c *Config) {
			c.Storage.Locations = []StorageLocation{{Name: "x", Provider: "ftp", Bucket: "b"}}
		}, "unknown provider"},
		{"location without bucket", func(c *Config) {
			c.Storage.Locations = []StorageLocation{{Name: "x", Provider: "gcp"}}
		}, "bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindConfigFileFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backup_root: /srv/bk\n"), 0o644))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/bk", cfg.BackupRoot)
}
