package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bastionproject/bastion/internal/config"
)

// runCommand executes a command with the given timeout, capturing output.
// A non-zero exit returns both the populated result and an error carrying
// the tail of stderr.
func runCommand(ctx context.Context, timeout time.Duration, env []string, name string, args ...string) (*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	result := &Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("%s timed out after %s", name, timeout)
		}
		return result, fmt.Errorf("%s failed: %s", name, firstLine(stderr.String()))
	}
	return result, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if s == "" {
		return "no output"
	}
	return s
}

// PgDumper runs pg_dump, pg_restore and psql against the configured store.
type PgDumper struct {
	cfg     config.DatabaseConfig
	timeout time.Duration
}

// NewPgDumper creates a dumper for the configured database.
func NewPgDumper(cfg config.DatabaseConfig, timeout time.Duration) *PgDumper {
	return &PgDumper{cfg: cfg, timeout: timeout}
}

func (d *PgDumper) env() []string {
	if d.cfg.Password == "" {
		return nil
	}
	return []string{"PGPASSWORD=" + d.cfg.Password}
}

func (d *PgDumper) connArgs(database string) []string {
	return []string{
		"-h", d.cfg.Host,
		"-p", strconv.Itoa(d.cfg.Port),
		"-U", d.cfg.User,
		"-d", database,
	}
}

// Dump writes a dump of the configured database. The primary artifact uses
// the custom format; schema-only and data-only requests produce plain SQL.
func (d *PgDumper) Dump(ctx context.Context, req DumpRequest) (*Result, error) {
	args := d.connArgs(d.cfg.Name)
	switch {
	case req.SchemaOnly:
		args = append(args, "--schema-only")
	case req.DataOnly:
		args = append(args, "--data-only")
	default:
		args = append(args, "-Fc")
	}
	args = append(args, "-f", req.OutputPath)
	return runCommand(ctx, d.timeout, d.env(), "pg_dump", args...)
}

// Restore loads an artifact into the target database. Custom-format dumps
// go through pg_restore, plain SQL through psql.
func (d *PgDumper) Restore(ctx context.Context, artifactPath, targetDatabase string) (*Result, error) {
	if strings.HasSuffix(artifactPath, ".sql") {
		args := append(d.connArgs(targetDatabase), "-f", artifactPath)
		return runCommand(ctx, d.timeout, d.env(), "psql", args...)
	}
	args := append(d.connArgs(targetDatabase), "--clean", "--if-exists", artifactPath)
	return runCommand(ctx, d.timeout, d.env(), "pg_restore", args...)
}

// RowCount returns the number of rows in a table.
func (d *PgDumper) RowCount(ctx context.Context, table string) (int64, error) {
	args := append(d.connArgs(d.cfg.Name),
		"-tA", "-c", fmt.Sprintf("SELECT count(*) FROM %s", table))
	result, err := runCommand(ctx, d.timeout, d.env(), "psql", args...)
	if err != nil {
		return 0, err
	}
	count, err := strconv.ParseInt(strings.TrimSpace(result.Stdout), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse row count: %w", err)
	}
	return count, nil
}

var _ Dumper = (*PgDumper)(nil)

// CLICopier uploads artifacts through the provider CLIs (aws, az, gcloud).
// Each provider is an opaque external command; only argv construction and
// exit status interpretation live here.
type CLICopier struct {
	timeout time.Duration
}

// NewCLICopier creates a copier with the given per-upload timeout.
func NewCLICopier(timeout time.Duration) *CLICopier {
	return &CLICopier{timeout: timeout}
}

// Upload copies a local artifact to the location's bucket.
func (c *CLICopier) Upload(ctx context.Context, localPath string, loc config.StorageLocation) error {
	key := path.Join(loc.Prefix, filepath.Base(localPath))

	var name string
	var args []string
	switch loc.Provider {
	case "aws":
		name = "aws"
		args = []string{"s3", "cp", localPath, fmt.Sprintf("s3://%s/%s", loc.Bucket, key)}
	case "azure":
		name = "az"
		args = []string{"storage", "blob", "upload",
			"--container-name", loc.Bucket,
			"--file", localPath,
			"--name", key,
			"--overwrite"}
	case "gcp":
		name = "gcloud"
		args = []string{"storage", "cp", localPath, fmt.Sprintf("gs://%s/%s", loc.Bucket, key)}
	default:
		return fmt.Errorf("unknown storage provider %q", loc.Provider)
	}

	_, err := runCommand(ctx, c.timeout, nil, name, args...)
	if err != nil {
		return fmt.Errorf("upload to %s: %w", loc.Name, err)
	}
	return nil
}

var _ CloudCopier = (*CLICopier)(nil)
