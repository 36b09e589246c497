// Package tools wraps the external processes the backup core collaborates
// with: the relational dump/restore tool and the cloud object-storage CLIs.
// Each wrapper builds argv, bounds the invocation with a timeout and returns
// a structured result, so orchestration logic stays unit-testable without
// spawning real processes.
package tools

import (
	"context"
	"os/exec"

	"github.com/bastionproject/bastion/internal/config"
)

// Result captures the outcome of an external command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// DumpRequest describes one dump invocation.
type DumpRequest struct {
	// OutputPath is where the artifact is written.
	OutputPath string

	// SchemaOnly and DataOnly select plain-text side dumps instead of the
	// custom-format primary artifact.
	SchemaOnly bool
	DataOnly   bool
}

// Dumper produces and restores relational dumps and answers row-count
// queries for verification statistics.
type Dumper interface {
	Dump(ctx context.Context, req DumpRequest) (*Result, error)
	Restore(ctx context.Context, artifactPath, targetDatabase string) (*Result, error)
	RowCount(ctx context.Context, table string) (int64, error)
}

// CloudCopier replicates a local artifact to a remote storage location.
type CloudCopier interface {
	Upload(ctx context.Context, localPath string, loc config.StorageLocation) error
}

// IsInstalled reports whether a tool is available on PATH.
func IsInstalled(tool string) bool {
	_, err := exec.LookPath(tool)
	return err == nil
}
