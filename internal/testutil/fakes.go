package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/bastionproject/bastion/internal/config"
	"github.com/bastionproject/bastion/internal/tools"
)

// FakeDumper is an in-memory tools.Dumper. All methods succeed unless the
// corresponding error field is set. A non-nil Gate makes Dump block until
// the channel is closed, holding a backup run open.
type FakeDumper struct {
	mu sync.Mutex

	DumpErr    error
	RestoreErr error
	RowCountN  int64
	RowErr     error
	Gate       chan struct{}

	DumpCalls    []tools.DumpRequest
	RestoreCalls []string // target databases, in order
}

func (f *FakeDumper) Dump(_ context.Context, req tools.DumpRequest) (*tools.Result, error) {
	f.mu.Lock()
	f.DumpCalls = append(f.DumpCalls, req)
	f.mu.Unlock()

	if f.Gate != nil {
		<-f.Gate
	}
	if f.DumpErr != nil {
		return nil, f.DumpErr
	}
	if err := os.WriteFile(req.OutputPath, []byte("PGDMP fake dump payload"), 0o644); err != nil {
		return nil, err
	}
	return &tools.Result{ExitCode: 0}, nil
}

func (f *FakeDumper) Restore(_ context.Context, _, targetDatabase string) (*tools.Result, error) {
	f.mu.Lock()
	f.RestoreCalls = append(f.RestoreCalls, targetDatabase)
	f.mu.Unlock()

	if f.RestoreErr != nil {
		return nil, f.RestoreErr
	}
	return &tools.Result{ExitCode: 0}, nil
}

func (f *FakeDumper) RowCount(_ context.Context, _ string) (int64, error) {
	if f.RowErr != nil {
		return 0, f.RowErr
	}
	return f.RowCountN, nil
}

// FakeCopier is an in-memory tools.CloudCopier that records uploads and
// fails for locations named in FailFor.
type FakeCopier struct {
	mu sync.Mutex

	FailFor map[string]bool
	Uploads []string // location names, in order
}

func (f *FakeCopier) Upload(_ context.Context, _ string, loc config.StorageLocation) error {
	if f.FailFor[loc.Name] {
		return fmt.Errorf("upload to %s refused", loc.Name)
	}
	f.mu.Lock()
	f.Uploads = append(f.Uploads, loc.Name)
	f.mu.Unlock()
	return nil
}
