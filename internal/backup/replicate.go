package backup

import (
	"context"

	"github.com/bastionproject/bastion/internal/config"
	"github.com/bastionproject/bastion/internal/logging"
	"github.com/bastionproject/bastion/internal/tools"
)

// Replicator copies a finished artifact to every configured remote storage
// location. LOCAL is implicit: the artifact already exists on local disk
// when replication starts, and local write failures are fatal to the
// producer long before this point. A remote location that fails to receive
// the artifact is logged and omitted from the returned set; it never fails
// the backup.
type Replicator struct {
	copier    tools.CloudCopier
	locations []config.StorageLocation
}

// NewReplicator creates a replicator over the configured locations.
func NewReplicator(copier tools.CloudCopier, locations []config.StorageLocation) *Replicator {
	return &Replicator{copier: copier, locations: locations}
}

// Replicate uploads the artifact to each location and returns the names of
// the locations that received it, LOCAL always first.
func (r *Replicator) Replicate(ctx context.Context, localPath string) []string {
	replicated := []string{LocationLocal}
	for _, loc := range r.locations {
		if err := r.copier.Upload(ctx, localPath, loc); err != nil {
			logging.Warn("replication to location failed",
				logging.String("location", loc.Name),
				logging.String("artifact", localPath),
				logging.Err(err))
			continue
		}
		replicated = append(replicated, loc.Name)
	}
	return replicated
}
