// Bastion - backup, verification, monitoring and disaster recovery.
package main

import (
	"github.com/bastionproject/bastion/internal/cli"
	"github.com/bastionproject/bastion/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	defer logging.Sync()
	cli.SetVersion(version)
	cli.Execute()
}
