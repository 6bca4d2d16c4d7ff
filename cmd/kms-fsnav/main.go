// kms-fsnav browses KMS server folders and imports local directory trees.
//
// Build with: go build -ldflags "-X github.com/odoobiznes/kms-fsnav/internal/version.Version=v0.3.0" ./cmd/kms-fsnav
package main

import (
	"os"

	"github.com/odoobiznes/kms-fsnav/internal/cli"
)

func main() {
	// cobra has already printed the error
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
