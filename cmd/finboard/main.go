// Command finboard runs rate-limited bulk valuation queries against the
// dashboard backend and exports graded results to a workbook.
package main

import (
	"errors"
	"os"

	"github.com/rshade/finboard/internal/cli"
	"github.com/rshade/finboard/internal/client"
	"github.com/rshade/finboard/internal/config"
	"github.com/rshade/finboard/internal/engine/bulk"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev" //nolint:gochecknoglobals // Set by the linker.

// Exit codes beyond the generic failure.
const (
	exitUsage        = 2
	exitIncompatible = 3
	exitExport       = 4
)

func main() {
	if err := run(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func run() error {
	return cli.NewRootCmd(version).Execute()
}

// exitCodeFor maps an error to the process exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, bulk.ErrNoInput), errors.Is(err, config.ErrInvalidConfig):
		return exitUsage
	case errors.Is(err, client.ErrIncompatibleServer):
		return exitIncompatible
	case errors.Is(err, bulk.ErrExport):
		return exitExport
	default:
		return 1
	}
}
