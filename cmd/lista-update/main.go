package main

import (
	"context"
	"os"

	"github.com/stadtarchiv-lindau/lista-tools/internal/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := cmd.ExecuteUpdater(context.Background(), version, commit, date); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
