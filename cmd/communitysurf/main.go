package main

import (
	"os"

	"github.com/ppiankov/communitysurf/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
