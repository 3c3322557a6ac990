package main

import (
	"os"

	"github.com/islandvows/islandvows/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
