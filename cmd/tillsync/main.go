package main

import (
	"os"

	"github.com/tillsync/tillsync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
