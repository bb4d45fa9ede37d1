// Package main provides the entry point for the monitor core.
package main

import (
	"os"

	"github.com/monitordev/monitor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
