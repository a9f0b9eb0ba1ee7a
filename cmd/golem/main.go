// Package main provides the entry point for the golem CLI.
package main

import (
	"os"

	"github.com/hallgrim/golem/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
