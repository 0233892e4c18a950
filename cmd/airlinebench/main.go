// Package main is the entry point for the airlinebench CLI.
package main

import (
	"os"

	"github.com/jmylchreest/airlinebench/cmd/airlinebench/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
