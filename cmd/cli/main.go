// Package main is the entry point for the icuts CLI binary.
package main

import (
	"os"

	"icuts/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
