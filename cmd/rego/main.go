package main

import (
	"os"

	"github.com/centraunit/goallin_resources/cmd/rego/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
