package main

import (
	"fmt"
	"os"

	"github.com/wfharness/wst/cmd/wst/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}
