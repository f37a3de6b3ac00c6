package main

import (
	"fmt"
	"os"

	"github.com/ludeme/ludx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if !cmd.IsIssuesFound(err) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
