package main

import (
	"os"

	"github.com/howell-aikit/ideaflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
