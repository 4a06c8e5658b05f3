package main

import (
	"os"

	"github.com/mnemo-ai/mnemo/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
