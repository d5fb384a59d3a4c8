package main

import (
	"os"

	"github.com/arkanlabs/riskpipe/cmd/riskpipe/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
