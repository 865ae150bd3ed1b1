package main

import (
	"os"

	"github.com/adalundhe/agentvc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
