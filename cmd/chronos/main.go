package main

import (
	"os"

	"github.com/wonny/chronos/cmd/chronos/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
