package main

import (
	"fmt"
	"os"

	"github.com/spec-kit/dispatch-service/cmd/dispatchctl/commands"
)

var version = "dev"

func main() {
	commands.SetVersion(version)
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
