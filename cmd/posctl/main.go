package main

import (
	"fmt"
	"os"

	"brewpos/cmd/posctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
