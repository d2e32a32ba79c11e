package main

import (
	"fmt"
	"os"

	"github.com/merxlabs/merx/cmd/merx/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
