package main

import (
	"os"

	"github.com/solatis/choicetree/cmd/choicetree/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
