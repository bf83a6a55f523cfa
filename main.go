package main

import (
	"os"

	"github.com/theapemachine/bridge-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
