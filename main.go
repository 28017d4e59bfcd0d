package main

import (
	"os"

	"github.com/rapidreach/rrops/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
