package main

import (
	"fmt"
	"os"

	"github.com/R3E-Network/quietmap/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "quietmap:", err)
		os.Exit(1)
	}
}
