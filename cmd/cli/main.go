package main

import (
	"os"

	"github.com/invoicely-dev/invoicely/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
