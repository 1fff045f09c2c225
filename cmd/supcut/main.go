package main

import (
	"os"

	"github.com/s22625/supcut/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
