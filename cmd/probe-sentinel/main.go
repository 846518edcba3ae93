package main

import (
	"os"

	"github.com/nholik/probe-sentinel/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
