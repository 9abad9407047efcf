package main

import (
	"os"

	"github.com/nholik/wolfpy-pipeline/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.NewBuildCommand()))
}
