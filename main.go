package main

import (
	"os"

	"reviewgate/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
