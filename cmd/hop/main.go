package main

import (
	"os"

	"github.com/alchzh/hop-client/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:]))
}
