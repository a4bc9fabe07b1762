package main

import (
	"os"

	"github.com/ibeckermayer/xharvest/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
