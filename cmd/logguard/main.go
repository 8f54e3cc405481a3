package main

import (
	"os"

	"github.com/gxo-labs/logguard/cmd/logguard/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
