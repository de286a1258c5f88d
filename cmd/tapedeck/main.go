// Command tapedeck records and replays desktop interaction sessions.
package main

import (
	"os"

	"github.com/tapedeck/tapedeck/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
