// Command blueghost runs the BlueGhost ephemeral-post service and its
// one-shot maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/PiperEve/BlueGhost/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
