// Command clocksync drives and inspects the catch-up sync manager.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/clocksync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
