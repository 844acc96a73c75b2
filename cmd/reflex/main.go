package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/reflex/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands write their own diagnostics; print only errors that
		// escaped the formatter (flag parse failures and the like).
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
