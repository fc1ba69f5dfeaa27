// Command fontrecipe compiles font build recipes and runs them.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/fontrecipe/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands report their own failures; only usage errors reach here unprinted.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || (exitErr.Code == cli.ExitCommandError && exitErr.Err == nil) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
