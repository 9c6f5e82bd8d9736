package main

import (
	stderrors "errors"
	"os"

	"github.com/grovetools/lore/cli"
	"github.com/grovetools/lore/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if stderrors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		cli.NewErrorHandler(verbose).Handle(err)
		os.Exit(1)
	}
}
