package cli

import (
	"github.com/spf13/cobra"
)

// NewDocumentCommand creates a command that prints a generated JSON
// document, such as a schema, to stdout.
func NewDocumentCommand(use, short string, render func() ([]byte, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := render()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := out.Write(data); err != nil {
				return err
			}
			if len(data) > 0 && data[len(data)-1] != '\n' {
				_, err = out.Write([]byte("\n"))
			}
			return err
		},
	}
}
