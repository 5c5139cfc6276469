package app

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the zswag-call root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zswag-call",
		Short: "Invoke an OpenAPI-described method directly from the command line",
		Long: `zswag-call loads an OpenAPI document, resolves one of its operations by
operationId, and performs the HTTP call it describes, printing the raw
response body.`,
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.AddCommand(newCallCmd())

	return cmd
}
