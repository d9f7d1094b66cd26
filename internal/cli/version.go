package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bulkdump/pkg/bulkdump"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bulkdump version",
		Args:  noArgs,
		// Runs without loading configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "bulkdump v%s\nmodule: %s\n", bulkdump.Version, bulkdump.ModulePath)
			return nil
		},
	}
}
