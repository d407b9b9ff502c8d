package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is the release version reported by the CLI.
const version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/recall"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the recall version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "recall v%s\nmodule: %s\n", version, modulePath)
			return nil
		},
	}
}
