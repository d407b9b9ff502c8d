package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize recall storage",
		Long:  "Create the database file and apply the schema. Safe to run on an\nexisting database.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	g, err := openGraph()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("initialize storage: %s", err))
	}
	if err := g.Close(); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("finalize storage: %s", err))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Recall initialized successfully")
	return nil
}
