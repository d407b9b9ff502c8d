package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Undo the most recent transaction",
		RunE:  runUndo,
	}
}

func runUndo(cmd *cobra.Command, args []string) error {
	g, err := openGraph()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("open storage: %s", err))
	}
	defer g.Close()

	return opResult(cmd, "undo", g.Undo())
}

func newRedoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Redo the next transaction",
		RunE:  runRedo,
	}
}

func runRedo(cmd *cobra.Command, args []string) error {
	g, err := openGraph()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("open storage: %s", err))
	}
	defer g.Close()

	return opResult(cmd, "redo", g.Redo())
}
