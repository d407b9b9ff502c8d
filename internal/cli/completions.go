package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCompletionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completions <type> <property> [prefix]",
		Short: "List indexed completion labels matching a prefix",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runCompletions,
	}
}

func runCompletions(cmd *cobra.Command, args []string) error {
	typeName, property := args[0], args[1]
	prefix := ""
	if len(args) == 3 {
		prefix = args[2]
	}

	g, err := openGraph()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("open storage: %s", err))
	}
	defer g.Close()

	labels, err := g.Completions(typeName, property, prefix)
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("query completions: %s", err))
	}

	out := cmd.OutOrStdout()
	if flags.jsonMode {
		if labels == nil {
			labels = []string{}
		}
		enc := json.NewEncoder(out)
		return enc.Encode(labels)
	}
	for _, label := range labels {
		fmt.Fprintln(out, label)
	}
	return nil
}
