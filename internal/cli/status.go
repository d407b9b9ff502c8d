package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// statusReport is the JSON shape of the status command output.
type statusReport struct {
	Database     string           `json:"database"`
	Vertices     map[string]int64 `json:"vertices"`
	Operations   int              `json:"operations"`
	Transactions int              `json:"transactions"`
	CurrentOp    int64            `json:"current_operation,omitempty"`
	CurrentTx    int64            `json:"current_transaction,omitempty"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show database contents and cursor position",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	g, err := openGraph()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("open storage: %s", err))
	}
	defer g.Close()

	counts, err := g.TypeCounts()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("count vertices: %s", err))
	}
	ops, err := g.History()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("read history: %s", err))
	}
	txs, err := g.Transactions()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("read transactions: %s", err))
	}

	report := statusReport{
		Vertices:     counts,
		Operations:   len(ops),
		Transactions: len(txs),
	}
	for _, op := range ops {
		if op.Current {
			report.CurrentOp = op.ID
		}
	}
	for _, tx := range txs {
		if tx.Current {
			report.CurrentTx = tx.ID
		}
	}

	out := cmd.OutOrStdout()
	if flags.jsonMode {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s: %d\n", name, counts[name])
	}
	fmt.Fprintf(out, "operations: %d\n", report.Operations)
	fmt.Fprintf(out, "transactions: %d\n", report.Transactions)
	if report.CurrentOp != 0 {
		fmt.Fprintf(out, "current operation: %d\n", report.CurrentOp)
	}
	if report.CurrentTx != 0 {
		fmt.Fprintf(out, "current transaction: %d\n", report.CurrentTx)
	}
	return nil
}
