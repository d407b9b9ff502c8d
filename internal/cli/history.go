package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/recall/pkg/types"
)

// historyReport is the JSON shape of the history command output.
type historyReport struct {
	Operations   []historyOp `json:"operations"`
	Transactions []historyTx `json:"transactions"`
}

type historyOp struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Current bool   `json:"current"`
	Next    int64  `json:"next"`
}

type historyTx struct {
	ID      int64 `json:"id"`
	StartOp int64 `json:"start_op"`
	EndOp   int64 `json:"end_op"`
	Current bool  `json:"current"`
	Next    int64 `json:"next"`
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recorded operations and undo transactions",
		RunE:  runHistory,
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	g, err := openGraph()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("open storage: %s", err))
	}
	defer g.Close()

	ops, err := g.History()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("read history: %s", err))
	}
	txs, err := g.Transactions()
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("read transactions: %s", err))
	}

	out := cmd.OutOrStdout()
	if flags.jsonMode {
		report := historyReport{
			Operations:   make([]historyOp, 0, len(ops)),
			Transactions: make([]historyTx, 0, len(txs)),
		}
		for _, op := range ops {
			report.Operations = append(report.Operations, historyOp{
				ID: op.ID, Type: string(op.Type), Current: op.Current, Next: op.NextOperation,
			})
		}
		for _, tx := range txs {
			report.Transactions = append(report.Transactions, historyTx{
				ID: tx.ID, StartOp: tx.StartOp, EndOp: tx.EndOp, Current: tx.Current, Next: tx.NextTx,
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	for _, op := range ops {
		fmt.Fprintf(out, "op %d %s%s\n", op.ID, op.Type, currentMarker(op.Current))
	}
	for _, tx := range txs {
		fmt.Fprintf(out, "tx %d ops (%d, %d]%s\n", tx.ID, tx.StartOp, tx.EndOp, currentMarker(tx.Current))
	}
	if len(ops) == 0 && len(txs) == 0 {
		fmt.Fprintln(out, "history is empty")
	}
	return nil
}

func currentMarker(current bool) string {
	if current {
		return " *"
	}
	return ""
}

// opResult prints the outcome of an undo or redo.
func opResult(cmd *cobra.Command, verb string, op types.OperationType) error {
	out := cmd.OutOrStdout()
	if op == types.OpNone {
		fmt.Fprintf(out, "nothing to %s\n", verb)
		return nil
	}
	fmt.Fprintf(out, "%s replayed %s\n", verb, op)
	return nil
}
