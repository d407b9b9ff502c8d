package graph

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recall/pkg/types"
)

// Undo reverses the current undo transaction: its operations are replayed
// backwards as their inverses and both cursors step to the previous
// position. Returns the operation type replayed first, or OpNone when
// there is nothing to undo or a replay step fails. Failures roll the
// whole replay back and leave the cursors unchanged.
func (g *Graph) Undo() types.OperationType {
	if g.store == nil {
		return types.OpNone
	}
	replayed := types.OpNone
	err := g.store.Transaction(func() error {
		txID, ok, err := g.store.Scalar(`SELECT id FROM undo_transactions WHERE current = 1`)
		if err != nil {
			return fmt.Errorf("locating current undo transaction: %w", err)
		}
		if !ok {
			return nil
		}
		tx, err := g.transactionByID(txID)
		if err != nil {
			return err
		}

		for opID := tx.EndOp; opID != tx.StartOp && opID != types.NoOperation; {
			op, err := g.operationByID(opID)
			if err != nil {
				return err
			}
			if err := g.replay(op.ID, op.Type.Invert(), replaySideBefore); err != nil {
				return err
			}
			if replayed == types.OpNone {
				replayed = op.Type.Invert()
			}
			opID, err = g.predecessorOf(opID)
			if err != nil {
				return err
			}
		}

		if _, err := g.store.Exec(`UPDATE operations SET current = 0`); err != nil {
			return fmt.Errorf("clearing operation cursor: %w", err)
		}
		if tx.StartOp != 0 {
			if _, err := g.store.Exec(
				`UPDATE operations SET current = 1 WHERE id = ?`, tx.StartOp); err != nil {
				return fmt.Errorf("moving operation cursor: %w", err)
			}
		}

		if _, err := g.store.Exec(
			`UPDATE undo_transactions SET current = 0 WHERE id = ?`, tx.ID); err != nil {
			return fmt.Errorf("clearing transaction cursor: %w", err)
		}
		prevTx, ok, err := g.store.Scalar(
			`SELECT id FROM undo_transactions WHERE next_undo_transaction = ?`, tx.ID)
		if err != nil {
			return fmt.Errorf("locating previous undo transaction: %w", err)
		}
		if ok {
			if _, err := g.store.Exec(
				`UPDATE undo_transactions SET current = 1 WHERE id = ?`, prevTx); err != nil {
				return fmt.Errorf("moving transaction cursor: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		g.log.Warn("undo failed", zap.Error(err))
		return types.OpNone
	}
	return replayed
}

// Redo replays the undo transaction after the current one, forward along
// the operation chain. With no current transaction, redo starts from the
// first. Returns the operation type replayed first, or OpNone when there
// is nothing to redo or a replay step fails.
func (g *Graph) Redo() types.OperationType {
	if g.store == nil {
		return types.OpNone
	}
	replayed := types.OpNone
	err := g.store.Transaction(func() error {
		next, ok, err := g.nextRedoTransaction()
		if err != nil || !ok {
			return err
		}
		tx, err := g.transactionByID(next)
		if err != nil {
			return err
		}

		opID, err := g.firstSpanOperation(tx)
		if err != nil {
			return err
		}
		for opID != types.NoOperation {
			op, err := g.operationByID(opID)
			if err != nil {
				return err
			}
			if err := g.replay(op.ID, op.Type, replaySideAfter); err != nil {
				return err
			}
			if replayed == types.OpNone {
				replayed = op.Type
			}
			if opID == tx.EndOp {
				break
			}
			opID = op.NextOperation
		}

		if _, err := g.store.Exec(`UPDATE operations SET current = 0`); err != nil {
			return fmt.Errorf("clearing operation cursor: %w", err)
		}
		if _, err := g.store.Exec(
			`UPDATE operations SET current = 1 WHERE id = ?`, tx.EndOp); err != nil {
			return fmt.Errorf("moving operation cursor: %w", err)
		}

		if _, err := g.store.Exec(`UPDATE undo_transactions SET current = 0`); err != nil {
			return fmt.Errorf("clearing transaction cursor: %w", err)
		}
		if _, err := g.store.Exec(
			`UPDATE undo_transactions SET current = 1 WHERE id = ?`, tx.ID); err != nil {
			return fmt.Errorf("moving transaction cursor: %w", err)
		}
		return nil
	})
	if err != nil {
		g.log.Warn("redo failed", zap.Error(err))
		return types.OpNone
	}
	return replayed
}

// nextRedoTransaction resolves which undo transaction a Redo should
// replay: the successor of the current one, or the first transaction when
// no cursor is set. The second return is false when there is none.
func (g *Graph) nextRedoTransaction() (int64, bool, error) {
	cur, ok, err := g.store.Scalar(`SELECT id FROM undo_transactions WHERE current = 1`)
	if err != nil {
		return 0, false, fmt.Errorf("locating current undo transaction: %w", err)
	}
	if ok {
		tx, err := g.transactionByID(cur)
		if err != nil {
			return 0, false, err
		}
		if tx.NextTx == types.NoOperation {
			return 0, false, nil
		}
		return tx.NextTx, true, nil
	}
	first, ok, err := g.store.Scalar(`SELECT MIN(id) FROM undo_transactions`)
	if err != nil {
		return 0, false, fmt.Errorf("locating first undo transaction: %w", err)
	}
	return first, ok, nil
}

// firstSpanOperation returns the first operation inside a transaction's
// span. The span excludes StartOp, so the first member is StartOp's
// successor, or the head of the whole chain when the span opens it.
func (g *Graph) firstSpanOperation(tx types.UndoTransaction) (int64, error) {
	if tx.StartOp != 0 {
		op, err := g.operationByID(tx.StartOp)
		if err != nil {
			return 0, err
		}
		return op.NextOperation, nil
	}
	head, ok, err := g.store.Scalar(`SELECT MIN(id) FROM operations`)
	if err != nil {
		return 0, fmt.Errorf("locating operation chain head: %w", err)
	}
	if !ok {
		return types.NoOperation, nil
	}
	return head, nil
}

// transactionByID reads one undo transaction row.
func (g *Graph) transactionByID(id int64) (types.UndoTransaction, error) {
	var (
		tx      types.UndoTransaction
		current int64
	)
	err := g.store.QueryRow(
		`SELECT id, undo_operation_start, undo_operation_end, current, next_undo_transaction
		 FROM undo_transactions WHERE id = ?`,
		id).Scan(&tx.ID, &tx.StartOp, &tx.EndOp, &current, &tx.NextTx)
	if err != nil {
		return types.UndoTransaction{}, fmt.Errorf("reading undo transaction %d: %w", id, err)
	}
	tx.Current = current != 0
	return tx, nil
}

// replaySide selects which stored image a replay consumes.
type replaySide int

const (
	replaySideBefore replaySide = iota
	replaySideAfter
)

// replay writes one operation's stored image back into the live tables.
// Undo consumes the before image with the inverted operation type; redo
// consumes the after image with the original type.
func (g *Graph) replay(opID int64, opType types.OperationType, side replaySide) error {
	h, err := g.vertexHistoryFor(opID)
	if err != nil {
		return err
	}
	blob := h.AfterJSON
	edgeTable := "relations_history_after"
	if side == replaySideBefore {
		blob = h.BeforeJSON
		edgeTable = "relations_history_before"
	}

	switch opType {
	case types.OpCreate:
		if _, err := g.store.Exec(
			`INSERT INTO by_type (id, type_name, json) VALUES (?, ?, ?)`,
			h.VertexID, h.TypeName, blob); err != nil {
			return fmt.Errorf("replaying create of %d: %w", h.VertexID, err)
		}
		return g.restoreEdges(edgeTable, opID)
	case types.OpUpdate:
		if _, err := g.store.Exec(
			`UPDATE by_type SET json = ? WHERE id = ?`, blob, h.VertexID); err != nil {
			return fmt.Errorf("replaying update of %d: %w", h.VertexID, err)
		}
		if err := g.dropIncidentEdges(h.VertexID); err != nil {
			return err
		}
		return g.restoreEdges(edgeTable, opID)
	case types.OpDelete:
		if _, err := g.store.Exec(
			`DELETE FROM by_type WHERE id = ?`, h.VertexID); err != nil {
			return fmt.Errorf("replaying delete of %d: %w", h.VertexID, err)
		}
		return g.dropIncidentEdges(h.VertexID)
	default:
		return fmt.Errorf("replaying operation %d: unknown type %q", opID, opType)
	}
}

// restoreEdges re-inserts the edges snapshotted for an operation into the
// live relations table, preserving snapshot order.
func (g *Graph) restoreEdges(table string, opID int64) error {
	edges, err := g.edgeHistoryFor(table, opID)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if _, err := g.store.Exec(
			`INSERT INTO relations (from_id, to_id, relation) VALUES (?, ?, ?)`,
			e.FromID, e.ToID, e.Relation); err != nil {
			return fmt.Errorf("restoring edge %d->%d %q: %w", e.FromID, e.ToID, e.Relation, err)
		}
	}
	return nil
}

// dropIncidentEdges removes every edge touching a vertex, both directions.
func (g *Graph) dropIncidentEdges(vertexID int64) error {
	if _, err := g.store.Exec(
		`DELETE FROM relations WHERE from_id = ? OR to_id = ?`,
		vertexID, vertexID); err != nil {
		return fmt.Errorf("dropping edges of %d: %w", vertexID, err)
	}
	return nil
}
