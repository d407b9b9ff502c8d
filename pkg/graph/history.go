package graph

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recall/pkg/types"
)

// currentOperationID returns the ID of the operation marked current. The
// second return is false when no operation is current.
func (g *Graph) currentOperationID() (int64, bool, error) {
	return g.store.Scalar(`SELECT id FROM operations WHERE current = 1`)
}

// newOperation appends an operation to the history chain and records its
// vertex replay image. The previous current operation (or, on the very
// first gap, the head of the chain) is linked forward to the new row, and
// the current marker moves to it.
func (g *Graph) newOperation(opType types.OperationType, vertexID int64, typeName, beforeJSON, afterJSON string) (int64, error) {
	prev, hasPrev, err := g.currentOperationID()
	if err != nil {
		return 0, fmt.Errorf("locating current operation: %w", err)
	}

	opID, err := g.store.Insert(
		`INSERT INTO operations (operation_type, current, next_operation) VALUES (?, 0, ?)`,
		string(opType), types.NoOperation)
	if err != nil {
		return 0, fmt.Errorf("inserting operation: %w", err)
	}

	if hasPrev {
		if _, err := g.store.Exec(
			`UPDATE operations SET next_operation = ?, current = 0 WHERE id = ?`,
			opID, prev); err != nil {
			return 0, fmt.Errorf("linking operation %d: %w", opID, err)
		}
	} else {
		// No current operation but older rows may exist (everything was
		// undone). The chain head adopts the new row as its successor.
		if _, err := g.store.Exec(
			`UPDATE operations SET next_operation = ?
			 WHERE id = (SELECT MIN(id) FROM operations) AND id != ?`,
			opID, opID); err != nil {
			return 0, fmt.Errorf("linking chain head to operation %d: %w", opID, err)
		}
	}

	if _, err := g.store.Exec(
		`UPDATE operations SET current = 1 WHERE id = ?`, opID); err != nil {
		return 0, fmt.Errorf("marking operation %d current: %w", opID, err)
	}

	if _, err := g.store.Exec(
		`INSERT INTO by_type_history (operation_id, by_type_id, type_name, before_json, after_json)
		 VALUES (?, ?, ?, ?, ?)`,
		opID, vertexID, typeName, beforeJSON, afterJSON); err != nil {
		return 0, fmt.Errorf("recording history for operation %d: %w", opID, err)
	}

	g.log.Debug("operation recorded",
		zap.String("op_type", string(opType)),
		zap.Int64("operation_id", opID),
		zap.Int64("vertex_id", vertexID))
	return opID, nil
}

// snapshotEdges copies every edge incident to vertexID into the named
// edge-history table, tagged with the operation.
func (g *Graph) snapshotEdges(table string, opID, vertexID int64) error {
	switch table {
	case "relations_history_before", "relations_history_after":
	default:
		return fmt.Errorf("unknown edge history table %q", table)
	}
	_, err := g.store.Exec(
		`INSERT INTO `+table+` (operation_id, from_id, to_id, relation)
		 SELECT ?, from_id, to_id, relation FROM relations
		 WHERE from_id = ? OR to_id = ?`,
		opID, vertexID, vertexID)
	if err != nil {
		return fmt.Errorf("snapshotting edges of %d into %s: %w", vertexID, table, err)
	}
	return nil
}

// operationByID reads one operation row.
func (g *Graph) operationByID(id int64) (types.Operation, error) {
	var (
		op      types.Operation
		current int64
		opType  string
	)
	err := g.store.QueryRow(
		`SELECT id, operation_type, current, next_operation FROM operations WHERE id = ?`,
		id).Scan(&op.ID, &opType, &current, &op.NextOperation)
	if err != nil {
		return types.Operation{}, fmt.Errorf("reading operation %d: %w", id, err)
	}
	op.Type = types.OperationType(opType)
	op.Current = current != 0
	return op, nil
}

// predecessorOf returns the ID of the operation that links forward to id,
// or NoOperation when id is the head of the chain.
func (g *Graph) predecessorOf(id int64) (int64, error) {
	prev, ok, err := g.store.Scalar(
		`SELECT id FROM operations WHERE next_operation = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("locating predecessor of operation %d: %w", id, err)
	}
	if !ok {
		return types.NoOperation, nil
	}
	return prev, nil
}

// vertexHistoryFor reads the replay image pinned to an operation.
func (g *Graph) vertexHistoryFor(opID int64) (types.VertexHistory, error) {
	var h types.VertexHistory
	err := g.store.QueryRow(
		`SELECT id, operation_id, by_type_id, type_name, before_json, after_json
		 FROM by_type_history WHERE operation_id = ?`,
		opID).Scan(&h.ID, &h.OperationID, &h.VertexID, &h.TypeName, &h.BeforeJSON, &h.AfterJSON)
	if err != nil {
		return types.VertexHistory{}, fmt.Errorf("reading history for operation %d: %w", opID, err)
	}
	return h, nil
}

// edgeHistoryFor reads the snapshotted edges of one operation from the
// named edge-history table, in snapshot order.
func (g *Graph) edgeHistoryFor(table string, opID int64) ([]types.EdgeHistory, error) {
	switch table {
	case "relations_history_before", "relations_history_after":
	default:
		return nil, fmt.Errorf("unknown edge history table %q", table)
	}
	rows, err := g.store.Query(
		`SELECT id, operation_id, from_id, to_id, relation FROM `+table+
			` WHERE operation_id = ? ORDER BY id`, opID)
	if err != nil {
		return nil, fmt.Errorf("reading %s for operation %d: %w", table, opID, err)
	}
	defer rows.Close()

	var out []types.EdgeHistory
	for rows.Next() {
		var e types.EdgeHistory
		if err := rows.Scan(&e.ID, &e.OperationID, &e.FromID, &e.ToID, &e.Relation); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", table, err)
	}
	return out, nil
}

// History returns every operation row in insertion order.
func (g *Graph) History() ([]types.Operation, error) {
	if g.store == nil {
		return nil, types.ErrClosed
	}
	rows, err := g.store.Query(
		`SELECT id, operation_type, current, next_operation FROM operations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("reading operations: %w", err)
	}
	defer rows.Close()

	var out []types.Operation
	for rows.Next() {
		var (
			op      types.Operation
			current int64
			opType  string
		)
		if err := rows.Scan(&op.ID, &opType, &current, &op.NextOperation); err != nil {
			return nil, fmt.Errorf("scanning operation row: %w", err)
		}
		op.Type = types.OperationType(opType)
		op.Current = current != 0
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operation rows: %w", err)
	}
	return out, nil
}

// Transactions returns every undo transaction row in insertion order.
func (g *Graph) Transactions() ([]types.UndoTransaction, error) {
	if g.store == nil {
		return nil, types.ErrClosed
	}
	rows, err := g.store.Query(
		`SELECT id, undo_operation_start, undo_operation_end, current, next_undo_transaction
		 FROM undo_transactions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("reading undo transactions: %w", err)
	}
	defer rows.Close()

	var out []types.UndoTransaction
	for rows.Next() {
		var (
			tx      types.UndoTransaction
			current int64
		)
		if err := rows.Scan(&tx.ID, &tx.StartOp, &tx.EndOp, &current, &tx.NextTx); err != nil {
			return nil, fmt.Errorf("scanning undo transaction row: %w", err)
		}
		tx.Current = current != 0
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating undo transaction rows: %w", err)
	}
	return out, nil
}
