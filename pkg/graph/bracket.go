package graph

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recall/pkg/types"
)

// errIdempotentUpdate rolls back a bracket whose only effect was an
// update that changed nothing. It never reaches callers.
var errIdempotentUpdate = errors.New("idempotent update")

// WithUndoTransaction runs action atomically and records the span of
// operations it produced as one undo step. Nested calls participate in
// the active bracket instead of opening their own. An action producing no
// operations leaves history untouched, as does a single update that
// changed neither the blob nor the edge set.
func (g *Graph) WithUndoTransaction(action func() error) error {
	if g.store == nil {
		return types.ErrClosed
	}
	if g.depth > 0 {
		return action()
	}

	err := g.store.Transaction(func() error {
		g.depth++
		defer func() { g.depth-- }()

		startOp, hasStart, err := g.currentOperationID()
		if err != nil {
			return fmt.Errorf("locating bracket start: %w", err)
		}
		if !hasStart {
			startOp = 0
		}

		if err := action(); err != nil {
			return err
		}

		endOp, hasEnd, err := g.currentOperationID()
		if err != nil {
			return fmt.Errorf("locating bracket end: %w", err)
		}
		if !hasEnd || endOp == startOp {
			return nil
		}

		noop, err := g.isIdempotentSpan(startOp, endOp)
		if err != nil {
			return err
		}
		if noop {
			g.log.Debug("idempotent update suppressed", zap.Int64("operation_id", endOp))
			return errIdempotentUpdate
		}

		return g.linkTransaction(startOp, endOp)
	})
	if errors.Is(err, errIdempotentUpdate) {
		return nil
	}
	return err
}

// linkTransaction inserts the undo transaction row for a completed span
// and moves the transaction cursor onto it.
func (g *Graph) linkTransaction(startOp, endOp int64) error {
	prev, hasPrev, err := g.store.Scalar(`SELECT id FROM undo_transactions WHERE current = 1`)
	if err != nil {
		return fmt.Errorf("locating current undo transaction: %w", err)
	}

	txID, err := g.store.Insert(
		`INSERT INTO undo_transactions (undo_operation_start, undo_operation_end, current, next_undo_transaction)
		 VALUES (?, ?, 0, ?)`,
		startOp, endOp, types.NoOperation)
	if err != nil {
		return fmt.Errorf("inserting undo transaction: %w", err)
	}

	if hasPrev {
		if _, err := g.store.Exec(
			`UPDATE undo_transactions SET next_undo_transaction = ?, current = 0 WHERE id = ?`,
			txID, prev); err != nil {
			return fmt.Errorf("linking undo transaction %d: %w", txID, err)
		}
	}
	if _, err := g.store.Exec(
		`UPDATE undo_transactions SET current = 1 WHERE id = ?`, txID); err != nil {
		return fmt.Errorf("marking undo transaction %d current: %w", txID, err)
	}

	g.log.Debug("undo transaction linked",
		zap.Int64("tx_id", txID), zap.Int64("start_op", startOp), zap.Int64("end_op", endOp))
	return nil
}

// isIdempotentSpan reports whether the bracket produced exactly one
// update whose before and after images match, blob and edge set alike.
func (g *Graph) isIdempotentSpan(startOp, endOp int64) (bool, error) {
	pred, err := g.predecessorOf(endOp)
	if err != nil {
		return false, err
	}
	single := pred == startOp || (startOp == 0 && pred == types.NoOperation)
	if !single {
		return false, nil
	}

	op, err := g.operationByID(endOp)
	if err != nil {
		return false, err
	}
	if op.Type != types.OpUpdate {
		return false, nil
	}

	h, err := g.vertexHistoryFor(endOp)
	if err != nil {
		return false, err
	}
	if !jsonEqual(h.BeforeJSON, h.AfterJSON) {
		return false, nil
	}

	before, err := g.edgeHistoryFor("relations_history_before", endOp)
	if err != nil {
		return false, err
	}
	after, err := g.edgeHistoryFor("relations_history_after", endOp)
	if err != nil {
		return false, err
	}
	return edgeSetsEqual(before, after), nil
}

// edgeSetsEqual compares two edge snapshots as multisets.
func edgeSetsEqual(a, b []types.EdgeHistory) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[types.Edge]int, len(a))
	for _, e := range a {
		counts[types.Edge{FromID: e.FromID, ToID: e.ToID, Relation: e.Relation}]++
	}
	for _, e := range b {
		k := types.Edge{FromID: e.FromID, ToID: e.ToID, Relation: e.Relation}
		counts[k]--
		if counts[k] < 0 {
			return false
		}
	}
	return true
}

// jsonEqual compares two JSON documents structurally. Numbers compare as
// integer cents so a money amount survives a float round-trip.
func jsonEqual(a, b string) bool {
	var va, vb any
	if json.Unmarshal([]byte(a), &va) != nil || json.Unmarshal([]byte(b), &vb) != nil {
		return a == b
	}
	return jsonValueEqual(va, vb)
}

func jsonValueEqual(a, b any) bool {
	switch x := a.(type) {
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !jsonValueEqual(v, w) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !jsonValueEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case float64:
		y, ok := b.(float64)
		return ok && types.Cents(x) == types.Cents(y)
	default:
		return a == b
	}
}
