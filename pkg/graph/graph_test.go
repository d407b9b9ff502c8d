package graph_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/recall/pkg/budget"
	"github.com/mesh-intelligence/recall/pkg/graph"
	"github.com/mesh-intelligence/recall/pkg/types"
)

// setupGraph opens a fresh database in a temp directory with the budget
// models registered.
func setupGraph(t *testing.T) *graph.Graph {
	t.Helper()

	g, err := graph.Open(types.Config{Path: filepath.Join(t.TempDir(), "recall.db")})
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })

	budget.Register(g)
	return g
}

func mustTimestamp(t *testing.T, s string) types.Timestamp {
	t.Helper()
	ts, err := types.NewTimestamp(s)
	require.NoError(t, err)
	return ts
}

func retrieveItems(t *testing.T, g *graph.Graph) []*budget.BudgetItem {
	t.Helper()
	recs, err := g.Retrieve(budget.TypeBudgetItem)
	require.NoError(t, err)
	out := make([]*budget.BudgetItem, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.(*budget.BudgetItem))
	}
	return out
}

func TestOpenValidatesConfig(t *testing.T) {
	_, err := graph.Open(types.Config{})
	assert.ErrorIs(t, err, types.ErrPathEmpty)
}

func TestSaveAndRetrieve(t *testing.T) {
	g := setupGraph(t)

	require.NoError(t, g.Save(&budget.BudgetItem{Label: "budget item test", Budgeted: 1.5}))
	require.NoError(t, g.Save(&budget.BudgetItem{Label: "budget item test2", Budgeted: 2.1}))

	items := retrieveItems(t, g)
	require.Len(t, items, 2)
	assert.Equal(t, "budget item test", items[0].Label)
	assert.InDelta(t, 1.5, items[0].Budgeted, 1e-9)
	assert.Equal(t, "budget item test2", items[1].Label)
	assert.InDelta(t, 2.1, items[1].Budgeted, 1e-9)
}

func TestRetrieveUnregisteredType(t *testing.T) {
	g := setupGraph(t)

	require.NoError(t, g.Save(&budget.BudgetItem{Label: "x", Budgeted: 1}))

	_, err := g.Retrieve("Nonexistent")
	require.NoError(t, err)

	// A stored row of an unregistered type fails on decode. The second
	// engine never calls budget.Register.
	g2, err := graph.Open(types.Config{Path: filepath.Join(t.TempDir(), "recall.db")})
	require.NoError(t, err)
	defer g2.Close()
	require.NoError(t, g2.Save(&budget.BudgetItem{Label: "orphan", Budgeted: 1}))
	_, err = g2.Retrieve(budget.TypeBudgetItem)
	assert.ErrorIs(t, err, types.ErrTypeNotRegistered)
}

func TestRetrieveByID(t *testing.T) {
	g := setupGraph(t)

	item := &budget.BudgetItem{Label: "x", Budgeted: 1.5}
	require.NoError(t, g.Save(item))
	require.NotZero(t, item.Identifier())

	got, err := g.RetrieveByID(budget.TypeBudgetItem, item.Identifier())
	require.NoError(t, err)
	assert.Equal(t, "x", got.(*budget.BudgetItem).Label)

	// Wrong type name yields not found even though the row exists.
	_, err = g.RetrieveByID(budget.TypeBudget, item.Identifier())
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = g.RetrieveByID(budget.TypeBudgetItem, 9999)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRetrievePage(t *testing.T) {
	g := setupGraph(t)

	for _, label := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, g.Save(&budget.BudgetItem{Label: label, Budgeted: 1}))
	}

	recs, err := g.RetrievePage(budget.TypeBudgetItem, 2, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].(*budget.BudgetItem).Label)
	assert.Equal(t, "d", recs[1].(*budget.BudgetItem).Label)
}

func TestUpdateIdempotence(t *testing.T) {
	g := setupGraph(t)

	item := &budget.BudgetItem{Label: "x", Budgeted: 1.5}
	require.NoError(t, g.Save(item))

	reread := retrieveItems(t, g)
	require.Len(t, reread, 1)

	reread[0].Budgeted = 1.6
	require.NoError(t, g.Save(reread[0]))
	require.NoError(t, g.Save(reread[0]))

	items := retrieveItems(t, g)
	require.Len(t, items, 1)
	assert.InDelta(t, 1.6, items[0].Budgeted, 1e-9)

	// The no-change save left no trace: one create and one update.
	txs, err := g.Transactions()
	require.NoError(t, err)
	assert.Len(t, txs, 2)
	ops, err := g.History()
	require.NoError(t, err)
	assert.Len(t, ops, 2)
}

func TestRelatedEdgesWithUndoRedo(t *testing.T) {
	g := setupGraph(t)

	i1 := &budget.BudgetItem{Label: "one", Budgeted: 1.5}
	i2 := &budget.BudgetItem{Label: "two", Budgeted: 2.1}
	require.NoError(t, g.Save(i1))
	require.NoError(t, g.Save(i2))

	b := &budget.Budget{
		Date:   mustTimestamp(t, "2020-04-14 01:40:59 +0000"),
		Amount: 3.6,
	}
	require.NoError(t, g.Save(b))

	b.Items = []*budget.BudgetItem{i1, i2}
	require.NoError(t, g.Save(b))

	budgets, err := g.Retrieve(budget.TypeBudget)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Len(t, budgets[0].(*budget.Budget).Items, 2)

	assert.Equal(t, types.OpUpdate, g.Undo())
	budgets, err = g.Retrieve(budget.TypeBudget)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Empty(t, budgets[0].(*budget.Budget).Items)

	assert.Equal(t, types.OpUpdate, g.Redo())
	budgets, err = g.Retrieve(budget.TypeBudget)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Len(t, budgets[0].(*budget.Budget).Items, 2)
}

func TestSaveUndoRedoRoundTrip(t *testing.T) {
	g := setupGraph(t)

	item := &budget.BudgetItem{Label: "round", Budgeted: 4.2}
	require.NoError(t, g.Save(item))

	assert.Equal(t, types.OpDelete, g.Undo())
	assert.Empty(t, retrieveItems(t, g))

	assert.Equal(t, types.OpCreate, g.Redo())
	items := retrieveItems(t, g)
	require.Len(t, items, 1)
	assert.Equal(t, item.Identifier(), items[0].Identifier())
	assert.Equal(t, "round", items[0].Label)
	assert.InDelta(t, 4.2, items[0].Budgeted, 1e-9)
}

func TestDeleteUndoRestoresEdges(t *testing.T) {
	g := setupGraph(t)

	i1 := &budget.BudgetItem{Label: "kept", Budgeted: 1}
	b := &budget.Budget{Date: mustTimestamp(t, "2021-01-01 00:00:00 +0000"), Amount: 10}
	b.Items = []*budget.BudgetItem{i1}
	require.NoError(t, g.SaveAll(b))

	originalID := b.Identifier()
	require.NotZero(t, originalID)

	require.NoError(t, g.Delete(b))
	budgets, err := g.Retrieve(budget.TypeBudget)
	require.NoError(t, err)
	assert.Empty(t, budgets)
	// Plain delete does not cascade.
	assert.Len(t, retrieveItems(t, g), 1)

	assert.Equal(t, types.OpCreate, g.Undo())
	budgets, err = g.Retrieve(budget.TypeBudget)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	restored := budgets[0].(*budget.Budget)
	assert.Equal(t, originalID, restored.Identifier())
	require.Len(t, restored.Items, 1)
	assert.Equal(t, "kept", restored.Items[0].Label)
}

func TestCascadingSaveAndDelete(t *testing.T) {
	g := setupGraph(t)

	b := &budget.Budget{Date: mustTimestamp(t, "2022-06-01 12:00:00 +0000"), Amount: 99}
	b.Items = []*budget.BudgetItem{
		{Label: "alpha", Budgeted: 1},
		{Label: "beta", Budgeted: 2},
	}
	require.NoError(t, g.SaveAll(b))

	budgets, err := g.Retrieve(budget.TypeBudget)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Len(t, retrieveItems(t, g), 2)

	require.NotEqual(t, types.OpNone, g.Undo())
	budgets, err = g.Retrieve(budget.TypeBudget)
	require.NoError(t, err)
	assert.Empty(t, budgets)
	assert.Empty(t, retrieveItems(t, g))

	require.NotEqual(t, types.OpNone, g.Redo())
	budgets, err = g.Retrieve(budget.TypeBudget)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Len(t, budgets[0].(*budget.Budget).Items, 2)
	assert.Len(t, retrieveItems(t, g), 2)

	require.NoError(t, g.DeleteAll(budgets[0]))
	budgets, err = g.Retrieve(budget.TypeBudget)
	require.NoError(t, err)
	assert.Empty(t, budgets)
	assert.Empty(t, retrieveItems(t, g))

	require.NotEqual(t, types.OpNone, g.Undo())
	budgets, err = g.Retrieve(budget.TypeBudget)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Len(t, budgets[0].(*budget.Budget).Items, 2)
	assert.Len(t, retrieveItems(t, g), 2)
}

func TestToOneEdge(t *testing.T) {
	g := setupGraph(t)

	d := mustTimestamp(t, "2023-03-03 03:03:03 +0000")
	parent := &budget.Transaction{Amount: 100, Memo: "socks", CheckNo: "2", Timestamp: d}
	s1 := &budget.Transaction{Amount: 60, Memo: "first", Timestamp: d}
	s2 := &budget.Transaction{Amount: 40, Memo: "second", Timestamp: d}
	s2.ActualItem = &budget.ActualItem{Amount: 40, Memo: "socks", CheckNo: "2", Timestamp: d}
	parent.Splits = []*budget.Transaction{s1, s2}

	require.NoError(t, g.SaveAll(parent))

	recs, err := g.Retrieve(budget.TypeTransaction)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	withActual := 0
	for _, r := range recs {
		if r.(*budget.Transaction).ActualItem != nil {
			withActual++
		}
	}
	assert.Equal(t, 1, withActual)
}

func TestFullUndoCycle(t *testing.T) {
	g := setupGraph(t)

	require.NoError(t, g.Save(&budget.BudgetItem{Label: "budget item test", Budgeted: 1}))
	require.NoError(t, g.Save(&budget.BudgetItem{Label: "budget item test2", Budgeted: 2}))

	item := &budget.BudgetItem{Label: "cycle", Budgeted: 1.5}
	require.NoError(t, g.Save(item))

	reread := retrieveItems(t, g)
	require.Len(t, reread, 3)
	target := reread[2]
	target.Budgeted = 1.6
	require.NoError(t, g.Save(target))

	// Undo everything.
	for g.Undo() != types.OpNone {
	}
	assert.Empty(t, retrieveItems(t, g))

	// Redo restores the first save, not a later state.
	assert.Equal(t, types.OpCreate, g.Redo())
	items := retrieveItems(t, g)
	require.Len(t, items, 1)
	assert.Equal(t, "budget item test", items[0].Label)
	assert.InDelta(t, 1.0, items[0].Budgeted, 1e-9)

	// The completion index survives history navigation.
	labels, err := g.Completions(budget.TypeBudgetItem, "label", "budget i")
	require.NoError(t, err)
	assert.Len(t, labels, 2)

	labels, err = g.Completions(budget.TypeBudgetItem, "label", "budget in")
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestSavesThenUndosLeaveNothing(t *testing.T) {
	g := setupGraph(t)

	const k = 5
	for i := 0; i < k; i++ {
		require.NoError(t, g.Save(&budget.BudgetItem{Label: "item", Budgeted: float64(i)}))
	}
	for i := 0; i < k; i++ {
		require.NotEqual(t, types.OpNone, g.Undo())
	}

	assert.Empty(t, retrieveItems(t, g))
	assert.Equal(t, types.OpNone, g.Undo())
}

func TestCursorInvariants(t *testing.T) {
	g := setupGraph(t)

	require.NoError(t, g.Save(&budget.BudgetItem{Label: "a", Budgeted: 1}))
	require.NoError(t, g.Save(&budget.BudgetItem{Label: "b", Budgeted: 2}))
	g.Undo()
	require.NoError(t, g.Save(&budget.BudgetItem{Label: "c", Budgeted: 3}))

	ops, err := g.History()
	require.NoError(t, err)
	require.NotEmpty(t, ops)

	currents := 0
	targets := make(map[int64]int)
	for _, op := range ops {
		if op.Current {
			currents++
		}
		if op.NextOperation != types.NoOperation {
			targets[op.NextOperation]++
			assert.NotEqual(t, op.ID, op.NextOperation, "self-pointing operation")
		}
	}
	assert.Equal(t, 1, currents, "exactly one current operation")
	for id, n := range targets {
		assert.LessOrEqual(t, n, 1, "operation %d has multiple predecessors", id)
	}

	txs, err := g.Transactions()
	require.NoError(t, err)
	currentTxs := 0
	for _, tx := range txs {
		if tx.Current {
			currentTxs++
		}
	}
	assert.Equal(t, 1, currentTxs, "exactly one current transaction")
}

func TestWithUndoTransactionGroupsSaves(t *testing.T) {
	g := setupGraph(t)

	err := g.WithUndoTransaction(func() error {
		if err := g.Save(&budget.BudgetItem{Label: "first", Budgeted: 1}); err != nil {
			return err
		}
		return g.Save(&budget.BudgetItem{Label: "second", Budgeted: 2})
	})
	require.NoError(t, err)

	txs, err := g.Transactions()
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	// Both saves undo as a single step.
	require.NotEqual(t, types.OpNone, g.Undo())
	assert.Empty(t, retrieveItems(t, g))
}

func TestWithUndoTransactionRollsBackOnError(t *testing.T) {
	g := setupGraph(t)

	boom := assert.AnError
	err := g.WithUndoTransaction(func() error {
		if err := g.Save(&budget.BudgetItem{Label: "doomed", Budgeted: 1}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Empty(t, retrieveItems(t, g))
	ops, err := g.History()
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestEmptyBracketLeavesNoTransaction(t *testing.T) {
	g := setupGraph(t)

	require.NoError(t, g.WithUndoTransaction(func() error { return nil }))

	txs, err := g.Transactions()
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestRelatedOnUnsavedRecord(t *testing.T) {
	g := setupGraph(t)

	b := &budget.Budget{Amount: 1}
	recs, err := g.Related(b, "items", budget.TypeBudgetItem)
	require.NoError(t, err)
	assert.Empty(t, recs)

	item, err := g.RelatedItem(b, "items", budget.TypeBudgetItem)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestSaveRelationsSkipsUnsavedItems(t *testing.T) {
	g := setupGraph(t)

	b := &budget.Budget{Date: mustTimestamp(t, "2024-01-01 00:00:00 +0000"), Amount: 5}
	require.NoError(t, g.Save(b))

	saved := &budget.BudgetItem{Label: "saved", Budgeted: 1}
	require.NoError(t, g.Save(saved))
	unsaved := &budget.BudgetItem{Label: "unsaved", Budgeted: 2}

	err := g.SaveRelations(b, []types.Record{saved, unsaved}, "items", budget.TypeBudgetItem, false)
	require.NoError(t, err)

	recs, err := g.Related(b, "items", budget.TypeBudgetItem)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "saved", recs[0].(*budget.BudgetItem).Label)
}

func TestCompletionsPrefixAndUpsert(t *testing.T) {
	g := setupGraph(t)

	require.NoError(t, g.Save(&budget.BudgetItem{Label: "groceries", Budgeted: 1}))
	require.NoError(t, g.Save(&budget.BudgetItem{Label: "groceries", Budgeted: 2}))
	require.NoError(t, g.Save(&budget.BudgetItem{Label: "gym", Budgeted: 3}))

	labels, err := g.Completions(budget.TypeBudgetItem, "label", "g")
	require.NoError(t, err)
	assert.Equal(t, []string{"groceries", "gym"}, labels)

	labels, err = g.Completions(budget.TypeBudgetItem, "label", "gro")
	require.NoError(t, err)
	assert.Equal(t, []string{"groceries"}, labels)

	labels, err = g.Completions(budget.TypeBudgetItem, "label", "z")
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestTypeCounts(t *testing.T) {
	g := setupGraph(t)

	require.NoError(t, g.Save(&budget.BudgetItem{Label: "a", Budgeted: 1}))
	require.NoError(t, g.Save(&budget.BudgetItem{Label: "b", Budgeted: 2}))
	require.NoError(t, g.Save(&budget.Budget{Amount: 1}))

	counts, err := g.TypeCounts()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[budget.TypeBudgetItem])
	assert.Equal(t, int64(1), counts[budget.TypeBudget])
}

func TestClosedGraphRefusesWork(t *testing.T) {
	g, err := graph.Open(types.Config{Path: filepath.Join(t.TempDir(), "recall.db")})
	require.NoError(t, err)
	require.NoError(t, g.Close())
	require.NoError(t, g.Close())

	assert.ErrorIs(t, g.Save(&budget.BudgetItem{Label: "x"}), types.ErrClosed)
	_, err = g.Retrieve(budget.TypeBudgetItem)
	assert.ErrorIs(t, err, types.ErrClosed)
	assert.Equal(t, types.OpNone, g.Undo())
	assert.Equal(t, types.OpNone, g.Redo())
}
