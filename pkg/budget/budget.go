// Package budget holds the example data model shipped with the engine: a
// small personal-budget domain exercising scalar blobs, to-many and
// to-one edges, cascading deletes, and the completion index.
package budget

import (
	"encoding/json"

	"github.com/mesh-intelligence/recall/pkg/graph"
	"github.com/mesh-intelligence/recall/pkg/types"
)

// Canonical type names as stored in by_type.
const (
	TypeBudgetItem  = "BudgetItem"
	TypeBudget      = "Budget"
	TypeTransaction = "Transaction"
	TypeActualItem  = "ActualItem"
)

// Register binds every budget model to its factory on the given engine.
func Register(g *graph.Graph) {
	g.Register(TypeBudgetItem, func() types.Record { return &BudgetItem{} })
	g.Register(TypeBudget, func() types.Record { return &Budget{} })
	g.Register(TypeTransaction, func() types.Record { return &Transaction{} })
	g.Register(TypeActualItem, func() types.Record { return &ActualItem{} })
}

// BudgetItem is one budgeted line: a label and the planned amount. Labels
// feed the completion index.
type BudgetItem struct {
	id int64

	Label    string  `json:"label"`
	Budgeted float64 `json:"budgeted"`
}

func (b *BudgetItem) TypeName() string { return TypeBudgetItem }
func (b *BudgetItem) Identifier() int64 { return b.id }
func (b *BudgetItem) SetIdentifier(id int64) { b.id = id }
func (b *BudgetItem) EncodeFields() ([]byte, error) { return json.Marshal(b) }
func (b *BudgetItem) DecodeFields(data []byte) error { return json.Unmarshal(data, b) }

// Relations declares no outbound edges; items are leaves.
func (b *BudgetItem) Relations() []types.Relation { return nil }

// Completions indexes the label for prefix search.
func (b *BudgetItem) Completions() []types.Completion {
	if b.Label == "" {
		return nil
	}
	return []types.Completion{{Property: "label", Label: b.Label}}
}

// Budget is a dated envelope holding budget items.
type Budget struct {
	id int64

	Date   types.Timestamp `json:"date"`
	Amount float64         `json:"amount"`

	Items []*BudgetItem `json:"-"`
}

func (b *Budget) TypeName() string { return TypeBudget }
func (b *Budget) Identifier() int64 { return b.id }
func (b *Budget) SetIdentifier(id int64) { b.id = id }
func (b *Budget) EncodeFields() ([]byte, error) { return json.Marshal(b) }
func (b *Budget) DecodeFields(data []byte) error { return json.Unmarshal(data, b) }

func (b *Budget) Relations() []types.Relation {
	return []types.Relation{
		{
			Property:   "items",
			Card:       types.Many,
			TargetType: TypeBudgetItem,
			Cascade:    true,
			Get: func() []types.Record {
				return itemsToRecords(b.Items)
			},
			Set: func(recs []types.Record) {
				b.Items = recordsToItems(recs)
			},
		},
	}
}

func itemsToRecords(items []*BudgetItem) []types.Record {
	out := make([]types.Record, 0, len(items))
	for _, it := range items {
		out = append(out, it)
	}
	return out
}

func recordsToItems(recs []types.Record) []*BudgetItem {
	out := make([]*BudgetItem, 0, len(recs))
	for _, r := range recs {
		if it, ok := r.(*BudgetItem); ok {
			out = append(out, it)
		}
	}
	return out
}
