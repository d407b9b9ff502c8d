package budget

import (
	"encoding/json"

	"github.com/mesh-intelligence/recall/pkg/types"
)

// Transaction is one ledger entry. A transaction may be split into child
// transactions, and a split may point at the actual item it settles.
// Splits are themselves transactions, so the structure can nest.
type Transaction struct {
	id int64

	Amount    float64         `json:"amount"`
	Memo      string          `json:"memo"`
	CheckNo   string          `json:"checkno"`
	Timestamp types.Timestamp `json:"timestamp"`

	Splits     []*Transaction `json:"-"`
	ActualItem *ActualItem    `json:"-"`
}

func (t *Transaction) TypeName() string { return TypeTransaction }
func (t *Transaction) Identifier() int64 { return t.id }
func (t *Transaction) SetIdentifier(id int64) { t.id = id }
func (t *Transaction) EncodeFields() ([]byte, error) { return json.Marshal(t) }
func (t *Transaction) DecodeFields(data []byte) error { return json.Unmarshal(data, t) }

func (t *Transaction) Relations() []types.Relation {
	return []types.Relation{
		{
			Property:   "splits",
			Card:       types.Many,
			TargetType: TypeTransaction,
			Cascade:    true,
			Get: func() []types.Record {
				out := make([]types.Record, 0, len(t.Splits))
				for _, s := range t.Splits {
					out = append(out, s)
				}
				return out
			},
			Set: func(recs []types.Record) {
				t.Splits = t.Splits[:0]
				for _, r := range recs {
					if s, ok := r.(*Transaction); ok {
						t.Splits = append(t.Splits, s)
					}
				}
			},
		},
		{
			Property:   "actual_item",
			Card:       types.One,
			TargetType: TypeActualItem,
			Cascade:    true,
			Get: func() []types.Record {
				if t.ActualItem == nil {
					return nil
				}
				return []types.Record{t.ActualItem}
			},
			Set: func(recs []types.Record) {
				t.ActualItem = nil
				if len(recs) == 1 {
					if a, ok := recs[0].(*ActualItem); ok {
						t.ActualItem = a
					}
				}
			},
		},
	}
}

// ActualItem records the real-world side of a settled split.
type ActualItem struct {
	id int64

	Amount    float64         `json:"amount"`
	Memo      string          `json:"memo"`
	CheckNo   string          `json:"checkno"`
	Timestamp types.Timestamp `json:"timestamp"`
}

func (a *ActualItem) TypeName() string { return TypeActualItem }
func (a *ActualItem) Identifier() int64 { return a.id }
func (a *ActualItem) SetIdentifier(id int64) { a.id = id }
func (a *ActualItem) EncodeFields() ([]byte, error) { return json.Marshal(a) }
func (a *ActualItem) DecodeFields(data []byte) error { return json.Unmarshal(data, a) }
func (a *ActualItem) Relations() []types.Relation { return nil }
