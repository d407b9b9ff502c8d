package graph

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/recall/pkg/types"
)

// IndexCompletion upserts one label into the completion index under the
// record's type and the given property.
func (g *Graph) IndexCompletion(rec types.Record, property, label string) error {
	if g.store == nil {
		return types.ErrClosed
	}
	_, err := g.store.Exec(
		`INSERT OR REPLACE INTO completions (type_name, property, label) VALUES (?, ?, ?)`,
		rec.TypeName(), property, label)
	if err != nil {
		return fmt.Errorf("indexing completion %s.%s %q: %w", rec.TypeName(), property, label, err)
	}
	return nil
}

// Completions returns every indexed label under (typeName, property) that
// starts with prefix, in label order. Prefix matching happens in memory
// so labels containing pattern metacharacters behave literally.
func (g *Graph) Completions(typeName, property, prefix string) ([]string, error) {
	if g.store == nil {
		return nil, types.ErrClosed
	}
	rows, err := g.store.Query(
		`SELECT label FROM completions WHERE type_name = ? AND property = ? ORDER BY label`,
		typeName, property)
	if err != nil {
		return nil, fmt.Errorf("querying completions %s.%s: %w", typeName, property, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scanning completion row: %w", err)
		}
		if strings.HasPrefix(label, prefix) {
			out = append(out, label)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating completion rows: %w", err)
	}
	return out, nil
}
