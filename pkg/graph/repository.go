package graph

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/recall/pkg/types"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Retrieve returns every stored record of the named type, ordered by ID.
func (g *Graph) Retrieve(typeName string) ([]types.Record, error) {
	if g.store == nil {
		return nil, types.ErrClosed
	}
	return g.retrieveQuery(typeName,
		`SELECT id, json FROM by_type WHERE type_name = ? ORDER BY id`, typeName)
}

// RetrievePage returns one page of records of the named type, ordered by
// ID. Offset counts records, not pages.
func (g *Graph) RetrievePage(typeName string, limit, offset int) ([]types.Record, error) {
	if g.store == nil {
		return nil, types.ErrClosed
	}
	return g.retrieveQuery(typeName,
		`SELECT id, json FROM by_type WHERE type_name = ? ORDER BY id LIMIT ? OFFSET ?`,
		typeName, limit, offset)
}

// RetrieveByID fetches a single record by its vertex ID. A missing row, or
// a row of a different type, yields ErrNotFound.
func (g *Graph) RetrieveByID(typeName string, id int64) (types.Record, error) {
	if g.store == nil {
		return nil, types.ErrClosed
	}
	var blob string
	err := g.store.QueryRow(
		`SELECT json FROM by_type WHERE id = ? AND type_name = ?`,
		id, typeName).Scan(&blob)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s %d", types.ErrNotFound, typeName, id)
		}
		return nil, fmt.Errorf("retrieving %s %d: %w", typeName, id, err)
	}
	return g.decode(typeName, id, blob)
}

// Related returns the records of targetType reachable from rec over edges
// carrying the given label, in edge insertion order.
func (g *Graph) Related(rec types.Record, relation, targetType string) ([]types.Record, error) {
	if g.store == nil {
		return nil, types.ErrClosed
	}
	if rec.Identifier() == 0 {
		return nil, nil
	}
	return g.retrieveQuery(targetType,
		`SELECT b.id, b.json FROM relations r
		 JOIN by_type b ON b.id = r.to_id
		 WHERE r.from_id = ? AND r.relation = ? AND b.type_name = ?
		 ORDER BY r.rowid`,
		rec.Identifier(), relation, targetType)
}

// RelatedItem returns the single record behind a to-one edge. Zero or
// more than one matching edge yields nil.
func (g *Graph) RelatedItem(rec types.Record, relation, targetType string) (types.Record, error) {
	items, err := g.Related(rec, relation, targetType)
	if err != nil {
		return nil, err
	}
	if len(items) != 1 {
		return nil, nil
	}
	return items[0], nil
}

// retrieveQuery runs a (id, json) query and decodes each row.
func (g *Graph) retrieveQuery(typeName, query string, args ...any) ([]types.Record, error) {
	rows, err := g.store.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", typeName, err)
	}
	defer rows.Close()

	var (
		ids   []int64
		blobs []string
	)
	for rows.Next() {
		var (
			id   int64
			blob string
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", typeName, err)
		}
		ids = append(ids, id)
		blobs = append(blobs, blob)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", typeName, err)
	}
	// Release the connection before decoding: loading relations queries
	// the store again.
	rows.Close()

	var out []types.Record
	for i, id := range ids {
		rec, err := g.decode(typeName, id, blobs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// TypeCounts returns the number of stored vertices per type name.
func (g *Graph) TypeCounts() (map[string]int64, error) {
	if g.store == nil {
		return nil, types.ErrClosed
	}
	rows, err := g.store.Query(
		`SELECT type_name, COUNT(*) FROM by_type GROUP BY type_name ORDER BY type_name`)
	if err != nil {
		return nil, fmt.Errorf("counting vertices: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			name  string
			count int64
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		out[name] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating count rows: %w", err)
	}
	return out, nil
}

// edges returns the current outgoing edge rows for a vertex, in insertion
// order.
func (g *Graph) edges(fromID int64) ([]types.Edge, error) {
	rows, err := g.store.Query(
		`SELECT from_id, to_id, relation FROM relations WHERE from_id = ? ORDER BY rowid`,
		fromID)
	if err != nil {
		return nil, fmt.Errorf("querying edges of %d: %w", fromID, err)
	}
	defer rows.Close()

	var out []types.Edge
	for rows.Next() {
		var e types.Edge
		if err := rows.Scan(&e.FromID, &e.ToID, &e.Relation); err != nil {
			return nil, fmt.Errorf("scanning edge row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating edge rows: %w", err)
	}
	return out, nil
}
