package graph

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recall/pkg/types"
)

// visitedSet tracks records already saved or deleted within one cascade so
// cyclic structures terminate. Identity is the record pointer until an ID
// is assigned, then the vertex ID.
type visitedSet struct {
	byPointer map[types.Record]struct{}
	byID      map[int64]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{
		byPointer: make(map[types.Record]struct{}),
		byID:      make(map[int64]struct{}),
	}
}

// seen reports whether rec was already visited, and marks it.
func (v *visitedSet) seen(rec types.Record) bool {
	if _, ok := v.byPointer[rec]; ok {
		return true
	}
	if id := rec.Identifier(); id != 0 {
		if _, ok := v.byID[id]; ok {
			return true
		}
		v.byID[id] = struct{}{}
	}
	v.byPointer[rec] = struct{}{}
	return false
}

// Save persists one record: its scalar fields and its declared edge sets.
// Related records that are not yet saved are skipped; use SaveAll to
// persist a whole object graph. A save that changes nothing leaves no
// trace in history.
func (g *Graph) Save(rec types.Record) error {
	if g.store == nil {
		return types.ErrClosed
	}
	return g.WithUndoTransaction(func() error {
		return g.save(rec, false, newVisitedSet())
	})
}

// SaveAll persists rec and, recursively, every record reachable through
// its declared relations. Cycles are saved once.
func (g *Graph) SaveAll(rec types.Record) error {
	if g.store == nil {
		return types.ErrClosed
	}
	return g.WithUndoTransaction(func() error {
		return g.save(rec, true, newVisitedSet())
	})
}

// Delete removes rec's vertex and every edge incident to it. Related
// records survive; use DeleteAll to cascade.
func (g *Graph) Delete(rec types.Record) error {
	if g.store == nil {
		return types.ErrClosed
	}
	return g.WithUndoTransaction(func() error {
		return g.delete(rec, false, newVisitedSet())
	})
}

// DeleteAll removes rec and cascades through the relations it declares
// with Cascade set.
func (g *Graph) DeleteAll(rec types.Record) error {
	if g.store == nil {
		return types.ErrClosed
	}
	return g.WithUndoTransaction(func() error {
		return g.delete(rec, true, newVisitedSet())
	})
}

// SaveRelations replaces the edge set for (rec, property) with one edge
// per item, in order. With recurse set, unsaved items are saved first;
// without it they are skipped. A no-op on an unsaved rec.
func (g *Graph) SaveRelations(rec types.Record, items []types.Record, property, targetType string, recurse bool) error {
	if g.store == nil {
		return types.ErrClosed
	}
	return g.store.Transaction(func() error {
		return g.saveRelations(rec, items, property, recurse, newVisitedSet())
	})
}

// SaveRelation is SaveRelations for a single to-one target. A nil item
// clears the edge.
func (g *Graph) SaveRelation(rec types.Record, item types.Record, property, targetType string, recurse bool) error {
	var items []types.Record
	if item != nil {
		items = []types.Record{item}
	}
	return g.SaveRelations(rec, items, property, targetType, recurse)
}

// save is the unbracketed save path: upsert the vertex, record the
// operation with its before image, snapshot edges around the relation
// writes, and index completions.
func (g *Graph) save(rec types.Record, recurse bool, visited *visitedSet) error {
	if visited.seen(rec) {
		return nil
	}

	opType := types.OpCreate
	beforeJSON := ""
	if id := rec.Identifier(); id != 0 {
		opType = types.OpUpdate
		var err error
		beforeJSON, err = g.vertexBlob(id)
		if err != nil {
			return err
		}
	}

	blob, err := rec.EncodeFields()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", rec.TypeName(), err)
	}
	afterJSON := string(blob)

	if err := g.saveProperties(rec, afterJSON); err != nil {
		return err
	}

	opID, err := g.newOperation(opType, rec.Identifier(), rec.TypeName(), beforeJSON, afterJSON)
	if err != nil {
		return err
	}
	if err := g.snapshotEdges("relations_history_before", opID, rec.Identifier()); err != nil {
		return err
	}

	for _, rel := range rec.Relations() {
		if rel.Get == nil {
			continue
		}
		if err := g.saveRelations(rec, rel.Get(), rel.Property, recurse, visited); err != nil {
			return err
		}
	}

	if c, ok := rec.(types.Completable); ok {
		for _, comp := range c.Completions() {
			if err := g.IndexCompletion(rec, comp.Property, comp.Label); err != nil {
				return err
			}
		}
	}

	if err := g.snapshotEdges("relations_history_after", opID, rec.Identifier()); err != nil {
		return err
	}

	g.log.Debug("record saved",
		zap.String("type", rec.TypeName()),
		zap.Int64("vertex_id", rec.Identifier()),
		zap.String("op_type", string(opType)))
	return nil
}

// saveProperties upserts the vertex row and writes the assigned ID back
// into a freshly created record.
func (g *Graph) saveProperties(rec types.Record, blob string) error {
	if id := rec.Identifier(); id != 0 {
		if _, err := g.store.Exec(
			`UPDATE by_type SET json = ? WHERE id = ?`, blob, id); err != nil {
			return fmt.Errorf("updating %s %d: %w", rec.TypeName(), id, err)
		}
		return nil
	}
	id, err := g.store.Insert(
		`INSERT INTO by_type (type_name, json) VALUES (?, ?)`,
		rec.TypeName(), blob)
	if err != nil {
		return fmt.Errorf("inserting %s: %w", rec.TypeName(), err)
	}
	rec.SetIdentifier(id)
	return nil
}

// saveRelations is the unbracketed edge-set replacement. Items without an
// ID are saved first when recursing, otherwise skipped.
func (g *Graph) saveRelations(rec types.Record, items []types.Record, property string, recurse bool, visited *visitedSet) error {
	if rec.Identifier() == 0 {
		return nil
	}

	if recurse {
		for _, item := range items {
			if item == nil {
				continue
			}
			if err := g.save(item, true, visited); err != nil {
				return err
			}
		}
	}

	if _, err := g.store.Exec(
		`DELETE FROM relations WHERE from_id = ? AND relation = ?`,
		rec.Identifier(), property); err != nil {
		return fmt.Errorf("clearing edges %d %q: %w", rec.Identifier(), property, err)
	}
	for _, item := range items {
		if item == nil || item.Identifier() == 0 {
			continue
		}
		if _, err := g.store.Exec(
			`INSERT INTO relations (from_id, to_id, relation) VALUES (?, ?, ?)`,
			rec.Identifier(), item.Identifier(), property); err != nil {
			return fmt.Errorf("inserting edge %d->%d %q: %w",
				rec.Identifier(), item.Identifier(), property, err)
		}
	}
	return nil
}

// delete is the unbracketed delete path. Children of cascading relations
// are enumerated before the parent's edges vanish and deleted after the
// parent, so each vertex's before snapshot is taken while its own edges
// are still live.
func (g *Graph) delete(rec types.Record, recurse bool, visited *visitedSet) error {
	if visited.seen(rec) {
		return nil
	}
	id := rec.Identifier()
	if id == 0 {
		return nil
	}

	beforeJSON, err := g.vertexBlob(id)
	if err != nil {
		return err
	}

	var children []types.Record
	if recurse {
		for _, rel := range rec.Relations() {
			if !rel.Cascade {
				continue
			}
			related, err := g.Related(rec, rel.Property, rel.TargetType)
			if err != nil {
				return err
			}
			children = append(children, related...)
		}
	}

	opID, err := g.newOperation(types.OpDelete, id, rec.TypeName(), beforeJSON, "")
	if err != nil {
		return err
	}
	if err := g.snapshotEdges("relations_history_before", opID, id); err != nil {
		return err
	}

	if _, err := g.store.Exec(`DELETE FROM by_type WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting %s %d: %w", rec.TypeName(), id, err)
	}
	if err := g.dropIncidentEdges(id); err != nil {
		return err
	}

	if err := g.snapshotEdges("relations_history_after", opID, id); err != nil {
		return err
	}

	g.log.Debug("record deleted",
		zap.String("type", rec.TypeName()), zap.Int64("vertex_id", id))

	for _, child := range children {
		if err := g.delete(child, true, visited); err != nil {
			return err
		}
	}
	return nil
}

// vertexBlob reads the live JSON blob of one vertex.
func (g *Graph) vertexBlob(id int64) (string, error) {
	var blob string
	err := g.store.QueryRow(`SELECT json FROM by_type WHERE id = ?`, id).Scan(&blob)
	if err != nil {
		if isNoRows(err) {
			return "", fmt.Errorf("%w: vertex %d", types.ErrNotFound, id)
		}
		return "", fmt.Errorf("reading vertex %d: %w", id, err)
	}
	return blob, nil
}
