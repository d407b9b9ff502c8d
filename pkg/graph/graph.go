// Package graph implements an embeddable object-graph persistence engine
// over SQLite. User records are stored as self-describing JSON vertices
// with labeled edges between them, and every mutation is recorded in a
// durable undo/redo history grouped into transactions.
package graph

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/recall/internal/store"
	"github.com/mesh-intelligence/recall/pkg/types"
)

// Graph is the persistence engine. It owns the store connection
// exclusively and is not safe for concurrent use; one logical caller at a
// time. All public mutations run inside a store transaction.
type Graph struct {
	store     *store.Store
	log       *zap.Logger
	id        string
	factories map[string]types.Factory
	depth     int
}

// Option configures a Graph at Open time.
type Option func(*Graph)

// WithLogger installs a structured logger. The default is a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Graph) { g.log = l }
}

// Open validates the config, opens (or creates) the database, and applies
// the schema idempotently.
func Open(cfg types.Config, opts ...Option) (*Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s, err := store.Open(cfg.Path)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		store:     s,
		log:       zap.NewNop(),
		id:        newEngineID(),
		factories: make(map[string]types.Factory),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(zap.String("engine_id", g.id))
	g.log.Debug("graph opened", zap.String("path", cfg.Path))

	return g, nil
}

// Close releases the store connection. Idempotent.
func (g *Graph) Close() error {
	if g.store == nil {
		return nil
	}
	err := g.store.Close()
	g.store = nil
	g.log.Debug("graph closed")
	return err
}

// Register binds a canonical type name to a factory producing empty
// records of that type. Decoding a stored row whose type name has no
// registered factory fails with ErrTypeNotRegistered; a retrieval that
// matches no rows succeeds with an empty result.
func (g *Graph) Register(name string, f types.Factory) {
	g.factories[name] = f
}

// newEngineID generates the instance ID attached to every log line.
func newEngineID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// decode rehydrates one vertex row: construct the record through its
// factory, decode the JSON blob, write back the ID, then populate the
// related fields declared by the record's relation descriptors.
func (g *Graph) decode(typeName string, id int64, blob string) (types.Record, error) {
	f, ok := g.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTypeNotRegistered, typeName)
	}
	rec := f()
	if err := rec.DecodeFields([]byte(blob)); err != nil {
		return nil, fmt.Errorf("decoding %s %d: %w", typeName, id, err)
	}
	rec.SetIdentifier(id)
	if err := g.loadRelations(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// loadRelations fills the record's related fields by consulting the
// relations table for each declared descriptor.
func (g *Graph) loadRelations(rec types.Record) error {
	for _, rel := range rec.Relations() {
		if rel.Set == nil {
			continue
		}
		switch rel.Card {
		case types.One:
			item, err := g.RelatedItem(rec, rel.Property, rel.TargetType)
			if err != nil {
				return err
			}
			if item != nil {
				rel.Set([]types.Record{item})
			} else {
				rel.Set(nil)
			}
		default:
			items, err := g.Related(rec, rel.Property, rel.TargetType)
			if err != nil {
				return err
			}
			rel.Set(items)
		}
	}
	return nil
}
