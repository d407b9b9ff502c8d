package types

// Cardinality describes how many targets a relation may carry.
type Cardinality int

const (
	// One marks a to-one relation; Get returns zero or one item.
	One Cardinality = iota
	// Many marks a to-many relation; Get returns items in edge order.
	Many
)

// Record is the contract a user type satisfies to be persisted as a vertex.
// Scalar fields travel through EncodeFields/DecodeFields as a JSON blob;
// related records are excluded from the blob and represented as edges
// declared by Relations.
type Record interface {
	// TypeName returns the stable canonical name for this record type.
	// It keys the by_type rows and must never change once data exists.
	TypeName() string

	// Identifier returns the assigned vertex ID, or 0 if the record has
	// not been saved yet.
	Identifier() int64

	// SetIdentifier writes back the ID assigned on first save. The engine
	// also calls it while rehydrating rows.
	SetIdentifier(int64)

	// EncodeFields serializes the scalar fields to JSON.
	EncodeFields() ([]byte, error)

	// DecodeFields populates the scalar fields from JSON.
	DecodeFields([]byte) error

	// Relations declares the outbound edges of this record. The engine
	// walks the descriptors to load related fields after decoding, to
	// persist edge sets after saving properties, and to cascade deletes.
	Relations() []Relation
}

// Relation describes one outbound edge property of a record type.
type Relation struct {
	// Property is the edge label stored in the relations table.
	Property string

	// Card is One or Many.
	Card Cardinality

	// TargetType is the canonical type name of the records on the far end.
	TargetType string

	// Cascade marks relations followed by a cascading delete.
	Cascade bool

	// Get returns the current in-memory items for this relation.
	// For One it returns zero or one item.
	Get func() []Record

	// Set replaces the in-memory items after the engine loads them.
	Set func([]Record)
}

// Completion is one prefix-searchable label contributed to the completion
// index under a (type, property) pair.
type Completion struct {
	Property string
	Label    string
}

// Completable is implemented by record types that opt in to completion
// indexing. The engine upserts every returned completion as part of the
// save path.
type Completable interface {
	Completions() []Completion
}

// Factory constructs an empty record of a registered type, ready for
// DecodeFields.
type Factory func() Record
