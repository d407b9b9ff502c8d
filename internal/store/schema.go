package store

// Schema DDL for all tables. Creation is idempotent; opening an existing
// database leaves its contents untouched.
const (
	createByType = `CREATE TABLE IF NOT EXISTS by_type (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    type_name TEXT NOT NULL,
    json TEXT NOT NULL
);`

	createRelations = `CREATE TABLE IF NOT EXISTS relations (
    from_id INTEGER NOT NULL,
    to_id INTEGER NOT NULL,
    relation TEXT NOT NULL
);`

	createOperations = `CREATE TABLE IF NOT EXISTS operations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    operation_type TEXT NOT NULL,
    current INTEGER NOT NULL DEFAULT 0,
    next_operation INTEGER NOT NULL DEFAULT -1
);`

	createByTypeHistory = `CREATE TABLE IF NOT EXISTS by_type_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    operation_id INTEGER NOT NULL,
    by_type_id INTEGER NOT NULL,
    type_name TEXT NOT NULL,
    before_json TEXT NOT NULL,
    after_json TEXT NOT NULL
);`

	createRelationsHistoryBefore = `CREATE TABLE IF NOT EXISTS relations_history_before (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    operation_id INTEGER NOT NULL,
    from_id INTEGER NOT NULL,
    to_id INTEGER NOT NULL,
    relation TEXT NOT NULL
);`

	createRelationsHistoryAfter = `CREATE TABLE IF NOT EXISTS relations_history_after (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    operation_id INTEGER NOT NULL,
    from_id INTEGER NOT NULL,
    to_id INTEGER NOT NULL,
    relation TEXT NOT NULL
);`

	createUndoTransactions = `CREATE TABLE IF NOT EXISTS undo_transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    undo_operation_start INTEGER NOT NULL,
    undo_operation_end INTEGER NOT NULL,
    current INTEGER NOT NULL DEFAULT 0,
    next_undo_transaction INTEGER NOT NULL DEFAULT -1
);`

	createCompletions = `CREATE TABLE IF NOT EXISTS completions (
    type_name TEXT NOT NULL,
    property TEXT NOT NULL,
    label TEXT NOT NULL,
    PRIMARY KEY (type_name, property, label)
);`
)

// Index DDL for the hot lookups: vertices by type, edges by endpoint,
// history rows by operation, and the reverse walk over next_operation.
const (
	idxByTypeName       = `CREATE INDEX IF NOT EXISTS idx_by_type_name ON by_type(type_name);`
	idxRelationsFrom    = `CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_id, relation);`
	idxRelationsTo      = `CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_id);`
	idxOperationsNext   = `CREATE INDEX IF NOT EXISTS idx_operations_next ON operations(next_operation);`
	idxVertexHistoryOp  = `CREATE INDEX IF NOT EXISTS idx_by_type_history_op ON by_type_history(operation_id);`
	idxEdgeHistBeforeOp = `CREATE INDEX IF NOT EXISTS idx_relations_history_before_op ON relations_history_before(operation_id);`
	idxEdgeHistAfterOp  = `CREATE INDEX IF NOT EXISTS idx_relations_history_after_op ON relations_history_after(operation_id);`
	idxUndoTxNext       = `CREATE INDEX IF NOT EXISTS idx_undo_transactions_next ON undo_transactions(next_undo_transaction);`
)

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createByType,
	createRelations,
	createOperations,
	createByTypeHistory,
	createRelationsHistoryBefore,
	createRelationsHistoryAfter,
	createUndoTransactions,
	createCompletions,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxByTypeName,
	idxRelationsFrom,
	idxRelationsTo,
	idxOperationsNext,
	idxVertexHistoryOp,
	idxEdgeHistBeforeOp,
	idxEdgeHistAfterOp,
	idxUndoTxNext,
}
