package types

// QueryOptions controls QueryTableData. Fields nil selects every physical
// field. Where is spliced verbatim after WHERE with Args bound as parameters.
// AsDict switches Cursor.Row on; otherwise callers read Cursor.Values.
// HandleM2M hydrates each row's virtual relation fields, at the cost of one
// relation query per row per tracked field.
type QueryOptions struct {
	Fields    []string
	Where     string
	Args      []any
	AsDict    bool
	HandleM2M bool
}

// JunctionOptions controls CreateJunctionTable. Zero values select the
// defaults: key field "id" on both sides, junction name derived from the
// sorted table names, track field "<to_table>_link".
type JunctionOptions struct {
	FromField           string
	ToField             string
	JunctionName        string
	TrackField          string
	ReverseTrackField   string
	TrackViceVersa      bool
	DisplayField        string
	ReverseDisplayField string
}

// RelatedOptions controls GetManyToManyData. FromValues nil resolves every
// distinct anchor. DisplayField overrides the related table's key as the
// aggregated value; DisplayLabel renames the output column.
type RelatedOptions struct {
	FromValues   []any
	DisplayField string
	DisplayLabel string
}

// Cursor is a lazy, single-pass sequence of rows. Row is populated only for
// dictionary-mode queries; Values is always populated in selected-field
// order. Err must be checked after Next returns false.
type Cursor interface {
	Next() bool
	Row() Row
	Values() []any
	Err() error
	Close() error
}

// Store is the narrow interface any UI or tooling layer consumes: structural
// changes, catalog metadata, and row access over a single database handle.
//
// All operations are synchronous and run to completion. The handle may be
// shared across goroutines; mutating operations are serialized internally by
// a per-handle lock, reads interleave freely with other reads.
type Store interface {
	// Attach connects the store to the database described by config,
	// creating the data directory if needed. Returns ErrAlreadyAttached
	// if called while attached.
	Attach(config Config) error

	// Detach releases the database handle. Idempotent. After Detach all
	// operations return ErrStoreDetached.
	Detach() error

	// Table structure.
	CreateTable(name string, fields []Field) error
	AddField(table string, field Field) error
	DeleteField(table, field string) error
	DeleteTable(name string) error

	// Schema introspection.
	GetFields(table string) ([]Field, error)
	GetField(table, name string) (Field, error)
	GetFieldNames(table string) ([]string, error)
	GetForeignKeys(table string) ([]ForeignKey, error)
	GetPrimaryKeys(table string) ([]string, error)
	GetUniqueFields(table string) ([]string, error)
	GetTableNames() ([]string, error)
	GetViewNames() ([]string, error)
	GetDatabaseSize() (int64, error)

	// Enum fields.
	CreateEnumTable(name string, values []string) error
	AddEnumMetadata(table, field, enumTable, description string) error
	GetEnumTableName(table, field string) (string, error)
	ListEnumTables() ([]string, error)
	GetEnumValues(enumTable string) ([]string, error)
	GetPossibleValues(table, displayField string) ([]any, error)

	// Many-to-many relations.
	CreateJunctionTable(fromTable, toTable string, opts JunctionOptions) (string, error)
	UpdateJunctionTable(fromTable, trackField string, anchor any, selected []any, isRowID bool) error
	GetManyToManyData(table, trackField string, opts RelatedOptions) ([]Row, error)
	GetManyToManyFields(table string) ([]string, error)
	GetRelations(fromTable string) (map[string]string, error)

	// Display-field catalog.
	AddDisplayField(table, field, targetField, format string) error
	GetDisplayField(table, field string) (*DisplayField, error)
	RemoveDisplayField(table, field string) error

	// Records.
	InsertRecord(table string, data Row, handleM2M bool) (int64, error)
	UpdateRecord(table string, data Row, keyValue any, keyField string, handleM2M bool) error
	DeleteRecord(table string, keyValue any, keyField string) error
	DeleteRecords(table string, keyValues []any, keyField string) error
	QueryTableData(table string, opts QueryOptions) (Cursor, error)
	FetchRelatedValue(relatedTable, targetField, referenceField string, keyValue any) (any, error)
}
