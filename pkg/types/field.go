package types

// FieldType is the declared storage type of a field. The set is closed:
// the five SQLite storage classes, DATETIME, and the synthetic MANY_TO_MANY
// marker for virtual relation fields that exist only in the catalog.
type FieldType string

// Declared field types.
const (
	FieldInteger    FieldType = "INTEGER"
	FieldReal       FieldType = "REAL"
	FieldText       FieldType = "TEXT"
	FieldBlob       FieldType = "BLOB"
	FieldNull       FieldType = "NULL"
	FieldDateTime   FieldType = "DATETIME"
	FieldManyToMany FieldType = "MANY_TO_MANY"
)

// validFieldTypes lists the types accepted by IsValidFieldType.
var validFieldTypes = map[FieldType]bool{
	FieldInteger:    true,
	FieldReal:       true,
	FieldText:       true,
	FieldBlob:       true,
	FieldNull:       true,
	FieldDateTime:   true,
	FieldManyToMany: true,
}

// IsValidFieldType reports whether t is one of the declared field types.
func IsValidFieldType(t FieldType) bool {
	return validFieldTypes[t]
}

// ForeignKey describes an engine-level foreign key constraint. Field names
// mirror SQLite's foreign_key_list output: From is the local field, To the
// referenced field on Table.
type ForeignKey struct {
	Table    string
	From     string
	To       string
	OnUpdate string
	OnDelete string
}

// ManyToManyField describes a virtual relation field. The field never exists
// in the physical table; it is addressed through TrackField and realized by
// rows in JunctionTable.
type ManyToManyField struct {
	Table         string
	TrackField    string
	JunctionTable string
}

// EnumSpec requests enum wiring when a field is added. Either Table names an
// existing enum table, or Values seeds a fresh one named by convention
// (enum_<field>). The field gets a foreign key into that table and a catalog
// row recording the pairing.
type EnumSpec struct {
	Table       string
	Values      []string
	Description string
}

// Field describes one column of a table, physical or virtual. A field whose
// Type is FieldManyToMany carries ManyToMany and no physical column. A field
// may be both a foreign key and enum-backed; the descriptors are informative,
// not exclusive.
type Field struct {
	Name       string
	Type       FieldType
	NotNull    bool
	PrimaryKey bool
	Unique     bool
	Default    any
	ForeignKey *ForeignKey
	ManyToMany *ManyToManyField
	Enum       *EnumSpec
}

// IsManyToMany reports whether the field is a virtual relation field.
func (f Field) IsManyToMany() bool {
	return f.Type == FieldManyToMany || f.ManyToMany != nil
}

// RawDefault is a DEFAULT expression captured from engine introspection,
// already in SQL literal form. It is rendered verbatim during a rebuild so
// defaults survive reconstruction byte for byte.
type RawDefault string

// DisplayField maps a (table, field) pair to the related field whose value
// should be shown in place of the raw key, with an optional format string.
type DisplayField struct {
	Table       string
	Field       string
	TargetField string
	Format      string
}

// Row is a single record keyed by field name.
type Row map[string]any
