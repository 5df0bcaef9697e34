package schema

import "strings"

// Database is the raw structure of one database as read by an extractor.
// It is turned into an immutable Snapshot with NewSnapshot.
type Database struct {
	Name       string
	Tables     []Table
	Views      []View
	Triggers   []Trigger
	Routines   []Routine
	Unreadable []ObjectReadError
}

// Table represents a database table
type Table struct {
	Name          string
	Engine        string
	Charset       string
	Collation     string
	Comment       string
	AutoIncrement *int64
	Columns       []Column
	Indexes       []Index
	ForeignKeys   []ForeignKey
}

// Column represents a table column. GenerationExpression is set for
// generated columns; Extra then says VIRTUAL GENERATED or STORED GENERATED.
type Column struct {
	Name                 string
	Position             int
	Type                 string
	Nullable             bool
	Default              *string
	Extra                string
	GenerationExpression string
	Charset              string
	Collation            string
	Comment              string
}

// IndexColumn is one column of an index. Length is the prefix length, 0 for
// the whole column.
type IndexColumn struct {
	Name   string
	Length int
}

// Index represents a database index. The index named PRIMARY is the
// table's primary key.
type Index struct {
	Name    string
	Columns []IndexColumn
	Unique  bool
	Kind    string // BTREE, HASH, FULLTEXT, SPATIAL
}

// ForeignKey represents a foreign key constraint
type ForeignKey struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          string
	OnUpdate          string
}

// View represents a view and its defining query
type View struct {
	Name       string
	Definition string
}

// Trigger represents a row trigger
type Trigger struct {
	Name   string
	Timing string // BEFORE, AFTER
	Event  string // INSERT, UPDATE, DELETE
	Table  string
	Body   string
}

// Routine represents a stored procedure or function. Definition holds the
// full CREATE statement.
type Routine struct {
	Name       string
	Kind       string // PROCEDURE, FUNCTION
	Definition string
}

// PrimaryKeyName is the name MySQL gives every primary key.
const PrimaryKeyName = "PRIMARY"

// Object kinds used by snapshots, errors and events.
const (
	KindTable     = "TABLE"
	KindView      = "VIEW"
	KindTrigger   = "TRIGGER"
	KindProcedure = "PROCEDURE"
	KindFunction  = "FUNCTION"
)

// GeneratedStorage returns VIRTUAL or STORED for a generated column and ""
// for any other column.
func (c Column) GeneratedStorage() string {
	extra := strings.ToLower(c.Extra)
	switch {
	case strings.Contains(extra, "stored generated"):
		return "STORED"
	case strings.Contains(extra, "virtual generated"), c.GenerationExpression != "":
		return "VIRTUAL"
	default:
		return ""
	}
}

// IsPrimary reports whether the index is the primary key.
func (i Index) IsPrimary() bool {
	return i.Name == PrimaryKeyName
}

// ColumnNames returns the names of the indexed columns in order.
func (i Index) ColumnNames() []string {
	names := make([]string, len(i.Columns))
	for n, c := range i.Columns {
		names[n] = c.Name
	}
	return names
}

// Column returns the column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Index returns the index with the given name.
func (t Table) Index(name string) (Index, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// ForeignKey returns the foreign key with the given name.
func (t Table) ForeignKey(name string) (ForeignKey, bool) {
	for _, fk := range t.ForeignKeys {
		if fk.Name == name {
			return fk, true
		}
	}
	return ForeignKey{}, false
}
