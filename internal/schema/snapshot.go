package schema

import (
	"slices"
	"sort"
	"strings"
)

// Snapshot is the immutable structure of one database at comparison time.
// Lookups return copies and iteration is in lexical name order, so two
// comparisons of identical snapshots always produce identical output.
//
// Procedures and functions live in separate namespaces, as they do in
// MySQL: routines are looked up by kind and name.
type Snapshot struct {
	name       string
	tables     map[string]Table
	views      map[string]View
	triggers   map[string]Trigger
	routines   map[string]Routine // keyed by routineKey
	unreadable map[string]*ObjectReadError

	tableNames   []string
	viewNames    []string
	triggerNames []string
	routineNames map[string][]string // by kind
}

// NewSnapshot validates db and freezes it into a Snapshot. The input is
// deep-copied; later changes to db do not affect the snapshot.
func NewSnapshot(db Database) (*Snapshot, error) {
	s := &Snapshot{
		name:         db.Name,
		tables:       make(map[string]Table, len(db.Tables)),
		views:        make(map[string]View, len(db.Views)),
		triggers:     make(map[string]Trigger, len(db.Triggers)),
		routines:     make(map[string]Routine, len(db.Routines)),
		unreadable:   make(map[string]*ObjectReadError, len(db.Unreadable)),
		routineNames: map[string][]string{},
	}

	for _, t := range db.Tables {
		if t.Name == "" {
			return nil, newSnapshotError(db.Name, "", "table with empty name")
		}
		if _, dup := s.tables[t.Name]; dup {
			return nil, newSnapshotError(db.Name, t.Name, "duplicate table")
		}
		table, err := freezeTable(db.Name, t)
		if err != nil {
			return nil, err
		}
		s.tables[t.Name] = table
	}

	for _, v := range db.Views {
		if _, dup := s.views[v.Name]; dup || v.Name == "" {
			return nil, newSnapshotError(db.Name, v.Name, "duplicate or empty view name")
		}
		s.views[v.Name] = v
	}

	for _, tr := range db.Triggers {
		if _, dup := s.triggers[tr.Name]; dup || tr.Name == "" {
			return nil, newSnapshotError(db.Name, tr.Name, "duplicate or empty trigger name")
		}
		if _, ok := s.tables[tr.Table]; !ok {
			return nil, newSnapshotError(db.Name, tr.Name, "trigger on unknown table %q", tr.Table)
		}
		s.triggers[tr.Name] = tr
	}

	for _, r := range db.Routines {
		r.Kind = strings.ToUpper(r.Kind)
		if r.Kind != KindProcedure && r.Kind != KindFunction {
			return nil, newSnapshotError(db.Name, r.Name, "unknown routine kind %q", r.Kind)
		}
		key := routineKey(r.Kind, r.Name)
		if _, dup := s.routines[key]; dup || r.Name == "" {
			return nil, newSnapshotError(db.Name, r.Name, "duplicate or empty %s name", strings.ToLower(r.Kind))
		}
		s.routines[key] = r
		s.routineNames[r.Kind] = append(s.routineNames[r.Kind], r.Name)
	}

	for i := range db.Unreadable {
		u := db.Unreadable[i]
		group := objectGroup(u.Kind)
		if group == "" {
			return nil, newSnapshotError(db.Name, u.Name, "unreadable object of unsupported kind %q", u.Kind)
		}
		s.unreadable[group+"/"+u.Name] = &u
	}

	s.tableNames = sortedKeys(s.tables)
	s.viewNames = sortedKeys(s.views)
	s.triggerNames = sortedKeys(s.triggers)
	for _, names := range s.routineNames {
		sort.Strings(names)
	}

	return s, nil
}

// freezeTable checks the table's internal references and returns a copy
// that shares no slices with the input.
func freezeTable(db string, t Table) (Table, error) {
	out := t
	if t.AutoIncrement != nil {
		v := *t.AutoIncrement
		out.AutoIncrement = &v
	}

	out.Columns = make([]Column, len(t.Columns))
	copy(out.Columns, t.Columns)
	numbered := true
	for _, c := range out.Columns {
		if c.Position != 0 {
			numbered = false
			break
		}
	}
	if numbered {
		for i := range out.Columns {
			out.Columns[i].Position = i + 1
		}
	}
	sort.SliceStable(out.Columns, func(i, j int) bool {
		return out.Columns[i].Position < out.Columns[j].Position
	})

	columns := make(map[string]struct{}, len(out.Columns))
	for i, c := range out.Columns {
		if c.Position != i+1 {
			return Table{}, newSnapshotError(db, t.Name, "column %s has position %d, want %d", c.Name, c.Position, i+1)
		}
		if _, dup := columns[c.Name]; dup || c.Name == "" {
			return Table{}, newSnapshotError(db, t.Name, "duplicate or empty column name %q", c.Name)
		}
		columns[c.Name] = struct{}{}
		if c.Default != nil {
			v := *c.Default
			out.Columns[i].Default = &v
		}
	}

	out.Indexes = make([]Index, len(t.Indexes))
	indexes := make(map[string]struct{}, len(t.Indexes))
	for i, idx := range t.Indexes {
		if _, dup := indexes[idx.Name]; dup || idx.Name == "" {
			return Table{}, newSnapshotError(db, t.Name, "duplicate or empty index name %q", idx.Name)
		}
		indexes[idx.Name] = struct{}{}
		if len(idx.Columns) == 0 {
			return Table{}, newSnapshotError(db, t.Name, "index %s has no columns", idx.Name)
		}
		for _, c := range idx.Columns {
			if _, ok := columns[c.Name]; !ok {
				return Table{}, newSnapshotError(db, t.Name, "index %s references unknown column %s", idx.Name, c.Name)
			}
		}
		idx.Columns = slices.Clone(idx.Columns)
		out.Indexes[i] = idx
	}
	sort.Slice(out.Indexes, func(i, j int) bool {
		return indexLess(out.Indexes[i], out.Indexes[j])
	})

	out.ForeignKeys = make([]ForeignKey, len(t.ForeignKeys))
	fks := make(map[string]struct{}, len(t.ForeignKeys))
	for i, fk := range t.ForeignKeys {
		if _, dup := fks[fk.Name]; dup || fk.Name == "" {
			return Table{}, newSnapshotError(db, t.Name, "duplicate or empty foreign key name %q", fk.Name)
		}
		fks[fk.Name] = struct{}{}
		if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.ReferencedColumns) {
			return Table{}, newSnapshotError(db, t.Name, "foreign key %s has %d columns referencing %d", fk.Name, len(fk.Columns), len(fk.ReferencedColumns))
		}
		for _, c := range fk.Columns {
			if _, ok := columns[c]; !ok {
				return Table{}, newSnapshotError(db, t.Name, "foreign key %s references unknown column %s", fk.Name, c)
			}
		}
		fk.Columns = slices.Clone(fk.Columns)
		fk.ReferencedColumns = slices.Clone(fk.ReferencedColumns)
		out.ForeignKeys[i] = fk
	}
	sort.Slice(out.ForeignKeys, func(i, j int) bool {
		return out.ForeignKeys[i].Name < out.ForeignKeys[j].Name
	})

	return out, nil
}

// indexLess orders the primary key first, then by name.
func indexLess(a, b Index) bool {
	if a.IsPrimary() != b.IsPrimary() {
		return a.IsPrimary()
	}
	return a.Name < b.Name
}

// Name returns the database name.
func (s *Snapshot) Name() string { return s.name }

// Table returns a copy of the named table.
func (s *Snapshot) Table(name string) (Table, bool) {
	t, ok := s.tables[name]
	if !ok {
		return Table{}, false
	}
	return cloneTable(t), true
}

// View returns the named view.
func (s *Snapshot) View(name string) (View, bool) {
	v, ok := s.views[name]
	return v, ok
}

// Trigger returns the named trigger.
func (s *Snapshot) Trigger(name string) (Trigger, bool) {
	t, ok := s.triggers[name]
	return t, ok
}

// Routine returns the routine of the given kind (PROCEDURE or FUNCTION)
// and name.
func (s *Snapshot) Routine(kind, name string) (Routine, bool) {
	r, ok := s.routines[routineKey(strings.ToUpper(kind), name)]
	return r, ok
}

// TableNames returns table names in lexical order.
func (s *Snapshot) TableNames() []string { return slices.Clone(s.tableNames) }

// ViewNames returns view names in lexical order.
func (s *Snapshot) ViewNames() []string { return slices.Clone(s.viewNames) }

// TriggerNames returns trigger names in lexical order.
func (s *Snapshot) TriggerNames() []string { return slices.Clone(s.triggerNames) }

// RoutineNames returns the names of the routines of kind in lexical order.
func (s *Snapshot) RoutineNames(kind string) []string {
	return slices.Clone(s.routineNames[strings.ToUpper(kind)])
}

// Unreadable returns the read error recorded for an object, or nil.
func (s *Snapshot) Unreadable(kind, name string) *ObjectReadError {
	group := objectGroup(kind)
	if group == "" {
		return nil
	}
	return s.unreadable[group+"/"+name]
}

// UnreadableNames lists, in lexical order, the objects of kind's namespace
// recorded as unreadable.
func (s *Snapshot) UnreadableNames(kind string) []string {
	group := objectGroup(kind)
	var names []string
	for _, u := range s.unreadable {
		if objectGroup(u.Kind) == group && group != "" {
			names = append(names, u.Name)
		}
	}
	sort.Strings(names)
	return names
}

func objectGroup(kind string) string {
	switch strings.ToUpper(kind) {
	case KindView:
		return KindView
	case KindTrigger:
		return KindTrigger
	case KindProcedure:
		return KindProcedure
	case KindFunction:
		return KindFunction
	default:
		return ""
	}
}

func routineKey(kind, name string) string {
	return kind + "/" + name
}

func cloneTable(t Table) Table {
	out := t
	if t.AutoIncrement != nil {
		v := *t.AutoIncrement
		out.AutoIncrement = &v
	}
	out.Columns = slices.Clone(t.Columns)
	for i, c := range out.Columns {
		if c.Default != nil {
			v := *c.Default
			out.Columns[i].Default = &v
		}
	}
	out.Indexes = make([]Index, len(t.Indexes))
	for i, idx := range t.Indexes {
		idx.Columns = slices.Clone(idx.Columns)
		out.Indexes[i] = idx
	}
	out.ForeignKeys = make([]ForeignKey, len(t.ForeignKeys))
	for i, fk := range t.ForeignKeys {
		fk.Columns = slices.Clone(fk.Columns)
		fk.ReferencedColumns = slices.Clone(fk.ReferencedColumns)
		out.ForeignKeys[i] = fk
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
