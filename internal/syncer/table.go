package syncer

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/michael-liumh/schemasync-tables/internal/diff"
	"github.com/michael-liumh/schemasync-tables/internal/schema"
)

// TableOptions controls what SyncTable compares and emits.
type TableOptions struct {
	SyncAutoIncrement bool
	SyncComments      bool
	// ExistingOnly suppresses CREATE TABLE and DROP TABLE: only tables
	// present on both sides are compared.
	ExistingOnly bool
}

// SyncTable returns the forward and backward DDL blocks that turn target
// into source. Either side may be nil; both empty strings mean no change.
func SyncTable(source, target *schema.Table, opts TableOptions) (forward, backward string) {
	switch {
	case source == nil && target == nil:
		return "", ""
	case target == nil:
		if opts.ExistingOnly {
			return "", ""
		}
		return CreateTable(*source, opts.SyncComments, opts.SyncAutoIncrement), DropTable(source.Name)
	case source == nil:
		if opts.ExistingOnly {
			return "", ""
		}
		return DropTable(target.Name), CreateTable(*target, true, opts.SyncAutoIncrement)
	}

	live := make(map[string]string, len(target.Columns))
	for _, c := range target.Columns {
		live[c.Name] = c.Comment
	}

	fwd := planAlter(*source, *target, opts, live)
	bwd := planAlter(*target, *source, opts, live)
	return fwd.render(false), bwd.render(true)
}

// alterPlan holds the statements that move a table from its current
// definition to the desired one, grouped by execution phase.
type alterPlan struct {
	dropForeignKeys []string
	dropIndexes     []string
	dropColumns     []string
	addColumns      []string
	modifyColumns   []string
	addIndexes      []string
	lateDropIndexes []string
	addForeignKeys  []string
	options         string
}

// render joins the phases in execution order. The backward block applies
// the table options first.
func (p alterPlan) render(optionsFirst bool) string {
	var stmts []string
	if optionsFirst && p.options != "" {
		stmts = append(stmts, p.options)
	}
	stmts = append(stmts, p.dropForeignKeys...)
	stmts = append(stmts, p.dropIndexes...)
	stmts = append(stmts, p.dropColumns...)
	stmts = append(stmts, p.addColumns...)
	stmts = append(stmts, p.modifyColumns...)
	stmts = append(stmts, p.addIndexes...)
	stmts = append(stmts, p.lateDropIndexes...)
	stmts = append(stmts, p.addForeignKeys...)
	if !optionsFirst && p.options != "" {
		stmts = append(stmts, p.options)
	}
	return strings.Join(stmts, "\n")
}

// planAlter diffs desired against current. live maps column names of the
// original target to their comments; it supplies column comments when
// comments are not synchronised so that no statement changes one.
func planAlter(desired, current schema.Table, opts TableOptions, live map[string]string) alterPlan {
	var p alterPlan
	table := current.Name

	cols := diff.Columns(desired.Columns, current.Columns, opts.SyncComments)
	idxs := diff.Indexes(desired.Indexes, current.Indexes)
	fks := diff.ForeignKeys(desired.ForeignKeys, current.ForeignKeys)

	modifiedCols := make(map[string]bool, len(cols.Modified))
	for _, ch := range cols.Modified {
		modifiedCols[ch.Name] = true
	}

	// Foreign keys: removed and modified ones are dropped; unchanged ones are
	// redefined when a local column changes underneath them.
	dropFK := make(map[string]schema.ForeignKey)
	addFK := make(map[string]schema.ForeignKey)
	for _, fk := range fks.Removed {
		dropFK[fk.Name] = fk
	}
	for _, fk := range fks.Added {
		addFK[fk.Name] = fk
	}
	for _, ch := range fks.Modified {
		dropFK[ch.Name] = ch.Target
		addFK[ch.Name] = ch.Source
	}
	kept := make(map[string]diff.Change[schema.ForeignKey])
	for _, ch := range fks.Unchanged {
		if touchesAny(ch.Target.Columns, modifiedCols) {
			dropFK[ch.Name] = ch.Target
			addFK[ch.Name] = ch.Source
			continue
		}
		kept[ch.Name] = ch
	}

	var stable []schema.Index
	for _, ch := range idxs.Unchanged {
		stable = append(stable, ch.Target)
	}

	// A redefined index that a kept foreign key relies on cannot be dropped
	// while the key exists, so the key is redefined too.
	var dropIdx, addIdx, lateDropIdx []schema.Index
	for _, ch := range idxs.Modified {
		for _, name := range sortedFKNames(kept) {
			fk := kept[name].Target
			if supports(ch.Target, fk) && !coveredBy(stable, fk) {
				dropFK[name] = fk
				addFK[name] = kept[name].Source
				delete(kept, name)
			}
		}
		dropIdx = append(dropIdx, ch.Target)
		addIdx = append(addIdx, ch.Source)
	}

	// A removed index still needed by a kept key is dropped once the new
	// indexes exist.
	for _, idx := range idxs.Removed {
		needed := false
		for _, ch := range kept {
			if supports(idx, ch.Target) && !coveredBy(stable, ch.Target) {
				needed = true
				break
			}
		}
		if needed {
			lateDropIdx = append(lateDropIdx, idx)
		} else {
			dropIdx = append(dropIdx, idx)
		}
	}
	addIdx = append(addIdx, idxs.Added...)

	for _, idx := range sortIndexes(dropIdx) {
		p.dropIndexes = append(p.dropIndexes, dropIndex(table, idx))
	}
	for _, idx := range sortIndexes(addIdx) {
		p.addIndexes = append(p.addIndexes, addIndex(table, idx))
	}
	for _, idx := range sortIndexes(lateDropIdx) {
		p.lateDropIndexes = append(p.lateDropIndexes, dropIndex(table, idx))
	}

	for _, name := range sortedFKNames(dropFK) {
		p.dropForeignKeys = append(p.dropForeignKeys, dropForeignKey(table, dropFK[name]))
	}
	for _, name := range sortedFKNames(addFK) {
		p.addForeignKeys = append(p.addForeignKeys, addForeignKey(table, addFK[name]))
	}

	p.planColumns(table, desired, current, cols, modifiedCols, opts, live)
	p.options = tableOptions(desired, current, opts)
	return p
}

// planColumns emits drops, then adds in desired order, then modifications.
// It tracks the resulting column order so that every column ends up after
// its desired predecessor.
func (p *alterPlan) planColumns(table string, desired, current schema.Table, cols diff.Result[schema.Column],
	modified map[string]bool, opts TableOptions, live map[string]string) {
	removed := make(map[string]bool, len(cols.Removed))
	for _, c := range cols.Removed {
		removed[c.Name] = true
	}
	added := make(map[string]bool, len(cols.Added))
	for _, c := range cols.Added {
		added[c.Name] = true
	}

	comment := func(c schema.Column) string {
		if opts.SyncComments {
			return c.Comment
		}
		return live[c.Name]
	}

	var order []string
	for _, c := range current.Columns {
		if removed[c.Name] {
			p.dropColumns = append(p.dropColumns, dropColumn(table, c.Name))
			continue
		}
		order = append(order, c.Name)
	}

	prev := make(map[string]string, len(desired.Columns))
	for i, c := range desired.Columns {
		if i > 0 {
			prev[c.Name] = desired.Columns[i-1].Name
		}
	}

	for _, c := range desired.Columns {
		if !added[c.Name] {
			continue
		}
		p.addColumns = append(p.addColumns, addColumn(table, c, comment(c), prev[c.Name]))
		order = placeAfter(order, c.Name, prev[c.Name])
	}

	for _, c := range desired.Columns {
		move := predecessor(order, c.Name) != prev[c.Name]
		if move {
			order = placeAfter(order, c.Name, prev[c.Name])
		}
		if move || modified[c.Name] {
			p.modifyColumns = append(p.modifyColumns, modifyColumn(table, c, comment(c), move, prev[c.Name]))
		}
	}
}

func tableOptions(desired, current schema.Table, opts TableOptions) string {
	var parts []string
	if desired.Engine != "" && !strings.EqualFold(desired.Engine, current.Engine) {
		parts = append(parts, "ENGINE="+desired.Engine)
	}
	if opts.SyncAutoIncrement && desired.AutoIncrement != nil &&
		(current.AutoIncrement == nil || *desired.AutoIncrement != *current.AutoIncrement) {
		parts = append(parts, fmt.Sprintf("AUTO_INCREMENT=%d", *desired.AutoIncrement))
	}
	if desired.Charset != "" && !strings.EqualFold(desired.Charset, current.Charset) {
		parts = append(parts, "DEFAULT CHARSET="+desired.Charset)
	}
	if desired.Collation != "" && !strings.EqualFold(desired.Collation, current.Collation) {
		parts = append(parts, "COLLATE="+desired.Collation)
	}
	if opts.SyncComments && desired.Comment != current.Comment {
		parts = append(parts, "COMMENT="+QuoteString(desired.Comment))
	}
	if len(parts) == 0 {
		return ""
	}
	return alter(current.Name, strings.Join(parts, " "))
}

// supports reports whether idx can serve fk: the key's columns form a
// leftmost prefix of the index.
func supports(idx schema.Index, fk schema.ForeignKey) bool {
	names := idx.ColumnNames()
	if len(fk.Columns) > len(names) {
		return false
	}
	return slices.Equal(names[:len(fk.Columns)], fk.Columns)
}

func coveredBy(indexes []schema.Index, fk schema.ForeignKey) bool {
	for _, idx := range indexes {
		if supports(idx, fk) {
			return true
		}
	}
	return false
}

func touchesAny(columns []string, set map[string]bool) bool {
	for _, c := range columns {
		if set[c] {
			return true
		}
	}
	return false
}

func predecessor(order []string, name string) string {
	i := slices.Index(order, name)
	if i <= 0 {
		return ""
	}
	return order[i-1]
}

// placeAfter moves (or inserts) name directly after after; an empty after
// places it first.
func placeAfter(order []string, name, after string) []string {
	if i := slices.Index(order, name); i >= 0 {
		order = slices.Delete(order, i, i+1)
	}
	at := 0
	if after != "" {
		at = slices.Index(order, after) + 1
	}
	return slices.Insert(order, at, name)
}

func sortedFKNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// sortIndexes orders the primary key first, then by name.
func sortIndexes(indexes []schema.Index) []schema.Index {
	sort.Slice(indexes, func(i, j int) bool {
		if indexes[i].IsPrimary() != indexes[j].IsPrimary() {
			return indexes[i].IsPrimary()
		}
		return indexes[i].Name < indexes[j].Name
	})
	return indexes
}
