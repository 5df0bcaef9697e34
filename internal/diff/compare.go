package diff

import (
	"regexp"
	"slices"
	"strings"

	"github.com/michael-liumh/schemasync-tables/internal/schema"
)

var (
	reSpaces       = regexp.MustCompile(`\s+`)
	reDisplayWidth = regexp.MustCompile(`\b(smallint|mediumint|int|integer|bigint)\(\d+\)`)
	reTinyintWidth = regexp.MustCompile(`\btinyint\((\d+)\)`)
)

// NormalizeType lower-cases a column type, collapses whitespace and drops
// integer display widths, which MySQL 8.0.19+ no longer reports.
// tinyint(1) keeps its width.
func NormalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	t = reSpaces.ReplaceAllString(t, " ")
	t = reTinyintWidth.ReplaceAllStringFunc(t, func(m string) string {
		if m == "tinyint(1)" {
			return m
		}
		return "tinyint"
	})
	return reDisplayWidth.ReplaceAllString(t, "$1")
}

// NormalizeAction maps the referential action spellings that behave the same
// in InnoDB to one value.
func NormalizeAction(a string) string {
	a = strings.ToUpper(strings.TrimSpace(a))
	if a == "" || a == "NO ACTION" {
		return "RESTRICT"
	}
	return a
}

// NormalizeIndexKind upper-cases the kind, treating an empty kind as BTREE.
func NormalizeIndexKind(k string) string {
	k = strings.ToUpper(strings.TrimSpace(k))
	if k == "" {
		return "BTREE"
	}
	return k
}

// NormalizeDefinition collapses whitespace and trailing semicolons so that
// reformatted definitions compare equal.
func NormalizeDefinition(d string) string {
	d = strings.TrimSpace(d)
	d = strings.TrimRight(d, "; \t\r\n")
	return reSpaces.ReplaceAllString(d, " ")
}

// NormalizeExtra drops the DEFAULT_GENERATED marker MySQL 8 adds to
// expression defaults.
func NormalizeExtra(e string) string {
	e = strings.ToLower(strings.TrimSpace(e))
	e = strings.ReplaceAll(e, "default_generated", "")
	return strings.TrimSpace(reSpaces.ReplaceAllString(e, " "))
}

// ColumnsEqual compares every tracked column attribute except position.
// Comments take part only when withComments is set.
func ColumnsEqual(a, b schema.Column, withComments bool) bool {
	if NormalizeType(a.Type) != NormalizeType(b.Type) ||
		a.Nullable != b.Nullable ||
		NormalizeExtra(a.Extra) != NormalizeExtra(b.Extra) ||
		NormalizeDefinition(a.GenerationExpression) != NormalizeDefinition(b.GenerationExpression) ||
		!strings.EqualFold(a.Charset, b.Charset) ||
		!strings.EqualFold(a.Collation, b.Collation) {
		return false
	}
	if (a.Default == nil) != (b.Default == nil) {
		return false
	}
	if a.Default != nil && *a.Default != *b.Default {
		return false
	}
	return !withComments || a.Comment == b.Comment
}

// IndexesEqual compares column lists, uniqueness and kind.
func IndexesEqual(a, b schema.Index) bool {
	return a.Unique == b.Unique &&
		NormalizeIndexKind(a.Kind) == NormalizeIndexKind(b.Kind) &&
		slices.Equal(a.Columns, b.Columns)
}

// ForeignKeysEqual compares columns, referenced table and columns, and
// actions.
func ForeignKeysEqual(a, b schema.ForeignKey) bool {
	return slices.Equal(a.Columns, b.Columns) &&
		a.ReferencedTable == b.ReferencedTable &&
		slices.Equal(a.ReferencedColumns, b.ReferencedColumns) &&
		NormalizeAction(a.OnDelete) == NormalizeAction(b.OnDelete) &&
		NormalizeAction(a.OnUpdate) == NormalizeAction(b.OnUpdate)
}

// ViewsEqual compares the defining queries.
func ViewsEqual(a, b schema.View) bool {
	return NormalizeDefinition(a.Definition) == NormalizeDefinition(b.Definition)
}

// TriggersEqual compares timing, event, owning table and body.
func TriggersEqual(a, b schema.Trigger) bool {
	return strings.EqualFold(a.Timing, b.Timing) &&
		strings.EqualFold(a.Event, b.Event) &&
		a.Table == b.Table &&
		NormalizeDefinition(a.Body) == NormalizeDefinition(b.Body)
}

// RoutinesEqual compares kind and full definition.
func RoutinesEqual(a, b schema.Routine) bool {
	return strings.EqualFold(a.Kind, b.Kind) &&
		NormalizeDefinition(a.Definition) == NormalizeDefinition(b.Definition)
}

// Columns compares two ordered column lists.
func Columns(source, target []schema.Column, withComments bool) Result[schema.Column] {
	return Compare(source, target,
		func(c schema.Column) string { return c.Name },
		func(a, b schema.Column) bool { return ColumnsEqual(a, b, withComments) })
}

// Indexes compares two index sets.
func Indexes(source, target []schema.Index) Result[schema.Index] {
	return Compare(source, target, func(i schema.Index) string { return i.Name }, IndexesEqual)
}

// ForeignKeys compares two foreign key sets.
func ForeignKeys(source, target []schema.ForeignKey) Result[schema.ForeignKey] {
	return Compare(source, target, func(fk schema.ForeignKey) string { return fk.Name }, ForeignKeysEqual)
}
