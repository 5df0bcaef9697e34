package syncer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/michael-liumh/schemasync-tables/internal/diff"
	"github.com/michael-liumh/schemasync-tables/internal/schema"
)

// Statements emitted around the table blocks of a run.
const (
	ForeignKeyChecksOff = "SET FOREIGN_KEY_CHECKS = 0;"
	ForeignKeyChecksOn  = "SET FOREIGN_KEY_CHECKS = 1;"
)

// QuoteIdentifier wraps a name in backticks, doubling embedded backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteString renders a MySQL string literal.
func QuoteString(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, "'", `\'`)
	return "'" + value + "'"
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdentifier(n)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

// columnDefinition renders "`name` type [CHARACTER SET ..] [COLLATE ..]
// [GENERATED ALWAYS AS (..) VIRTUAL|STORED] NULL|NOT NULL [DEFAULT ..]
// [extra] [COMMENT ..]" using comment as the column comment. Generated
// columns never get a default.
func columnDefinition(c schema.Column, comment string) string {
	parts := []string{QuoteIdentifier(c.Name), strings.TrimSpace(c.Type)}
	if c.Charset != "" {
		parts = append(parts, "CHARACTER SET", c.Charset)
	}
	if c.Collation != "" {
		parts = append(parts, "COLLATE", c.Collation)
	}
	storage := c.GeneratedStorage()
	if storage != "" {
		parts = append(parts, "GENERATED ALWAYS AS", "("+strings.TrimSpace(c.GenerationExpression)+")", storage)
	}
	if c.Nullable {
		parts = append(parts, "NULL")
	} else {
		parts = append(parts, "NOT NULL")
	}
	if c.Default != nil && storage == "" {
		parts = append(parts, "DEFAULT", formatDefault(c))
	}
	if extra := renderExtra(c.Extra); extra != "" {
		parts = append(parts, extra)
	}
	if comment != "" {
		parts = append(parts, "COMMENT", QuoteString(comment))
	}
	return strings.Join(parts, " ")
}

var timestampKeywords = []string{
	"CURRENT_TIMESTAMP", "CURRENT_DATE", "CURRENT_TIME", "LOCALTIME",
	"LOCALTIMESTAMP", "NOW()", "NULL",
}

func formatDefault(c schema.Column) string {
	v := *c.Default
	upper := strings.ToUpper(strings.TrimSpace(v))
	for _, kw := range timestampKeywords {
		if upper == kw || strings.HasPrefix(upper, strings.TrimSuffix(kw, "()")+"(") {
			return upper
		}
	}
	if strings.Contains(strings.ToLower(c.Extra), "default_generated") {
		return "(" + v + ")"
	}
	if isNumericType(c.Type) && looksNumeric(v) {
		return v
	}
	if strings.HasPrefix(v, "b'") || strings.HasPrefix(v, "0x") {
		return v
	}
	return QuoteString(v)
}

var reGeneratedExtra = regexp.MustCompile(`\b(virtual|stored) generated\b`)

// renderExtra returns the EXTRA attributes that belong in a column
// definition. The generated-column marker is rendered by columnDefinition.
func renderExtra(extra string) string {
	e := diff.NormalizeExtra(extra)
	e = strings.TrimSpace(reGeneratedExtra.ReplaceAllString(e, ""))
	if e == "" {
		return ""
	}
	return strings.ToUpper(e)
}

func isNumericType(t string) bool {
	t = diff.NormalizeType(t)
	for _, prefix := range []string{"tinyint", "smallint", "mediumint", "int", "integer", "bigint", "decimal", "numeric", "float", "double", "real", "bit", "year"} {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

func looksNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func indexColumns(idx schema.Index) string {
	quoted := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		quoted[i] = QuoteIdentifier(c.Name)
		if c.Length > 0 {
			quoted[i] += fmt.Sprintf("(%d)", c.Length)
		}
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

// indexDefinition renders the index the way it appears inside CREATE TABLE
// (keyword "KEY") or after ADD (keyword "INDEX").
func indexDefinition(idx schema.Index, keyword string) string {
	if idx.IsPrimary() {
		return "PRIMARY KEY " + indexColumns(idx)
	}
	kind := diff.NormalizeIndexKind(idx.Kind)
	var b strings.Builder
	switch {
	case kind == "FULLTEXT" || kind == "SPATIAL":
		b.WriteString(kind + " ")
	case idx.Unique:
		b.WriteString("UNIQUE ")
	}
	b.WriteString(keyword + " " + QuoteIdentifier(idx.Name) + " " + indexColumns(idx))
	if kind == "BTREE" || kind == "HASH" {
		b.WriteString(" USING " + kind)
	}
	return b.String()
}

func foreignKeyDefinition(fk schema.ForeignKey) string {
	var b strings.Builder
	b.WriteString("CONSTRAINT ")
	b.WriteString(QuoteIdentifier(fk.Name))
	b.WriteString(" FOREIGN KEY ")
	b.WriteString(quoteList(fk.Columns))
	b.WriteString(" REFERENCES ")
	b.WriteString(QuoteIdentifier(fk.ReferencedTable))
	b.WriteString(" ")
	b.WriteString(quoteList(fk.ReferencedColumns))
	if del := strings.ToUpper(strings.TrimSpace(fk.OnDelete)); del != "" {
		b.WriteString(" ON DELETE " + del)
	}
	if upd := strings.ToUpper(strings.TrimSpace(fk.OnUpdate)); upd != "" {
		b.WriteString(" ON UPDATE " + upd)
	}
	return b.String()
}

// CreateTable renders a full CREATE TABLE statement for t. Comments and the
// AUTO_INCREMENT counter are included only when asked for.
func CreateTable(t schema.Table, withComments, withAutoIncrement bool) string {
	var lines []string
	for _, c := range t.Columns {
		comment := ""
		if withComments {
			comment = c.Comment
		}
		lines = append(lines, "  "+columnDefinition(c, comment))
	}
	for _, idx := range t.Indexes {
		lines = append(lines, "  "+indexDefinition(idx, "KEY"))
	}
	for _, fk := range t.ForeignKeys {
		lines = append(lines, "  "+foreignKeyDefinition(fk))
	}

	var opts []string
	if t.Engine != "" {
		opts = append(opts, "ENGINE="+t.Engine)
	}
	if withAutoIncrement && t.AutoIncrement != nil {
		opts = append(opts, fmt.Sprintf("AUTO_INCREMENT=%d", *t.AutoIncrement))
	}
	if t.Charset != "" {
		opts = append(opts, "DEFAULT CHARSET="+t.Charset)
	}
	if t.Collation != "" {
		opts = append(opts, "COLLATE="+t.Collation)
	}
	if withComments && t.Comment != "" {
		opts = append(opts, "COMMENT="+QuoteString(t.Comment))
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (\n%s\n)", QuoteIdentifier(t.Name), strings.Join(lines, ",\n"))
	if len(opts) > 0 {
		stmt += " " + strings.Join(opts, " ")
	}
	return stmt + ";"
}

// DropTable renders DROP TABLE for name.
func DropTable(name string) string {
	return fmt.Sprintf("DROP TABLE %s;", QuoteIdentifier(name))
}

func alter(table, clause string) string {
	return fmt.Sprintf("ALTER TABLE %s %s;", QuoteIdentifier(table), clause)
}

func dropForeignKey(table string, fk schema.ForeignKey) string {
	return alter(table, "DROP FOREIGN KEY "+QuoteIdentifier(fk.Name))
}

func addForeignKey(table string, fk schema.ForeignKey) string {
	return alter(table, "ADD "+foreignKeyDefinition(fk))
}

func dropIndex(table string, idx schema.Index) string {
	if idx.IsPrimary() {
		return alter(table, "DROP PRIMARY KEY")
	}
	return alter(table, "DROP INDEX "+QuoteIdentifier(idx.Name))
}

func addIndex(table string, idx schema.Index) string {
	return alter(table, "ADD "+indexDefinition(idx, "INDEX"))
}

func dropColumn(table, column string) string {
	return alter(table, "DROP COLUMN "+QuoteIdentifier(column))
}

// position renders the placement clause for a column whose predecessor is
// after; an empty predecessor means the first position.
func position(after string) string {
	if after == "" {
		return "FIRST"
	}
	return "AFTER " + QuoteIdentifier(after)
}

func addColumn(table string, c schema.Column, comment, after string) string {
	return alter(table, "ADD COLUMN "+columnDefinition(c, comment)+" "+position(after))
}

func modifyColumn(table string, c schema.Column, comment string, move bool, after string) string {
	clause := "MODIFY COLUMN " + columnDefinition(c, comment)
	if move {
		clause += " " + position(after)
	}
	return alter(table, clause)
}
