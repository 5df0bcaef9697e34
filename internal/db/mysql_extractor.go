package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/michael-liumh/schemasync-tables/internal/schema"
	"github.com/michael-liumh/schemasync-tables/internal/version"
)

var reDefiner = regexp.MustCompile("(?i)\\s+DEFINER\\s*=\\s*(`[^`]*`|'[^']*'|[^\\s@]+)@(`[^`]*`|'[^']*'|[^\\s]+)")

// MySQLExtractor handles schema extraction from MySQL
type MySQLExtractor struct {
	client     *MySQLClient
	schemaName string
}

// NewMySQLExtractor creates a new MySQL schema extractor
func NewMySQLExtractor(client *MySQLClient, schemaName string) *MySQLExtractor {
	return &MySQLExtractor{
		client:     client,
		schemaName: schemaName,
	}
}

// ExtractSnapshot reads the structure of the whole schema. Views and
// routines that cannot be read are recorded as unreadable instead of
// failing the extraction.
func (e *MySQLExtractor) ExtractSnapshot(ctx context.Context) (*schema.Snapshot, error) {
	database, err := e.ExtractDatabase(ctx)
	if err != nil {
		return nil, err
	}
	return schema.NewSnapshot(*database)
}

// Snapshot extracts the database the client is connected to.
func (c *MySQLClient) Snapshot(ctx context.Context) (*schema.Snapshot, error) {
	return NewMySQLExtractor(c, c.target.Database).ExtractSnapshot(ctx)
}

// ExtractDatabase reads the raw structure of the schema.
func (e *MySQLExtractor) ExtractDatabase(ctx context.Context) (*schema.Database, error) {
	database := &schema.Database{Name: e.schemaName}

	tables, order, err := e.extractTables(ctx)
	if err != nil {
		return nil, e.wrap("tables", err)
	}
	if err := e.extractColumns(ctx, tables); err != nil {
		return nil, e.wrap("columns", err)
	}
	if err := e.extractIndexes(ctx, tables); err != nil {
		return nil, e.wrap("indexes", err)
	}
	if err := e.extractForeignKeys(ctx, tables); err != nil {
		return nil, e.wrap("foreign keys", err)
	}
	for _, name := range order {
		database.Tables = append(database.Tables, *tables[name])
	}

	if err := e.extractViews(ctx, database); err != nil {
		return nil, e.wrap("views", err)
	}
	if err := e.extractTriggers(ctx, database); err != nil {
		return nil, e.wrap("triggers", err)
	}
	if err := e.extractRoutines(ctx, database); err != nil {
		return nil, e.wrap("routines", err)
	}

	return database, nil
}

func (e *MySQLExtractor) wrap(what string, err error) error {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	return e.client.target.WithDatabase(e.schemaName).connectionError(fmt.Errorf("failed to extract %s: %w", what, err))
}

func (e *MySQLExtractor) db() *sql.DB {
	return e.client.db
}

// extractTables reads the base tables and their options
func (e *MySQLExtractor) extractTables(ctx context.Context) (map[string]*schema.Table, []string, error) {
	query := `
		SELECT
			t.table_name,
			COALESCE(t.engine, ''),
			COALESCE(ccsa.character_set_name, ''),
			COALESCE(t.table_collation, ''),
			COALESCE(t.table_comment, ''),
			t.auto_increment
		FROM information_schema.tables t
		LEFT JOIN information_schema.collation_character_set_applicability ccsa
			ON ccsa.collation_name = t.table_collation
		WHERE t.table_schema = ? AND t.table_type = 'BASE TABLE'
		ORDER BY t.table_name
	`

	rows, err := e.db().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	tables := make(map[string]*schema.Table)
	var order []string
	for rows.Next() {
		var t schema.Table
		var autoInc sql.NullInt64
		if err := rows.Scan(&t.Name, &t.Engine, &t.Charset, &t.Collation, &t.Comment, &autoInc); err != nil {
			return nil, nil, err
		}
		if autoInc.Valid {
			v := autoInc.Int64
			t.AutoIncrement = &v
		}
		tables[t.Name] = &t
		order = append(order, t.Name)
	}

	return tables, order, rows.Err()
}

// extractColumns reads the columns of every table in one pass
func (e *MySQLExtractor) extractColumns(ctx context.Context, tables map[string]*schema.Table) error {
	generation, err := e.generationExpression(ctx)
	if err != nil {
		return err
	}
	query := `
		SELECT
			c.table_name,
			c.column_name,
			c.ordinal_position,
			c.column_type,
			c.is_nullable,
			c.column_default,
			COALESCE(c.extra, ''),
			` + generation + `,
			COALESCE(c.character_set_name, ''),
			COALESCE(c.collation_name, ''),
			COALESCE(c.column_comment, '')
		FROM information_schema.columns c
		WHERE c.table_schema = ?
		ORDER BY c.table_name, c.ordinal_position
	`

	rows, err := e.db().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, nullable string
		var col schema.Column
		var defaultVal sql.NullString

		if err := rows.Scan(&tableName, &col.Name, &col.Position, &col.Type, &nullable,
			&defaultVal, &col.Extra, &col.GenerationExpression, &col.Charset, &col.Collation, &col.Comment); err != nil {
			return err
		}

		// information_schema.columns also lists view columns
		t, ok := tables[tableName]
		if !ok {
			continue
		}
		col.Nullable = nullable == "YES"
		if defaultVal.Valid {
			col.Default = &defaultVal.String
		}
		t.Columns = append(t.Columns, col)
	}

	return rows.Err()
}

// generationExpression returns the select expression for the generation
// expression column, which servers before 5.7.6 do not have.
func (e *MySQLExtractor) generationExpression(ctx context.Context) (string, error) {
	v, err := e.client.Version(ctx)
	if err != nil {
		return "", err
	}
	if version.Compare(v, "5.7.6") < 0 {
		return "''", nil
	}
	return "COALESCE(c.generation_expression, '')", nil
}

// extractIndexes reads every index, including the primary key. Indexes over
// expressions are left out.
func (e *MySQLExtractor) extractIndexes(ctx context.Context, tables map[string]*schema.Table) error {
	query := `
		SELECT
			s.table_name,
			s.index_name,
			s.non_unique,
			s.column_name,
			s.sub_part,
			COALESCE(s.index_type, '')
		FROM information_schema.statistics s
		WHERE s.table_schema = ?
		ORDER BY s.table_name, s.index_name, s.seq_in_index
	`

	rows, err := e.db().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	type key struct{ table, index string }
	indexes := make(map[key]*schema.Index)
	var order []key
	skip := make(map[key]bool)

	for rows.Next() {
		var k key
		var nonUnique int
		var column sql.NullString
		var subPart sql.NullInt64
		var kind string

		if err := rows.Scan(&k.table, &k.index, &nonUnique, &column, &subPart, &kind); err != nil {
			return err
		}
		if !column.Valid {
			skip[k] = true
			continue
		}

		idx, ok := indexes[k]
		if !ok {
			idx = &schema.Index{Name: k.index, Unique: nonUnique == 0, Kind: kind}
			indexes[k] = idx
			order = append(order, k)
		}
		ic := schema.IndexColumn{Name: column.String}
		if subPart.Valid {
			ic.Length = int(subPart.Int64)
		}
		idx.Columns = append(idx.Columns, ic)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range order {
		t, ok := tables[k.table]
		if !ok || skip[k] {
			continue
		}
		t.Indexes = append(t.Indexes, *indexes[k])
	}
	return nil
}

// extractForeignKeys reads foreign key constraints with their actions
func (e *MySQLExtractor) extractForeignKeys(ctx context.Context, tables map[string]*schema.Table) error {
	query := `
		SELECT
			kcu.table_name,
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.delete_rule,
			rc.update_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = kcu.constraint_schema
			AND rc.constraint_name = kcu.constraint_name
			AND rc.table_name = kcu.table_name
		WHERE kcu.table_schema = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position
	`

	rows, err := e.db().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	type key struct{ table, name string }
	fks := make(map[key]*schema.ForeignKey)
	var order []key

	for rows.Next() {
		var k key
		var column, refTable, refColumn, onDelete, onUpdate string
		if err := rows.Scan(&k.table, &k.name, &column, &refTable, &refColumn, &onDelete, &onUpdate); err != nil {
			return err
		}
		fk, ok := fks[k]
		if !ok {
			fk = &schema.ForeignKey{
				Name:            k.name,
				ReferencedTable: refTable,
				OnDelete:        onDelete,
				OnUpdate:        onUpdate,
			}
			fks[k] = fk
			order = append(order, k)
		}
		fk.Columns = append(fk.Columns, column)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refColumn)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range order {
		if t, ok := tables[k.table]; ok {
			t.ForeignKeys = append(t.ForeignKeys, *fks[k])
		}
	}
	return nil
}

// extractViews reads view definitions. A view whose columns cannot be
// listed (for example because a base table is gone) is unreadable.
func (e *MySQLExtractor) extractViews(ctx context.Context, database *schema.Database) error {
	query := `
		SELECT table_name, COALESCE(view_definition, '')
		FROM information_schema.views
		WHERE table_schema = ?
		ORDER BY table_name
	`

	rows, err := e.db().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return err
	}
	var views []schema.View
	for rows.Next() {
		var v schema.View
		if err := rows.Scan(&v.Name, &v.Definition); err != nil {
			_ = rows.Close()
			return err
		}
		views = append(views, v)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, v := range views {
		if strings.TrimSpace(v.Definition) == "" {
			database.Unreadable = append(database.Unreadable, schema.ObjectReadError{
				Kind: schema.KindView, Name: v.Name, Err: errors.New("definition not visible to this user"),
			})
			continue
		}
		if err := e.checkView(ctx, v.Name); err != nil {
			database.Unreadable = append(database.Unreadable, schema.ObjectReadError{
				Kind: schema.KindView, Name: v.Name, Err: err,
			})
			continue
		}
		v.Definition = e.unqualify(v.Definition)
		database.Views = append(database.Views, v)
	}
	return nil
}

func (e *MySQLExtractor) checkView(ctx context.Context, name string) error {
	rows, err := e.db().QueryContext(ctx, "SHOW COLUMNS FROM "+quote(e.schemaName)+"."+quote(name))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

// extractTriggers reads trigger definitions
func (e *MySQLExtractor) extractTriggers(ctx context.Context, database *schema.Database) error {
	query := `
		SELECT trigger_name, action_timing, event_manipulation, event_object_table, action_statement
		FROM information_schema.triggers
		WHERE trigger_schema = ?
		ORDER BY trigger_name
	`

	rows, err := e.db().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var t schema.Trigger
		if err := rows.Scan(&t.Name, &t.Timing, &t.Event, &t.Table, &t.Body); err != nil {
			return err
		}
		t.Body = e.unqualify(t.Body)
		database.Triggers = append(database.Triggers, t)
	}

	return rows.Err()
}

// extractRoutines lists procedures and functions and reads each full
// definition with SHOW CREATE. The DEFINER clause is removed so that
// routines created by different accounts compare equal.
func (e *MySQLExtractor) extractRoutines(ctx context.Context, database *schema.Database) error {
	query := `
		SELECT routine_name, routine_type
		FROM information_schema.routines
		WHERE routine_schema = ?
		ORDER BY routine_name
	`

	rows, err := e.db().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return err
	}
	var routines []schema.Routine
	for rows.Next() {
		var r schema.Routine
		if err := rows.Scan(&r.Name, &r.Kind); err != nil {
			_ = rows.Close()
			return err
		}
		routines = append(routines, r)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range routines {
		def, err := e.showCreateRoutine(ctx, r.Kind, r.Name)
		if err != nil {
			database.Unreadable = append(database.Unreadable, schema.ObjectReadError{
				Kind: strings.ToUpper(r.Kind), Name: r.Name, Err: err,
			})
			continue
		}
		r.Definition = reDefiner.ReplaceAllString(def, "")
		database.Routines = append(database.Routines, r)
	}
	return nil
}

// showCreateRoutine returns the third column of SHOW CREATE PROCEDURE or
// SHOW CREATE FUNCTION, which is NULL when the user lacks privileges.
func (e *MySQLExtractor) showCreateRoutine(ctx context.Context, kind, name string) (string, error) {
	stmt := fmt.Sprintf("SHOW CREATE %s %s.%s", strings.ToUpper(kind), quote(e.schemaName), quote(name))
	rows, err := e.db().QueryContext(ctx, stmt)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}
	if len(cols) < 3 {
		return "", fmt.Errorf("unexpected SHOW CREATE %s result with %d columns", kind, len(cols))
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%s %s not found", strings.ToLower(kind), name)
	}

	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return "", err
	}
	if !values[2].Valid || values[2].String == "" {
		return "", errors.New("definition not visible to this user")
	}
	return values[2].String, nil
}

// unqualify strips this schema's name from qualified identifiers so that
// definitions compare equal across databases with different names.
func (e *MySQLExtractor) unqualify(def string) string {
	return strings.ReplaceAll(def, quote(e.schemaName)+".", "")
}

func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
