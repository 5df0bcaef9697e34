package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersTable() Table {
	return Table{
		Name:   "users",
		Engine: "InnoDB",
		Columns: []Column{
			{Name: "id", Type: "int", Extra: "auto_increment"},
			{Name: "email", Type: "varchar(255)"},
		},
		Indexes: []Index{
			{Name: "uq_email", Unique: true, Columns: []IndexColumn{{Name: "email"}}},
			{Name: PrimaryKeyName, Unique: true, Columns: []IndexColumn{{Name: "id"}}},
		},
	}
}

func TestNewSnapshot(t *testing.T) {
	db := Database{
		Name:     "shop",
		Tables:   []Table{usersTable(), {Name: "audit", Columns: []Column{{Name: "id", Type: "int"}}}},
		Views:    []View{{Name: "v_users", Definition: "select id from users"}},
		Triggers: []Trigger{{Name: "trg", Timing: "BEFORE", Event: "INSERT", Table: "users", Body: "SET NEW.id = 1"}},
		Routines: []Routine{{Name: "p", Kind: "procedure", Definition: "CREATE PROCEDURE p() BEGIN END"}},
	}

	s, err := NewSnapshot(db)
	require.NoError(t, err)

	assert.Equal(t, "shop", s.Name())
	assert.Equal(t, []string{"audit", "users"}, s.TableNames())
	assert.Equal(t, []string{"v_users"}, s.ViewNames())
	assert.Equal(t, []string{"trg"}, s.TriggerNames())
	assert.Equal(t, []string{"p"}, s.RoutineNames(KindProcedure))
	assert.Empty(t, s.RoutineNames(KindFunction))

	users, ok := s.Table("users")
	require.True(t, ok)
	assert.Equal(t, 1, users.Columns[0].Position)
	assert.Equal(t, 2, users.Columns[1].Position)
	assert.Equal(t, PrimaryKeyName, users.Indexes[0].Name, "primary key sorts first")

	r, ok := s.Routine("procedure", "p")
	require.True(t, ok)
	assert.Equal(t, KindProcedure, r.Kind)
	_, ok = s.Routine(KindFunction, "p")
	assert.False(t, ok)

	_, ok = s.Table("missing")
	assert.False(t, ok)
}

func TestRoutineNamespaces(t *testing.T) {
	s, err := NewSnapshot(Database{
		Name: "shop",
		Routines: []Routine{
			{Name: "calc", Kind: KindProcedure, Definition: "CREATE PROCEDURE calc() BEGIN END"},
			{Name: "calc", Kind: KindFunction, Definition: "CREATE FUNCTION calc() RETURNS int RETURN 1"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"calc"}, s.RoutineNames(KindProcedure))
	assert.Equal(t, []string{"calc"}, s.RoutineNames(KindFunction))

	proc, ok := s.Routine(KindProcedure, "calc")
	require.True(t, ok)
	assert.Contains(t, proc.Definition, "PROCEDURE")
	fn, ok := s.Routine(KindFunction, "calc")
	require.True(t, ok)
	assert.Contains(t, fn.Definition, "FUNCTION")
}

func TestSnapshotIsolation(t *testing.T) {
	table := usersTable()
	s, err := NewSnapshot(Database{Name: "shop", Tables: []Table{table}})
	require.NoError(t, err)

	table.Columns[0].Name = "changed"
	got, _ := s.Table("users")
	assert.Equal(t, "id", got.Columns[0].Name)

	got.Columns[1].Type = "text"
	again, _ := s.Table("users")
	assert.Equal(t, "varchar(255)", again.Columns[1].Type)

	names := s.TableNames()
	names[0] = "x"
	assert.Equal(t, []string{"users"}, s.TableNames())
}

func TestNewSnapshotOrdersColumnsByPosition(t *testing.T) {
	s, err := NewSnapshot(Database{Name: "shop", Tables: []Table{{
		Name: "t",
		Columns: []Column{
			{Name: "b", Position: 2, Type: "int"},
			{Name: "a", Position: 1, Type: "int"},
		},
	}}})
	require.NoError(t, err)
	got, _ := s.Table("t")
	assert.Equal(t, "a", got.Columns[0].Name)
}

func TestNewSnapshotErrors(t *testing.T) {
	tests := []struct {
		name string
		db   Database
		want string
	}{
		{
			name: "duplicate table",
			db:   Database{Tables: []Table{{Name: "t"}, {Name: "t"}}},
			want: "duplicate table",
		},
		{
			name: "duplicate column",
			db: Database{Tables: []Table{{Name: "t", Columns: []Column{
				{Name: "a", Type: "int"}, {Name: "a", Type: "int"},
			}}}},
			want: "duplicate or empty column name",
		},
		{
			name: "position gap",
			db: Database{Tables: []Table{{Name: "t", Columns: []Column{
				{Name: "a", Position: 1, Type: "int"}, {Name: "b", Position: 3, Type: "int"},
			}}}},
			want: "has position 3, want 2",
		},
		{
			name: "index on unknown column",
			db: Database{Tables: []Table{{Name: "t",
				Columns: []Column{{Name: "a", Type: "int"}},
				Indexes: []Index{{Name: "idx", Columns: []IndexColumn{{Name: "b"}}}},
			}}},
			want: "index idx references unknown column b",
		},
		{
			name: "foreign key arity",
			db: Database{Tables: []Table{{Name: "t",
				Columns:     []Column{{Name: "a", Type: "int"}},
				ForeignKeys: []ForeignKey{{Name: "fk", Columns: []string{"a"}, ReferencedTable: "u"}},
			}}},
			want: "foreign key fk has 1 columns referencing 0",
		},
		{
			name: "trigger on unknown table",
			db:   Database{Triggers: []Trigger{{Name: "trg", Table: "missing"}}},
			want: `trigger on unknown table "missing"`,
		},
		{
			name: "duplicate procedure",
			db: Database{Routines: []Routine{
				{Name: "p", Kind: KindProcedure}, {Name: "p", Kind: "procedure"},
			}},
			want: "duplicate or empty procedure name",
		},
		{
			name: "routine kind",
			db:   Database{Routines: []Routine{{Name: "r", Kind: "EVENT"}}},
			want: `unknown routine kind "EVENT"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.db.Name = "shop"
			_, err := NewSnapshot(tt.db)
			require.Error(t, err)
			var snapErr *SnapshotError
			require.True(t, errors.As(err, &snapErr))
			assert.Equal(t, "shop", snapErr.Database)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUnreadable(t *testing.T) {
	cause := errors.New("definer missing")
	s, err := NewSnapshot(Database{
		Name: "shop",
		Unreadable: []ObjectReadError{
			{Kind: KindView, Name: "v_broken", Err: cause},
			{Kind: KindFunction, Name: "f_broken", Err: cause},
		},
	})
	require.NoError(t, err)

	readErr := s.Unreadable(KindView, "v_broken")
	require.NotNil(t, readErr)
	assert.ErrorIs(t, readErr, cause)
	assert.Equal(t, "cannot read view v_broken: definer missing", readErr.Error())

	assert.NotNil(t, s.Unreadable(KindFunction, "f_broken"))
	assert.Nil(t, s.Unreadable(KindProcedure, "f_broken"), "procedures and functions have separate namespaces")
	assert.Nil(t, s.Unreadable(KindTrigger, "v_broken"))

	assert.Equal(t, []string{"v_broken"}, s.UnreadableNames(KindView))
	assert.Equal(t, []string{"f_broken"}, s.UnreadableNames(KindFunction))
	assert.Empty(t, s.UnreadableNames(KindProcedure))
	assert.Empty(t, s.UnreadableNames(KindTable))
}
