package schema

import (
	"fmt"
	"strings"
)

// SnapshotError reports introspected metadata that is structurally
// inconsistent. It is fatal: no diff is attempted.
type SnapshotError struct {
	Database string
	Object   string // table or object name, empty for database-level problems
	Reason   string
}

func (e *SnapshotError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("invalid snapshot of %s", e.Database))
	if e.Object != "" {
		parts = append(parts, e.Object)
	}
	parts = append(parts, e.Reason)
	return strings.Join(parts, ": ")
}

// ObjectReadError marks one view, trigger or routine whose definition could
// not be read. The object is left out of the comparison.
type ObjectReadError struct {
	Kind string
	Name string
	Err  error
}

func (e *ObjectReadError) Error() string {
	return fmt.Sprintf("cannot read %s %s: %v", strings.ToLower(e.Kind), e.Name, e.Err)
}

func (e *ObjectReadError) Unwrap() error {
	return e.Err
}

func newSnapshotError(db, object, format string, args ...any) *SnapshotError {
	return &SnapshotError{
		Database: db,
		Object:   object,
		Reason:   fmt.Sprintf(format, args...),
	}
}
