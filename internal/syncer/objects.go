package syncer

import (
	"fmt"
	"strings"

	"github.com/michael-liumh/schemasync-tables/internal/diff"
	"github.com/michael-liumh/schemasync-tables/internal/schema"
)

// object is the common shape of views, triggers and routines: they are only
// ever replaced as a whole.
type object interface {
	kind() string
	name() string
	create() string
}

type viewObject struct{ schema.View }

func (v viewObject) kind() string { return schema.KindView }
func (v viewObject) name() string { return v.Name }
func (v viewObject) create() string {
	return fmt.Sprintf("CREATE VIEW %s AS %s;", QuoteIdentifier(v.Name), trimStatement(v.Definition))
}

type triggerObject struct{ schema.Trigger }

func (t triggerObject) kind() string { return schema.KindTrigger }
func (t triggerObject) name() string { return t.Name }
func (t triggerObject) create() string {
	return fmt.Sprintf("CREATE TRIGGER %s %s %s ON %s FOR EACH ROW %s;",
		QuoteIdentifier(t.Name),
		strings.ToUpper(t.Timing),
		strings.ToUpper(t.Event),
		QuoteIdentifier(t.Table),
		trimStatement(t.Body))
}

type routineObject struct{ schema.Routine }

func (r routineObject) kind() string { return strings.ToUpper(r.Kind) }
func (r routineObject) name() string { return r.Name }
func (r routineObject) create() string {
	return trimStatement(r.Definition) + ";"
}

// dropObject renders the DROP statement. Triggers go with their table, so
// a trigger whose table was already dropped must not fail the script.
func dropObject(o object) string {
	if o.kind() == schema.KindTrigger {
		return fmt.Sprintf("DROP TRIGGER IF EXISTS %s;", QuoteIdentifier(o.name()))
	}
	return fmt.Sprintf("DROP %s %s;", o.kind(), QuoteIdentifier(o.name()))
}

// syncObject returns the forward and backward blocks for one named object.
// A nil side means the object is absent there.
func syncObject(source, target object, equal func(a, b object) bool) (forward, backward string) {
	switch {
	case source == nil && target == nil:
		return "", ""
	case target == nil:
		return source.create(), dropObject(source)
	case source == nil:
		return dropObject(target), target.create()
	case equal(source, target):
		return "", ""
	default:
		return dropObject(target) + "\n" + source.create(),
			dropObject(source) + "\n" + target.create()
	}
}

// SyncView compares one view. Either side may be nil.
func SyncView(source, target *schema.View) (forward, backward string) {
	return syncObject(asObject(source, func(v schema.View) object { return viewObject{v} }),
		asObject(target, func(v schema.View) object { return viewObject{v} }),
		func(a, b object) bool { return diff.ViewsEqual(a.(viewObject).View, b.(viewObject).View) })
}

// SyncTrigger compares one trigger. Either side may be nil.
func SyncTrigger(source, target *schema.Trigger) (forward, backward string) {
	return syncObject(asObject(source, func(t schema.Trigger) object { return triggerObject{t} }),
		asObject(target, func(t schema.Trigger) object { return triggerObject{t} }),
		func(a, b object) bool { return diff.TriggersEqual(a.(triggerObject).Trigger, b.(triggerObject).Trigger) })
}

// SyncRoutine compares one stored procedure or function. Either side may be
// nil.
func SyncRoutine(source, target *schema.Routine) (forward, backward string) {
	return syncObject(asObject(source, func(r schema.Routine) object { return routineObject{r} }),
		asObject(target, func(r schema.Routine) object { return routineObject{r} }),
		func(a, b object) bool { return diff.RoutinesEqual(a.(routineObject).Routine, b.(routineObject).Routine) })
}

func asObject[T any](v *T, wrap func(T) object) object {
	if v == nil {
		return nil
	}
	return wrap(*v)
}

// trimStatement strips surrounding whitespace and trailing semicolons so a
// single terminator can be appended.
func trimStatement(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "; \t\r\n")
}
