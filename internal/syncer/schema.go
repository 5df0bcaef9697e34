// Package syncer turns the differences between two schema snapshots into
// forward (patch) and backward (revert) DDL.
//
// Tables are altered in place with dependency-safe statement ordering; views,
// triggers and routines are replaced as a whole. Nothing here performs I/O:
// Pairs yields text and the caller decides what to do with it.
package syncer

import (
	"iter"
	"slices"

	"github.com/michael-liumh/schemasync-tables/internal/diff"
	"github.com/michael-liumh/schemasync-tables/internal/schema"
)

// Options configures one comparison. A nil filter considers every name
// present in either snapshot; a non-nil empty filter considers none.
type Options struct {
	SyncAutoIncrement bool
	SyncComments      bool

	// OnlyExistingTables forbids CREATE TABLE and DROP TABLE. Callers
	// normally also set Tables to the target's table names.
	OnlyExistingTables bool

	Tables   []string
	Views    []string
	Triggers []string
	Routines []string
}

// Pairs returns the (forward, backward) DDL blocks that turn target into
// source: one pair per changed table, then per changed view, trigger and
// routine, each group in lexical name order. Pairs with no change are
// omitted.
//
// When tables are restricted, by a filter or by OnlyExistingTables, a
// trigger is only compared if its table is compared too and, with
// OnlyExistingTables, exists in target; other triggers are reported as
// EventOutOfScope.
//
// Backward blocks undo their forward block and are applied in the same pair
// order, so tables are restored before the views and triggers that depend
// on them. Table pairs are enclosed by a pair disabling FOREIGN_KEY_CHECKS
// in both directions and a closing pair enabling it again.
//
// The sequence is lazy and may be abandoned at any point. obs receives the
// recoverable conditions met along the way and may be nil.
func Pairs(source, target *schema.Snapshot, opts Options, obs Observer) iter.Seq2[string, string] {
	if obs == nil {
		obs = Observers(nil)
	}
	return func(yield func(string, string) bool) {
		tables := names(schema.KindTable, opts.Tables, obs, source.TableNames(), target.TableNames())
		if !syncTables(source, target, tables, opts, yield) {
			return
		}
		scope := tableScope(tables, target, opts)

		views := names(schema.KindView, opts.Views, obs,
			source.ViewNames(), target.ViewNames(),
			source.UnreadableNames(schema.KindView), target.UnreadableNames(schema.KindView))
		for _, name := range views {
			if skipUnreadable(source, target, schema.KindView, name, obs) {
				continue
			}
			fwd, bwd := SyncView(lookup(source.View, name), lookup(target.View, name))
			if !emit(fwd, bwd, yield) {
				return
			}
		}

		triggers := names(schema.KindTrigger, opts.Triggers, obs,
			source.TriggerNames(), target.TriggerNames(),
			source.UnreadableNames(schema.KindTrigger), target.UnreadableNames(schema.KindTrigger))
		for _, name := range triggers {
			if skipUnreadable(source, target, schema.KindTrigger, name, obs) {
				continue
			}
			src, dst := lookup(source.Trigger, name), lookup(target.Trigger, name)
			if table, ok := inScope(scope, src, dst); !ok {
				obs.OnEvent(Event{
					Type: EventOutOfScope,
					Kind: schema.KindTrigger,
					Name: name,
					Err:  &OutOfScopeError{Trigger: name, Table: table},
				})
				continue
			}
			fwd, bwd := SyncTrigger(src, dst)
			if !emit(fwd, bwd, yield) {
				return
			}
		}

		var present [][]string
		for _, kind := range routineKinds {
			present = append(present,
				source.RoutineNames(kind), target.RoutineNames(kind),
				source.UnreadableNames(kind), target.UnreadableNames(kind))
		}
		for _, name := range names(schema.KindProcedure, opts.Routines, obs, present...) {
			for _, kind := range routineKinds {
				if skipUnreadable(source, target, kind, name, obs) {
					continue
				}
				fwd, bwd := SyncRoutine(lookupRoutine(source, kind, name), lookupRoutine(target, kind, name))
				if !emit(fwd, bwd, yield) {
					return
				}
			}
		}
	}
}

// routineKinds are the routine namespaces, in output order for routines
// sharing a name.
var routineKinds = []string{schema.KindFunction, schema.KindProcedure}

func lookupRoutine(s *schema.Snapshot, kind, name string) *schema.Routine {
	return lookup(func(n string) (schema.Routine, bool) { return s.Routine(kind, n) }, name)
}

// tableScope returns the tables triggers may be attached to, or nil when
// tables are not restricted.
func tableScope(tables []string, target *schema.Snapshot, opts Options) map[string]bool {
	if opts.Tables == nil && !opts.OnlyExistingTables {
		return nil
	}
	existing := target.TableNames()
	scope := make(map[string]bool, len(tables))
	for _, name := range tables {
		if opts.OnlyExistingTables {
			if _, found := slices.BinarySearch(existing, name); !found {
				continue
			}
		}
		scope[name] = true
	}
	return scope
}

// inScope reports whether the tables of both versions of a trigger are in
// scope. Otherwise it returns the first table that is not.
func inScope(scope map[string]bool, triggers ...*schema.Trigger) (string, bool) {
	if scope == nil {
		return "", true
	}
	for _, t := range triggers {
		if t != nil && !scope[t.Table] {
			return t.Table, false
		}
	}
	return "", true
}

// syncTables yields the pairs of the named tables. It reports false once
// the consumer has stopped.
func syncTables(source, target *schema.Snapshot, tables []string, opts Options, yield func(string, string) bool) bool {
	tableOpts := TableOptions{
		SyncAutoIncrement: opts.SyncAutoIncrement,
		SyncComments:      opts.SyncComments,
		ExistingOnly:      opts.OnlyExistingTables,
	}

	opened := false
	for _, name := range tables {
		fwd, bwd := SyncTable(lookup(source.Table, name), lookup(target.Table, name), tableOpts)
		if fwd == "" && bwd == "" {
			continue
		}
		if !opened {
			opened = true
			if !yield(ForeignKeyChecksOff, ForeignKeyChecksOff) {
				return false
			}
		}
		if !yield(fwd, bwd) {
			return false
		}
	}
	if opened {
		return yield(ForeignKeyChecksOn, ForeignKeyChecksOn)
	}
	return true
}

// names resolves the names of one kind to compare: the union of every
// listed name set, restricted to filter when it is non-nil. Filter names
// found nowhere are reported and dropped.
func names(kind string, filter []string, obs Observer, present ...[]string) []string {
	all := []string{}
	for _, p := range present {
		all = diff.Union(all, p)
	}
	if filter == nil {
		return all
	}

	var out []string
	for _, name := range diff.Union(filter, nil) {
		if _, found := slices.BinarySearch(all, name); !found {
			obs.OnEvent(Event{
				Type: EventFilterMismatch,
				Kind: kind,
				Name: name,
				Err:  &FilterMismatchError{Kind: kind, Name: name},
			})
			continue
		}
		out = append(out, name)
	}
	return out
}

func skipUnreadable(source, target *schema.Snapshot, kind, name string, obs Observer) bool {
	for _, s := range []*schema.Snapshot{source, target} {
		if err := s.Unreadable(kind, name); err != nil {
			obs.OnEvent(Event{Type: EventObjectSkipped, Kind: err.Kind, Name: name, Err: err})
			return true
		}
	}
	return false
}

func lookup[T any](get func(string) (T, bool), name string) *T {
	v, ok := get(name)
	if !ok {
		return nil
	}
	return &v
}

func emit(fwd, bwd string, yield func(string, string) bool) bool {
	if fwd == "" && bwd == "" {
		return true
	}
	return yield(fwd, bwd)
}
