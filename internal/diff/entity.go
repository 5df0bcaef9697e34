// Package diff compares collections of uniquely named entities.
//
// Compare is the single set-difference routine used for every entity kind
// (tables, columns, indexes, foreign keys, views, triggers, routines). A
// rename is never inferred: it always shows up as one removal plus one
// addition.
package diff

import "sort"

// Change pairs the source and target versions of an entity that exists on
// both sides.
type Change[T any] struct {
	Name   string
	Source T
	Target T
}

// Result holds the outcome of comparing source entities against target
// entities. Every slice is sorted by name.
type Result[T any] struct {
	Added     []T         // in source only
	Removed   []T         // in target only
	Modified  []Change[T] // in both, attributes differ
	Unchanged []Change[T] // in both, attributes equal
}

// Compare computes the set difference between source and target and, for
// names present on both sides, classifies the pair with equal.
func Compare[T any](source, target []T, name func(T) string, equal func(a, b T) bool) Result[T] {
	src := index(source, name)
	dst := index(target, name)

	var res Result[T]
	for _, n := range sortedNames(src) {
		s := src[n]
		t, ok := dst[n]
		if !ok {
			res.Added = append(res.Added, s)
			continue
		}
		ch := Change[T]{Name: n, Source: s, Target: t}
		if equal(s, t) {
			res.Unchanged = append(res.Unchanged, ch)
		} else {
			res.Modified = append(res.Modified, ch)
		}
	}
	for _, n := range sortedNames(dst) {
		if _, ok := src[n]; !ok {
			res.Removed = append(res.Removed, dst[n])
		}
	}
	return res
}

// HasChanges reports whether anything was added, removed or modified.
func (r Result[T]) HasChanges() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0 || len(r.Modified) > 0
}

// Union returns the sorted union of two name lists without duplicates.
func Union(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, n := range a {
		set[n] = struct{}{}
	}
	for _, n := range b {
		set[n] = struct{}{}
	}
	return sortedNames(set)
}

func index[T any](items []T, name func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, it := range items {
		out[name(it)] = it
	}
	return out
}

func sortedNames[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
