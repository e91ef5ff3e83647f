// Package index holds the catalog's exact-match inverted index: for every
// indexed field, a map from value to the set of project names holding it.
//
// FieldIndex is not safe for concurrent use; the catalog serializes access
// under its own lock so the index and the primary record map change
// together.
package index

import (
	"sort"
)

type nameSet map[string]struct{}

// FieldIndex maps field → value → names, and keeps the reverse postings
// (name → field → values) so a record can be unindexed without scanning
// every bucket.
type FieldIndex struct {
	fields   map[string]map[string]nameSet
	postings map[string]map[string][]string
}

func New() *FieldIndex {
	return &FieldIndex{
		fields:   make(map[string]map[string]nameSet),
		postings: make(map[string]map[string][]string),
	}
}

// Set replaces name's entries for field with values. An empty values slice
// only removes. Values must already be deduplicated.
func (ix *FieldIndex) Set(field, name string, values []string) {
	ix.Remove(field, name)
	if len(values) == 0 {
		return
	}
	buckets, ok := ix.fields[field]
	if !ok {
		buckets = make(map[string]nameSet)
		ix.fields[field] = buckets
	}
	for _, v := range values {
		names, ok := buckets[v]
		if !ok {
			names = make(nameSet)
			buckets[v] = names
		}
		names[name] = struct{}{}
	}
	byField, ok := ix.postings[name]
	if !ok {
		byField = make(map[string][]string)
		ix.postings[name] = byField
	}
	byField[field] = append([]string(nil), values...)
}

// Remove drops name from every bucket of field, pruning buckets that become
// empty.
func (ix *FieldIndex) Remove(field, name string) {
	byField, ok := ix.postings[name]
	if !ok {
		return
	}
	values, ok := byField[field]
	if !ok {
		return
	}
	buckets := ix.fields[field]
	for _, v := range values {
		names := buckets[v]
		delete(names, name)
		if len(names) == 0 {
			delete(buckets, v)
		}
	}
	if len(buckets) == 0 {
		delete(ix.fields, field)
	}
	delete(byField, field)
	if len(byField) == 0 {
		delete(ix.postings, name)
	}
}

// RemoveAll scrubs name from every field.
func (ix *FieldIndex) RemoveAll(name string) {
	for field := range ix.postings[name] {
		ix.Remove(field, name)
	}
}

// Contains reports whether name is in the (field, value) bucket.
func (ix *FieldIndex) Contains(field, value, name string) bool {
	_, ok := ix.fields[field][value][name]
	return ok
}

// Len returns the bucket size for (field, value).
func (ix *FieldIndex) Len(field, value string) int {
	return len(ix.fields[field][value])
}

// Names returns the sorted names in the (field, value) bucket.
func (ix *FieldIndex) Names(field, value string) []string {
	return sortedNames(ix.fields[field][value])
}

// Snapshot copies the bucket group of field: value → sorted names. The
// result is empty, never nil.
func (ix *FieldIndex) Snapshot(field string) map[string][]string {
	buckets := ix.fields[field]
	out := make(map[string][]string, len(buckets))
	for v, names := range buckets {
		out[v] = sortedNames(names)
	}
	return out
}

// Values returns the indexed values name holds for field.
func (ix *FieldIndex) Values(field, name string) []string {
	return append([]string(nil), ix.postings[name][field]...)
}

// Fields returns the fields that currently have at least one bucket.
func (ix *FieldIndex) Fields() []string {
	out := make([]string, 0, len(ix.fields))
	for f := range ix.fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func sortedNames(names nameSet) []string {
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
