package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Kind tags which branch of a Value is populated.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindScalar
	KindMulti
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMulti:
		return "multi"
	default:
		return "invalid"
	}
}

// Value is a field value: a single string or a set of unique strings.
// The zero Value is invalid and is never stored in a Record.
type Value struct {
	kind   Kind
	scalar string
	multi  []string
}

// Scalar returns a single-string value.
func Scalar(s string) Value {
	return Value{kind: KindScalar, scalar: s}
}

// Multi returns a set value. Duplicates are dropped and members are kept
// sorted.
func Multi(values ...string) Value {
	set := slices.Clone(values)
	sort.Strings(set)
	return Value{kind: KindMulti, multi: slices.Compact(set)}
}

func (v Value) Kind() Kind {
	return v.kind
}

// Str returns the scalar string; ok is false for a set value.
func (v Value) Str() (s string, ok bool) {
	if v.kind != KindScalar {
		return "", false
	}
	return v.scalar, true
}

// Values returns the members as a set: a scalar is a one-element set. The
// result is a fresh slice.
func (v Value) Values() []string {
	switch v.kind {
	case KindScalar:
		return []string{v.scalar}
	case KindMulti:
		return slices.Clone(v.multi)
	default:
		return nil
	}
}

func (v Value) Len() int {
	switch v.kind {
	case KindScalar:
		return 1
	case KindMulti:
		return len(v.multi)
	default:
		return 0
	}
}

// Contains reports whether s is the scalar or a member of the set.
func (v Value) Contains(s string) bool {
	switch v.kind {
	case KindScalar:
		return v.scalar == s
	case KindMulti:
		_, found := slices.BinarySearch(v.multi, s)
		return found
	default:
		return false
	}
}

// IsEmpty reports whether the value carries no usable content.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindScalar:
		return strings.TrimSpace(v.scalar) == ""
	case KindMulti:
		return len(v.multi) == 0
	default:
		return true
	}
}

// Replace swaps from for to. A set stays deduplicated; a scalar is rewritten
// only when it equals from.
func (v Value) Replace(from, to string) Value {
	switch v.kind {
	case KindScalar:
		if v.scalar == from {
			return Scalar(to)
		}
		return v
	case KindMulti:
		out := make([]string, 0, len(v.multi))
		for _, m := range v.multi {
			if m == from {
				m = to
			}
			out = append(out, m)
		}
		return Multi(out...)
	default:
		return v
	}
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindScalar:
		return v.scalar == o.scalar
	case KindMulti:
		return slices.Equal(v.multi, o.multi)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindMulti:
		return "[" + strings.Join(v.multi, ", ") + "]"
	default:
		return "<invalid>"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindScalar:
		return json.Marshal(v.scalar)
	case KindMulti:
		if v.multi == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.multi)
	default:
		return nil, fmt.Errorf("marshaling invalid value")
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Scalar(s)
		return nil
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("list values must contain only strings: %w", err)
		}
		*v = Multi(items...)
		return nil
	default:
		return fmt.Errorf("value must be a string or a list of strings, got %s", truncate(data))
	}
}

func truncate(data []byte) string {
	if len(data) > 32 {
		return string(data[:32]) + "..."
	}
	return string(data)
}
