// Package record defines the catalog's data model: a project record is a
// named set of fields whose values are either a single string or a set of
// strings, plus the engine-maintained modification stamp.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"sort"
	"time"
)

const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldURL         = "url"
	FieldModified    = "modified"
)

// DefaultRequired lists the fields every record must carry.
var DefaultRequired = []string{FieldName, FieldDescription, FieldURL}

// Record is one catalog entry. Modified is a Unix timestamp in seconds;
// zero means the record has never been stamped.
type Record struct {
	Fields   map[string]Value
	Modified float64
}

// New builds a record with the required fields set.
func New(name, description, url string) Record {
	return Record{Fields: map[string]Value{
		FieldName:        Scalar(name),
		FieldDescription: Scalar(description),
		FieldURL:         Scalar(url),
	}}
}

// Name returns the record's identifier, or "" if it is missing or not a
// scalar.
func (r Record) Name() string {
	s, _ := r.Fields[FieldName].Str()
	return s
}

func (r Record) Get(field string) (Value, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// Set stores a field value. Setting FieldModified is rejected: the stamp
// lives in Modified.
func (r *Record) Set(field string, v Value) {
	if field == FieldModified || v.Kind() == KindInvalid {
		return
	}
	if r.Fields == nil {
		r.Fields = make(map[string]Value)
	}
	r.Fields[field] = v
}

// Keys returns the field names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a structural copy sharing no mutable state with r.
func (r Record) Clone() Record {
	out := Record{Modified: r.Modified, Fields: make(map[string]Value, len(r.Fields))}
	for k, v := range r.Fields {
		out.Fields[k] = Value{kind: v.kind, scalar: v.scalar, multi: append([]string(nil), v.multi...)}
	}
	return out
}

// Missing returns the required fields that are absent or empty. The name
// must also be a scalar.
func (r Record) Missing(required []string) []string {
	var missing []string
	for _, f := range required {
		v, ok := r.Fields[f]
		if !ok || v.IsEmpty() || (f == FieldName && r.Name() == "") {
			missing = append(missing, f)
		}
	}
	return missing
}

// Equal compares field contents; the stamp is compared only when
// withModified is set.
func (r Record) Equal(o Record, withModified bool) bool {
	if withModified && r.Modified != o.Modified {
		return false
	}
	return maps.EqualFunc(r.Fields, o.Fields, Value.Equal)
}

// Stamp sets Modified from t.
func (r *Record) Stamp(t time.Time) {
	r.Modified = float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// ModifiedTime converts the stamp back to a time; zero when unstamped.
func (r Record) ModifiedTime() time.Time {
	if r.Modified == 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(r.Modified)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// MarshalJSON emits a flat object with keys in sorted order, so equal
// records always encode to identical bytes.
func (r Record) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		if k == FieldModified {
			continue
		}
		obj[k] = v
	}
	if r.Modified != 0 {
		obj[FieldModified] = r.Modified
	}
	return json.Marshal(obj)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("decoding record: expected an object")
	}
	out := Record{Fields: make(map[string]Value, len(raw))}
	for k, msg := range raw {
		if bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
			continue
		}
		if k == FieldModified {
			if err := json.Unmarshal(msg, &out.Modified); err != nil {
				return fmt.Errorf("field %q must be a number: %w", k, err)
			}
			continue
		}
		var v Value
		if err := v.UnmarshalJSON(msg); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		out.Fields[k] = v
	}
	*r = out
	return nil
}

// Parse decodes one record from its JSON wire form.
func Parse(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// SearchFields flattens the given fields for the free-text index.
func (r Record) SearchFields(fields []string) map[string][]string {
	out := make(map[string][]string, len(fields))
	for _, f := range fields {
		if v, ok := r.Fields[f]; ok {
			out[f] = v.Values()
		}
	}
	return out
}
