// Package storage defines the durable-storage contract behind the catalog
// and the option plumbing shared by every backend.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
)

// Adapter persists project records.
//
// Load must be idempotent and must not invent a modified stamp. Save
// overwrites any record with the same name. Deleting an unknown name is
// not an error.
type Adapter interface {
	Load(ctx context.Context) ([]record.Record, error)
	Save(ctx context.Context, rec record.Record) error
	Delete(ctx context.Context, name string) error
	Close() error
}

// ErrUnknownOption is returned when a backend is given an option it does
// not declare.
var ErrUnknownOption = errors.New("unknown option")

// Option describes one constructor argument of a backend.
type Option struct {
	Name    string
	Default string
	Help    string
}

// Factory opens a named backend from string options.
type Factory struct {
	Name        string
	Description string
	Options     []Option
	Open        func(ctx context.Context, opts Options) (Adapter, error)
}

// OpenWith validates raw against the declared options and opens the backend.
func (f Factory) OpenWith(ctx context.Context, raw map[string]string) (Adapter, error) {
	opts, err := NewOptions(f.Options, raw)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", f.Name, err)
	}
	return f.Open(ctx, opts)
}

// Options holds the supplied values of a backend's declared options.
type Options struct {
	declared map[string]Option
	values   map[string]string
}

// NewOptions rejects any key of raw that is not declared.
func NewOptions(declared []Option, raw map[string]string) (Options, error) {
	opts := Options{
		declared: make(map[string]Option, len(declared)),
		values:   make(map[string]string, len(raw)),
	}
	for _, o := range declared {
		opts.declared[o.Name] = o
	}
	var unknown []string
	for k, v := range raw {
		if _, ok := opts.declared[k]; !ok {
			unknown = append(unknown, k)
			continue
		}
		opts.values[k] = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Options{}, fmt.Errorf("%w: %s", ErrUnknownOption, strings.Join(unknown, ", "))
	}
	return opts, nil
}

// String returns the supplied value or the declared default.
func (o Options) String(name string) string {
	if v, ok := o.values[name]; ok {
		return v
	}
	return o.declared[name].Default
}

func (o Options) Int(name string) (int, error) {
	v := o.String(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("option %s: %q is not an integer: %w", name, v, apperrors.ErrInvalidInput)
	}
	return n, nil
}

func (o Options) Bool(name string) (bool, error) {
	v := o.String(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("option %s: %q is not a boolean: %w", name, v, apperrors.ErrInvalidInput)
	}
	return b, nil
}

// document is the envelope the document-store backends persist.
type document struct {
	Project record.Record `json:"project"`
}

// EncodeDocument wraps rec as {"project": rec}.
func EncodeDocument(rec record.Record) ([]byte, error) {
	data, err := json.Marshal(document{Project: rec})
	if err != nil {
		return nil, fmt.Errorf("encoding project %s: %w", rec.Name(), err)
	}
	return data, nil
}

// DecodeDocument unwraps a stored document. id names the row, key or file
// in the returned MalformedRecordError.
func DecodeDocument(id string, data []byte) (record.Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return record.Record{}, apperrors.Malformed(id, err)
	}
	body, ok := raw["project"]
	if !ok {
		return record.Record{}, apperrors.Malformed(id, errors.New(`missing "project" key`))
	}
	rec, err := record.Parse(body)
	if err != nil {
		return record.Record{}, apperrors.Malformed(id, err)
	}
	return rec, nil
}
