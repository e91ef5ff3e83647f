// Package convert copies every project from one storage backend into
// another. The command-line grammar is
//
//	<backend> [key=value ...] <backend> [key=value ...]
//
// where each key=value pair configures the backend named before it.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/search"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/backends"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/logger"
)

// ErrUsage marks errors caused by bad arguments rather than by a backend.
var ErrUsage = fmt.Errorf("usage error: %w", apperrors.ErrInvalidInput)

// Target names a backend and the options to open it with.
type Target struct {
	Backend string
	Options map[string]string
}

// Plan is a parsed conversion: export From into To.
type Plan struct {
	From Target
	To   Target
}

func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// ParseArgs splits args into exactly two backends and their options.
func ParseArgs(factories map[string]storage.Factory, args []string) (Plan, error) {
	var targets []Target
	for _, arg := range args {
		opt := strings.TrimLeft(arg, "-")
		switch {
		case strings.Contains(opt, "="):
			if len(targets) == 0 {
				return Plan{}, usagef("option %q given before any backend", arg)
			}
			k, v, _ := strings.Cut(opt, "=")
			if k == "" {
				return Plan{}, usagef("option %q has no key", arg)
			}
			targets[len(targets)-1].Options[k] = v
		case strings.HasPrefix(arg, "-"):
			return Plan{}, usagef("all arguments must be key=value (got %q)", arg)
		default:
			targets = append(targets, Target{Backend: arg, Options: make(map[string]string)})
		}
	}
	if len(targets) != 2 {
		got := make([]string, 0, len(targets))
		for _, t := range targets {
			got = append(got, t.Backend)
		}
		return Plan{}, usagef("please provide two backends (you gave: %v)", got)
	}
	for _, t := range targets {
		if _, err := backends.Lookup(factories, t.Backend); err != nil {
			return Plan{}, fmt.Errorf("%w: %w", ErrUsage, err)
		}
	}
	return Plan{From: targets[0], To: targets[1]}, nil
}

// ListModels writes the backend names, one per line.
func ListModels(w io.Writer, factories map[string]storage.Factory) {
	for _, name := range backends.Names(factories) {
		fmt.Fprintln(w, name)
	}
}

// ListArgs writes the options the named backend accepts with their
// defaults.
func ListArgs(w io.Writer, factories map[string]storage.Factory, name string) error {
	f, err := backends.Lookup(factories, name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	fmt.Fprintf(w, "%s arguments:\n", f.Name)
	for _, o := range f.Options {
		fmt.Fprintf(w, " -%s %s\n", o.Name, o.Default)
	}
	return nil
}

// Run opens both backends and exports every project of the source into the
// target. It returns the number of projects copied.
func Run(ctx context.Context, factories map[string]storage.Factory, plan Plan) (int, error) {
	log := logger.WithComponent("convert")

	src, err := open(ctx, factories, plan.From)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := open(ctx, factories, plan.To)
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	log.Info("converting", "from", plan.From.Backend, "to", plan.To.Backend, "projects", src.Len())
	if err := src.ExportTo(ctx, dst); err != nil {
		return 0, err
	}
	return src.Len(), nil
}

func open(ctx context.Context, factories map[string]storage.Factory, t Target) (*catalog.Catalog, error) {
	f, err := backends.Lookup(factories, t.Backend)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	adapter, err := f.OpenWith(ctx, t.Options)
	if err != nil {
		if errors.Is(err, storage.ErrUnknownOption) {
			return nil, fmt.Errorf("%w: %w", ErrUsage, err)
		}
		return nil, err
	}
	c, err := catalog.New(ctx, adapter, search.NewMemory())
	if err != nil {
		_ = adapter.Close()
		return nil, fmt.Errorf("opening %s backend: %w", t.Backend, err)
	}
	return c, nil
}
