package collapse

import (
	"context"
	"fmt"
	"slices"
)

// Func is a member of a full value.
type Func func(ctx context.Context, args ...any) (any, error)

// Object is what a full value exposes to the dispatcher.
type Object interface {
	Lookup(name string) (Func, bool)
	Members() []string
}

// Table is a map-backed Object.
type Table map[string]Func

func (t Table) Lookup(name string) (Func, bool) {
	fn, ok := t[name]
	return fn, ok && fn != nil
}

func (t Table) Members() []string {
	names := make([]string, 0, len(t))
	for name, fn := range t {
		if fn != nil {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Const is a member that always answers v.
func Const(v any) Func {
	return func(context.Context, ...any) (any, error) {
		return v, nil
	}
}

// Caller is anything addressable by member name.
type Caller interface {
	Call(ctx context.Context, name string, args ...any) (any, error)
}

// Get calls name on c and asserts the result to T. A nil result yields the
// zero T.
func Get[T any](ctx context.Context, c Caller, name string, args ...any) (T, error) {
	var zero T
	v, err := c.Call(ctx, name, args...)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("member %q: got %T, want %T", name, v, zero)
	}
	return typed, nil
}
