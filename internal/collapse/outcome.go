package collapse

import (
	"context"
	"fmt"
)

type outcomeKind uint8

const (
	kindValue outcomeKind = iota
	kindTransform
	kindTo
)

// Outcome is what a stub-side method answers with. Build one with Value,
// Transform or To; the zero Outcome is Value(nil).
type Outcome[S, F any] struct {
	kind      outcomeKind
	value     any
	transform func(context.Context, F) (any, error)
	to        func(context.Context, S) (F, any, error)
	// literal keeps a nil transform result instead of answering with the
	// full value.
	literal bool
}

// Value answers the call directly from stub data.
func Value[S, F any](v any) Outcome[S, F] {
	return Outcome[S, F]{kind: kindValue, value: v}
}

// Transform answers the call from the full value. A nil fn, or a fn returning
// a nil result, answers with the full value itself.
func Transform[S, F any](fn func(context.Context, F) (any, error)) Outcome[S, F] {
	return Outcome[S, F]{kind: kindTransform, transform: fn}
}

// To runs fn as the method's own work. fn yields the full value for the cell
// and the call's result, which may be unrelated to the full value.
func To[S, F any](fn func(context.Context, S) (F, any, error)) Outcome[S, F] {
	return Outcome[S, F]{kind: kindTo, to: fn}
}

// IsSignal reports whether the outcome needs the full value.
func (o Outcome[S, F]) IsSignal() bool {
	return o.kind != kindValue
}

func (o Outcome[S, F]) apply(ctx context.Context, full F) (any, error) {
	if o.transform == nil {
		return full, nil
	}
	result, err := o.transform(ctx, full)
	if err != nil {
		return nil, err
	}
	if result == nil && !o.literal {
		return full, nil
	}
	return result, nil
}

// Method is a stub-side member. args are the caller's arguments.
type Method[S, F any] func(ctx context.Context, stub S, args ...any) (Outcome[S, F], error)

// Methods is a stub's member table keyed by member name.
type Methods[S, F any] map[string]Method[S, F]

// Field builds a member that answers from stub data.
func Field[S, F any](get func(S) any) Method[S, F] {
	return func(_ context.Context, stub S, _ ...any) (Outcome[S, F], error) {
		return Value[S, F](get(stub)), nil
	}
}

// Project builds a member that answers from the full value.
func Project[S, F any](get func(F) any) Method[S, F] {
	return func(context.Context, S, ...any) (Outcome[S, F], error) {
		out := Transform[S](func(_ context.Context, full F) (any, error) {
			return get(full), nil
		})
		out.literal = true
		return out, nil
	}
}

// Identity builds a member that answers with the full value itself.
func Identity[S, F any]() Method[S, F] {
	return func(context.Context, S, ...any) (Outcome[S, F], error) {
		return Transform[S, F](nil), nil
	}
}

// Forward builds a member that materializes and then calls the full value's
// member of the same name with the caller's arguments.
func Forward[S any, F Object](name string) Method[S, F] {
	return func(_ context.Context, _ S, args ...any) (Outcome[S, F], error) {
		out := Transform[S](func(ctx context.Context, full F) (any, error) {
			fn, ok := full.Lookup(name)
			if !ok {
				return nil, &MemberError{Key: fmt.Sprintf("%T", full), Name: name}
			}
			return fn(ctx, args...)
		})
		out.literal = true
		return out, nil
	}
}
