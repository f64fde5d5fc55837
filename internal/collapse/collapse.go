package collapse

import (
	"context"
	"slices"
)

type collapsible[F any] interface {
	collapseMembers() []string
	catalyze(ctx context.Context, receiver any) *Future[F]
}

// Collapse forces v to materialize. It reports false when v does not wrap a
// stub whose full value has type F. Stub values may be passed directly or
// through any type embedding the stub.
func Collapse[F any](ctx context.Context, v any) (*Future[F], bool) {
	c, ok := v.(collapsible[F])
	if !ok {
		return nil, false
	}
	if !slices.Contains(c.collapseMembers(), reservedMember) {
		return nil, false
	}
	return c.catalyze(ctx, v), true
}
