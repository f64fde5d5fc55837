package collapse

import (
	"context"
	"fmt"
	"sync"
)

// State is the lifecycle position of a Cell.
type State int

const (
	StateEmpty State = iota
	StateMaterializing
	StateMaterialized
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateMaterializing:
		return "materializing"
	case StateMaterialized:
		return "materialized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Cell memoizes the full value of one stub. It moves from empty to
// materializing to materialized; a failed flight moves it back to empty.
// Once materialized the value never changes.
//
// The zero Cell is empty and ready to use.
type Cell[F any] struct {
	mu     sync.Mutex
	state  State
	flight *Future[F]
	full   F
}

// State reports the current lifecycle position.
func (c *Cell[F]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Peek returns the full value when the cell is materialized. It never blocks
// on a flight.
func (c *Cell[F]) Peek() (F, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateMaterialized {
		var zero F
		return zero, false
	}
	return c.full, true
}

// Trigger returns a future for the full value. A materialized cell answers
// with an already resolved future; a materializing cell hands out its
// in-flight future; an empty cell starts materialize exactly once and
// publishes the flight before any other caller can observe the cell.
//
// materialize runs on a context detached from ctx cancellation.
func (c *Cell[F]) Trigger(ctx context.Context, materialize func(context.Context) (F, error)) *Future[F] {
	c.mu.Lock()
	switch c.state {
	case StateMaterialized:
		full := c.full
		c.mu.Unlock()
		return resolvedFuture(full)
	case StateMaterializing:
		f := c.flight
		c.mu.Unlock()
		return f
	}
	f := newFuture[F]()
	c.state = StateMaterializing
	c.flight = f
	c.mu.Unlock()

	go c.run(detach(ctx), f, materialize)
	return f
}

// Offer runs produce as the caller's own route to the full value. An empty
// cell adopts produce as its flight, so concurrent Trigger callers attach to
// it instead of starting the materializer. Otherwise produce runs beside the
// current flight and its value is kept only if the cell is still
// unresolved when it finishes.
//
// An adopted produce that fails leaves the cell empty and fails every caller
// attached to its flight, even when the error arose after produce had already
// obtained a full value.
//
// The returned future resolves to the cell's canonical full value, which may
// differ from the value produce returned when another flight won.
func (c *Cell[F]) Offer(ctx context.Context, produce func(context.Context) (F, error)) *Future[F] {
	c.mu.Lock()
	if c.state == StateEmpty {
		f := newFuture[F]()
		c.state = StateMaterializing
		c.flight = f
		c.mu.Unlock()
		go c.run(detach(ctx), f, produce)
		return f
	}
	c.mu.Unlock()

	f := newFuture[F]()
	go func() {
		full, err := invoke(detach(ctx), produce)
		if err != nil {
			var zero F
			f.complete(zero, err)
			return
		}
		f.complete(c.adopt(full), nil)
	}()
	return f
}

func (c *Cell[F]) run(ctx context.Context, f *Future[F], fn func(context.Context) (F, error)) {
	full, err := invoke(ctx, fn)
	c.settle(f, full, err)
}

func (c *Cell[F]) settle(f *Future[F], full F, err error) {
	c.mu.Lock()
	if err != nil {
		if c.flight == f {
			c.flight = nil
			c.state = StateEmpty
		}
		c.mu.Unlock()
		var zero F
		f.complete(zero, err)
		return
	}
	if c.state == StateMaterialized {
		full = c.full
	} else {
		c.full = full
		c.state = StateMaterialized
	}
	if c.flight == f {
		c.flight = nil
	}
	c.mu.Unlock()
	f.complete(full, nil)
}

// adopt stores full unless the cell already resolved, and returns the
// canonical value either way.
func (c *Cell[F]) adopt(full F) F {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateMaterialized {
		c.full = full
		c.state = StateMaterialized
		c.flight = nil
	}
	return c.full
}

func invoke[F any](ctx context.Context, fn func(context.Context) (F, error)) (full F, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero F
			full = zero
			err = fmt.Errorf("materializer panic: %v", r)
		}
	}()
	return fn(ctx)
}

func detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
