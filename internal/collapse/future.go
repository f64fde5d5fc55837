package collapse

import "context"

// Future is a shared handle on the outcome of one materialization flight.
// Any number of callers may await the same Future.
type Future[F any] struct {
	done  chan struct{}
	value F
	err   error
}

func newFuture[F any]() *Future[F] {
	return &Future[F]{done: make(chan struct{})}
}

func resolvedFuture[F any](value F) *Future[F] {
	f := newFuture[F]()
	f.complete(value, nil)
	return f
}

func failedFuture[F any](err error) *Future[F] {
	f := newFuture[F]()
	var zero F
	f.complete(zero, err)
	return f
}

// complete must be called exactly once.
func (f *Future[F]) complete(value F, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed once the flight has settled.
func (f *Future[F]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the flight settles or ctx is done. Abandoning the wait
// does not stop the flight; other waiters still observe its outcome.
func (f *Future[F]) Await(ctx context.Context) (F, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero F
		return zero, ctx.Err()
	}
}
