package collapse

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"siren/internal/logging"
)

// reservedMember names the collapse operation. It cannot be written as a
// member name by callers and never shows up in Members.
const reservedMember = "\x00collapse"

// Materializer fetches the full value a stub stands for.
type Materializer[S, F any] func(ctx context.Context, stub S) (F, error)

// Owner tells which side answers a member.
type Owner int

const (
	OwnerStub Owner = iota
	OwnerFull
)

func (o Owner) String() string {
	if o == OwnerFull {
		return "full"
	}
	return "stub"
}

// Member is one entry of a stub's member listing.
type Member struct {
	Name  string
	Owner Owner
}

// Option configures a Stub.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for materialization events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Stub answers for a full value of type F until, and after, it is
// materialized. Its zero value is not usable; construct with New.
type Stub[S any, F Object] struct {
	key         string
	data        S
	methods     Methods[S, F]
	materialize Materializer[S, F]
	cell        Cell[F]
	logger      *slog.Logger
}

// New wraps data into a stub with a fresh cell. key identifies the entity in
// errors and logs.
func New[S any, F Object](key string, data S, methods Methods[S, F], materialize Materializer[S, F], opts ...Option) *Stub[S, F] {
	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	table := make(Methods[S, F], len(methods))
	for name, method := range methods {
		if name == reservedMember || method == nil {
			continue
		}
		table[name] = method
	}
	logger := cfg.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stub[S, F]{
		key:         key,
		data:        data,
		methods:     table,
		materialize: materialize,
		logger:      logging.NewComponentLogger(logger, "collapse").With(logging.String("stub_key", key)),
	}
}

// Key returns the identity the stub was built with.
func (s *Stub[S, F]) Key() string { return s.key }

// Data returns the stub snapshot.
func (s *Stub[S, F]) Data() S { return s.data }

// State reports the lifecycle position of the stub's cell.
func (s *Stub[S, F]) State() State { return s.cell.State() }

// Peek returns the full value if the stub is materialized.
func (s *Stub[S, F]) Peek() (F, bool) { return s.cell.Peek() }

// Materialize waits for the full value, starting a flight if needed.
func (s *Stub[S, F]) Materialize(ctx context.Context) (F, error) {
	return s.trigger(ctx).Await(ctx)
}

// Call resolves name against the full value first, once materialized, and
// the stub's own methods otherwise.
func (s *Stub[S, F]) Call(ctx context.Context, name string, args ...any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if full, ok := s.cell.Peek(); ok {
		if fn, ok := full.Lookup(name); ok {
			return fn(ctx, args...)
		}
	}
	method, ok := s.methods[name]
	if !ok {
		return nil, &MemberError{Key: s.key, Name: name}
	}
	out, err := method(ctx, s.data, args...)
	if err != nil {
		return nil, err
	}
	switch out.kind {
	case kindTransform:
		full, err := s.trigger(ctx).Await(ctx)
		if err != nil {
			return nil, err
		}
		return out.apply(ctx, full)
	case kindTo:
		return s.offer(ctx, out)
	default:
		return out.value, nil
	}
}

// Has reports whether name is currently answerable.
func (s *Stub[S, F]) Has(name string) bool {
	if _, ok := s.methods[name]; ok {
		return true
	}
	if full, ok := s.cell.Peek(); ok {
		_, ok := full.Lookup(name)
		return ok
	}
	return false
}

// Members lists the union of stub and full member names, sorted, with the
// full value owning names both sides define.
func (s *Stub[S, F]) Members() []Member {
	owners := make(map[string]Owner, len(s.methods))
	for name := range s.methods {
		owners[name] = OwnerStub
	}
	if full, ok := s.cell.Peek(); ok {
		for _, name := range full.Members() {
			if name == reservedMember {
				continue
			}
			owners[name] = OwnerFull
		}
	}
	members := make([]Member, 0, len(owners))
	for name, owner := range owners {
		members = append(members, Member{Name: name, Owner: owner})
	}
	slices.SortFunc(members, func(a, b Member) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return members
}

// MemberNames is Members without ownership.
func (s *Stub[S, F]) MemberNames() []string {
	members := s.Members()
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return names
}

func (s *Stub[S, F]) collapseMembers() []string {
	return append(s.MemberNames(), reservedMember)
}

func (s *Stub[S, F]) identity() any { return s }

func (s *Stub[S, F]) catalyze(ctx context.Context, receiver any) *Future[F] {
	r, ok := receiver.(interface{ identity() any })
	if !ok || r.identity() != s.identity() {
		return failedFuture[F](ErrBadSignalUsage)
	}
	return s.trigger(ctx)
}

func (s *Stub[S, F]) trigger(ctx context.Context) *Future[F] {
	return s.cell.Trigger(ctx, func(ctx context.Context) (F, error) {
		return s.observe(ctx, "materializer", func(ctx context.Context) (F, error) {
			return s.materialize(ctx, s.data)
		})
	})
}

func (s *Stub[S, F]) offer(ctx context.Context, out Outcome[S, F]) (any, error) {
	var result any
	fut := s.cell.Offer(ctx, func(ctx context.Context) (F, error) {
		return s.observe(ctx, "to", func(ctx context.Context) (F, error) {
			full, r, err := out.to(ctx, s.data)
			if err != nil {
				return full, err
			}
			result = r
			return full, nil
		})
	})
	if _, err := fut.Await(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Stub[S, F]) observe(ctx context.Context, route string, fn func(context.Context) (F, error)) (F, error) {
	start := time.Now()
	s.logger.DebugContext(ctx, "materialization started", logging.String("route", route))
	full, err := invoke(ctx, fn)
	if err != nil {
		s.logger.DebugContext(ctx, "materialization failed",
			logging.String("route", route),
			logging.Duration("elapsed", time.Since(start)),
			logging.Error(err),
		)
		var zero F
		return zero, &MaterializationError{Key: s.key, Cause: err}
	}
	s.logger.DebugContext(ctx, "materialization completed",
		logging.String("route", route),
		logging.Duration("elapsed", time.Since(start)),
	)
	return full, nil
}
