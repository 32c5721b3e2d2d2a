// Package memory is an in-process repository.Store.
//
// Units of work are serialized by one mutex and run against a copy of the
// state that replaces the live state only on success, which gives the same
// all-or-nothing visibility as a database transaction. It backs the unit
// tests and `database.driver: memory`; it is not shared across processes.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/repository"
)

type state struct {
	services map[int64]*model.Service
	slots    map[int64]*model.TimeSlot
	bookings map[int64]*model.Booking
	payments map[int64]*model.Payment
	users    map[int64]*model.User
	reviews  []model.Review

	nextService, nextSlot, nextBooking, nextPayment, nextUser, nextReview int64
}

func newState() *state {
	return &state{
		services: map[int64]*model.Service{},
		slots:    map[int64]*model.TimeSlot{},
		bookings: map[int64]*model.Booking{},
		payments: map[int64]*model.Payment{},
		users:    map[int64]*model.User{},
	}
}

func cloneRows[K comparable, V any](m map[K]*V) map[K]*V {
	out := make(map[K]*V, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

func (s *state) clone() *state {
	cp := *s
	cp.services = cloneRows(s.services)
	cp.slots = cloneRows(s.slots)
	cp.bookings = cloneRows(s.bookings)
	cp.payments = cloneRows(s.payments)
	cp.users = cloneRows(s.users)
	cp.reviews = slices.Clone(s.reviews)
	return &cp
}

// runner executes fn against some state: the live one under the store lock,
// or a transaction's private copy.
type runner interface {
	run(ctx context.Context, fn func(st *state) error) error
	now() time.Time
}

// Store is a repository.Store kept in memory.
type Store struct {
	mu    sync.Mutex
	st    *state
	clock func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests that assert on timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{st: newState(), clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type autocommit struct {
	s *Store
}

func (a autocommit) run(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	return fn(a.s.st)
}

func (a autocommit) now() time.Time { return a.s.clock().UTC() }

type txRunner struct {
	st    *state
	clock func() time.Time
}

func (t txRunner) run(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(t.st)
}

func (t txRunner) now() time.Time { return t.clock().UTC() }

func reposFor(r runner) repository.Repos {
	return repository.Repos{
		Slots:    &SlotRepository{r: r},
		Bookings: &BookingRepository{r: r},
		Payments: &PaymentRepository{r: r},
		Catalog:  &CatalogRepository{r: r},
		Users:    &UserRepository{r: r},
		Reviews:  &ReviewRepository{r: r},
	}
}

func (s *Store) Repos() repository.Repos {
	return reposFor(autocommit{s: s})
}

// InTx must not call s.Repos() from inside fn: the store lock is held.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, reposFor(txRunner{st: work, clock: s.clock})); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Close() {}

func sortedKeys[V any](m map[int64]V) []int64 {
	return slices.Sorted(maps.Keys(m))
}
