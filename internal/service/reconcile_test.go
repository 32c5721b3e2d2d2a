package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/repository/memory"
)

var acceptAll = VerifierFunc(func(map[string]string) bool { return true })

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type memoryReplay struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (m *memoryReplay) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], m.err
}

func (m *memoryReplay) Remember(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.keys[key] = true
	return nil
}

type reconcileFixture struct {
	*fixture
	reservation *Reservation
	reconciler  *Reconciler
	events      *fakePublisher
}

func newReconcileFixture(t *testing.T, opts ...Option) *reconcileFixture {
	t.Helper()
	clock := &tickingClock{now: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore(memory.WithClock(clock.Now))

	ctx := context.Background()
	r := store.Repos()
	svc := &model.Service{Name: "Career Counselling", Price: 5000, Duration: 60, Active: true}
	require.NoError(t, r.Catalog.CreateService(ctx, svc))
	slot := &model.TimeSlot{ServiceID: svc.ID, Date: "2026-11-02", StartTime: "09:00", EndTime: "10:00"}
	require.NoError(t, r.Slots.Create(ctx, slot))

	pub := &fakePublisher{}
	bookings := NewBookingService(store, WithReferenceGenerator(sequentialReferences()))
	res, err := bookings.Reserve(ctx, ReserveRequest{UserID: 7, ServiceID: svc.ID, SlotID: slot.ID, Contact: contact()})
	require.NoError(t, err)

	return &reconcileFixture{
		fixture:     &fixture{store: store, repos: r, service: svc, slots: []model.TimeSlot{*slot}},
		reservation: res,
		reconciler:  NewReconciler(store, append([]Option{WithPublisher(pub)}, opts...)...),
		events:      pub,
	}
}

func notify(reference, status, mihpayid string) map[string]string {
	return map[string]string{"txnid": reference, "status": status, "mihpayid": mihpayid}
}

func (f *reconcileFixture) state(t *testing.T) (*model.Booking, *model.Payment) {
	t.Helper()
	ctx := context.Background()
	b, err := f.repos.Bookings.Get(ctx, f.reservation.BookingID)
	require.NoError(t, err)
	p, err := f.repos.Payments.GetByBooking(ctx, f.reservation.BookingID)
	require.NoError(t, err)
	return b, p
}

func TestReconcileSuccessThenRedelivery(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()
	require.Equal(t, "TXN1000", f.reservation.Reference)

	res, err := f.reconciler.Reconcile(ctx, notify("TXN1000", "success", "P1"), acceptAll)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, f.reservation.BookingID, res.BookingID)
	assert.Equal(t, model.BookingConfirmed, res.BookingStatus)
	assert.Equal(t, model.PaymentSuccess, res.PaymentStatus)

	booking, payment := f.state(t)
	assert.Equal(t, model.BookingConfirmed, booking.Status)
	assert.Equal(t, model.PaymentSuccess, payment.Status)
	assert.Equal(t, "P1", payment.ExternalRef)

	res, err = f.reconciler.Reconcile(ctx, notify("TXN1000", "SUCCESS", "P1"), acceptAll)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)

	again, paymentAgain := f.state(t)
	assert.Equal(t, booking.UpdatedAt, again.UpdatedAt)
	assert.Equal(t, payment.UpdatedAt, paymentAgain.UpdatedAt)
	assert.Equal(t, []string{EventBookingConfirmed}, f.events.keys())
}

func TestReconcileFailure(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	res, err := f.reconciler.Reconcile(ctx, notify("TXN1000", "failure", "P9"), acceptAll)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	booking, payment := f.state(t)
	assert.Equal(t, model.BookingPending, booking.Status)
	assert.Equal(t, model.PaymentFailed, payment.Status)

	slot, err := f.repos.Slots.Get(ctx, f.slots[0].ID)
	require.NoError(t, err)
	assert.True(t, slot.Occupied)

	res, err = f.reconciler.Reconcile(ctx, notify("TXN1000", "failure", "P9"), acceptAll)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, []string{EventPaymentFailed}, f.events.keys())
}

func TestReconcileNonSuccessStatusIsFailure(t *testing.T) {
	f := newReconcileFixture(t)

	res, err := f.reconciler.Reconcile(context.Background(), notify("TXN1000", "pending", ""), acceptAll)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestReconcileSuccessAfterFailureIsFlagged(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	_, err := f.reconciler.Reconcile(ctx, notify("TXN1000", "failure", "P9"), acceptAll)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.reconciler.Reconcile(ctx, notify("TXN1000", "success", "P10"), acceptAll)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrIllegalTransition)
		var te *model.TransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "FAILED", te.From)
	}

	booking, payment := f.state(t)
	assert.Equal(t, model.BookingPending, booking.Status)
	assert.Equal(t, model.PaymentFailed, payment.Status)
	assert.Equal(t, "P9", payment.ExternalRef)

	reviews, err := f.repos.Reviews.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "P10", reviews[0].ExternalRef)
	assert.Equal(t, model.PaymentSuccess, reviews[0].RequestedStatus)

	assert.Equal(t, []string{EventPaymentFailed, EventPaymentReviewRequired, EventPaymentReviewRequired}, f.events.keys())
}

func TestReconcileFailureAfterSuccessIsDuplicate(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	_, err := f.reconciler.Reconcile(ctx, notify("TXN1000", "success", "P1"), acceptAll)
	require.NoError(t, err)

	res, err := f.reconciler.Reconcile(ctx, notify("TXN1000", "failure", "P2"), acceptAll)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)

	booking, payment := f.state(t)
	assert.Equal(t, model.BookingConfirmed, booking.Status)
	assert.Equal(t, model.PaymentSuccess, payment.Status)
	assert.Equal(t, "P1", payment.ExternalRef)
}

func TestReconcileRejects(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		fields   map[string]string
		verifier Verifier
		want     error
	}{
		{
			name:     "unknown booking",
			fields:   notify("TXN999", "success", "P1"),
			verifier: acceptAll,
			want:     model.ErrUnknownBooking,
		},
		{
			name:     "digits of a booking id are not a reference",
			fields:   notify("TXN1", "success", "P1"),
			verifier: acceptAll,
			want:     model.ErrUnknownBooking,
		},
		{
			name:     "missing txnid",
			fields:   notify("", "success", "P1"),
			verifier: acceptAll,
			want:     model.ErrUnknownBooking,
		},
		{
			name:     "missing status",
			fields:   notify("TXN1000", "", "P1"),
			verifier: acceptAll,
			want:     model.ErrInvalidNotification,
		},
		{
			name:     "verification fails",
			fields:   notify("TXN1000", "success", "P1"),
			verifier: VerifierFunc(func(map[string]string) bool { return false }),
			want:     model.ErrInvalidNotification,
		},
		{
			name:   "nil verifier",
			fields: notify("TXN1000", "success", "P1"),
			want:   model.ErrInvalidNotification,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.reconciler.Reconcile(ctx, tt.fields, tt.verifier)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	booking, payment := f.state(t)
	assert.Equal(t, model.BookingPending, booking.Status)
	assert.Equal(t, model.PaymentPending, payment.Status)
	assert.Empty(t, f.events.keys())
}

func TestReconcileVerifierSeesRawFields(t *testing.T) {
	f := newReconcileFixture(t)
	var got map[string]string
	verifier := VerifierFunc(func(fields map[string]string) bool {
		got = fields
		return false
	})

	fields := notify("TXN1000", "success", "P1")
	fields["hash"] = "abc"
	_, err := f.reconciler.Reconcile(context.Background(), fields, verifier)
	require.ErrorIs(t, err, model.ErrInvalidNotification)
	assert.Equal(t, "abc", got["hash"])
}

func TestReconcileConcurrentDeliveries(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	const deliveries = 16
	outcomes := make(chan Outcome, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.reconciler.Reconcile(ctx, notify("TXN1000", "success", "P1"), acceptAll)
			if assert.NoError(t, err) {
				outcomes <- res.Outcome
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[Outcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	assert.Equal(t, 1, counts[OutcomeConfirmed])
	assert.Equal(t, deliveries-1, counts[OutcomeDuplicate])
}

func TestReconcileReplayCache(t *testing.T) {
	replay := &memoryReplay{keys: map[string]bool{}}
	f := newReconcileFixture(t, WithReplayCache(replay))
	ctx := context.Background()

	res, err := f.reconciler.Reconcile(ctx, notify("TXN1000", "success", "P1"), acceptAll)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.True(t, replay.keys["TXN1000:success:P1"])

	res, err = f.reconciler.Reconcile(ctx, notify("TXN1000", "Success", "P1"), acceptAll)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Equal(t, model.BookingConfirmed, res.BookingStatus)
}

func TestReconcileReplayCacheUnavailable(t *testing.T) {
	replay := &memoryReplay{keys: map[string]bool{}, err: errors.New("connection refused")}
	f := newReconcileFixture(t, WithReplayCache(replay))
	ctx := context.Background()

	res, err := f.reconciler.Reconcile(ctx, notify("TXN1000", "success", "P1"), acceptAll)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)

	res, err = f.reconciler.Reconcile(ctx, notify("TXN1000", "success", "P1"), acceptAll)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
}

func TestReconcileDoesNotCacheFlaggedNotifications(t *testing.T) {
	replay := &memoryReplay{keys: map[string]bool{}}
	f := newReconcileFixture(t, WithReplayCache(replay))
	ctx := context.Background()

	_, err := f.reconciler.Reconcile(ctx, notify("TXN1000", "failure", "P9"), acceptAll)
	require.NoError(t, err)
	_, err = f.reconciler.Reconcile(ctx, notify("TXN1000", "success", "P10"), acceptAll)
	require.ErrorIs(t, err, model.ErrIllegalTransition)

	assert.False(t, replay.keys["TXN1000:success:P10"])
}
