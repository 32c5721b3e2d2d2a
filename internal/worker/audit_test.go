package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/repository/memory"
)

type failingLister struct{}

func (failingLister) ListStalePending(context.Context, time.Time, int) ([]model.Booking, error) {
	return nil, errors.New("db down")
}

func TestRunOnce(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	store := memory.NewStore(memory.WithClock(func() time.Time { return now }))
	r := store.Repos()
	ctx := context.Background()

	svc := &model.Service{Name: "Career Counselling", Price: 5000, Duration: 60, Active: true}
	require.NoError(t, r.Catalog.CreateService(ctx, svc))
	for _, start := range []string{"09:00", "10:00", "11:00"} {
		slot := &model.TimeSlot{ServiceID: svc.ID, Date: "2026-11-02", StartTime: start, EndTime: start}
		require.NoError(t, r.Slots.Create(ctx, slot))
		_, err := r.Bookings.Create(ctx, 7, svc.ID, slot.ID)
		require.NoError(t, err)
	}
	_, err := r.Bookings.Transition(ctx, 3, model.BookingConfirmed)
	require.NoError(t, err)

	audit := NewPendingAudit(r.Bookings, time.Minute, 2*time.Hour, 10)
	audit.now = func() time.Time { return now.Add(time.Hour) }
	assert.Equal(t, 0, audit.RunOnce(ctx))

	audit.now = func() time.Time { return now.Add(3 * time.Hour) }
	assert.Equal(t, 2, audit.RunOnce(ctx))

	audit.batchSize = 1
	assert.Equal(t, 1, audit.RunOnce(ctx))
}

func TestRunOnceListError(t *testing.T) {
	audit := NewPendingAudit(failingLister{}, time.Minute, time.Hour, 10)
	assert.Equal(t, 0, audit.RunOnce(context.Background()))
}

func TestStartStopsOnCancel(t *testing.T) {
	audit := NewPendingAudit(failingLister{}, time.Millisecond, time.Hour, 10)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		audit.Start(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
