package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
)

type SlotRepository struct{ r runner }

func (s *SlotRepository) TryReserve(ctx context.Context, slotID int64) (bool, error) {
	var reserved bool
	err := s.r.run(ctx, func(st *state) error {
		slot, ok := st.slots[slotID]
		if !ok || slot.Occupied {
			return nil
		}
		if svc, ok := st.services[slot.ServiceID]; !ok || !svc.Active {
			return nil
		}
		slot.Occupied = true
		reserved = true
		return nil
	})
	return reserved, err
}

func (s *SlotRepository) Get(ctx context.Context, slotID int64) (*model.TimeSlot, error) {
	var out model.TimeSlot
	err := s.r.run(ctx, func(st *state) error {
		slot, ok := st.slots[slotID]
		if !ok {
			return model.ErrNotFound
		}
		out = *slot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SlotRepository) ListByService(ctx context.Context, serviceID int64) ([]model.TimeSlot, error) {
	var out []model.TimeSlot
	err := s.r.run(ctx, func(st *state) error {
		for _, id := range sortedKeys(st.slots) {
			if slot := st.slots[id]; slot.ServiceID == serviceID {
				out = append(out, *slot)
			}
		}
		return nil
	})
	slices.SortStableFunc(out, func(a, b model.TimeSlot) int {
		return strings.Compare(a.Date+a.StartTime, b.Date+b.StartTime)
	})
	return out, err
}

func (s *SlotRepository) Create(ctx context.Context, slot *model.TimeSlot) error {
	return s.r.run(ctx, func(st *state) error {
		if _, ok := st.services[slot.ServiceID]; !ok {
			return fmt.Errorf("insert slot: service %d: %w", slot.ServiceID, model.ErrNotFound)
		}
		st.nextSlot++
		slot.ID = st.nextSlot
		cp := *slot
		st.slots[slot.ID] = &cp
		return nil
	})
}

type BookingRepository struct{ r runner }

func (b *BookingRepository) Create(ctx context.Context, userID, serviceID, slotID int64) (*model.Booking, error) {
	var out model.Booking
	err := b.r.run(ctx, func(st *state) error {
		for _, existing := range st.bookings {
			if existing.SlotID == slotID && existing.Status == model.BookingPending {
				return fmt.Errorf("slot %d: %w", slotID, model.ErrConflict)
			}
		}
		now := b.r.now()
		st.nextBooking++
		row := &model.Booking{
			ID:        st.nextBooking,
			UserID:    userID,
			ServiceID: serviceID,
			SlotID:    slotID,
			Status:    model.BookingPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.bookings[row.ID] = row
		out = *row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *BookingRepository) Get(ctx context.Context, bookingID int64) (*model.Booking, error) {
	var out model.Booking
	err := b.r.run(ctx, func(st *state) error {
		row, ok := st.bookings[bookingID]
		if !ok {
			return model.ErrNotFound
		}
		out = *row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForUpdate is Get: the enclosing unit of work already holds the store lock.
func (b *BookingRepository) GetForUpdate(ctx context.Context, bookingID int64) (*model.Booking, error) {
	return b.Get(ctx, bookingID)
}

func (b *BookingRepository) Transition(ctx context.Context, bookingID int64, to model.BookingStatus) (bool, error) {
	var changed bool
	err := b.r.run(ctx, func(st *state) error {
		row, ok := st.bookings[bookingID]
		if !ok {
			return model.ErrNotFound
		}
		var err error
		if changed, err = model.NextBookingStatus(row.Status, to); err != nil || !changed {
			return err
		}
		row.Status = to
		row.UpdatedAt = b.r.now()
		return nil
	})
	return changed, err
}

func (b *BookingRepository) ListByUser(ctx context.Context, userID int64) ([]model.BookingDetails, error) {
	var out []model.BookingDetails
	err := b.r.run(ctx, func(st *state) error {
		for _, id := range sortedKeys(st.bookings) {
			row := st.bookings[id]
			if row.UserID != userID {
				continue
			}
			d := model.BookingDetails{Booking: *row, PaymentStatus: model.PaymentPending}
			if svc, ok := st.services[row.ServiceID]; ok {
				d.ServiceName, d.Price = svc.Name, svc.Price
			}
			if slot, ok := st.slots[row.SlotID]; ok {
				d.Date, d.StartTime, d.EndTime = slot.Date, slot.StartTime, slot.EndTime
			}
			for _, p := range st.payments {
				if p.BookingID == row.ID {
					d.PaymentStatus = p.Status
				}
			}
			out = append(out, d)
		}
		return nil
	})
	// newest first, like the SQL implementation
	slices.Reverse(out)
	return out, err
}

func (b *BookingRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]model.Booking, error) {
	var out []model.Booking
	err := b.r.run(ctx, func(st *state) error {
		for _, id := range sortedKeys(st.bookings) {
			if len(out) >= limit {
				break
			}
			row := st.bookings[id]
			if row.Status == model.BookingPending && row.CreatedAt.Before(createdBefore) {
				out = append(out, *row)
			}
		}
		return nil
	})
	return out, err
}

type PaymentRepository struct{ r runner }

func (p *PaymentRepository) Create(ctx context.Context, bookingID, amount int64, reference, provider string) (*model.Payment, error) {
	var out model.Payment
	err := p.r.run(ctx, func(st *state) error {
		if _, ok := st.bookings[bookingID]; !ok {
			return fmt.Errorf("insert payment: booking %d: %w", bookingID, model.ErrNotFound)
		}
		for _, existing := range st.payments {
			if existing.BookingID == bookingID || existing.Reference == reference {
				return fmt.Errorf("payment for booking %d: %w", bookingID, model.ErrConflict)
			}
		}
		now := p.r.now()
		st.nextPayment++
		row := &model.Payment{
			ID:        st.nextPayment,
			BookingID: bookingID,
			Amount:    amount,
			Status:    model.PaymentPending,
			Reference: reference,
			Provider:  provider,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.payments[row.ID] = row
		out = *row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *PaymentRepository) find(ctx context.Context, match func(*model.Payment) bool) (*model.Payment, error) {
	var out model.Payment
	err := p.r.run(ctx, func(st *state) error {
		for _, id := range sortedKeys(st.payments) {
			if row := st.payments[id]; match(row) {
				out = *row
				return nil
			}
		}
		return model.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *PaymentRepository) GetByBooking(ctx context.Context, bookingID int64) (*model.Payment, error) {
	return p.find(ctx, func(row *model.Payment) bool { return row.BookingID == bookingID })
}

func (p *PaymentRepository) GetByReference(ctx context.Context, reference string) (*model.Payment, error) {
	return p.find(ctx, func(row *model.Payment) bool { return row.Reference == reference })
}

func (p *PaymentRepository) GetForUpdate(ctx context.Context, paymentID int64) (*model.Payment, error) {
	return p.find(ctx, func(row *model.Payment) bool { return row.ID == paymentID })
}

func (p *PaymentRepository) Transition(ctx context.Context, paymentID int64, to model.PaymentStatus, externalRef string) (bool, error) {
	var changed bool
	err := p.r.run(ctx, func(st *state) error {
		row, ok := st.payments[paymentID]
		if !ok {
			return model.ErrNotFound
		}
		var err error
		changed, err = model.NextPaymentStatus(row.Status, to)
		if err != nil {
			return err
		}
		if !changed {
			if externalRef != "" && row.ExternalRef != "" && externalRef != row.ExternalRef {
				logrus.WithFields(logrus.Fields{
					"payment_id":   paymentID,
					"status":       row.Status,
					"external_ref": row.ExternalRef,
					"received_ref": externalRef,
				}).Warn("duplicate delivery with a different gateway reference ignored")
			}
			return nil
		}
		row.Status = to
		if row.ExternalRef == "" {
			row.ExternalRef = externalRef
		}
		row.UpdatedAt = p.r.now()
		return nil
	})
	return changed, err
}

type CatalogRepository struct{ r runner }

func (c *CatalogRepository) GetService(ctx context.Context, serviceID int64) (*model.Service, error) {
	var out model.Service
	err := c.r.run(ctx, func(st *state) error {
		svc, ok := st.services[serviceID]
		if !ok {
			return model.ErrNotFound
		}
		out = *svc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *CatalogRepository) ListActive(ctx context.Context) ([]model.Service, error) {
	var out []model.Service
	err := c.r.run(ctx, func(st *state) error {
		for _, id := range sortedKeys(st.services) {
			if svc := st.services[id]; svc.Active {
				out = append(out, *svc)
			}
		}
		return nil
	})
	return out, err
}

func (c *CatalogRepository) CreateService(ctx context.Context, svc *model.Service) error {
	return c.r.run(ctx, func(st *state) error {
		st.nextService++
		svc.ID = st.nextService
		svc.CreatedAt = c.r.now()
		cp := *svc
		st.services[svc.ID] = &cp
		return nil
	})
}

// SetServiceActive toggles a catalog entry. Catalog editing lives outside
// the core; tests use this to simulate it.
func (s *Store) SetServiceActive(serviceID int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc, ok := s.st.services[serviceID]; ok {
		svc.Active = active
	}
}

// SetServicePrice changes a catalog price, see SetServiceActive.
func (s *Store) SetServicePrice(serviceID, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc, ok := s.st.services[serviceID]; ok {
		svc.Price = price
	}
}

type UserRepository struct{ r runner }

func (u *UserRepository) Create(ctx context.Context, user *model.User) error {
	return u.r.run(ctx, func(st *state) error {
		for _, existing := range st.users {
			if existing.Email == user.Email {
				return fmt.Errorf("user %s: %w", user.Email, model.ErrConflict)
			}
		}
		st.nextUser++
		user.ID = st.nextUser
		user.CreatedAt = u.r.now()
		cp := *user
		st.users[user.ID] = &cp
		return nil
	})
}

func (u *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var out model.User
	err := u.r.run(ctx, func(st *state) error {
		for _, id := range sortedKeys(st.users) {
			if row := st.users[id]; row.Email == email {
				out = *row
				return nil
			}
		}
		return model.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type ReviewRepository struct{ r runner }

func (rv *ReviewRepository) Flag(ctx context.Context, review *model.Review) error {
	return rv.r.run(ctx, func(st *state) error {
		for _, existing := range st.reviews {
			if existing.PaymentID == review.PaymentID &&
				existing.RequestedStatus == review.RequestedStatus &&
				existing.ExternalRef == review.ExternalRef {
				review.ID, review.CreatedAt = existing.ID, existing.CreatedAt
				return nil
			}
		}
		st.nextReview++
		review.ID = st.nextReview
		review.CreatedAt = rv.r.now()
		st.reviews = append(st.reviews, *review)
		return nil
	})
}

func (rv *ReviewRepository) List(ctx context.Context, limit int) ([]model.Review, error) {
	var out []model.Review
	err := rv.r.run(ctx, func(st *state) error {
		for i := len(st.reviews) - 1; i >= 0 && len(out) < limit; i-- {
			out = append(out, st.reviews[i])
		}
		return nil
	})
	return out, err
}
