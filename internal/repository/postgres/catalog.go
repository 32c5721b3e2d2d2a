package postgres

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
)

type CatalogRepository struct {
	db dbtx
}

const serviceColumns = `id, name, description, price, duration, is_active, created_at`

func scanService(row rowScanner) (*model.Service, error) {
	var s model.Service
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.Duration, &s.Active, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *CatalogRepository) GetService(ctx context.Context, serviceID int64) (*model.Service, error) {
	s, err := scanService(r.db.QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`,
		serviceID,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (r *CatalogRepository) ListActive(ctx context.Context) ([]model.Service, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE is_active = TRUE ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) CreateService(ctx context.Context, svc *model.Service) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO services (name, description, price, duration, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		svc.Name, svc.Description, svc.Price, svc.Duration, svc.Active,
	).Scan(&svc.ID, &svc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

type UserRepository struct {
	db dbtx
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, phone)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		user.Email, user.PasswordHash, user.Phone,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, model.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx,
		`SELECT id, email, password_hash, phone, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Phone, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

type ReviewRepository struct {
	db dbtx
}

func (r *ReviewRepository) Flag(ctx context.Context, review *model.Review) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO payment_reviews
		   (booking_id, payment_id, reference, external_ref, current_status, requested_status, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (payment_id, requested_status, external_ref) DO UPDATE
		   SET reason = payment_reviews.reason
		 RETURNING id, created_at`,
		review.BookingID, review.PaymentID, review.Reference, review.ExternalRef,
		review.CurrentStatus, review.RequestedStatus, review.Reason,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (r *ReviewRepository) List(ctx context.Context, limit int) ([]model.Review, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, booking_id, payment_id, reference, external_ref, current_status, requested_status,
		        reason, created_at
		 FROM payment_reviews
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []model.Review
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.BookingID, &rv.PaymentID, &rv.Reference, &rv.ExternalRef,
			&rv.CurrentStatus, &rv.RequestedStatus, &rv.Reason, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
