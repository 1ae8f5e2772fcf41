package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"carshare/internal/domain"
	"carshare/internal/repository"
)

const bookingColumns = `id, renter_id, provider_id, provider_role, vehicle_id, pickup_at, dropoff_at, currency,
	gross_minor, commission_rate, commission_minor, net_minor, refund_minor, status, rejection_reason,
	special_instructions, started_at, created_at, updated_at, version`

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	db *sql.DB
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create persists a new booking at version 1 together with its history.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 1)
	`

	err := inTx(ctx, r.db, func(q Querier) error {
		var startedAt sql.NullTime
		if b.IsStarted() {
			startedAt = sql.NullTime{Time: b.StartedAt, Valid: true}
		}

		if _, err := q.ExecContext(ctx, query,
			b.ID,
			b.RenterID,
			b.ProviderID,
			b.ProviderRole,
			b.VehicleID,
			b.PickupAt,
			b.DropoffAt,
			b.GrossAmount.Currency,
			b.GrossAmount.Amount,
			b.CommissionRate,
			b.CommissionAmount.Amount,
			b.NetAmount.Amount,
			b.RefundAmount.Amount,
			b.Status,
			nullString(b.RejectionReason),
			nullString(b.SpecialInstructions),
			startedAt,
			b.CreatedAt,
			b.UpdatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return repository.ErrDuplicate
			}
			return err
		}
		return insertHistory(ctx, q, b)
	})
	if err != nil {
		return err
	}

	b.Version = 1
	return nil
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if err := r.loadHistory(ctx, []*domain.Booking{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// Update writes the snapshot if nobody else has changed the row since expectedVersion.
func (r *BookingRepository) Update(ctx context.Context, b *domain.Booking, expectedVersion int64) error {
	query := `
		UPDATE bookings
		SET status = $1, commission_minor = $2, net_minor = $3, refund_minor = $4, rejection_reason = $5,
			started_at = $6, updated_at = $7, version = version + 1
		WHERE id = $8 AND version = $9
	`

	err := inTx(ctx, r.db, func(q Querier) error {
		var startedAt sql.NullTime
		if b.IsStarted() {
			startedAt = sql.NullTime{Time: b.StartedAt, Valid: true}
		}

		result, err := q.ExecContext(ctx, query,
			b.Status,
			b.CommissionAmount.Amount,
			b.NetAmount.Amount,
			b.RefundAmount.Amount,
			nullString(b.RejectionReason),
			startedAt,
			b.UpdatedAt,
			b.ID,
			expectedVersion,
		)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			var exists bool
			if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, b.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return repository.ErrNotFound
			}
			return repository.ErrVersionConflict
		}

		return insertHistory(ctx, q, b)
	})
	if err != nil {
		return err
	}

	b.Version = expectedVersion + 1
	return nil
}

// ListByProvider retrieves a provider's bookings, newest first.
func (r *BookingRepository) ListByProvider(ctx context.Context, providerID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE provider_id = $1 ORDER BY created_at DESC LIMIT 100`

	rows, err := r.db.QueryContext(ctx, query, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadHistory(ctx, bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// SumNetByProvider totals net earnings of the provider's bookings in status.
func (r *BookingRepository) SumNetByProvider(ctx context.Context, providerID string, status domain.BookingStatus, currency string) (domain.Money, error) {
	query := `
		SELECT COALESCE(SUM(net_minor), 0)
		FROM bookings WHERE provider_id = $1 AND status = $2 AND currency = $3
	`

	var total int64
	if err := r.db.QueryRowContext(ctx, query, providerID, status, currency).Scan(&total); err != nil {
		return domain.Money{}, err
	}
	return domain.NewMoney(total, currency), nil
}

func (r *BookingRepository) loadHistory(ctx context.Context, bookings []*domain.Booking) error {
	if len(bookings) == 0 {
		return nil
	}

	ids := make([]string, len(bookings))
	byID := make(map[string]*domain.Booking, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
		byID[b.ID] = b
	}

	query := `
		SELECT booking_id, status, actor_id, reason, at
		FROM booking_status_history WHERE booking_id = ANY($1) ORDER BY booking_id, seq
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var bookingID string
		var change domain.StatusChange
		var reason sql.NullString
		if err := rows.Scan(&bookingID, &change.Status, &change.ActorID, &reason, &change.At); err != nil {
			return err
		}
		change.Reason = reason.String
		if b, ok := byID[bookingID]; ok {
			b.StatusHistory = append(b.StatusHistory, change)
		}
	}
	return rows.Err()
}

// insertHistory writes the history entries that are not stored yet. Entries are
// keyed by position, so rewriting an already stored prefix is a no-op.
func insertHistory(ctx context.Context, q Querier, b *domain.Booking) error {
	query := `
		INSERT INTO booking_status_history (booking_id, seq, status, actor_id, reason, at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (booking_id, seq) DO NOTHING
	`

	for i, change := range b.StatusHistory {
		if _, err := q.ExecContext(ctx, query, b.ID, i, change.Status, change.ActorID, nullString(change.Reason), change.At); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	var currency string
	var gross, commission, net, refund int64
	var rejectionReason, specialInstructions sql.NullString
	var startedAt sql.NullTime

	err := row.Scan(
		&b.ID,
		&b.RenterID,
		&b.ProviderID,
		&b.ProviderRole,
		&b.VehicleID,
		&b.PickupAt,
		&b.DropoffAt,
		&currency,
		&gross,
		&b.CommissionRate,
		&commission,
		&net,
		&refund,
		&b.Status,
		&rejectionReason,
		&specialInstructions,
		&startedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.Version,
	)
	if err != nil {
		return nil, err
	}

	b.GrossAmount = domain.NewMoney(gross, currency)
	b.CommissionAmount = domain.NewMoney(commission, currency)
	b.NetAmount = domain.NewMoney(net, currency)
	b.RefundAmount = domain.NewMoney(refund, currency)
	b.RejectionReason = rejectionReason.String
	b.SpecialInstructions = specialInstructions.String
	if startedAt.Valid {
		b.StartedAt = startedAt.Time
	}
	return &b, nil
}
