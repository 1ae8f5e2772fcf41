package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carshare/internal/domain"
	"carshare/internal/repository"
)

var bookingRowColumns = []string{
	"id", "renter_id", "provider_id", "provider_role", "vehicle_id", "pickup_at", "dropoff_at", "currency",
	"gross_minor", "commission_rate", "commission_minor", "net_minor", "refund_minor", "status", "rejection_reason",
	"special_instructions", "started_at", "created_at", "updated_at", "version",
}

func sampleBooking(t *testing.T) *domain.Booking {
	t.Helper()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	b, err := domain.NewBooking(domain.NewBookingParams{
		ID:          "b-1",
		RenterID:    "renter-1",
		ProviderID:  "owner-1",
		VehicleID:   "car-1",
		PickupAt:    now.Add(48 * time.Hour),
		DropoffAt:   now.Add(96 * time.Hour),
		GrossAmount: domain.NewMoney(13500, "USD"),
	}, domain.CommissionPolicy{Rate: domain.DefaultCommissionRate}, now)
	require.NoError(t, err)
	return b
}

func TestBookingRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewBookingRepository(db)
	b := sampleBooking(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(b.ID, b.RenterID, b.ProviderID, b.ProviderRole, b.VehicleID, b.PickupAt, b.DropoffAt, "USD",
			int64(13500), sqlmock.AnyArg(), int64(2025), int64(11475), int64(0), b.Status,
			nil, nil, nil, b.CreatedAt, b.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_status_history").
		WithArgs(b.ID, 0, domain.BookingStatusPending, "renter-1", nil, b.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), b))
	assert.Equal(t, int64(1), b.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewBookingRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		b, err := sampleBooking(t).Transition("owner-1", domain.BookingStatusActive, "", time.Now())
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE bookings").
			WithArgs(domain.BookingStatusActive, int64(2025), int64(11475), int64(0), nil, nil, b.UpdatedAt, b.ID, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO booking_status_history").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO booking_status_history").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Update(ctx, b, 1))
		assert.Equal(t, int64(2), b.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("VersionConflict", func(t *testing.T) {
		b := sampleBooking(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE bookings").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").WithArgs(b.ID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		err := repo.Update(ctx, b, 1)
		assert.ErrorIs(t, err, repository.ErrVersionConflict)
		assert.Equal(t, int64(0), b.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		b := sampleBooking(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE bookings").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").WithArgs(b.ID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Update(ctx, b, 1), repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewBookingRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(bookingRowColumns).
			AddRow("b-1", "renter-1", "owner-1", "OWNER", "car-1", now, now.Add(time.Hour), "USD",
				int64(13500), "0.15", int64(2025), int64(11475), int64(0), "ACTIVE", nil,
				"child seat", now, now, now, int64(3))
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1").WithArgs("b-1").WillReturnRows(rows)

		history := sqlmock.NewRows([]string{"booking_id", "status", "actor_id", "reason", "at"}).
			AddRow("b-1", "PENDING", "renter-1", nil, now).
			AddRow("b-1", "ACTIVE", "owner-1", nil, now)
		mock.ExpectQuery("SELECT (.+) FROM booking_status_history").WillReturnRows(history)

		b, err := repo.GetByID(ctx, "b-1")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusActive, b.Status)
		assert.Equal(t, domain.NewMoney(11475, "USD"), b.NetAmount)
		assert.True(t, decimal.RequireFromString("0.15").Equal(b.CommissionRate))
		assert.True(t, b.IsStarted())
		assert.Equal(t, "child seat", b.SpecialInstructions)
		assert.Equal(t, int64(3), b.Version)
		assert.Len(t, b.StatusHistory, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1").WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(bookingRowColumns))

		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestBookingRepository_SumNetByProvider(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(net_minor\\), 0\\)").
		WithArgs("owner-1", domain.BookingStatusCompleted, "USD").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(100000)))

	total, err := NewBookingRepository(db).SumNetByProvider(context.Background(), "owner-1", domain.BookingStatusCompleted, "USD")
	require.NoError(t, err)
	assert.Equal(t, domain.NewMoney(100000, "USD"), total)
}
