package repository

import (
	"context"
	"time"

	"carshare/internal/domain"
)

// WithdrawalRepository defines the persistence operations for withdrawals.
type WithdrawalRepository interface {
	// BalanceVersion returns the owner's balance token, 0 if the owner never withdrew.
	BalanceVersion(ctx context.Context, ownerID string) (int64, error)

	// CreateWithVersion inserts a withdrawal and bumps the owner's balance token,
	// failing with ErrVersionConflict if the token is no longer expectedVersion.
	CreateWithVersion(ctx context.Context, w *domain.WithdrawalRequest, expectedVersion int64) error

	// GetByID retrieves a withdrawal by ID.
	GetByID(ctx context.Context, id string) (*domain.WithdrawalRequest, error)

	// ListByOwner retrieves an owner's withdrawals, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.WithdrawalRequest, error)

	// UpdateStatus persists w's new status if the stored status is still from.
	// A status that moved in the meantime yields ErrVersionConflict.
	UpdateStatus(ctx context.Context, w *domain.WithdrawalRequest, from domain.WithdrawalStatus) error

	// SumHeldByOwner totals the owner's withdrawals that still hold funds (not FAILED).
	SumHeldByOwner(ctx context.Context, ownerID, currency string) (domain.Money, error)

	// ListStale retrieves withdrawals in status last updated before the cutoff.
	ListStale(ctx context.Context, status domain.WithdrawalStatus, before time.Time) ([]*domain.WithdrawalRequest, error)
}
