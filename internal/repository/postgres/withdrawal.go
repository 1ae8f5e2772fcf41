package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"carshare/internal/domain"
	"carshare/internal/repository"
)

const withdrawalColumns = `id, owner_id, currency, amount_minor, method, method_details, status, reference,
	failure_reason, created_at, updated_at`

// WithdrawalRepository is a PostgreSQL implementation of repository.WithdrawalRepository.
type WithdrawalRepository struct {
	db *sql.DB
}

// NewWithdrawalRepository creates a new PostgreSQL withdrawal repository.
func NewWithdrawalRepository(db *sql.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// BalanceVersion returns the owner's balance token.
func (r *WithdrawalRepository) BalanceVersion(ctx context.Context, ownerID string) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `SELECT version FROM owner_balances WHERE owner_id = $1`, ownerID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return version, err
}

// CreateWithVersion inserts w if the owner's balance token still equals expectedVersion.
func (r *WithdrawalRepository) CreateWithVersion(ctx context.Context, w *domain.WithdrawalRequest, expectedVersion int64) error {
	// The first withdrawal inserts the token row; later ones bump it only if unchanged.
	bump := `
		INSERT INTO owner_balances (owner_id, version) VALUES ($1, 1)
		ON CONFLICT (owner_id) DO UPDATE SET version = owner_balances.version + 1
		WHERE owner_balances.version = $2
	`
	insert := `
		INSERT INTO withdrawals (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	return inTx(ctx, r.db, func(q Querier) error {
		result, err := q.ExecContext(ctx, bump, w.OwnerID, expectedVersion)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return repository.ErrVersionConflict
		}

		_, err = q.ExecContext(ctx, insert,
			w.ID,
			w.OwnerID,
			w.Amount.Currency,
			w.Amount.Amount,
			w.Method,
			w.MethodDetails,
			w.Status,
			w.Reference,
			nullString(w.FailureReason),
			w.CreatedAt,
			w.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return err
	})
}

// GetByID retrieves a withdrawal by ID.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	w, err := scanWithdrawal(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return w, err
}

// ListByOwner retrieves an owner's withdrawals, newest first.
func (r *WithdrawalRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE owner_id = $1 ORDER BY created_at DESC LIMIT 100`
	return r.list(ctx, query, ownerID)
}

// ListStale retrieves up to 100 withdrawals in status not touched since before.
func (r *WithdrawalRepository) ListStale(ctx context.Context, status domain.WithdrawalStatus, before time.Time) ([]*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE status = $1 AND updated_at < $2 ORDER BY created_at LIMIT 100`
	return r.list(ctx, query, status, before)
}

// UpdateStatus persists the status of a withdrawal if it is still in from.
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, w *domain.WithdrawalRequest, from domain.WithdrawalStatus) error {
	query := `UPDATE withdrawals SET status = $1, failure_reason = $2, updated_at = $3 WHERE id = $4 AND status = $5`

	result, err := r.db.ExecContext(ctx, query, w.Status, nullString(w.FailureReason), w.UpdatedAt, w.ID, from)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM withdrawals WHERE id = $1)`, w.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrVersionConflict
	}
	return nil
}

// SumHeldByOwner totals the owner's withdrawals that have not failed.
func (r *WithdrawalRepository) SumHeldByOwner(ctx context.Context, ownerID, currency string) (domain.Money, error) {
	query := `
		SELECT COALESCE(SUM(amount_minor), 0)
		FROM withdrawals WHERE owner_id = $1 AND currency = $2 AND status <> $3
	`

	var total int64
	if err := r.db.QueryRowContext(ctx, query, ownerID, currency, domain.WithdrawalStatusFailed).Scan(&total); err != nil {
		return domain.Money{}, err
	}
	return domain.NewMoney(total, currency), nil
}

func (r *WithdrawalRepository) list(ctx context.Context, query string, args ...any) ([]*domain.WithdrawalRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanWithdrawal(row rowScanner) (*domain.WithdrawalRequest, error) {
	var w domain.WithdrawalRequest
	var currency string
	var amount int64
	var failureReason sql.NullString

	err := row.Scan(
		&w.ID,
		&w.OwnerID,
		&currency,
		&amount,
		&w.Method,
		&w.MethodDetails,
		&w.Status,
		&w.Reference,
		&failureReason,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.Amount = domain.NewMoney(amount, currency)
	w.FailureReason = failureReason.String
	return &w, nil
}
