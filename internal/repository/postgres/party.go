package postgres

import (
	"context"
	"database/sql"
	"errors"

	"carshare/internal/domain"
	"carshare/internal/repository"
)

// PartyRepository implements repository.PartyRepository using PostgreSQL.
type PartyRepository struct {
	db *sql.DB
}

// NewPartyRepository creates a new PartyRepository.
func NewPartyRepository(db *sql.DB) *PartyRepository {
	return &PartyRepository{db: db}
}

// Create adds a new party.
func (r *PartyRepository) Create(ctx context.Context, party *domain.Party) error {
	query := `INSERT INTO parties (id, name, phone, email, role, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, party.ID, party.Name, party.Phone, party.Email, party.Role, party.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a party by ID.
func (r *PartyRepository) GetByID(ctx context.Context, id string) (*domain.Party, error) {
	query := `SELECT id, name, phone, email, role, created_at FROM parties WHERE id = $1`
	return scanParty(r.db.QueryRowContext(ctx, query, id))
}

// GetByPhone retrieves a party by phone number.
func (r *PartyRepository) GetByPhone(ctx context.Context, phone string) (*domain.Party, error) {
	query := `SELECT id, name, phone, email, role, created_at FROM parties WHERE phone = $1`
	return scanParty(r.db.QueryRowContext(ctx, query, phone))
}

// GetAll retrieves all parties.
func (r *PartyRepository) GetAll(ctx context.Context) ([]*domain.Party, error) {
	query := `SELECT id, name, phone, email, role, created_at FROM parties ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parties []*domain.Party
	for rows.Next() {
		var p domain.Party
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.Email, &p.Role, &p.CreatedAt); err != nil {
			return nil, err
		}
		parties = append(parties, &p)
	}
	return parties, rows.Err()
}

func scanParty(row *sql.Row) (*domain.Party, error) {
	var p domain.Party
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Email, &p.Role, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
