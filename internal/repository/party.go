package repository

import (
	"context"

	"carshare/internal/domain"
)

// PartyRepository defines the persistence operations for renters, owners and drivers.
type PartyRepository interface {
	// Create adds a new party. A taken phone number yields ErrDuplicate.
	Create(ctx context.Context, party *domain.Party) error

	// GetByID retrieves a party by ID.
	GetByID(ctx context.Context, id string) (*domain.Party, error)

	// GetByPhone retrieves a party by phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.Party, error)

	// GetAll retrieves all parties.
	GetAll(ctx context.Context) ([]*domain.Party, error)
}
