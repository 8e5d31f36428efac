package repository

import (
	"context"

	"github.com/tendant/pawfinder/pkg/domain"
)

// AccountRepository persists accounts. Usernames and emails are stored normalized.
type AccountRepository interface {
	// Create inserts the account and sets its ID and CreatedAt. It returns
	// domain.ErrUsernameAlreadyExists or domain.ErrEmailAlreadyExists on conflict.
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// TransitionFunc mutates a pet inside an atomic read-modify-write.
type TransitionFunc func(p *domain.Pet) error

// PetRepository persists pets.
type PetRepository interface {
	// Create inserts the pet and sets its ID and timestamps.
	Create(ctx context.Context, pet *domain.Pet) error
	GetByID(ctx context.Context, id int64) (*domain.Pet, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*domain.Pet, error)
	// ListMissing returns missing pets with their owner's email, ordered by pet ID.
	ListMissing(ctx context.Context) ([]*domain.MissingPet, error)
	// Transition loads the pet, applies fn and stores the result atomically.
	// It returns domain.ErrPetNotFound when the pet does not exist.
	Transition(ctx context.Context, id int64, fn TransitionFunc) (*domain.Pet, error)
	// FindByPhotoDigest returns pets whose photo digest matches, ordered by pet ID.
	FindByPhotoDigest(ctx context.Context, digest string) ([]*domain.Pet, error)
}
