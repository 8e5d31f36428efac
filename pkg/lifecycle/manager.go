// Package lifecycle owns pet registration and the Normal/Missing state
// machine, and announces every transition to realtime subscribers.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/pawfinder/internal/notification"
	"github.com/tendant/pawfinder/pkg/domain"
	"github.com/tendant/pawfinder/pkg/repository"
)

const (
	maxNameLength  = 100
	maxBreedLength = 100
	maxAge         = 100
)

// Publisher fans lifecycle events out to connected clients.
type Publisher interface {
	Broadcast(event string, payload any)
	Notify(accountID int64, event string, payload any)
}

// Manager applies pet lifecycle transitions.
type Manager struct {
	pets      repository.PetRepository
	accounts  repository.AccountRepository
	publisher Publisher
	mail      notification.Dispatcher
	logger    *slog.Logger
}

// NewManager creates a lifecycle manager. mail may be nil, in which case no
// alert e-mails are sent.
func NewManager(pets repository.PetRepository, accounts repository.AccountRepository, publisher Publisher, mail notification.Dispatcher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		pets:      pets,
		accounts:  accounts,
		publisher: publisher,
		mail:      mail,
		logger:    logger,
	}
}

// Register stores a new pet for ownerID in the Normal state.
func (m *Manager) Register(ctx context.Context, ownerID int64, in domain.NewPet) (*domain.Pet, error) {
	pet := &domain.Pet{
		OwnerAccountID: ownerID,
		Species:        domain.CleanText(in.Species),
		Name:           domain.CleanText(in.Name),
		Breed:          domain.CleanText(in.Breed),
		Age:            in.Age,
		Photo:          in.Photo,
		PhotoDigest:    domain.PhotoDigest(in.Photo),
		Status:         domain.PetStatusNormal,
	}

	if err := domain.ValidateLength("type", pet.Species, 1, maxNameLength); err != nil {
		return nil, err
	}
	if err := domain.ValidateLength("name", pet.Name, 1, maxNameLength); err != nil {
		return nil, err
	}
	if err := domain.ValidateLength("breed", pet.Breed, 0, maxBreedLength); err != nil {
		return nil, err
	}
	if pet.Age != nil && (*pet.Age < 0 || *pet.Age > maxAge) {
		return nil, fmt.Errorf("%w: age must be between 0 and %d", domain.ErrInvalidField, maxAge)
	}

	if err := m.pets.Create(ctx, pet); err != nil {
		return nil, fmt.Errorf("failed to register pet: %w", err)
	}

	m.logger.Info("pet registered", "pet_id", pet.ID, "owner_id", ownerID, "species", pet.Species)
	return pet, nil
}

// MarkMissing moves the pet to Missing with an optional last known location,
// broadcasts pet_missing and queues an alert to the owner. Marking an
// already-missing pet overwrites the location and announces it again.
func (m *Manager) MarkMissing(ctx context.Context, petID int64, loc *domain.Location) (*domain.Pet, error) {
	if loc != nil {
		if err := loc.Validate(); err != nil {
			return nil, err
		}
	}

	pet, err := m.pets.Transition(ctx, petID, func(p *domain.Pet) error {
		p.MarkMissing(loc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ownerEmail := m.ownerEmail(ctx, pet.OwnerAccountID)
	m.publisher.Broadcast(domain.EventPetMissing, domain.PetMissingEvent{
		PetEventFields: domain.NewPetEventFields(pet, ownerEmail),
	})
	m.logger.Info("pet marked missing", "pet_id", pet.ID, "owner_id", pet.OwnerAccountID, "has_location", loc != nil)

	if m.mail != nil && ownerEmail != "" {
		if err := m.mail.Enqueue(ctx, notification.MissingAlertMessage(ownerEmail, pet)); err != nil {
			m.logger.Warn("failed to queue missing alert", "pet_id", pet.ID, "error", err)
		}
	}
	return pet, nil
}

// MarkFound moves the pet back to Normal, clears its location and notifies
// only the owner's connections.
func (m *Manager) MarkFound(ctx context.Context, petID int64) (*domain.Pet, error) {
	pet, err := m.pets.Transition(ctx, petID, func(p *domain.Pet) error {
		p.MarkFound()
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.publisher.Notify(pet.OwnerAccountID, domain.EventPetFound, domain.PetFoundEvent{
		Message:        fmt.Sprintf("Good news! %s has been marked as found.", pet.Name),
		PetEventFields: domain.NewPetEventFields(pet, ""),
	})
	m.logger.Info("pet marked found", "pet_id", pet.ID, "owner_id", pet.OwnerAccountID)
	return pet, nil
}

// Get returns a pet by ID.
func (m *Manager) Get(ctx context.Context, petID int64) (*domain.Pet, error) {
	return m.pets.GetByID(ctx, petID)
}

// ListMissing returns every missing pet with its owner's contact e-mail.
func (m *Manager) ListMissing(ctx context.Context) ([]*domain.MissingPet, error) {
	return m.pets.ListMissing(ctx)
}

// ListByOwner returns an account's pets.
func (m *Manager) ListByOwner(ctx context.Context, ownerID int64) ([]*domain.Pet, error) {
	return m.pets.ListByOwner(ctx, ownerID)
}

func (m *Manager) ownerEmail(ctx context.Context, ownerID int64) string {
	owner, err := m.accounts.GetByID(ctx, ownerID)
	if err != nil {
		m.logger.Warn("failed to load pet owner", "owner_id", ownerID, "error", err)
		return ""
	}
	return owner.Email
}
