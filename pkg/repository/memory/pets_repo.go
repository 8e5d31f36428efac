package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tendant/pawfinder/pkg/domain"
	"github.com/tendant/pawfinder/pkg/repository"
)

// PetRepo is an in-memory repository.PetRepository. Stored pets are cloned on
// the way in and out so callers never share mutable state with the store.
type PetRepo struct {
	mu       sync.RWMutex
	nextID   int64
	byID     map[int64]*domain.Pet
	accounts *AccountRepo
	now      func() time.Time
}

var _ repository.PetRepository = (*PetRepo)(nil)

// NewPetRepo returns an empty pet repository. accounts resolves owner
// emails for ListMissing and enforces the owner reference.
func NewPetRepo(accounts *AccountRepo) *PetRepo {
	return &PetRepo{
		byID:     make(map[int64]*domain.Pet),
		accounts: accounts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *PetRepo) Create(ctx context.Context, pet *domain.Pet) error {
	if _, err := r.accounts.GetByID(ctx, pet.OwnerAccountID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := r.now()
	pet.ID = r.nextID
	pet.CreatedAt = now
	pet.UpdatedAt = now
	if pet.Status == "" {
		pet.Status = domain.PetStatusNormal
	}

	r.byID[pet.ID] = pet.Clone()
	return nil
}

func (r *PetRepo) GetByID(ctx context.Context, id int64) (*domain.Pet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrPetNotFound
	}
	return p.Clone(), nil
}

func (r *PetRepo) ListByOwner(ctx context.Context, ownerID int64) ([]*domain.Pet, error) {
	return r.filter(func(p *domain.Pet) bool { return p.OwnerAccountID == ownerID }), nil
}

func (r *PetRepo) ListMissing(ctx context.Context) ([]*domain.MissingPet, error) {
	pets := r.filter((*domain.Pet).IsMissing)

	out := make([]*domain.MissingPet, 0, len(pets))
	for _, p := range pets {
		out = append(out, &domain.MissingPet{Pet: p, OwnerEmail: r.accounts.emailOf(p.OwnerAccountID)})
	}
	return out, nil
}

func (r *PetRepo) Transition(ctx context.Context, id int64, fn repository.TransitionFunc) (*domain.Pet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrPetNotFound
	}

	p := stored.Clone()
	if err := fn(p); err != nil {
		return nil, err
	}
	p.ID = stored.ID
	p.UpdatedAt = r.now()

	r.byID[id] = p
	return p.Clone(), nil
}

func (r *PetRepo) FindByPhotoDigest(ctx context.Context, digest string) ([]*domain.Pet, error) {
	if digest == "" {
		return []*domain.Pet{}, nil
	}
	return r.filter(func(p *domain.Pet) bool { return p.PhotoDigest == digest }), nil
}

// filter returns clones of the matching pets ordered by ID.
func (r *PetRepo) filter(match func(*domain.Pet) bool) []*domain.Pet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Pet, 0)
	for _, p := range r.byID {
		if match(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
