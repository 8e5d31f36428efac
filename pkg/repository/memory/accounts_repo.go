// Package memory provides process-local repositories for tests and quick
// local runs. Data is lost when the process exits.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tendant/pawfinder/pkg/domain"
	"github.com/tendant/pawfinder/pkg/repository"
)

// AccountRepo is an in-memory repository.AccountRepository.
type AccountRepo struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]domain.Account
	byUsername map[string]int64
	byEmail    map[string]int64
}

var _ repository.AccountRepository = (*AccountRepo)(nil)

// NewAccountRepo returns an empty account repository.
func NewAccountRepo() *AccountRepo {
	return &AccountRepo{
		byID:       make(map[int64]domain.Account),
		byUsername: make(map[string]int64),
		byEmail:    make(map[string]int64),
	}
}

func (r *AccountRepo) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[account.Username]; exists {
		return domain.ErrUsernameAlreadyExists
	}
	if _, exists := r.byEmail[account.Email]; exists {
		return domain.ErrEmailAlreadyExists
	}

	r.nextID++
	account.ID = r.nextID
	account.CreatedAt = time.Now().UTC()

	r.byID[account.ID] = *account
	r.byUsername[account.Username] = account.ID
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	a := r.byID[id]
	return &a, nil
}

func (r *AccountRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUsername[username]
	return ok, nil
}

func (r *AccountRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *AccountRepo) emailOf(id int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id].Email
}
