package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/pawfinder/pkg/domain"
	"github.com/tendant/pawfinder/pkg/repository"
)

// CredentialStore registers accounts and checks username/password pairs.
type CredentialStore struct {
	accounts        repository.AccountRepository
	policy          *PasswordPolicy
	strict          bool
	strictUsername  bool
	blockDisposable bool
	logger          *slog.Logger
}

// CredentialStoreConfig configures registration checks.
type CredentialStoreConfig struct {
	Policy                *PasswordPolicy
	StrictEmailValidation bool
	BlockDisposableEmail  bool

	// StrictUsernameValidation restricts usernames to ValidateUsername's rule.
	// Otherwise any non-empty normalized username is accepted.
	StrictUsernameValidation bool
}

// NewCredentialStore creates a credential store over accounts.
func NewCredentialStore(accounts repository.AccountRepository, cfg CredentialStoreConfig, logger *slog.Logger) *CredentialStore {
	policy := cfg.Policy
	if policy == nil {
		policy = &PasswordPolicy{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialStore{
		accounts:        accounts,
		policy:          policy,
		strict:          cfg.StrictEmailValidation,
		strictUsername:  cfg.StrictUsernameValidation,
		blockDisposable: cfg.BlockDisposableEmail,
		logger:          logger,
	}
}

// Register creates an account and returns its ID. Username and email are
// stored normalized; a clash on either returns an error wrapping
// domain.ErrAlreadyExists.
func (s *CredentialStore) Register(ctx context.Context, username, email, password string) (int64, error) {
	username = domain.NormalizeIdentity(username)
	email = domain.NormalizeIdentity(email)

	if username == "" || email == "" || password == "" {
		return 0, domain.ErrMissingField
	}
	if s.strictUsername {
		if err := ValidateUsername(username); err != nil {
			return 0, err
		}
	}
	if err := ValidateEmail(email, s.strict, s.blockDisposable); err != nil {
		return 0, err
	}
	if err := s.policy.ValidatePassword(password); err != nil {
		return 0, fmt.Errorf("%w: %s", domain.ErrWeakPassword, err.Error())
	}

	exists, err := s.accounts.ExistsByUsername(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return 0, domain.ErrUsernameAlreadyExists
	}

	exists, err = s.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return 0, domain.ErrEmailAlreadyExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &domain.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		// A concurrent registration can still lose the race to the unique index.
		if errors.Is(err, domain.ErrAlreadyExists) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account registered", "account_id", account.ID, "username", account.Username)
	return account.ID, nil
}

// Verify returns the account when password matches. Unknown usernames and
// wrong passwords both yield domain.ErrInvalidCredentials.
func (s *CredentialStore) Verify(ctx context.Context, username, password string) (*domain.Account, error) {
	account, err := s.accounts.GetByUsername(ctx, domain.NormalizeIdentity(username))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if !VerifyPassword(password, account.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if NeedsRehash(account.PasswordHash) {
		s.logger.Debug("account still uses a legacy password hash", "account_id", account.ID)
	}
	return account, nil
}

// GetByUsername looks up an account by normalized username.
func (s *CredentialStore) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return s.accounts.GetByUsername(ctx, domain.NormalizeIdentity(username))
}

// GetByID looks up an account by ID.
func (s *CredentialStore) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, id)
}
