package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/tendant/pawfinder/pkg/domain"
)

const (
	// DefaultOTPTTL is how long an issued code stays valid.
	DefaultOTPTTL = 5 * time.Minute

	otpMin = 100000
	otpMax = 999999
)

type pendingCode struct {
	code      string
	expiresAt time.Time
}

// CodeIssuer issues and verifies single-use numeric login codes keyed by
// normalized username. At most one code is pending per username; issuing a
// new one replaces the old. Entries live only in process memory.
type CodeIssuer struct {
	mu      sync.Mutex
	pending map[string]pendingCode

	ttl    time.Duration
	now    func() time.Time
	random io.Reader
	logger *slog.Logger
}

// CodeIssuerOption configures a CodeIssuer.
type CodeIssuerOption func(*CodeIssuer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CodeIssuerOption {
	return func(i *CodeIssuer) { i.now = now }
}

// WithTTL overrides DefaultOTPTTL.
func WithTTL(ttl time.Duration) CodeIssuerOption {
	return func(i *CodeIssuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithRandom overrides the entropy source used to draw codes.
func WithRandom(r io.Reader) CodeIssuerOption {
	return func(i *CodeIssuer) { i.random = r }
}

// WithLogger sets the logger used by the purge loop.
func WithLogger(logger *slog.Logger) CodeIssuerOption {
	return func(i *CodeIssuer) { i.logger = logger }
}

// NewCodeIssuer creates an empty code issuer.
func NewCodeIssuer(opts ...CodeIssuerOption) *CodeIssuer {
	i := &CodeIssuer{
		pending: make(map[string]pendingCode),
		ttl:     DefaultOTPTTL,
		now:     time.Now,
		random:  rand.Reader,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// TTL returns how long issued codes remain valid.
func (i *CodeIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue draws a fresh code for username, replacing any pending one, and
// returns it with its expiry. Delivering the code is the caller's job.
func (i *CodeIssuer) Issue(username string) (string, time.Time, error) {
	code, err := i.generate()
	if err != nil {
		return "", time.Time{}, err
	}

	key := domain.NormalizeIdentity(username)

	i.mu.Lock()
	defer i.mu.Unlock()

	expiresAt := i.now().Add(i.ttl)
	i.pending[key] = pendingCode{code: code, expiresAt: expiresAt}
	return code, expiresAt, nil
}

// Verify checks a submitted code for username.
//
// It returns domain.ErrOTPNotFound when nothing is pending, domain.ErrOTPExpired
// (dropping the entry) once the expiry has passed, and domain.ErrOTPMismatch
// (keeping the entry for retries) when the code differs. A matching code is
// consumed, so a second Verify with it reports ErrOTPNotFound.
func (i *CodeIssuer) Verify(username, submitted string) error {
	key := domain.NormalizeIdentity(username)

	i.mu.Lock()
	defer i.mu.Unlock()

	entry, ok := i.pending[key]
	if !ok {
		return domain.ErrOTPNotFound
	}
	if i.now().After(entry.expiresAt) {
		delete(i.pending, key)
		return domain.ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(entry.code)) != 1 {
		return domain.ErrOTPMismatch
	}
	delete(i.pending, key)
	return nil
}

// Pending reports how many codes are currently held.
func (i *CodeIssuer) Pending() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pending)
}

// PurgeExpired drops codes that expired before cutoff and returns how many
// were removed.
func (i *CodeIssuer) PurgeExpired(cutoff time.Time) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for key, entry := range i.pending {
		if entry.expiresAt.Before(cutoff) {
			delete(i.pending, key)
			removed++
		}
	}
	return removed
}

// Run purges abandoned codes every interval until ctx is done. Codes are kept
// for one extra TTL after expiry so a late Verify still reports ErrOTPExpired.
func (i *CodeIssuer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := i.PurgeExpired(i.now().Add(-i.ttl)); n > 0 {
				i.logger.Debug("purged expired one-time codes", "count", n)
			}
		}
	}
}

func (i *CodeIssuer) generate() (string, error) {
	n, err := rand.Int(i.random, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate one-time code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}
