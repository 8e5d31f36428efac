package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/tendant/pawfinder/pkg/domain"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func wrongCode(code string) string {
	if code == "100000" {
		return "100001"
	}
	return "100000"
}

func TestCodeIssuer_IssueFormat(t *testing.T) {
	issuer := NewCodeIssuer()

	for i := 0; i < 200; i++ {
		code, _, err := issuer.Issue("alice")
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q should have 6 digits", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("code %q is not numeric", code)
		}
		if n < 100000 || n > 999999 {
			t.Fatalf("code %d out of range", n)
		}
	}
}

func TestCodeIssuer_ExpiresAt(t *testing.T) {
	clock := newFakeClock()
	issuer := NewCodeIssuer(WithClock(clock.Now))

	_, expiresAt, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if want := clock.Now().Add(5 * time.Minute); !expiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", expiresAt, want)
	}
}

func TestCodeIssuer_ExpiryWindow(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{name: "immediately", elapsed: 0},
		{name: "at 4m59s", elapsed: 4*time.Minute + 59*time.Second},
		{name: "exactly at expiry", elapsed: 5 * time.Minute},
		{name: "at 5m01s", elapsed: 5*time.Minute + time.Second, wantErr: domain.ErrOTPExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			issuer := NewCodeIssuer(WithClock(clock.Now))

			code, _, err := issuer.Issue("alice")
			if err != nil {
				t.Fatalf("Issue failed: %v", err)
			}
			clock.Advance(tt.elapsed)

			err = issuer.Verify("alice", code)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCodeIssuer_ExpiredEntryIsDropped(t *testing.T) {
	clock := newFakeClock()
	issuer := NewCodeIssuer(WithClock(clock.Now))

	code, _, _ := issuer.Issue("alice")
	clock.Advance(6 * time.Minute)

	if err := issuer.Verify("alice", code); !errors.Is(err, domain.ErrOTPExpired) {
		t.Fatalf("first Verify error = %v, want ErrOTPExpired", err)
	}
	if err := issuer.Verify("alice", code); !errors.Is(err, domain.ErrOTPNotFound) {
		t.Errorf("second Verify error = %v, want ErrOTPNotFound", err)
	}
}

func TestCodeIssuer_SingleUse(t *testing.T) {
	issuer := NewCodeIssuer()

	code, _, _ := issuer.Issue("alice")
	if err := issuer.Verify("alice", code); err != nil {
		t.Fatalf("first Verify failed: %v", err)
	}
	if err := issuer.Verify("alice", code); !errors.Is(err, domain.ErrOTPNotFound) {
		t.Errorf("second Verify error = %v, want ErrOTPNotFound", err)
	}
}

func TestCodeIssuer_MismatchKeepsEntry(t *testing.T) {
	issuer := NewCodeIssuer()

	code, _, _ := issuer.Issue("alice")
	for i := 0; i < 3; i++ {
		if err := issuer.Verify("alice", wrongCode(code)); !errors.Is(err, domain.ErrOTPMismatch) {
			t.Fatalf("Verify(wrong) error = %v, want ErrOTPMismatch", err)
		}
	}
	if err := issuer.Verify("alice", code); err != nil {
		t.Errorf("Verify(correct) after mismatches failed: %v", err)
	}
}

func TestCodeIssuer_ReissueSupersedes(t *testing.T) {
	issuer := NewCodeIssuer()

	first, _, _ := issuer.Issue("alice")
	second := first
	for second == first {
		second, _, _ = issuer.Issue("alice")
	}

	if err := issuer.Verify("alice", first); !errors.Is(err, domain.ErrOTPMismatch) {
		t.Errorf("Verify(first) error = %v, want ErrOTPMismatch", err)
	}
	if err := issuer.Verify("alice", second); err != nil {
		t.Errorf("Verify(second) failed: %v", err)
	}
	if issuer.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", issuer.Pending())
	}
}

func TestCodeIssuer_ReissueResetsExpiry(t *testing.T) {
	clock := newFakeClock()
	issuer := NewCodeIssuer(WithClock(clock.Now))

	issuer.Issue("alice")
	clock.Advance(4 * time.Minute)
	code, _, _ := issuer.Issue("alice")
	clock.Advance(4 * time.Minute)

	if err := issuer.Verify("alice", code); err != nil {
		t.Errorf("Verify of reissued code failed: %v", err)
	}
}

func TestCodeIssuer_NoPending(t *testing.T) {
	issuer := NewCodeIssuer()
	if err := issuer.Verify("nobody", "123456"); !errors.Is(err, domain.ErrOTPNotFound) {
		t.Errorf("Verify error = %v, want ErrOTPNotFound", err)
	}
}

func TestCodeIssuer_NormalizesUsername(t *testing.T) {
	issuer := NewCodeIssuer()

	code, _, _ := issuer.Issue("  Alice ")
	if err := issuer.Verify("alice", code); err != nil {
		t.Errorf("Verify with normalized username failed: %v", err)
	}
}

func TestCodeIssuer_UsersAreIndependent(t *testing.T) {
	issuer := NewCodeIssuer()

	aliceCode, _, _ := issuer.Issue("alice")
	bobCode, _, _ := issuer.Issue("bob")

	if err := issuer.Verify("bob", bobCode); err != nil {
		t.Fatalf("Verify(bob) failed: %v", err)
	}
	if err := issuer.Verify("alice", aliceCode); err != nil {
		t.Errorf("Verify(alice) failed after bob verified: %v", err)
	}
}

func TestCodeIssuer_WithTTL(t *testing.T) {
	clock := newFakeClock()
	issuer := NewCodeIssuer(WithClock(clock.Now), WithTTL(30*time.Second))

	if issuer.TTL() != 30*time.Second {
		t.Errorf("TTL() = %v, want 30s", issuer.TTL())
	}
	code, _, _ := issuer.Issue("alice")
	clock.Advance(31 * time.Second)
	if err := issuer.Verify("alice", code); !errors.Is(err, domain.ErrOTPExpired) {
		t.Errorf("Verify error = %v, want ErrOTPExpired", err)
	}
}

func TestCodeIssuer_PurgeExpired(t *testing.T) {
	clock := newFakeClock()
	issuer := NewCodeIssuer(WithClock(clock.Now))

	issuer.Issue("alice")
	clock.Advance(3 * time.Minute)
	issuer.Issue("bob")
	clock.Advance(3 * time.Minute)

	// alice expired a minute ago, bob is still valid
	if n := issuer.PurgeExpired(clock.Now()); n != 1 {
		t.Errorf("PurgeExpired removed %d, want 1", n)
	}
	if issuer.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", issuer.Pending())
	}
	if err := issuer.Verify("alice", "123456"); !errors.Is(err, domain.ErrOTPNotFound) {
		t.Errorf("Verify(alice) error = %v, want ErrOTPNotFound", err)
	}
}

func TestCodeIssuer_RunStopsOnCancel(t *testing.T) {
	issuer := NewCodeIssuer()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		issuer.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCodeIssuer_ConcurrentAccess(t *testing.T) {
	issuer := NewCodeIssuer()
	usernames := []string{"alice", "bob", "carol", "dave"}

	var wg sync.WaitGroup
	for _, u := range usernames {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(username string) {
				defer wg.Done()
				code, _, err := issuer.Issue(username)
				if err != nil {
					t.Errorf("Issue failed: %v", err)
					return
				}
				// A concurrent re-issue may supersede this code; any outcome
				// other than a torn entry is acceptable.
				err = issuer.Verify(username, code)
				if err != nil && !errors.Is(err, domain.ErrOTPMismatch) && !errors.Is(err, domain.ErrOTPNotFound) {
					t.Errorf("Verify error = %v", err)
				}
			}(u)
		}
	}
	wg.Wait()
}
