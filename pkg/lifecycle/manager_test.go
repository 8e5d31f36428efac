package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/tendant/pawfinder/internal/notification"
	"github.com/tendant/pawfinder/pkg/domain"
	"github.com/tendant/pawfinder/pkg/repository/memory"
)

type published struct {
	accountID int64 // 0 for broadcasts
	event     string
	payload   any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Broadcast(event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{event: event, payload: payload})
}

func (p *fakePublisher) Notify(accountID int64, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{accountID: accountID, event: event, payload: payload})
}

type fakeDispatcher struct {
	mu   sync.Mutex
	msgs []notification.Message
	err  error
}

func (d *fakeDispatcher) Enqueue(ctx context.Context, msg notification.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.msgs = append(d.msgs, msg)
	return nil
}

type fixture struct {
	manager   *Manager
	publisher *fakePublisher
	mail      *fakeDispatcher
	ownerID   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	accounts := memory.NewAccountRepo()
	owner := &domain.Account{Username: "alice", Email: "a@x.com", PasswordHash: "h"}
	if err := accounts.Create(context.Background(), owner); err != nil {
		t.Fatalf("Create account failed: %v", err)
	}

	pub := &fakePublisher{}
	mail := &fakeDispatcher{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return &fixture{
		manager:   NewManager(memory.NewPetRepo(accounts), accounts, pub, mail, logger),
		publisher: pub,
		mail:      mail,
		ownerID:   owner.ID,
	}
}

func (f *fixture) registerPet(t *testing.T) *domain.Pet {
	t.Helper()
	age := 4
	pet, err := f.manager.Register(context.Background(), f.ownerID, domain.NewPet{
		Species: "dog", Name: "Rex", Age: &age, Breed: "beagle", Photo: []byte("rex.jpg"),
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return pet
}

func TestManager_Register(t *testing.T) {
	f := newFixture(t)
	pet := f.registerPet(t)

	if pet.ID == 0 || pet.Status != domain.PetStatusNormal || pet.LastKnownLocation != nil {
		t.Errorf("registered pet = %+v", pet)
	}
	if pet.PhotoDigest != domain.PhotoDigest([]byte("rex.jpg")) {
		t.Errorf("PhotoDigest = %q", pet.PhotoDigest)
	}
	if len(f.publisher.events) != 0 {
		t.Errorf("registration should not publish events, got %d", len(f.publisher.events))
	}

	pets, _ := f.manager.ListByOwner(context.Background(), f.ownerID)
	if len(pets) != 1 || pets[0].ID != pet.ID {
		t.Errorf("ListByOwner = %+v", pets)
	}
}

func TestManager_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	negative := -1

	tests := []struct {
		name    string
		in      domain.NewPet
		wantErr error
	}{
		{name: "missing species", in: domain.NewPet{Name: "Rex"}, wantErr: domain.ErrMissingField},
		{name: "blank name", in: domain.NewPet{Species: "dog", Name: "  "}, wantErr: domain.ErrMissingField},
		{name: "negative age", in: domain.NewPet{Species: "dog", Name: "Rex", Age: &negative}, wantErr: domain.ErrInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.manager.Register(context.Background(), f.ownerID, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("Register error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := f.manager.Register(context.Background(), 999, domain.NewPet{Species: "dog", Name: "Rex"}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Register for unknown owner error = %v, want ErrAccountNotFound", err)
	}
}

func TestManager_MarkMissing(t *testing.T) {
	f := newFixture(t)
	pet := f.registerPet(t)

	loc := &domain.Location{Latitude: 12.34, Longitude: 56.78}
	updated, err := f.manager.MarkMissing(context.Background(), pet.ID, loc)
	if err != nil {
		t.Fatalf("MarkMissing failed: %v", err)
	}
	if !updated.IsMissing() || *updated.LastKnownLocation != *loc {
		t.Errorf("updated = %+v", updated)
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(f.publisher.events))
	}
	ev := f.publisher.events[0]
	if ev.accountID != 0 || ev.event != domain.EventPetMissing {
		t.Errorf("event = %+v, want broadcast pet_missing", ev)
	}
	payload, ok := ev.payload.(domain.PetMissingEvent)
	if !ok {
		t.Fatalf("payload type = %T", ev.payload)
	}
	if payload.PetID != pet.ID || payload.OwnerEmail != "a@x.com" || payload.Name != "Rex" || *payload.Location != *loc {
		t.Errorf("payload = %+v", payload)
	}

	if len(f.mail.msgs) != 1 || f.mail.msgs[0].To != "a@x.com" || f.mail.msgs[0].Kind != notification.KindPetMissing {
		t.Errorf("queued mail = %+v", f.mail.msgs)
	}

	missing, _ := f.manager.ListMissing(context.Background())
	if len(missing) != 1 || missing[0].Pet.ID != pet.ID || missing[0].OwnerEmail != "a@x.com" {
		t.Errorf("ListMissing = %+v", missing)
	}
}

func TestManager_MarkMissingWithoutLocation(t *testing.T) {
	f := newFixture(t)
	pet := f.registerPet(t)

	updated, err := f.manager.MarkMissing(context.Background(), pet.ID, nil)
	if err != nil {
		t.Fatalf("MarkMissing failed: %v", err)
	}
	if !updated.IsMissing() || updated.LastKnownLocation != nil {
		t.Errorf("updated = %+v", updated)
	}
}

func TestManager_MarkMissingTwiceReemits(t *testing.T) {
	f := newFixture(t)
	pet := f.registerPet(t)

	f.manager.MarkMissing(context.Background(), pet.ID, &domain.Location{Latitude: 1, Longitude: 1})
	updated, err := f.manager.MarkMissing(context.Background(), pet.ID, &domain.Location{Latitude: 2, Longitude: 2})
	if err != nil {
		t.Fatalf("second MarkMissing failed: %v", err)
	}
	if updated.LastKnownLocation.Latitude != 2 {
		t.Errorf("location = %+v, want overwritten", updated.LastKnownLocation)
	}
	if len(f.publisher.events) != 2 {
		t.Errorf("published %d events, want 2", len(f.publisher.events))
	}
}

func TestManager_MarkMissingInvalidLocation(t *testing.T) {
	f := newFixture(t)
	pet := f.registerPet(t)

	_, err := f.manager.MarkMissing(context.Background(), pet.ID, &domain.Location{Latitude: 91, Longitude: 0})
	if !errors.Is(err, domain.ErrInvalidLocation) {
		t.Errorf("MarkMissing error = %v, want ErrInvalidLocation", err)
	}
	stored, _ := f.manager.Get(context.Background(), pet.ID)
	if stored.IsMissing() {
		t.Error("rejected transition must not change the pet")
	}
	if len(f.publisher.events) != 0 {
		t.Error("rejected transition must not publish")
	}
}

func TestManager_MailFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	pet := f.registerPet(t)
	f.mail.err = domain.ErrQueueFull

	if _, err := f.manager.MarkMissing(context.Background(), pet.ID, nil); err != nil {
		t.Fatalf("MarkMissing failed: %v", err)
	}
	stored, _ := f.manager.Get(context.Background(), pet.ID)
	if !stored.IsMissing() {
		t.Error("pet should be missing even when the alert could not be queued")
	}
}

func TestManager_MarkFound(t *testing.T) {
	f := newFixture(t)
	pet := f.registerPet(t)

	f.manager.MarkMissing(context.Background(), pet.ID, &domain.Location{Latitude: 12.34, Longitude: 56.78})
	updated, err := f.manager.MarkFound(context.Background(), pet.ID)
	if err != nil {
		t.Fatalf("MarkFound failed: %v", err)
	}
	if updated.IsMissing() || updated.LastKnownLocation != nil {
		t.Errorf("updated = %+v, want Normal without location", updated)
	}

	ev := f.publisher.events[len(f.publisher.events)-1]
	if ev.accountID != f.ownerID || ev.event != domain.EventPetFound {
		t.Errorf("event = %+v, want pet_found to owner", ev)
	}
	payload, ok := ev.payload.(domain.PetFoundEvent)
	if !ok {
		t.Fatalf("payload type = %T", ev.payload)
	}
	if payload.Message == "" || payload.PetID != pet.ID || payload.Location != nil {
		t.Errorf("payload = %+v", payload)
	}

	missing, _ := f.manager.ListMissing(context.Background())
	if len(missing) != 0 {
		t.Errorf("ListMissing = %d pets, want 0", len(missing))
	}
}

func TestManager_UnknownPet(t *testing.T) {
	f := newFixture(t)

	if _, err := f.manager.MarkMissing(context.Background(), 42, nil); !errors.Is(err, domain.ErrPetNotFound) {
		t.Errorf("MarkMissing error = %v, want ErrPetNotFound", err)
	}
	if _, err := f.manager.MarkFound(context.Background(), 42); !errors.Is(err, domain.ErrPetNotFound) {
		t.Errorf("MarkFound error = %v, want ErrPetNotFound", err)
	}
	if len(f.publisher.events) != 0 {
		t.Error("failed transitions must not publish")
	}
}

func TestManager_NilMailDispatcher(t *testing.T) {
	accounts := memory.NewAccountRepo()
	owner := &domain.Account{Username: "alice", Email: "a@x.com"}
	accounts.Create(context.Background(), owner)
	pub := &fakePublisher{}
	m := NewManager(memory.NewPetRepo(accounts), accounts, pub, nil, nil)

	pet, err := m.Register(context.Background(), owner.ID, domain.NewPet{Species: "cat", Name: "Tom"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := m.MarkMissing(context.Background(), pet.ID, nil); err != nil {
		t.Errorf("MarkMissing without mail dispatcher failed: %v", err)
	}
}
