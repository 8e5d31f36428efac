package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tendant/pawfinder/pkg/domain"
)

// PetsRepository handles pet persistence in Postgres.
type PetsRepository struct {
	db *sql.DB
}

var _ PetRepository = (*PetsRepository)(nil)

// NewPetsRepository creates a new pets repository.
func NewPetsRepository(db *sql.DB) *PetsRepository {
	return &PetsRepository{db: db}
}

const petColumns = `p.id, p.owner_account_id, p.species, p.name, p.age, p.breed, p.photo,
		       p.photo_digest, p.status, p.last_known_location, p.created_at, p.updated_at`

// Create inserts a pet.
func (r *PetsRepository) Create(ctx context.Context, pet *domain.Pet) error {
	if pet.Status == "" {
		pet.Status = domain.PetStatusNormal
	}
	location, err := encodeLocation(pet.LastKnownLocation)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pets (owner_account_id, species, name, age, breed, photo, photo_digest, status, last_known_location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query,
		pet.OwnerAccountID, pet.Species, pet.Name, pet.Age, pet.Breed, photoArg(pet.Photo),
		pet.PhotoDigest, string(pet.Status), location,
	).Scan(&pet.ID, &pet.CreatedAt, &pet.UpdatedAt)
}

// GetByID retrieves a pet by ID.
func (r *PetsRepository) GetByID(ctx context.Context, id int64) (*domain.Pet, error) {
	query := `SELECT ` + petColumns + ` FROM pets p WHERE p.id = $1`
	return scanPet(r.db.QueryRowContext(ctx, query, id))
}

// ListByOwner returns an account's pets ordered by ID.
func (r *PetsRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*domain.Pet, error) {
	query := `SELECT ` + petColumns + ` FROM pets p WHERE p.owner_account_id = $1 ORDER BY p.id`
	return r.list(ctx, query, ownerID)
}

// FindByPhotoDigest returns pets with the given photo digest ordered by ID.
func (r *PetsRepository) FindByPhotoDigest(ctx context.Context, digest string) ([]*domain.Pet, error) {
	if digest == "" {
		return []*domain.Pet{}, nil
	}
	query := `SELECT ` + petColumns + ` FROM pets p WHERE p.photo_digest = $1 ORDER BY p.id`
	return r.list(ctx, query, digest)
}

// ListMissing returns every missing pet with its owner's email.
func (r *PetsRepository) ListMissing(ctx context.Context) ([]*domain.MissingPet, error) {
	query := `
		SELECT ` + petColumns + `, a.email
		FROM pets p
		JOIN accounts a ON a.id = p.owner_account_id
		WHERE p.status = 'missing'
		ORDER BY p.id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.MissingPet, 0)
	for rows.Next() {
		var email string
		pet, err := scanPetFields(rows, &email)
		if err != nil {
			return nil, err
		}
		out = append(out, &domain.MissingPet{Pet: pet, OwnerEmail: email})
	}
	return out, rows.Err()
}

// Transition locks the pet row, applies fn and writes the mutable fields back
// in the same transaction.
func (r *PetsRepository) Transition(ctx context.Context, id int64, fn TransitionFunc) (*domain.Pet, error) {
	var pet *domain.Pet
	err := Tx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		query := `SELECT ` + petColumns + ` FROM pets p WHERE p.id = $1 FOR UPDATE`
		pet, err = scanPet(tx.QueryRowContext(ctx, query, id))
		if err != nil {
			return err
		}

		if err := fn(pet); err != nil {
			return err
		}

		location, err := encodeLocation(pet.LastKnownLocation)
		if err != nil {
			return err
		}
		update := `
			UPDATE pets
			SET species = $2, name = $3, age = $4, breed = $5,
			    status = $6, last_known_location = $7, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`
		return tx.QueryRowContext(ctx, update,
			id, pet.Species, pet.Name, pet.Age, pet.Breed, string(pet.Status), location,
		).Scan(&pet.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return pet, nil
}

func (r *PetsRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Pet, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Pet, 0)
	for rows.Next() {
		pet, err := scanPetFields(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pet)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPet(row *sql.Row) (*domain.Pet, error) {
	pet, err := scanPetFields(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPetNotFound
	}
	return pet, err
}

// scanPetFields scans petColumns followed by any extra destinations.
func scanPetFields(s scanner, extra ...any) (*domain.Pet, error) {
	var (
		pet      domain.Pet
		age      sql.NullInt64
		status   string
		location []byte
	)
	dest := []any{
		&pet.ID, &pet.OwnerAccountID, &pet.Species, &pet.Name, &age, &pet.Breed, &pet.Photo,
		&pet.PhotoDigest, &status, &location, &pet.CreatedAt, &pet.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if age.Valid {
		a := int(age.Int64)
		pet.Age = &a
	}
	pet.Status = domain.PetStatus(status)
	if len(location) > 0 && string(location) != "null" {
		var loc domain.Location
		if err := json.Unmarshal(location, &loc); err != nil {
			return nil, fmt.Errorf("pet %d has a corrupt location: %w", pet.ID, err)
		}
		pet.LastKnownLocation = &loc
	}
	return &pet, nil
}

// encodeLocation renders a location as JSONB text, or NULL when absent.
func encodeLocation(loc *domain.Location) (sql.NullString, error) {
	if loc == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(loc)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func photoArg(photo []byte) any {
	if len(photo) == 0 {
		return nil
	}
	return photo
}
