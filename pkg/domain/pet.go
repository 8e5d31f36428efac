package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// PetStatus is the lifecycle state of a pet.
type PetStatus string

const (
	PetStatusNormal  PetStatus = "normal"
	PetStatusMissing PetStatus = "missing"
)

// Location is a geographic point. On the wire it is a [lat, lng] pair.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Validate checks that the coordinates are finite and within range.
func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) ||
		math.IsInf(l.Latitude, 0) || math.IsInf(l.Longitude, 0) {
		return ErrInvalidLocation
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidLocation, l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidLocation, l.Longitude)
	}
	return nil
}

// MarshalJSON encodes the location as [lat, lng].
func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{l.Latitude, l.Longitude})
}

// UnmarshalJSON decodes a [lat, lng] pair and validates it.
func (l *Location) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: expected [latitude, longitude]", ErrInvalidLocation)
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: expected 2 coordinates, got %d", ErrInvalidLocation, len(pair))
	}
	loc := Location{Latitude: pair[0], Longitude: pair[1]}
	if err := loc.Validate(); err != nil {
		return err
	}
	*l = loc
	return nil
}

// Pet is a registered animal owned by an account.
type Pet struct {
	ID                int64
	OwnerAccountID    int64
	Species           string
	Name              string
	Age               *int
	Breed             string
	Photo             []byte
	PhotoDigest       string
	Status            PetStatus
	LastKnownLocation *Location
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MarkMissing moves the pet to Missing. Re-marking overwrites the location.
func (p *Pet) MarkMissing(loc *Location) {
	p.Status = PetStatusMissing
	if loc != nil {
		l := *loc
		p.LastKnownLocation = &l
	} else {
		p.LastKnownLocation = nil
	}
}

// MarkFound moves the pet back to Normal and clears its location.
func (p *Pet) MarkFound() {
	p.Status = PetStatusNormal
	p.LastKnownLocation = nil
}

// IsMissing reports whether the pet is currently reported missing.
func (p *Pet) IsMissing() bool {
	return p.Status == PetStatusMissing
}

// Clone returns a deep copy of the pet.
func (p *Pet) Clone() *Pet {
	c := *p
	if p.Age != nil {
		age := *p.Age
		c.Age = &age
	}
	if p.Photo != nil {
		c.Photo = append([]byte(nil), p.Photo...)
	}
	if p.LastKnownLocation != nil {
		loc := *p.LastKnownLocation
		c.LastKnownLocation = &loc
	}
	return &c
}

// NewPet holds the fields supplied when registering a pet.
type NewPet struct {
	Species string
	Name    string
	Age     *int
	Breed   string
	Photo   []byte
}

// MissingPet is the neighborhood view of a missing pet with its owner's contact.
type MissingPet struct {
	Pet        *Pet
	OwnerEmail string
}

// PhotoDigest returns the hex SHA-256 of a photo. Empty photos have no digest.
func PhotoDigest(photo []byte) string {
	if len(photo) == 0 {
		return ""
	}
	sum := sha256.Sum256(photo)
	return hex.EncodeToString(sum[:])
}
