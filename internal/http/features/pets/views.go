package pets

import (
	"encoding/hex"
	"time"

	"github.com/tendant/pawfinder/pkg/domain"
)

// PetResponse is the public view of a pet. The photo is hex encoded, as the
// desktop client expects.
type PetResponse struct {
	ID                int64            `json:"id"`
	OwnerID           int64            `json:"ownerId"`
	Type              string           `json:"type"`
	Name              string           `json:"name"`
	Age               *int             `json:"age"`
	Breed             string           `json:"breed"`
	Image             *string          `json:"image"`
	Status            domain.PetStatus `json:"status"`
	IsMissing         bool             `json:"is_missing"`
	LastKnownLocation *domain.Location `json:"last_known_location"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// MissingPetResponse adds the owner's contact to a missing pet.
type MissingPetResponse struct {
	PetResponse
	OwnerEmail string `json:"owner_email"`
}

func newPetResponse(p *domain.Pet) PetResponse {
	resp := PetResponse{
		ID:                p.ID,
		OwnerID:           p.OwnerAccountID,
		Type:              p.Species,
		Name:              p.Name,
		Age:               p.Age,
		Breed:             p.Breed,
		Status:            p.Status,
		IsMissing:         p.IsMissing(),
		LastKnownLocation: p.LastKnownLocation,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if len(p.Photo) > 0 {
		img := hex.EncodeToString(p.Photo)
		resp.Image = &img
	}
	return resp
}

func newPetResponses(pets []*domain.Pet) []PetResponse {
	out := make([]PetResponse, 0, len(pets))
	for _, p := range pets {
		out = append(out, newPetResponse(p))
	}
	return out
}
