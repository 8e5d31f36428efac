package domain

// Lifecycle event names pushed to realtime subscribers.
const (
	EventPetMissing = "pet_missing"
	EventPetFound   = "pet_found"
)

// PetEventFields are the public fields carried by lifecycle events.
type PetEventFields struct {
	PetID      int64     `json:"petId"`
	OwnerID    int64     `json:"ownerId"`
	Species    string    `json:"species"`
	Name       string    `json:"name"`
	Age        *int      `json:"age,omitempty"`
	Breed      string    `json:"breed,omitempty"`
	Photo      []byte    `json:"photo,omitempty"`
	Location   *Location `json:"location"`
	OwnerEmail string    `json:"ownerEmail,omitempty"`
}

// PetMissingEvent is broadcast to every connection when a pet is reported missing.
type PetMissingEvent struct {
	PetEventFields
}

// PetFoundEvent is delivered to the owner's connections when a pet is found.
type PetFoundEvent struct {
	Message string `json:"message"`
	PetEventFields
}

// NewPetEventFields copies the public fields of a pet.
func NewPetEventFields(p *Pet, ownerEmail string) PetEventFields {
	return PetEventFields{
		PetID:      p.ID,
		OwnerID:    p.OwnerAccountID,
		Species:    p.Species,
		Name:       p.Name,
		Age:        p.Age,
		Breed:      p.Breed,
		Photo:      p.Photo,
		Location:   p.LastKnownLocation,
		OwnerEmail: ownerEmail,
	}
}
