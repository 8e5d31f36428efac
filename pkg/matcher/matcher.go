// Package matcher identifies a registered pet from a finder's photo.
package matcher

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/tendant/pawfinder/pkg/domain"
	"github.com/tendant/pawfinder/pkg/repository"
)

// Matcher resolves photos to pets by exact byte equality. The store's digest
// index narrows the candidates; bytes.Equal decides.
type Matcher struct {
	pets   repository.PetRepository
	logger *slog.Logger
}

func New(pets repository.PetRepository, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{pets: pets, logger: logger}
}

// Resolve returns the lowest-ID pet whose stored photo is byte-identical to
// photo. A photo with no match yields matched=false and no error.
func (m *Matcher) Resolve(ctx context.Context, photo []byte) (petID int64, matched bool, err error) {
	if len(photo) == 0 {
		return 0, false, domain.ErrEmptyPhoto
	}

	candidates, err := m.pets.FindByPhotoDigest(ctx, domain.PhotoDigest(photo))
	if err != nil {
		return 0, false, err
	}
	for _, p := range candidates {
		if bytes.Equal(p.Photo, photo) {
			m.logger.Debug("photo matched", "pet_id", p.ID, "candidates", len(candidates))
			return p.ID, true, nil
		}
	}
	return 0, false, nil
}
