// Package pets serves pet registration, the Normal/Missing lifecycle and the
// neighborhood list of missing pets.
package pets

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/pawfinder/internal/http/middleware"
	"github.com/tendant/pawfinder/internal/httputil"
	"github.com/tendant/pawfinder/pkg/auth"
	"github.com/tendant/pawfinder/pkg/domain"
	"github.com/tendant/pawfinder/pkg/lifecycle"
)

// DefaultMaxPhotoSize caps uploaded photos when no limit is configured.
const DefaultMaxPhotoSize = 10 << 20

// Handler handles pet endpoints.
type Handler struct {
	logger       *slog.Logger
	manager      *lifecycle.Manager
	credentials  *auth.CredentialStore
	maxPhotoSize int64
}

// NewHandler creates a new pets handler.
func NewHandler(logger *slog.Logger, manager *lifecycle.Manager, credentials *auth.CredentialStore, maxPhotoSize int64) *Handler {
	if maxPhotoSize <= 0 {
		maxPhotoSize = DefaultMaxPhotoSize
	}
	return &Handler{
		logger:       logger,
		manager:      manager,
		credentials:  credentials,
		maxPhotoSize: maxPhotoSize,
	}
}

// MarkMissingRequest carries the optional last known location. The legacy
// snake_case key is accepted too.
type MarkMissingRequest struct {
	MissingLocation       *domain.Location `json:"missingLocation"`
	LegacyMissingLocation *domain.Location `json:"missing_location"`
}

func (r MarkMissingRequest) location() *domain.Location {
	if r.MissingLocation != nil {
		return r.MissingLocation
	}
	return r.LegacyMissingLocation
}

// RegisterPet stores a pet for the authenticated account.
// POST /register_pet (multipart: type, name, age, breed, image)
func (h *Handler) RegisterPet(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(h.maxPhotoSize); err != nil {
		if middleware.IsBodyTooLarge(err) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		httputil.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	in := domain.NewPet{
		Species: firstValue(r, "type", "species"),
		Name:    r.FormValue("name"),
		Breed:   r.FormValue("breed"),
	}
	if raw := strings.TrimSpace(r.FormValue("age")); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "age must be a whole number")
			return
		}
		in.Age = &age
	}

	photo, err := httputil.ReadFormFile(r, h.maxPhotoSize, "image", "photo")
	if err != nil {
		if errors.Is(err, httputil.ErrFileTooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		httputil.Error(w, http.StatusBadRequest, "invalid image upload")
		return
	}
	in.Photo = photo

	pet, err := h.manager.Register(r.Context(), accountID, in)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingField), errors.Is(err, domain.ErrInvalidField):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrAccountNotFound):
			httputil.Error(w, http.StatusUnauthorized, "account no longer exists")
		default:
			h.logger.Error("failed to register pet", "account_id", accountID, "error", err)
			httputil.Error(w, http.StatusInternalServerError, "failed to register pet")
		}
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{
		"petId":   pet.ID,
		"message": "Pet registered successfully",
	})
}

// MyPets lists the authenticated account's pets.
// GET /me/pets
func (h *Handler) MyPets(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	pets, err := h.manager.ListByOwner(r.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to list pets", "account_id", accountID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list pets")
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"pets":    newPetResponses(pets),
	})
}

// GetUser returns an account's public profile with its pets.
// GET /user/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "User not found")
	if !ok {
		return
	}

	account, err := h.credentials.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			httputil.Error(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("failed to load account", "account_id", id, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	pets, err := h.manager.ListByOwner(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list pets", "account_id", id, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": map[string]any{
			"id":       account.ID,
			"username": account.Username,
			"email":    account.Email,
			"pets":     newPetResponses(pets),
		},
	})
}

// MarkMissing reports a pet missing with an optional [lat, lng] location.
// POST /pet/{id}/mark_missing
func (h *Handler) MarkMissing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Pet not found")
	if !ok {
		return
	}

	var req MarkMissingRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			if errors.Is(err, domain.ErrInvalidLocation) {
				httputil.Error(w, http.StatusBadRequest, err.Error())
				return
			}
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	pet, err := h.manager.MarkMissing(r.Context(), id, req.location())
	if err != nil {
		h.transitionError(w, id, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "Pet marked as missing",
		"petId":           pet.ID,
		"status":          pet.Status,
		"missingLocation": pet.LastKnownLocation,
	})
}

// MarkFound returns a pet to Normal and notifies its owner.
// POST /pet/{id}/found
func (h *Handler) MarkFound(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Pet not found")
	if !ok {
		return
	}

	pet, err := h.manager.MarkFound(r.Context(), id)
	if err != nil {
		h.transitionError(w, id, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Pet marked as found",
		"petId":   pet.ID,
		"status":  pet.Status,
	})
}

// MissingPets lists every missing pet with its owner's contact.
// GET /missing_pets
func (h *Handler) MissingPets(w http.ResponseWriter, r *http.Request) {
	missing, err := h.manager.ListMissing(r.Context())
	if err != nil {
		h.logger.Error("failed to list missing pets", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list missing pets")
		return
	}

	out := make([]MissingPetResponse, 0, len(missing))
	for _, m := range missing {
		out = append(out, MissingPetResponse{PetResponse: newPetResponse(m.Pet), OwnerEmail: m.OwnerEmail})
	}
	httputil.JSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"missing_pets": out,
	})
}

func (h *Handler) transitionError(w http.ResponseWriter, petID int64, err error) {
	switch {
	case errors.Is(err, domain.ErrPetNotFound):
		httputil.Error(w, http.StatusNotFound, "Pet not found")
	case errors.Is(err, domain.ErrInvalidLocation):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("pet transition failed", "pet_id", petID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to update pet")
	}
}

// pathID parses the {id} URL parameter. An id that cannot name a record is
// answered like an unknown one.
func pathID(w http.ResponseWriter, r *http.Request, notFound string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.Error(w, http.StatusNotFound, notFound)
		return 0, false
	}
	return id, true
}

func firstValue(r *http.Request, keys ...string) string {
	for _, k := range keys {
		if v := r.FormValue(k); v != "" {
			return v
		}
	}
	return ""
}
