// Package finder serves the photo lookup a finder runs on a stray pet and the
// report they send to its owner.
package finder

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tendant/pawfinder/internal/http/middleware"
	"github.com/tendant/pawfinder/internal/httputil"
	"github.com/tendant/pawfinder/internal/notification"
	"github.com/tendant/pawfinder/pkg/auth"
	"github.com/tendant/pawfinder/pkg/domain"
	"github.com/tendant/pawfinder/pkg/lifecycle"
	"github.com/tendant/pawfinder/pkg/matcher"
)

const maxReportFieldLength = 200

// Handler handles finder endpoints.
type Handler struct {
	logger       *slog.Logger
	matcher      *matcher.Matcher
	manager      *lifecycle.Manager
	credentials  *auth.CredentialStore
	mail         notification.Dispatcher
	maxPhotoSize int64
}

// NewHandler creates a new finder handler.
func NewHandler(
	logger *slog.Logger,
	m *matcher.Matcher,
	manager *lifecycle.Manager,
	credentials *auth.CredentialStore,
	mail notification.Dispatcher,
	maxPhotoSize int64,
) *Handler {
	if maxPhotoSize <= 0 {
		maxPhotoSize = 10 << 20
	}
	return &Handler{
		logger:       logger,
		matcher:      m,
		manager:      manager,
		credentials:  credentials,
		mail:         mail,
		maxPhotoSize: maxPhotoSize,
	}
}

// CheckImageResponse reports whether a registered pet has the same photo.
type CheckImageResponse struct {
	Match bool  `json:"match"`
	PetID int64 `json:"petId,omitempty"`
}

// SendEmailRequest is a finder's report for a matched pet.
type SendEmailRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
	PetID   int64  `json:"pet_id"`
}

// CheckImage looks up a pet by exact photo.
// POST /check_image (multipart: photo, legacy field name image)
func (h *Handler) CheckImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxPhotoSize); err != nil {
		if middleware.IsBodyTooLarge(err) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		httputil.Error(w, http.StatusBadRequest, "photo is required")
		return
	}

	photo, err := httputil.ReadFormFile(r, h.maxPhotoSize, "photo", "image")
	if err != nil {
		if errors.Is(err, httputil.ErrFileTooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		httputil.Error(w, http.StatusBadRequest, "invalid photo upload")
		return
	}

	petID, matched, err := h.matcher.Resolve(r.Context(), photo)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyPhoto) {
			httputil.Error(w, http.StatusBadRequest, "photo is required")
			return
		}
		h.logger.Error("photo lookup failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "photo lookup failed")
		return
	}

	httputil.JSON(w, http.StatusOK, CheckImageResponse{Match: matched, PetID: petID})
}

// SendEmail forwards a finder's contact details to the pet's owner.
// POST /send_email
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req SendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report := notification.FinderReport{
		Name:    domain.CleanText(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Address: domain.CleanText(req.Address),
	}
	if report.Name == "" || report.Email == "" || report.Address == "" || req.PetID <= 0 {
		httputil.Error(w, http.StatusBadRequest, "All fields are required")
		return
	}
	for field, value := range map[string]string{"name": report.Name, "address": report.Address} {
		if err := domain.ValidateLength(field, value, 1, maxReportFieldLength); err != nil {
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := auth.ValidateEmail(report.Email, true, false); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	pet, err := h.manager.Get(r.Context(), req.PetID)
	if err != nil {
		if errors.Is(err, domain.ErrPetNotFound) {
			httputil.Error(w, http.StatusNotFound, "Pet not found")
			return
		}
		h.logger.Error("failed to load pet", "pet_id", req.PetID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to load pet")
		return
	}

	owner, err := h.credentials.GetByID(r.Context(), pet.OwnerAccountID)
	if err != nil {
		h.logger.Error("failed to load pet owner", "pet_id", pet.ID, "owner_id", pet.OwnerAccountID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to load pet owner")
		return
	}

	if err := h.mail.Enqueue(r.Context(), notification.FinderReportMessage(owner.Email, pet, report)); err != nil {
		h.logger.Error("failed to queue finder report", "pet_id", pet.ID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "Failed to send email")
		return
	}

	h.logger.Info("finder report queued", "pet_id", pet.ID, "owner_id", owner.ID)
	httputil.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email sent to the owner.",
	})
}
