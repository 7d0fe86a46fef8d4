package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"blockdrive/internal/apperr"
	"blockdrive/internal/domain"
	"blockdrive/internal/service"
)

type ShareHandler struct {
	resourceService *service.ResourceService
	auth            TokenVerifier
	localizer       apperr.Localizer
	validate        *validator.Validate
}

func NewShareHandler(resourceService *service.ResourceService, auth TokenVerifier, localizer apperr.Localizer) *ShareHandler {
	return &ShareHandler{
		resourceService: resourceService,
		auth:            auth,
		localizer:       localizer,
		validate:        validator.New(),
	}
}

type shareRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1"`
	Mode    string   `json:"mode" validate:"required,oneof=VIEW EDIT"`
}

func (h *ShareHandler) Share(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, fmt.Sprintf("Validation failed: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.resourceService.ShareResource(r.Context(), userID, chi.URLParam(r, "id"), req.UserIDs, domain.ShareMode(req.Mode))
	if err != nil {
		log.Printf("[Share] %v", err)
		respondError(w, r, h.localizer, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type unshareRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1"`
}

func (h *ShareHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req unshareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, fmt.Sprintf("Validation failed: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.resourceService.UnshareResource(r.Context(), userID, chi.URLParam(r, "id"), req.UserIDs); err != nil {
		log.Printf("[Unshare] %v", err)
		respondError(w, r, h.localizer, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
