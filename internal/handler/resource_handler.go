package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"blockdrive/internal/apperr"
	"blockdrive/internal/domain"
	"blockdrive/internal/service"
)

type ResourceHandler struct {
	resourceService *service.ResourceService
	auth            TokenVerifier
	localizer       apperr.Localizer
	validate        *validator.Validate
}

func NewResourceHandler(resourceService *service.ResourceService, auth TokenVerifier, localizer apperr.Localizer) *ResourceHandler {
	return &ResourceHandler{
		resourceService: resourceService,
		auth:            auth,
		localizer:       localizer,
		validate:        validator.New(),
	}
}

type createFolderRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=255"`
	ResourceType string `json:"resource_type" validate:"required"`
	ParentID     string `json:"parent_id"`
	OwnerType    string `json:"owner_type"`
	OwnerID      string `json:"owner_id"`
}

func (h *ResourceHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, fmt.Sprintf("Validation failed: %v", err), http.StatusBadRequest)
		return
	}

	ownerType := domain.OwnerTypeFromRaw(req.OwnerType)
	folder, err := h.resourceService.CreateFolder(r.Context(), userID, req.ResourceType, req.ParentID, req.Name, ownerType, req.OwnerID)
	if err != nil {
		log.Printf("[CreateFolder] %v", err)
		respondError(w, r, h.localizer, err)
		return
	}

	respondJSON(w, http.StatusCreated, folder)
}

func (h *ResourceHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(100 << 20); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	parentID := r.FormValue("parent_id")
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	created, err := h.resourceService.Upload(r.Context(), userID, parentID, header.Filename, data)
	if err != nil {
		log.Printf("[UploadFile] %v", err)
		respondError(w, r, h.localizer, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

func (h *ResourceHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	objectID := chi.URLParam(r, "id")
	res, data, err := h.resourceService.Download(r.Context(), userID, objectID)
	if err != nil {
		log.Printf("[DownloadFile] %v", err)
		respondError(w, r, h.localizer, err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Name))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (h *ResourceHandler) ListRoot(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	resourceType := r.URL.Query().Get("resource_type")
	if resourceType == "" {
		http.Error(w, "resource_type is required", http.StatusBadRequest)
		return
	}

	items, err := h.resourceService.ListRoot(r.Context(), userID, resourceType)
	if err != nil {
		log.Printf("[ListRoot] %v", err)
		respondError(w, r, h.localizer, err)
		return
	}

	respondJSON(w, http.StatusOK, items)
}

func (h *ResourceHandler) ListFolder(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	folderID := chi.URLParam(r, "id")
	items, err := h.resourceService.ListFolder(r.Context(), userID, folderID)
	if err != nil {
		log.Printf("[ListFolder] %v", err)
		respondError(w, r, h.localizer, err)
		return
	}

	respondJSON(w, http.StatusOK, items)
}

type renameRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

func (h *ResourceHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, fmt.Sprintf("Validation failed: %v", err), http.StatusBadRequest)
		return
	}

	res, err := h.resourceService.Rename(r.Context(), userID, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		log.Printf("[Rename] %v", err)
		respondError(w, r, h.localizer, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

type moveRequest struct {
	DestinationID string `json:"destination_id" validate:"required"`
}

func (h *ResourceHandler) Move(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, fmt.Sprintf("Validation failed: %v", err), http.StatusBadRequest)
		return
	}

	res, err := h.resourceService.Move(r.Context(), userID, chi.URLParam(r, "id"), req.DestinationID)
	if err != nil {
		log.Printf("[Move] %v", err)
		respondError(w, r, h.localizer, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	outcome, err := h.resourceService.Delete(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("[Delete] %v", err)
		respondError(w, r, h.localizer, err)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

func (h *ResourceHandler) OptOut(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.resourceService.OptOut(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		log.Printf("[OptOut] %v", err)
		respondError(w, r, h.localizer, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"opted_out": true})
}
