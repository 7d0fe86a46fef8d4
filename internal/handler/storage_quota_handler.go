package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"blockdrive/internal/service"
)

type StorageQuotaHandler struct {
	quotaService *service.StorageQuotaService
	auth         TokenVerifier
}

func NewStorageQuotaHandler(quotaService *service.StorageQuotaService, auth TokenVerifier) *StorageQuotaHandler {
	return &StorageQuotaHandler{
		quotaService: quotaService,
		auth:         auth,
	}
}

func (h *StorageQuotaHandler) GetQuotaInfo(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	quotaInfo, err := h.quotaService.GetQuotaInfo(r.Context(), userID)
	if err != nil {
		log.Printf("[GetQuotaInfo] %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, quotaInfo)
}

// Эндпоинт для админа для изменения квоты пользователя
func (h *StorageQuotaHandler) UpdateQuotaLimit(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.VerifyToken(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		UserID   string `json:"user_id"`
		NewLimit int64  `json:"new_limit"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.quotaService.UpdateQuotaLimit(r.Context(), req.UserID, req.NewLimit); err != nil {
		log.Printf("[UpdateQuotaLimit] %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Пересчет занятого места по живым файлам, если счетчик разошелся с фактом
func (h *StorageQuotaHandler) RecalculateQuota(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.quotaService.Recalculate(r.Context(), userID); err != nil {
		log.Printf("[RecalculateQuota] %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	quotaInfo, err := h.quotaService.GetQuotaInfo(r.Context(), userID)
	if err != nil {
		log.Printf("[RecalculateQuota] %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, quotaInfo)
}
