package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"blockdrive/internal/apperr"
)

// TokenVerifier проверяет токен запроса и возвращает id пользователя
type TokenVerifier interface {
	VerifyToken(r *http.Request) (string, error)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondError переводит прикладную ошибку в HTTP-статус и отдает клиенту
// стабильный код вместе с локализованным текстом
func respondError(w http.ResponseWriter, r *http.Request, localizer apperr.Localizer, err error) {
	locale := r.Header.Get("Accept-Language")
	if locale == "" {
		locale = "en"
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case apperr.CodeAccessDenied:
		status = http.StatusForbidden
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeDuplicateName, apperr.CodeConflict:
		status = http.StatusConflict
	case apperr.CodeInvalidOwner, apperr.CodeInvalidMove, apperr.CodeNothingToUpdate:
		status = http.StatusBadRequest
	}

	respondJSON(w, status, map[string]string{
		"code":     string(appErr.Code),
		"error_id": appErr.ErrorID,
		"message":  localizer.Localize(appErr.ErrorID, locale),
	})
}
