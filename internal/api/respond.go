package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/bastionproject/bastion/internal/errors"
)

// Response helpers

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: status < 400, Data: data})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: message})
}

// serviceError maps a domain error onto an HTTP status.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrBackupInProgress),
		errors.Is(err, apperrors.ErrFailoverActive):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperrors.ErrBackupNotFound),
		errors.Is(err, apperrors.ErrArtifactNotFound),
		errors.Is(err, apperrors.ErrPlanNotFound),
		errors.Is(err, apperrors.ErrRecoveryNotFound),
		errors.Is(err, apperrors.ErrAlertNotFound),
		errors.Is(err, apperrors.ErrNoSuitableBackup):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperrors.ErrRegionNotConfigured),
		errors.Is(err, apperrors.ErrNotConfigured):
		jsonError(w, http.StatusBadRequest, err.Error())
	default:
		jsonError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON decodes JSON body without validation.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body")
	}
	return nil
}

// RequirePathParam extracts a path parameter and validates it's not empty.
// Returns the parameter value and true if valid, or writes an error
// response and returns false.
func RequirePathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := r.PathValue(name)
	if value == "" {
		jsonError(w, http.StatusBadRequest, name+" required")
		return "", false
	}
	return value, true
}
