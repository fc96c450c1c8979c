package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jimy3k/weapp-fangxianyu/internal/apperrors"
)

// Response is the uniform envelope every endpoint returns. Code is a
// stable machine-readable error code ("OK" on success); Message is the
// human-readable counterpart
type Response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// respondOK wraps data in a success envelope
func respondOK(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusOK, Response{
		Code:    "OK",
		Message: "success",
		Data:    data,
	})
}

// respondError maps an error to the envelope and HTTP status for its code
func respondError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)

	message := "internal server error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	respondJSON(w, httpStatusFor(code), Response{
		Code:    string(code),
		Message: message,
	})
}

func httpStatusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.CodeNotFound, apperrors.CodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
