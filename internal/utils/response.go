package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ms-deals/internal/errs"
	"ms-deals/internal/logger"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

func WriteJSON(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// StatusFor maps an error's kind to an HTTP status.
func StatusFor(err error) int {
	switch errs.Kind(err) {
	case errs.ErrValidation:
		return http.StatusBadRequest
	case errs.ErrUnauthorized:
		return http.StatusUnauthorized
	case errs.ErrForbidden:
		return http.StatusForbidden
	case errs.ErrNotFound:
		return http.StatusNotFound
	case errs.ErrConflict:
		return http.StatusConflict
	case errs.ErrNotActive:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// WriteError answers with the mapped status. Unexpected errors are logged and their
// details are kept out of the response.
func WriteError(w http.ResponseWriter, log *logger.Logger, category string, err error) {
	status := StatusFor(err)
	reason := errs.Reason(err)
	if status == http.StatusInternalServerError {
		log.Error(category, fmt.Sprintf("%v %v", err, errs.ExtractStackLines(err, 3)))
		WriteJSON(w, status, ErrorResponse("Something went wrong, please try again", reason))
		return
	}
	WriteJSON(w, status, ErrorResponse(messageFor(err), reason))
}

func messageFor(err error) string {
	if errs.Is(err, errs.ErrValidation) {
		// validation messages are written for the caller
		return err.Error()
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
