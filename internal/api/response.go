package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sadopc/sitelog/internal/apperr"
)

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code apperr.Code, message string, details map[string]string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: string(code), Message: message, Details: details}})
}

// writeAppError maps err onto the error envelope. Internal failures are
// logged and reported without their cause.
func (a *API) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		a.log.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"code", code,
			"error", err,
		)
	}
	if code == apperr.CodeInternal {
		writeError(w, status, code, "internal error", nil)
		return
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		writeError(w, status, code, err.Error(), nil)
		return
	}
	writeError(w, status, code, ae.Message, ae.Metadata)
}

// decodeJSON reads a size-limited JSON body into dst.
func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, apperr.CodeValidation, "request body too large", nil)
			return false
		}
		writeError(w, http.StatusBadRequest, apperr.CodeValidation, "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}
