package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"audioguide/internal/middleware"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// Response is the success envelope shared by all JSON endpoints
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, log *logger.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := encode(w, Response{Success: true, Data: data}); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

func encode(w http.ResponseWriter, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	appErr := errors.From(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.WithError(err).WithFields(map[string]interface{}{
			"path":       r.URL.Path,
			"request_id": middleware.GetRequestID(r.Context()),
		}).Error("Request failed")
	}
	errors.WriteJSON(w, appErr, middleware.GetRequestID(r.Context()))
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.NewValidationError("Request body is too large.", nil)
		}
		return errors.NewValidationError("Invalid request body.", map[string]interface{}{"error": err.Error()})
	}
	return nil
}
