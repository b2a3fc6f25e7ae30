package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind model.Kind) int {
	switch kind {
	case model.KindNotAuthenticated:
		return http.StatusUnauthorized
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// writeServiceError writes err with the status of its kind. Backend causes
// are logged and not echoed to the client.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error) {
	kind := model.KindOf(err)
	status := statusFor(kind)
	if kind == model.KindBackend {
		log.Error("request failed", zap.Error(err))
		writeError(w, status, "upstream failure")
		return
	}
	var classified *model.Error
	if errors.As(err, &classified) && classified.Msg != "" {
		writeError(w, status, classified.Msg)
		return
	}
	writeError(w, status, err.Error())
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
