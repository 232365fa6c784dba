package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/enaema/budget-ledger/internal/utils"
	log "github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

func WriteError(w http.ResponseWriter, status int, message, details string) {
	WriteJSON(w, status, ErrorResponse{Error: message, Details: details})
}

type livenessResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLivenessHandler answers on / so load balancers and humans can tell the process is up.
func NewLivenessHandler(clock utils.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, livenessResponse{
			Message:   "Server is running smoothly",
			Timestamp: clock.Now().UTC(),
		})
	}
}
