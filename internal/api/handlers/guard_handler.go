package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/promptsentry/promptsentry/internal/domain/entities"
	"github.com/promptsentry/promptsentry/internal/infrastructure/observability"
	apperrors "github.com/promptsentry/promptsentry/pkg/errors"
)

// GuardService is the coordinator contract the handler depends on.
type GuardService interface {
	Process(ctx context.Context, req *entities.GuardRequest) (*entities.GuardResult, error)
}

// GuardHandler exposes the guardrail pipeline over HTTP.
type GuardHandler struct {
	service GuardService
}

// NewGuardHandler creates a new guard handler.
func NewGuardHandler(service GuardService) *GuardHandler {
	return &GuardHandler{service: service}
}

// Guard handles POST /api/guard. The request blocks until a verdict arrives
// or the coordinator's timeout elapses.
func (h *GuardHandler) Guard(w http.ResponseWriter, r *http.Request) {
	var req entities.GuardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.service.Process(r.Context(), &req)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("guard request failed")
		respondWithError(w, http.StatusInternalServerError, "There was an error processing your request.")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// Health handles GET /health
func (h *GuardHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{"error": message})
}
