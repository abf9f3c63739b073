package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/pkg/logger"
)

// FactorHandler handles factor combination endpoints.
type FactorHandler struct {
	factors contracts.FactorStore
	logger  *logger.Logger
}

// NewFactorHandler creates a new factor handler.
func NewFactorHandler(factors contracts.FactorStore, log *logger.Logger) *FactorHandler {
	return &FactorHandler{factors: factors, logger: log}
}

// Create stores a factor combination after validation.
// POST /api/combinations
func (h *FactorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var c contracts.FactorCombination
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.factors.SaveCombination(r.Context(), &c); err != nil {
		var verr contracts.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to save combination")
		respondError(w, http.StatusInternalServerError, "failed to save combination")
		return
	}

	respondJSON(w, http.StatusCreated, c)
}

// Get returns one combination.
// GET /api/combinations/{id}
func (h *FactorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	c, err := h.factors.GetCombinationByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "combination not found")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// List returns all stored combinations.
// GET /api/combinations
func (h *FactorHandler) List(w http.ResponseWriter, r *http.Request) {
	combinations, err := h.factors.ListCombinations(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list combinations")
		respondError(w, http.StatusInternalServerError, "failed to list combinations")
		return
	}
	respondJSON(w, http.StatusOK, combinations)
}
