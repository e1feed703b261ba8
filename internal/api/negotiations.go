package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/navikt/avtalt/internal/config"
	"github.com/navikt/avtalt/internal/models"
	"github.com/navikt/avtalt/internal/service"
)

// NegotiationHandler handles HTTP requests for negotiation management
type NegotiationHandler struct {
	negotiationService NegotiationServicer
}

// NewNegotiationHandler creates a new negotiation handler with the given service
func NewNegotiationHandler(negotiationService NegotiationServicer) *NegotiationHandler {
	return &NegotiationHandler{
		negotiationService: negotiationService,
	}
}

// scheduleRequest is the body of POST /api/negotiations
type scheduleRequest struct {
	Meeting      models.Meeting             `json:"meeting"`
	Participants []config.RosterParticipant `json:"participants"`
}

// ServeHTTP handles HTTP requests for negotiation management
func (h *NegotiationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Set common headers
	w.Header().Set("Content-Type", "application/json")

	// Extract negotiation ID from path if present
	// Path format: /api/negotiations/{negotiationID}
	pathParts := strings.Split(r.URL.Path, "/")
	var negotiationID string

	// Extract negotiationID if it exists in the path
	if len(pathParts) >= 4 && pathParts[3] != "" {
		negotiationID = pathParts[3]
	}

	// Route based on HTTP method and path
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/negotiations":
		h.listNegotiations(w, r)
	case r.Method == http.MethodGet && negotiationID != "":
		h.getNegotiation(w, r, negotiationID)
	case r.Method == http.MethodPost && r.URL.Path == "/api/negotiations":
		h.startNegotiation(w, r)
	case r.Method == http.MethodDelete && negotiationID != "":
		h.deleteNegotiation(w, r, negotiationID)
	default:
		http.NotFound(w, r)
	}
}

// startNegotiation handles POST /api/negotiations to launch a new negotiation
func (h *NegotiationHandler) startNegotiation(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest

	// Decode request body into schedule request
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		log.Printf("Error decoding schedule request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	negotiation, err := h.negotiationService.StartNegotiation(r.Context(), req.Meeting, req.Participants)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMalformedSpec):
			log.Printf("Rejected schedule request: %v", err)
			http.Error(w, "Invalid meeting spec", http.StatusBadRequest)
		case errors.Is(err, service.ErrInvalidRoster):
			log.Printf("Rejected schedule request: %v", err)
			http.Error(w, "Invalid roster", http.StatusBadRequest)
		default:
			log.Printf("Error starting negotiation: %v", err)
			http.Error(w, "Error starting negotiation", http.StatusInternalServerError)
		}
		return
	}

	// The negotiation runs in the background; return the pending record
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(negotiation)
}

// listNegotiations handles GET /api/negotiations to list all negotiations
func (h *NegotiationHandler) listNegotiations(w http.ResponseWriter, r *http.Request) {
	negotiations, err := h.negotiationService.ListNegotiations(r.Context())
	if err != nil {
		log.Printf("Error listing negotiations: %v", err)
		http.Error(w, "Error retrieving negotiations", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(negotiations)
}

// getNegotiation handles GET /api/negotiations/{negotiationID} to get a specific negotiation
func (h *NegotiationHandler) getNegotiation(w http.ResponseWriter, r *http.Request, negotiationID string) {
	negotiation, err := h.negotiationService.GetNegotiation(r.Context(), negotiationID)
	if err != nil {
		log.Printf("Error getting negotiation %s: %v", negotiationID, err)
		http.Error(w, "Negotiation not found", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(negotiation)
}

// deleteNegotiation handles DELETE /api/negotiations/{negotiationID} to delete a negotiation
func (h *NegotiationHandler) deleteNegotiation(w http.ResponseWriter, r *http.Request, negotiationID string) {
	// Check if the negotiation exists first
	_, err := h.negotiationService.GetNegotiation(r.Context(), negotiationID)
	if err != nil {
		log.Printf("Error getting negotiation %s: %v", negotiationID, err)
		http.Error(w, "Negotiation not found", http.StatusNotFound)
		return
	}

	// Deleting a running negotiation cancels it before removing the record
	err = h.negotiationService.DeleteNegotiation(r.Context(), negotiationID)
	if err != nil {
		log.Printf("Error deleting negotiation: %v", err)
		http.Error(w, "Error deleting negotiation", http.StatusInternalServerError)
		return
	}

	// Return success message
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Negotiation deleted successfully",
	})
}
