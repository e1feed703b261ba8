package api

import (
	"net/http"
)

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(negotiationService NegotiationServicer) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoints for Kubernetes
	mux.HandleFunc("/health/live", HealthLiveHandler)
	mux.HandleFunc("/health/ready", HealthReadyHandler)

	// Negotiation management endpoints
	negotiationHandler := NewNegotiationHandler(negotiationService)
	mux.Handle("/api/negotiations", negotiationHandler)
	mux.Handle("/api/negotiations/", negotiationHandler)

	return mux
}
