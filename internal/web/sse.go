package web

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/navikt/avtalt/internal/models"
	"github.com/navikt/avtalt/internal/service"
	"github.com/r3labs/sse/v2"
)

// outcomeEvent is the payload of the terminal "outcome" event
type outcomeEvent struct {
	Status  string          `json:"status"`
	Outcome *models.Outcome `json:"outcome,omitempty"`
}

// SSEManager streams negotiation transcripts to clients as server-sent
// events. Each negotiation gets its own stream keyed by its ID. Streams
// replay their event log to new subscribers, so a client that connects
// mid-negotiation still sees every line in order.
type SSEManager struct {
	server             *sse.Server
	negotiationService NegotiationServicer

	// mu serializes the exists-check-then-backfill in ensureStream
	mu sync.Mutex
}

// NewSSEManager creates a new server-sent events manager
func NewSSEManager(negotiationService NegotiationServicer) *SSEManager {
	server := sse.New()
	server.AutoReplay = true

	return &SSEManager{
		server:             server,
		negotiationService: negotiationService,
	}
}

// HandleNegotiationUpdate publishes a negotiation update to its stream.
// Register it with the negotiation service before the first negotiation
// starts so no line is missed.
func (sm *SSEManager) HandleNegotiationUpdate(update service.NegotiationUpdate) {
	sm.mu.Lock()
	if !sm.server.StreamExists(update.NegotiationID) {
		sm.server.CreateStream(update.NegotiationID)
	}
	sm.mu.Unlock()

	if update.Line != "" {
		sm.server.Publish(update.NegotiationID, &sse.Event{
			Event: []byte("line"),
			Data:  []byte(update.Line),
		})
		return
	}

	sm.publishOutcome(update.NegotiationID, update.Status, update.Outcome)
}

// publishOutcome sends the terminal event that tells viewers how the
// negotiation ended
func (sm *SSEManager) publishOutcome(negotiationID string, status models.NegotiationStatus, outcome *models.Outcome) {
	data, err := json.Marshal(outcomeEvent{
		Status:  status.String(),
		Outcome: outcome,
	})
	if err != nil {
		log.Printf("Error encoding outcome event for negotiation %s: %v", negotiationID, err)
		return
	}

	sm.server.Publish(negotiationID, &sse.Event{
		Event: []byte("outcome"),
		Data:  data,
	})
}

// ServeHTTP implements the http.Handler interface for SSE connections.
// Clients subscribe to one negotiation with /events?negotiation=<id>.
func (sm *SSEManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Set CORS headers to make SSE work in various environments
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

	// Handle CORS preflight
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	negotiationID := r.URL.Query().Get("negotiation")
	if negotiationID == "" {
		http.Error(w, "Missing negotiation parameter", http.StatusBadRequest)
		return
	}

	if err := sm.ensureStream(r, negotiationID); err != nil {
		log.Printf("No stream for negotiation %s: %v", negotiationID, err)
		http.Error(w, "Negotiation not found", http.StatusNotFound)
		return
	}

	// The SSE library picks its stream from the "stream" query parameter
	query := r.URL.Query()
	query.Set("stream", negotiationID)
	r.URL.RawQuery = query.Encode()

	sm.server.ServeHTTP(w, r)
}

// ensureStream backfills a stream from the store for negotiations whose
// lines were published before this manager saw them, typically finished
// negotiations viewed after a restart. The replayed stream then carries the
// full stored transcript.
func (sm *SSEManager) ensureStream(r *http.Request, negotiationID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.server.StreamExists(negotiationID) {
		return nil
	}

	negotiation, err := sm.negotiationService.GetNegotiation(r.Context(), negotiationID)
	if err != nil {
		return err
	}

	sm.server.CreateStream(negotiationID)
	for _, line := range negotiation.Transcript {
		sm.server.Publish(negotiationID, &sse.Event{
			Event: []byte("line"),
			Data:  []byte(line),
		})
	}
	if negotiation.Status.Terminal() {
		sm.publishOutcome(negotiationID, negotiation.Status, negotiation.Outcome)
	}

	return nil
}

// Shutdown stops all negotiation streams and disconnects their subscribers
func (sm *SSEManager) Shutdown() {
	sm.server.Close()
}
