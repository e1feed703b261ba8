// Package memory provides an in-memory implementation of the repository interface
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/navikt/avtalt/internal/models"
)

// ErrNotFound is returned when a requested entity is not found
var ErrNotFound = errors.New("entity not found")

// negotiationState holds one stored negotiation record and its transcript
type negotiationState struct {
	record     models.Negotiation
	transcript []string
}

// Repository implements the repository interface with in-memory storage
type Repository struct {
	negotiations map[string]*negotiationState
	mu           sync.RWMutex
}

// NewRepository creates a new in-memory repository
func NewRepository() *Repository {
	return &Repository{
		negotiations: make(map[string]*negotiationState),
	}
}

// cloneRecord copies a negotiation so stored state and returned values
// never share slices or the outcome with the caller
func cloneRecord(negotiation *models.Negotiation) models.Negotiation {
	record := *negotiation
	record.Transcript = nil
	record.ExpectedParticipants = append([]string(nil), negotiation.ExpectedParticipants...)
	if negotiation.Outcome != nil {
		outcome := *negotiation.Outcome
		outcome.Participants = append([]string(nil), negotiation.Outcome.Participants...)
		if negotiation.Outcome.Slot != nil {
			slot := *negotiation.Outcome.Slot
			outcome.Slot = &slot
		}
		record.Outcome = &outcome
	}
	return record
}

// SaveNegotiation stores or replaces a negotiation record. The transcript
// is kept separately and survives record updates.
func (r *Repository) SaveNegotiation(ctx context.Context, negotiation *models.Negotiation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record := cloneRecord(negotiation)

	state, exists := r.negotiations[negotiation.ID]
	if !exists {
		r.negotiations[negotiation.ID] = &negotiationState{record: record}
		return nil
	}
	state.record = record

	return nil
}

// GetNegotiation retrieves a negotiation by ID, transcript included
func (r *Repository) GetNegotiation(ctx context.Context, id string) (*models.Negotiation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.negotiations[id]
	if !ok {
		return nil, ErrNotFound
	}

	record := cloneRecord(&state.record)
	record.Transcript = append([]string(nil), state.transcript...)

	return &record, nil
}

// ListNegotiations returns all stored records without transcripts,
// oldest first
func (r *Repository) ListNegotiations(ctx context.Context) ([]*models.Negotiation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	negotiations := make([]*models.Negotiation, 0, len(r.negotiations))
	for _, state := range r.negotiations {
		record := cloneRecord(&state.record)
		negotiations = append(negotiations, &record)
	}

	sort.Slice(negotiations, func(i, j int) bool {
		if negotiations[i].CreatedAt.Equal(negotiations[j].CreatedAt) {
			return negotiations[i].ID < negotiations[j].ID
		}
		return negotiations[i].CreatedAt.Before(negotiations[j].CreatedAt)
	})

	return negotiations, nil
}

// DeleteNegotiation removes a negotiation and its transcript by ID
func (r *Repository) DeleteNegotiation(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.negotiations[id]
	if !ok {
		return ErrNotFound
	}

	delete(r.negotiations, id)

	return nil
}

// AppendTranscript adds one line to a negotiation's transcript
func (r *Repository) AppendTranscript(ctx context.Context, negotiationID string, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.negotiations[negotiationID]
	if !ok {
		return ErrNotFound
	}

	state.transcript = append(state.transcript, line)

	return nil
}

// GetTranscript returns a negotiation's transcript lines in append order
func (r *Repository) GetTranscript(ctx context.Context, negotiationID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.negotiations[negotiationID]
	if !ok {
		return nil, ErrNotFound
	}

	lines := make([]string, len(state.transcript))
	copy(lines, state.transcript)

	return lines, nil
}
