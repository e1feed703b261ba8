// Package repository defines interfaces for data storage
package repository

import (
	"context"

	"github.com/navikt/avtalt/internal/models"
)

// Repository defines the interface for storing and retrieving negotiation
// records. Transcript lines live next to the record and are appended as
// the negotiation progresses; listings return records without transcripts.
type Repository interface {
	// Negotiation record operations
	SaveNegotiation(ctx context.Context, negotiation *models.Negotiation) error
	GetNegotiation(ctx context.Context, id string) (*models.Negotiation, error)
	ListNegotiations(ctx context.Context) ([]*models.Negotiation, error)
	DeleteNegotiation(ctx context.Context, id string) error

	// Transcript operations
	AppendTranscript(ctx context.Context, negotiationID string, line string) error
	GetTranscript(ctx context.Context, negotiationID string) ([]string, error)
}
