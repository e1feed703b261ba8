package api

import (
	"context"

	"github.com/navikt/avtalt/internal/config"
	"github.com/navikt/avtalt/internal/models"
)

// NegotiationServicer defines the interface for negotiation operations needed by API handlers
type NegotiationServicer interface {
	StartNegotiation(ctx context.Context, meeting models.Meeting, roster []config.RosterParticipant) (*models.Negotiation, error)
	GetNegotiation(ctx context.Context, id string) (*models.Negotiation, error)
	ListNegotiations(ctx context.Context) ([]*models.Negotiation, error)
	DeleteNegotiation(ctx context.Context, id string) error
}
