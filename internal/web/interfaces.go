package web

import (
	"context"

	"github.com/navikt/avtalt/internal/models"
)

// NegotiationServicer defines the contract for negotiation lookups used by web handlers
type NegotiationServicer interface {
	GetNegotiation(ctx context.Context, id string) (*models.Negotiation, error)
}
