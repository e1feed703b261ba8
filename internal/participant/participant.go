// Package participant implements the availability evaluator side of a
// negotiation
package participant

import (
	"context"
	"fmt"
	"log"

	"github.com/navikt/avtalt/internal/bus"
	"github.com/navikt/avtalt/internal/models"
	"github.com/navikt/avtalt/internal/utils"
)

// Participant holds one attendee's private availability windows and votes
// on proposed slots against them. It keeps no state across rounds beyond
// the availability itself.
type Participant struct {
	name      string
	available []models.TimeSlot
	node      bus.Node
}

// New creates a participant with its private availability windows
func New(name string, available []models.TimeSlot) *Participant {
	return &Participant{
		name:      name,
		available: available,
	}
}

// Name returns the identity the participant votes under
func (p *Participant) Name() string {
	return p.name
}

// Accepts reports whether any private window overlaps the proposed slot
// by at least the slot's full duration
func (p *Participant) Accepts(slot models.TimeSlot) bool {
	for _, own := range p.available {
		if own.Overlap(slot) >= slot.Duration() {
			return true
		}
	}
	return false
}

// Join attaches the participant to the negotiation's bus and announces its
// presence. Every availability request received produces exactly one
// broadcast vote; peer votes re-broadcast by the coordinator are ignored.
func (p *Participant) Join(ctx context.Context, b bus.Bus) error {
	node, err := b.Attach(ctx, p.name)
	if err != nil {
		return fmt.Errorf("failed to attach participant %s: %w", utils.SanitizeLogString(p.name), err)
	}
	p.node = node

	node.OnMessage(bus.MessageTypeRequest, func(msg bus.Message) {
		if msg.Request == nil {
			return
		}
		slot := msg.Request.Slot
		vote := bus.Message{
			Type: bus.MessageTypeResponse,
			Response: &models.AvailabilityResponse{
				Owner:    p.name,
				Slot:     slot,
				Accepted: p.Accepts(slot),
			},
		}
		if err := node.Broadcast(ctx, vote); err != nil {
			log.Printf("participant %s: failed to broadcast vote: %v", utils.SanitizeLogString(p.name), err)
		}
	})

	// Announce after the vote handler is in place so no proposal that
	// follows the hello can be missed
	if err := node.Broadcast(ctx, bus.Hello()); err != nil {
		node.Close()
		return fmt.Errorf("failed to announce participant %s: %w", utils.SanitizeLogString(p.name), err)
	}

	return nil
}

// Close detaches from the bus; idempotent
func (p *Participant) Close() error {
	if p.node == nil {
		return nil
	}
	return p.node.Close()
}
