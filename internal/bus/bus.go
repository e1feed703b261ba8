// Package bus defines the broadcast substrate that connects a negotiation's
// coordinator and participants
package bus

import (
	"context"
	"errors"

	"github.com/navikt/avtalt/internal/models"
)

// ErrClosed is returned when broadcasting on a node that has been detached
var ErrClosed = errors.New("bus node is closed")

// MessageType identifies the payload carried by a message envelope
type MessageType string

const (
	// MessageTypeHello announces a participant joining the negotiation
	MessageTypeHello MessageType = "participant.hello"
	// MessageTypeRequest carries a coordinator slot proposal
	MessageTypeRequest MessageType = "availability.request"
	// MessageTypeResponse carries a participant vote
	MessageTypeResponse MessageType = "availability.response"
)

// Message is the envelope for everything sent over the bus.
// At most one payload field is set, matching Type. From is the sending
// node's identity and is stamped by Broadcast.
type Message struct {
	Type     MessageType                  `json:"type"`
	From     string                       `json:"from"`
	Request  *models.AvailabilityRequest  `json:"request,omitempty"`
	Response *models.AvailabilityResponse `json:"response,omitempty"`
}

// Hello builds the presence announcement a participant broadcasts after
// attaching and registering its handlers
func Hello() Message {
	return Message{Type: MessageTypeHello}
}

// Handler consumes one received message. Handlers registered on the same
// node run serially on that node's dispatch goroutine.
type Handler func(msg Message)

// Node is one attached endpoint in a negotiation's namespace. A node never
// receives its own broadcasts.
type Node interface {
	// ID returns the identity the node attached with
	ID() string

	// Broadcast publishes a message to every other node in the namespace.
	// Fire-and-forget; no delivery acknowledgment is returned.
	Broadcast(ctx context.Context, msg Message) error

	// OnMessage registers the handler for a message type, replacing any
	// previous one. Messages of a type without a handler are dropped.
	OnMessage(t MessageType, h Handler)

	// OnParticipantConnected registers a handler invoked once per peer
	// announcing itself on the bus
	OnParticipantConnected(fn func(id string))

	// Close detaches the node and stops dispatch; idempotent
	Close() error
}

// Bus attaches nodes to a shared broadcast namespace
type Bus interface {
	Attach(ctx context.Context, id string) (Node, error)
}
