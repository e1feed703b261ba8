package models

import "time"

// NegotiationStatus represents the lifecycle state of a negotiation
type NegotiationStatus int

const (
	NegotiationStatusPending NegotiationStatus = iota
	NegotiationStatusRunning
	NegotiationStatusScheduled
	NegotiationStatusAbandoned
)

// String returns the string representation of a negotiation status
func (s NegotiationStatus) String() string {
	return [...]string{"pending", "running", "scheduled", "abandoned"}[s]
}

// Terminal reports whether the negotiation has finished
func (s NegotiationStatus) Terminal() bool {
	return s == NegotiationStatusScheduled || s == NegotiationStatusAbandoned
}

// Outcome records how a negotiation ended: the scheduled slot with the
// participants who agreed on it, or the reason it was abandoned
type Outcome struct {
	Scheduled    bool      `json:"scheduled"`
	Slot         *TimeSlot `json:"slot,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

// Negotiation is the stored record of a single scheduling run
type Negotiation struct {
	ID                   string            `json:"id"`
	Meeting              Meeting           `json:"meeting"`
	ExpectedParticipants []string          `json:"expected_participants"`
	Status               NegotiationStatus `json:"status"`
	Outcome              *Outcome          `json:"outcome,omitempty"`
	Transcript           []string          `json:"transcript,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	CompletedAt          time.Time         `json:"completed_at,omitempty"`
}
