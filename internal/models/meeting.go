package models

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrMalformedSpec indicates a meeting specification that can never be scheduled
var ErrMalformedSpec = errors.New("malformed meeting spec")

// Meeting describes the meeting a negotiation tries to place.
// It is immutable once a negotiation starts.
type Meeting struct {
	Name      string `json:"name" toml:"name" validate:"required"`
	Date      string `json:"date" toml:"date" validate:"required"`
	Duration  int    `json:"duration" toml:"duration" validate:"gt=0"` // in time units
	MinQuorum int    `json:"minimum_participants" toml:"minimum_participants" validate:"gte=2"`
}

// Validate checks the meeting against the protocol's well-formedness rules:
// a positive duration and a quorum of at least two participants
func (m Meeting) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSpec, err)
	}
	return nil
}

// String returns the one-line form used in transcripts
func (m Meeting) String() string {
	return fmt.Sprintf("%s %s %d %d", m.Name, m.Date, m.Duration, m.MinQuorum)
}
