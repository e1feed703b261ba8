package config

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/navikt/avtalt/internal/models"
)

// RosterParticipant pairs a participant name with its private availability
// windows
type RosterParticipant struct {
	Name      string            `toml:"name" json:"name"`
	Available []models.TimeSlot `toml:"available" json:"available,omitempty"`
}

// Roster describes one meeting to schedule and the participants expected
// to negotiate it
type Roster struct {
	Meeting      models.Meeting      `toml:"meeting"`
	Participants []RosterParticipant `toml:"participants"`
}

// LoadRoster reads and validates a roster from a TOML file
func LoadRoster(path string) (*Roster, error) {
	var roster Roster
	if _, err := toml.DecodeFile(path, &roster); err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}

	if err := roster.Validate(); err != nil {
		return nil, err
	}

	return &roster, nil
}

// Validate checks the meeting spec and that participant names are present
// and unique
func (r *Roster) Validate() error {
	if err := r.Meeting.Validate(); err != nil {
		return err
	}

	if len(r.Participants) == 0 {
		return errors.New("roster has no participants")
	}

	seen := make(map[string]struct{}, len(r.Participants))
	for _, p := range r.Participants {
		if p.Name == "" {
			return errors.New("roster participant without a name")
		}
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("duplicate roster participant: %s", p.Name)
		}
		seen[p.Name] = struct{}{}
	}

	return nil
}

// Names returns the participant names in roster order
func (r *Roster) Names() []string {
	names := make([]string, len(r.Participants))
	for i, p := range r.Participants {
		names[i] = p.Name
	}
	return names
}
