package models

import (
	"fmt"
)

// TimeSlot represents a candidate meeting window on a single date.
// Times are whole units on a 24-unit day; EndTime is exclusive.
type TimeSlot struct {
	Date      string `json:"date" toml:"date"`
	StartTime int    `json:"start_time" toml:"start"`
	EndTime   int    `json:"end_time" toml:"end"`
}

// Duration returns the length of the slot in time units
func (s TimeSlot) Duration() int {
	return s.EndTime - s.StartTime
}

// Key returns the canonical identity of the slot, used to key the vote registry
func (s TimeSlot) Key() string {
	return fmt.Sprintf("%s %d-%d", s.Date, s.StartTime, s.EndTime)
}

// String returns the canonical key form
func (s TimeSlot) String() string {
	return s.Key()
}

// EndsAfter reports whether s finishes later than other
func (s TimeSlot) EndsAfter(other TimeSlot) bool {
	return s.EndTime > other.EndTime
}

// Overlap returns the length of the time intersection between s and other.
// A zero or negative result means the slots share no usable time.
func (s TimeSlot) Overlap(other TimeSlot) int {
	latestStart := max(s.StartTime, other.StartTime)
	earliestEnd := min(s.EndTime, other.EndTime)
	return earliestEnd - latestStart
}
