package models

// AvailabilityRequest asks every participant whether a proposed slot works
// for them. Broadcast by the coordinator, one per negotiation round.
type AvailabilityRequest struct {
	Slot TimeSlot `json:"time_slot"`
}

// AvailabilityResponse is a participant's vote on a proposed slot. The
// coordinator re-broadcasts each response it receives so peers observe
// each other's votes.
type AvailabilityResponse struct {
	Owner    string   `json:"owner"`
	Slot     TimeSlot `json:"time_slot"`
	Accepted bool     `json:"accepted"`
}
