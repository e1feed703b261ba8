package negotiation

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/navikt/avtalt/internal/bus"
	"github.com/navikt/avtalt/internal/models"
	"github.com/navikt/avtalt/internal/utils"
)

// CoordinatorID is the bus identity the coordinator attaches with.
// Participant names must not use it.
const CoordinatorID = "coordinator"

// DefaultHorizon is the latest slot end time the coordinator will try
// before giving up, in time units from the start of the meeting's date
const DefaultHorizon = 24

// Abandonment reasons reported in the outcome
const (
	ReasonNoSlotFound = "no suitable slot found"
	ReasonCancelled   = "negotiation cancelled"
)

// Phase tracks the coordinator's position in the negotiation state machine
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseProposing
	PhaseAwaiting
	PhaseScheduled
	PhaseAbandoned
)

// String returns the string representation of a phase
func (p Phase) String() string {
	return [...]string{"idle", "proposing", "awaiting", "scheduled", "abandoned"}[p]
}

// Terminal reports whether the negotiation has ended
func (p Phase) Terminal() bool {
	return p == PhaseScheduled || p == PhaseAbandoned
}

// Coordinator owns one negotiation: it proposes candidate slots, tallies
// votes, and decides termination. Every inbound message is handled to
// completion under one lock before the next, so registry mutations and
// re-broadcasts never interleave.
type Coordinator struct {
	meeting  models.Meeting
	expected int
	horizon  int

	ctx  context.Context
	node bus.Node

	mu         sync.Mutex
	phase      Phase
	connected  map[string]struct{}
	candidate  models.TimeSlot
	exhausted  bool
	votes      *Registry
	responded  *Registry
	transcript []string
	outcome    *models.Outcome
	onStatus   func(line string)

	done chan struct{}
}

// NewCoordinator creates a coordinator for one meeting with the expected
// number of participants. A horizon of zero or less selects DefaultHorizon.
func NewCoordinator(meeting models.Meeting, expected, horizon int) *Coordinator {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return &Coordinator{
		meeting:   meeting,
		expected:  expected,
		horizon:   horizon,
		phase:     PhaseIdle,
		connected: make(map[string]struct{}),
		votes:     NewRegistry(),
		responded: NewRegistry(),
		done:      make(chan struct{}),
	}
}

// OnStatus registers a callback invoked for every transcript line. The
// callback runs on the coordinator's dispatch goroutine and must not block.
func (c *Coordinator) OnStatus(fn func(line string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = fn
}

// Start validates the meeting and attaches the coordinator to the bus.
// A malformed meeting is rejected before anything is broadcast. Too few
// expected participants to ever reach quorum abandons the negotiation
// without a single proposal.
func (c *Coordinator) Start(ctx context.Context, b bus.Bus) error {
	if err := c.meeting.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.logf("Meeting schedule request: %s", c.meeting)

	if c.expected < c.meeting.MinQuorum {
		c.abandon(fmt.Sprintf("not enough participants: %d expected, quorum is %d", c.expected, c.meeting.MinQuorum))
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	node, err := b.Attach(ctx, CoordinatorID)
	if err != nil {
		return fmt.Errorf("failed to attach coordinator: %w", err)
	}

	c.ctx = ctx
	c.node = node

	node.OnParticipantConnected(c.onConnected)
	node.OnMessage(bus.MessageTypeResponse, c.onResponse)

	return nil
}

// Stop finishes the negotiation and detaches from the bus; idempotent.
// A negotiation stopped before reaching a terminal phase is abandoned as
// cancelled. No broadcast ever follows Stop.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.phase.Terminal() {
		c.abandon(ReasonCancelled)
	}
	c.mu.Unlock()

	if c.node != nil {
		if err := c.node.Close(); err != nil {
			log.Printf("coordinator: failed to close bus node: %v", err)
		}
	}
}

// Done is closed when the negotiation reaches a terminal phase
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Phase returns the current phase
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Outcome returns the terminal result, if the negotiation has one yet
func (c *Coordinator) Outcome() (models.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome == nil {
		return models.Outcome{}, false
	}
	return *c.outcome, true
}

// Transcript returns a copy of the status lines emitted so far
func (c *Coordinator) Transcript() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]string, len(c.transcript))
	copy(lines, c.transcript)
	return lines
}

// onConnected counts joining participants and opens the negotiation once
// everyone expected is present
func (c *Coordinator) onConnected(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseIdle {
		log.Printf("coordinator: %s connected after negotiation started", utils.SanitizeLogString(id))
		return
	}

	if _, ok := c.connected[id]; ok {
		return
	}
	c.connected[id] = struct{}{}
	c.logf("%s connected (%d/%d)", id, len(c.connected), c.expected)

	if len(c.connected) < c.expected {
		return
	}

	first := models.TimeSlot{Date: c.meeting.Date, StartTime: 0, EndTime: c.meeting.Duration}
	if first.EndTime > c.horizon {
		// The meeting cannot fit inside the search horizon at all
		c.abandon(ReasonNoSlotFound)
		return
	}
	c.propose(first)
}

// onResponse runs the per-response protocol step: acknowledge publicly,
// tally the vote, then advance the scan
func (c *Coordinator) onResponse(msg bus.Message) {
	if msg.Response == nil {
		return
	}
	resp := *msg.Response

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase.Terminal() {
		log.Printf("coordinator: dropping late response from %s", utils.SanitizeLogString(resp.Owner))
		return
	}
	if c.phase == PhaseIdle {
		// A vote cannot precede the first proposal
		return
	}

	// Public acknowledgment so peers observe each other's votes
	c.send(bus.Message{Type: bus.MessageTypeResponse, Response: &resp})

	key := resp.Slot.Key()
	c.responded.Add(key, resp.Owner)

	if resp.Accepted {
		c.logf("%s accepts %s", resp.Owner, resp.Slot)
		if c.votes.Add(key, resp.Owner) >= c.meeting.MinQuorum {
			c.schedule(resp.Slot)
			return
		}
	}

	c.advance(resp.Slot)
}

// propose makes slot the current candidate and broadcasts the request.
// Caller holds the lock.
func (c *Coordinator) propose(slot models.TimeSlot) {
	c.phase = PhaseProposing
	c.candidate = slot
	c.send(bus.Message{
		Type:    bus.MessageTypeRequest,
		Request: &models.AvailabilityRequest{Slot: slot},
	})
	c.phase = PhaseAwaiting
}

// advance derives the next candidate from the slot a response voted on:
// one unit later than that slot's start. Responses from rounds that have
// already advanced derive a slot no later than the current candidate and
// are skipped, so each round moves the scan forward exactly once.
// Caller holds the lock.
func (c *Coordinator) advance(from models.TimeSlot) {
	next := models.TimeSlot{
		Date:      c.meeting.Date,
		StartTime: from.StartTime + 1,
		EndTime:   from.StartTime + 1 + c.meeting.Duration,
	}

	if !next.EndsAfter(c.candidate) {
		return
	}

	if next.EndTime > c.horizon {
		// Nothing left to try. The negotiation ends once every expected
		// participant has voted on the final candidate, so a quorum that
		// is still forming on it is not cut off.
		c.exhausted = true
		c.maybeAbandon()
		return
	}

	c.candidate = next
	c.logf("Trying next time slot: %s", next)
	c.send(bus.Message{
		Type:    bus.MessageTypeRequest,
		Request: &models.AvailabilityRequest{Slot: next},
	})
}

// maybeAbandon gives up once the scan is exhausted and the final candidate
// has a response from every expected participant without reaching quorum.
// Caller holds the lock.
func (c *Coordinator) maybeAbandon() {
	if !c.exhausted || c.phase.Terminal() {
		return
	}
	if c.responded.Count(c.candidate.Key()) < c.expected {
		return
	}
	c.abandon(ReasonNoSlotFound)
}

// schedule records the winning slot and its voters and ends the
// negotiation. Caller holds the lock.
func (c *Coordinator) schedule(slot models.TimeSlot) {
	voters := c.votes.Members(slot.Key())
	c.phase = PhaseScheduled
	c.outcome = &models.Outcome{Scheduled: true, Slot: &slot, Participants: voters}
	c.logf("Meeting scheduled: %v agreed on %s", voters, slot)
	close(c.done)
}

// abandon ends the negotiation without a slot. Caller holds the lock.
func (c *Coordinator) abandon(reason string) {
	if c.phase.Terminal() {
		return
	}
	c.phase = PhaseAbandoned
	c.outcome = &models.Outcome{Scheduled: false, Reason: reason}
	c.logf("Meeting abandoned: %s", reason)
	close(c.done)
}

// send broadcasts fire-and-forget. Caller holds the lock, so sends stay
// ordered with the state transitions that caused them.
func (c *Coordinator) send(msg bus.Message) {
	if err := c.node.Broadcast(c.ctx, msg); err != nil {
		log.Printf("coordinator: failed to broadcast %s: %v", msg.Type, err)
	}
}

// logf appends a line to the transcript and notifies the status callback
func (c *Coordinator) logf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	c.transcript = append(c.transcript, line)
	if c.onStatus != nil {
		c.onStatus(line)
	}
}
