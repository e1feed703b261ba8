package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/navikt/avtalt/internal/bus"
	"github.com/navikt/avtalt/internal/config"
	"github.com/navikt/avtalt/internal/models"
	"github.com/navikt/avtalt/internal/negotiation"
	"github.com/navikt/avtalt/internal/participant"
	"github.com/navikt/avtalt/internal/repository"
	"github.com/navikt/avtalt/internal/utils"
)

// ErrInvalidRoster indicates a roster that no negotiation can be started
// from
var ErrInvalidRoster = errors.New("invalid roster")

// BusFactory builds the message bus a negotiation runs over. The factory
// is called once per negotiation with its ID, so implementations can
// isolate negotiations from each other.
type BusFactory func(negotiationID string) (bus.Bus, error)

// NegotiationUpdate is pushed to registered callbacks as a negotiation
// progresses. Line carries one transcript line; a terminal update has an
// empty Line and the final status and outcome instead.
type NegotiationUpdate struct {
	NegotiationID string
	Line          string
	Status        models.NegotiationStatus
	Outcome       *models.Outcome
}

// NegotiationUpdateCallback is a function type for negotiation update callbacks
type NegotiationUpdateCallback func(NegotiationUpdate)

// run tracks one in-flight negotiation
type run struct {
	coordinator  *negotiation.Coordinator
	cancel       context.CancelFunc
	participants []*participant.Participant
	bus          bus.Bus
	// finished is closed by the monitor after the terminal record is saved
	finished chan struct{}
}

// NegotiationService starts negotiations, keeps their stored records
// current, and fans progress out to registered callbacks
type NegotiationService struct {
	repo            repository.Repository
	busFactory      BusFactory
	horizon         int
	updateCallbacks []NegotiationUpdateCallback

	mu      sync.Mutex
	running map[string]*run
}

// NewNegotiationService creates a new NegotiationService with the given
// repository and bus factory
func NewNegotiationService(repo repository.Repository, busFactory BusFactory, cfg config.NegotiationConfig) *NegotiationService {
	return &NegotiationService{
		repo:            repo,
		busFactory:      busFactory,
		horizon:         cfg.Horizon,
		updateCallbacks: make([]NegotiationUpdateCallback, 0),
		running:         make(map[string]*run),
	}
}

// RegisterUpdateCallback registers a callback function to be called as
// negotiations progress. Registration is not synchronized and must happen
// before the first negotiation starts.
func (s *NegotiationService) RegisterUpdateCallback(callback NegotiationUpdateCallback) {
	s.updateCallbacks = append(s.updateCallbacks, callback)
}

// notifyUpdate calls all registered callbacks with the update
func (s *NegotiationService) notifyUpdate(update NegotiationUpdate) {
	for _, callback := range s.updateCallbacks {
		callback(update)
	}
}

// StartNegotiation validates the request, persists a pending record and
// sets the negotiation running. Roster entries that carry availability
// windows are joined in process; the rest are expected to join over the
// bus under their roster name. The call returns as soon as the
// negotiation is under way.
func (s *NegotiationService) StartNegotiation(ctx context.Context, meeting models.Meeting, roster []config.RosterParticipant) (*models.Negotiation, error) {
	meeting.Name = utils.SanitizeName(meeting.Name)

	if len(roster) == 0 {
		return nil, fmt.Errorf("%w: no participants", ErrInvalidRoster)
	}

	names := make([]string, len(roster))
	seen := make(map[string]struct{}, len(roster))
	for i, entry := range roster {
		name := utils.SanitizeName(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: participant without a name", ErrInvalidRoster)
		}
		if name == negotiation.CoordinatorID {
			return nil, fmt.Errorf("%w: participant name %q is reserved", ErrInvalidRoster, name)
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: duplicate participant %s", ErrInvalidRoster, name)
		}
		seen[name] = struct{}{}
		names[i] = name
	}

	if err := meeting.Validate(); err != nil {
		return nil, err
	}

	record := &models.Negotiation{
		ID:                   uuid.NewString(),
		Meeting:              meeting,
		ExpectedParticipants: names,
		Status:               models.NegotiationStatusPending,
		CreatedAt:            time.Now(),
	}
	if err := s.repo.SaveNegotiation(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save negotiation: %w", err)
	}

	negotiationBus, err := s.busFactory(record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to build negotiation bus: %w", err)
	}

	coordinator := negotiation.NewCoordinator(meeting, len(roster), s.horizon)

	// The callback runs on the coordinator's dispatch goroutine; the
	// record exists by now, so every line lands in the store in order
	coordinator.OnStatus(func(line string) {
		if err := s.repo.AppendTranscript(context.Background(), record.ID, line); err != nil {
			log.Printf("failed to append transcript line for %s: %v", record.ID, err)
		}
		s.notifyUpdate(NegotiationUpdate{
			NegotiationID: record.ID,
			Line:          line,
			Status:        models.NegotiationStatusRunning,
		})
	})

	// The negotiation outlives the request that started it
	runCtx, cancel := context.WithCancel(context.Background())

	if err := coordinator.Start(runCtx, negotiationBus); err != nil {
		cancel()
		closeBus(negotiationBus)
		record.Status = models.NegotiationStatusAbandoned
		record.CompletedAt = time.Now()
		if saveErr := s.repo.SaveNegotiation(ctx, record); saveErr != nil {
			log.Printf("failed to save failed negotiation %s: %v", record.ID, saveErr)
		}
		return nil, err
	}

	r := &run{
		coordinator: coordinator,
		cancel:      cancel,
		bus:         negotiationBus,
		finished:    make(chan struct{}),
	}

	// Join the roster entries whose availability we hold
	for i, entry := range roster {
		if len(entry.Available) == 0 {
			continue
		}
		p := participant.New(names[i], entry.Available)
		if err := p.Join(runCtx, negotiationBus); err != nil {
			log.Printf("failed to join participant %s: %v", utils.SanitizeLogString(names[i]), err)
			continue
		}
		r.participants = append(r.participants, p)
	}

	if !coordinator.Phase().Terminal() {
		record.Status = models.NegotiationStatusRunning
		if err := s.repo.SaveNegotiation(ctx, record); err != nil {
			log.Printf("failed to mark negotiation %s running: %v", record.ID, err)
		}
	}

	s.mu.Lock()
	s.running[record.ID] = r
	s.mu.Unlock()

	// The monitor gets its own copy so the caller's record stays stable
	go s.monitor(*record, r)

	return record, nil
}

// monitor waits for the negotiation to finish, persists the terminal
// record and releases the run's resources
func (s *NegotiationService) monitor(record models.Negotiation, r *run) {
	<-r.coordinator.Done()

	status := models.NegotiationStatusAbandoned
	if r.coordinator.Phase() == negotiation.PhaseScheduled {
		status = models.NegotiationStatusScheduled
	}

	record.Status = status
	record.CompletedAt = time.Now()
	if outcome, ok := r.coordinator.Outcome(); ok {
		record.Outcome = &outcome
	}

	if err := s.repo.SaveNegotiation(context.Background(), &record); err != nil {
		log.Printf("failed to save finished negotiation %s: %v", record.ID, err)
	}

	s.notifyUpdate(NegotiationUpdate{
		NegotiationID: record.ID,
		Status:        record.Status,
		Outcome:       record.Outcome,
	})

	for _, p := range r.participants {
		if err := p.Close(); err != nil {
			log.Printf("failed to close participant %s: %v", utils.SanitizeLogString(p.Name()), err)
		}
	}
	r.coordinator.Stop()
	r.cancel()
	closeBus(r.bus)

	s.mu.Lock()
	delete(s.running, record.ID)
	s.mu.Unlock()

	close(r.finished)
}

// closeBus releases a bus implementation that holds external resources
func closeBus(b bus.Bus) {
	if closer, ok := b.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Printf("failed to close negotiation bus: %v", err)
		}
	}
}

// StopNegotiation cancels a running negotiation. It reports ErrNotFound
// for IDs that are neither running nor stored.
func (s *NegotiationService) StopNegotiation(ctx context.Context, id string) error {
	s.mu.Lock()
	r, ok := s.running[id]
	s.mu.Unlock()

	if !ok {
		// Not running; surface whether it exists at all
		if _, err := s.repo.GetNegotiation(ctx, id); err != nil {
			return err
		}
		return nil
	}

	r.coordinator.Stop()

	select {
	case <-r.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForCompletion blocks until the negotiation finishes, then returns
// its stored record
func (s *NegotiationService) WaitForCompletion(ctx context.Context, id string) (*models.Negotiation, error) {
	s.mu.Lock()
	r, ok := s.running[id]
	s.mu.Unlock()

	if ok {
		select {
		case <-r.finished:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return s.repo.GetNegotiation(ctx, id)
}

// GetNegotiation returns a stored negotiation record, transcript included
func (s *NegotiationService) GetNegotiation(ctx context.Context, id string) (*models.Negotiation, error) {
	return s.repo.GetNegotiation(ctx, id)
}

// ListNegotiations returns all stored negotiation records
func (s *NegotiationService) ListNegotiations(ctx context.Context) ([]*models.Negotiation, error) {
	return s.repo.ListNegotiations(ctx)
}

// DeleteNegotiation removes a negotiation record, cancelling it first if
// it is still running
func (s *NegotiationService) DeleteNegotiation(ctx context.Context, id string) error {
	if err := s.StopNegotiation(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteNegotiation(ctx, id)
}

// Shutdown cancels every running negotiation and waits for their records
// to be persisted, bounded by the context
func (s *NegotiationService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	runs := make([]*run, 0, len(s.running))
	for _, r := range s.running {
		runs = append(runs, r)
	}
	s.mu.Unlock()

	for _, r := range runs {
		r.coordinator.Stop()
	}
	for _, r := range runs {
		select {
		case <-r.finished:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
