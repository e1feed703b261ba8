package web

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/navikt/avtalt/internal/models"
	"github.com/navikt/avtalt/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock implementation of NegotiationServicer
type MockNegotiationService struct {
	mock.Mock
}

func (m *MockNegotiationService) GetNegotiation(ctx context.Context, id string) (*models.Negotiation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Negotiation), args.Error(1)
}

// createTestNegotiation creates a finished negotiation for testing
func createTestNegotiation() *models.Negotiation {
	return &models.Negotiation{
		ID: "negotiation-1",
		Meeting: models.Meeting{
			Name:      "Team Sync",
			Date:      "2024-07-20",
			Duration:  2,
			MinQuorum: 2,
		},
		ExpectedParticipants: []string{"alice", "bob"},
		Status:               models.NegotiationStatusScheduled,
		Outcome: &models.Outcome{
			Scheduled:    true,
			Slot:         &models.TimeSlot{Date: "2024-07-20", StartTime: 9, EndTime: 11},
			Participants: []string{"alice", "bob"},
		},
		Transcript: []string{
			"Meeting schedule request: Team Sync 2024-07-20 2 2",
			"Meeting scheduled: [alice bob] agreed on 2024-07-20 9-11",
		},
		CreatedAt: time.Date(2024, 7, 19, 10, 0, 0, 0, time.UTC),
	}
}

// sseEvent is one decoded event from a response stream
type sseEvent struct {
	name string
	data string
}

// readEvents consumes the stream until want events have arrived. The
// caller's client timeout bounds the wait.
func readEvents(t *testing.T, body io.Reader, want int) []sseEvent {
	t.Helper()

	scanner := bufio.NewScanner(body)
	var events []sseEvent
	var current sseEvent
	sawField := false

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
			sawField = true
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
			sawField = true
		case line == "" && sawField:
			events = append(events, current)
			current = sseEvent{}
			sawField = false
			if len(events) == want {
				return events
			}
		}
	}

	t.Fatalf("stream ended after %d of %d events", len(events), want)
	return nil
}

func TestNewSSEManager(t *testing.T) {
	// Create a mock negotiation service
	mockService := new(MockNegotiationService)

	// Create an SSE manager
	sseManager := NewSSEManager(mockService)

	// Verify the manager was created with the expected fields
	assert.NotNil(t, sseManager)
	assert.NotNil(t, sseManager.server)
	assert.Equal(t, mockService, sseManager.negotiationService)
}

func TestSSEServeHTTP_CORSPreflight(t *testing.T) {
	sseManager := NewSSEManager(new(MockNegotiationService))
	defer sseManager.Shutdown()

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodOptions, "/events", nil)

	sseManager.ServeHTTP(recorder, request)

	// Check that CORS headers are set
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", recorder.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "GET, OPTIONS", recorder.Header().Get("Access-Control-Allow-Methods"))

	// Check that status is OK
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestSSEServeHTTP_MissingNegotiationParameter(t *testing.T) {
	sseManager := NewSSEManager(new(MockNegotiationService))
	defer sseManager.Shutdown()

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/events", nil)

	sseManager.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestSSEServeHTTP_UnknownNegotiation(t *testing.T) {
	mockService := new(MockNegotiationService)
	mockService.On("GetNegotiation", mock.Anything, "ghost").Return(nil, errors.New("negotiation not found"))

	sseManager := NewSSEManager(mockService)
	defer sseManager.Shutdown()

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/events?negotiation=ghost", nil)

	sseManager.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	mockService.AssertExpectations(t)
}

func TestStreamDeliversPublishedUpdates(t *testing.T) {
	// The updates arrive through the service callback; the store is never hit
	mockService := new(MockNegotiationService)

	sseManager := NewSSEManager(mockService)
	defer sseManager.Shutdown()

	sseManager.HandleNegotiationUpdate(service.NegotiationUpdate{
		NegotiationID: "negotiation-1",
		Line:          "alice connected (1/2)",
		Status:        models.NegotiationStatusRunning,
	})
	sseManager.HandleNegotiationUpdate(service.NegotiationUpdate{
		NegotiationID: "negotiation-1",
		Status:        models.NegotiationStatusScheduled,
		Outcome: &models.Outcome{
			Scheduled:    true,
			Slot:         &models.TimeSlot{Date: "2024-07-20", StartTime: 9, EndTime: 11},
			Participants: []string{"alice", "bob"},
		},
	})

	server := httptest.NewServer(sseManager)
	defer server.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(server.URL + "/events?negotiation=negotiation-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The stream replays its log, so both events arrive in publish order
	events := readEvents(t, resp.Body, 2)
	assert.Equal(t, "line", events[0].name)
	assert.Equal(t, "alice connected (1/2)", events[0].data)
	assert.Equal(t, "outcome", events[1].name)
	assert.Contains(t, events[1].data, `"status":"scheduled"`)
	assert.Contains(t, events[1].data, `"scheduled":true`)
	mockService.AssertExpectations(t)
}

func TestStreamBackfillsFromStore(t *testing.T) {
	// A finished negotiation with no live stream replays its stored transcript
	negotiation := createTestNegotiation()

	mockService := new(MockNegotiationService)
	mockService.On("GetNegotiation", mock.Anything, negotiation.ID).Return(negotiation, nil)

	sseManager := NewSSEManager(mockService)
	defer sseManager.Shutdown()

	server := httptest.NewServer(sseManager)
	defer server.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(server.URL + "/events?negotiation=" + negotiation.ID)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := readEvents(t, resp.Body, 3)
	assert.Equal(t, "line", events[0].name)
	assert.Equal(t, negotiation.Transcript[0], events[0].data)
	assert.Equal(t, "line", events[1].name)
	assert.Equal(t, negotiation.Transcript[1], events[1].data)
	assert.Equal(t, "outcome", events[2].name)
	assert.Contains(t, events[2].data, `"2024-07-20"`)
	mockService.AssertExpectations(t)
}
