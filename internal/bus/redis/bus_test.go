// Package redis_test provides tests for the Redis bus
package redis_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navikt/avtalt/internal/bus"
	"github.com/navikt/avtalt/internal/bus/redis"
	"github.com/navikt/avtalt/internal/config"
	"github.com/navikt/avtalt/internal/models"
)

func setupTestBus(t *testing.T) (*redis.Bus, *miniredis.Miniredis, func()) {
	// Create a miniredis server
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Configure Redis client to use miniredis
	cfg := config.RedisConfig{
		Enabled:   true,
		Host:      mr.Host(),
		Port:      mr.Port(),
		Username:  "",
		Password:  "",
		DB:        0,
		KeyPrefix: "test:",
	}

	b, err := redis.NewBus(cfg, "negotiation-1")
	require.NoError(t, err)

	cleanup := func() {
		b.Close()
		mr.Close()
	}

	return b, mr, cleanup
}

func waitForMessage(t *testing.T, ch <-chan bus.Message) bus.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return bus.Message{}
	}
}

// TestBusWithURI tests connection with URI format
func TestBusWithURI(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	uri := fmt.Sprintf("redis://%s:%s", mr.Host(), mr.Port())
	cfg := config.RedisConfig{
		Enabled:   true,
		URI:       uri,
		KeyPrefix: "test:",
	}

	b, err := redis.NewBus(cfg, "negotiation-uri")
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	n, err := b.Attach(ctx, "alice")
	require.NoError(t, err)
	defer n.Close()

	assert.Equal(t, "alice", n.ID())
}

func TestEnvelopeRoundTrip(t *testing.T) {
	b, _, cleanup := setupTestBus(t)
	defer cleanup()

	ctx := context.Background()

	coordinator, err := b.Attach(ctx, "coordinator")
	require.NoError(t, err)
	defer coordinator.Close()

	alice, err := b.Attach(ctx, "alice")
	require.NoError(t, err)
	defer alice.Close()

	requests := make(chan bus.Message, 8)
	alice.OnMessage(bus.MessageTypeRequest, func(msg bus.Message) { requests <- msg })

	responses := make(chan bus.Message, 8)
	coordinator.OnMessage(bus.MessageTypeResponse, func(msg bus.Message) { responses <- msg })

	// Coordinator proposes a slot
	slot := models.TimeSlot{Date: "2024-07-20", StartTime: 9, EndTime: 11}
	err = coordinator.Broadcast(ctx, bus.Message{
		Type:    bus.MessageTypeRequest,
		Request: &models.AvailabilityRequest{Slot: slot},
	})
	require.NoError(t, err)

	msg := waitForMessage(t, requests)
	assert.Equal(t, "coordinator", msg.From)
	require.NotNil(t, msg.Request)
	assert.Equal(t, slot, msg.Request.Slot)

	// Participant votes
	err = alice.Broadcast(ctx, bus.Message{
		Type:     bus.MessageTypeResponse,
		Response: &models.AvailabilityResponse{Owner: "alice", Slot: slot, Accepted: true},
	})
	require.NoError(t, err)

	msg = waitForMessage(t, responses)
	assert.Equal(t, "alice", msg.From)
	require.NotNil(t, msg.Response)
	assert.True(t, msg.Response.Accepted)
	assert.Equal(t, slot, msg.Response.Slot)
}

func TestOwnPublicationsAreDropped(t *testing.T) {
	b, _, cleanup := setupTestBus(t)
	defer cleanup()

	ctx := context.Background()

	alice, err := b.Attach(ctx, "alice")
	require.NoError(t, err)
	defer alice.Close()

	got := make(chan bus.Message, 8)
	alice.OnMessage(bus.MessageTypeResponse, func(msg bus.Message) { got <- msg })

	err = alice.Broadcast(ctx, bus.Message{
		Type:     bus.MessageTypeResponse,
		Response: &models.AvailabilityResponse{Owner: "alice", Accepted: true},
	})
	require.NoError(t, err)

	select {
	case <-got:
		t.Fatal("node received its own publication")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPresenceAnnouncement(t *testing.T) {
	b, _, cleanup := setupTestBus(t)
	defer cleanup()

	ctx := context.Background()

	coordinator, err := b.Attach(ctx, "coordinator")
	require.NoError(t, err)
	defer coordinator.Close()

	joined := make(chan string, 8)
	coordinator.OnParticipantConnected(func(id string) { joined <- id })

	alice, err := b.Attach(ctx, "alice")
	require.NoError(t, err)
	defer alice.Close()
	require.NoError(t, alice.Broadcast(ctx, bus.Hello()))

	select {
	case id := <-joined:
		assert.Equal(t, "alice", id)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for presence notification")
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	b, _, cleanup := setupTestBus(t)
	defer cleanup()

	ctx := context.Background()

	alice, err := b.Attach(ctx, "alice")
	require.NoError(t, err)

	assert.NoError(t, alice.Close())
	assert.NoError(t, alice.Close(), "close must be idempotent")

	err = alice.Broadcast(ctx, bus.Hello())
	assert.ErrorIs(t, err, bus.ErrClosed)
}

func TestNegotiationChannelsAreIsolated(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := config.RedisConfig{
		Enabled:   true,
		Host:      mr.Host(),
		Port:      mr.Port(),
		KeyPrefix: "test:",
	}

	busOne, err := redis.NewBus(cfg, "negotiation-1")
	require.NoError(t, err)
	defer busOne.Close()

	busTwo, err := redis.NewBus(cfg, "negotiation-2")
	require.NoError(t, err)
	defer busTwo.Close()

	ctx := context.Background()

	sender, err := busOne.Attach(ctx, "coordinator")
	require.NoError(t, err)
	defer sender.Close()

	other, err := busTwo.Attach(ctx, "bystander")
	require.NoError(t, err)
	defer other.Close()

	got := make(chan string, 8)
	other.OnParticipantConnected(func(id string) { got <- id })

	require.NoError(t, sender.Broadcast(ctx, bus.Hello()))

	select {
	case id := <-got:
		t.Fatalf("hello from %q leaked across negotiations", id)
	case <-time.After(200 * time.Millisecond):
	}
}
