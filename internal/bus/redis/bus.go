// Package redis provides a Redis pub/sub implementation of the bus so a
// negotiation can span processes
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/navikt/avtalt/internal/bus"
	"github.com/navikt/avtalt/internal/config"
)

// DefaultQueueSize bounds the receive buffer behind each node's
// subscription, mirroring the in-process bus
const DefaultQueueSize = 1024

// Bus is a Redis pub/sub broadcast substrate. All nodes of one negotiation
// share a single channel; every node drops its own publications on receipt.
type Bus struct {
	client  *redis.Client
	channel string
}

// NewBus connects to Redis and scopes a bus to one negotiation's channel
func NewBus(cfg config.RedisConfig, negotiationID string) (*Bus, error) {
	var client *redis.Client

	// Use URI if provided, otherwise build connection from individual parameters
	if cfg.URI != "" {
		opt, err := redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URI: %w", err)
		}

		if opt.DB == 0 {
			opt.DB = cfg.DB
		}

		if opt.Password == "" && cfg.Password != "" {
			opt.Password = cfg.Password
		}

		client = redis.NewClient(opt)
	} else {
		address := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)

		client = redis.NewClient(&redis.Options{
			Addr:     address,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Bus{
		client:  client,
		channel: fmt.Sprintf("%sbus:%s", cfg.KeyPrefix, negotiationID),
	}, nil
}

// Close closes the Redis connection
func (b *Bus) Close() error {
	return b.client.Close()
}

// Attach subscribes a node to the negotiation's channel. The subscription
// is confirmed before Attach returns, so nothing broadcast after the
// node's own hello can be missed.
func (b *Bus) Attach(ctx context.Context, id string) (bus.Node, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	n := &node{
		id:       id,
		client:   b.client,
		channel:  b.channel,
		pubsub:   pubsub,
		handlers: make(map[bus.MessageType]bus.Handler),
		done:     make(chan struct{}),
	}

	go n.dispatch(pubsub.Channel(redis.WithChannelSize(DefaultQueueSize)))

	return n, nil
}

// node is one subscribed endpoint
type node struct {
	id      string
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub

	mu        sync.RWMutex
	handlers  map[bus.MessageType]bus.Handler
	connected func(id string)

	closeOnce sync.Once
	done      chan struct{}
}

// ID returns the identity the node attached with
func (n *node) ID() string {
	return n.id
}

// Broadcast publishes msg as JSON on the negotiation's channel
func (n *node) Broadcast(ctx context.Context, msg bus.Message) error {
	select {
	case <-n.done:
		return bus.ErrClosed
	default:
	}

	msg.From = n.id

	data, err := json.Marshal(&msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

// OnMessage registers the handler for a message type
func (n *node) OnMessage(t bus.MessageType, h bus.Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[t] = h
}

// OnParticipantConnected registers the presence handler
func (n *node) OnParticipantConnected(fn func(id string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connected = fn
}

// Close unsubscribes the node; idempotent
func (n *node) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.done)
		err = n.pubsub.Close()
	})
	return err
}

// dispatch decodes incoming publications and runs handlers one message at
// a time
func (n *node) dispatch(ch <-chan *redis.Message) {
	for {
		select {
		case <-n.done:
			return
		case m, ok := <-ch:
			if !ok {
				return
			}

			var msg bus.Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				log.Printf("bus: dropping undecodable message on %s: %v", n.channel, err)
				continue
			}

			// Redis delivers our own publications back to us
			if msg.From == n.id {
				continue
			}

			n.deliver(msg)
		}
	}
}

func (n *node) deliver(msg bus.Message) {
	if msg.Type == bus.MessageTypeHello {
		n.mu.RLock()
		fn := n.connected
		n.mu.RUnlock()
		if fn != nil {
			fn(msg.From)
		}
		return
	}

	n.mu.RLock()
	h := n.handlers[msg.Type]
	n.mu.RUnlock()
	if h != nil {
		h(msg)
	}
}
