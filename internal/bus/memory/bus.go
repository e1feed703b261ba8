// Package memory provides an in-process implementation of the bus for
// single-binary negotiations and tests
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/navikt/avtalt/internal/bus"
)

// DefaultQueueSize bounds each node's inbox. A negotiation produces a few
// messages per participant per round, so this covers a full day's scan for
// any realistic roster without a sender ever blocking.
const DefaultQueueSize = 1024

// Bus is an in-process broadcast substrate. Each attached node owns a
// buffered inbox drained by a single dispatch goroutine, so handlers on
// one node never run concurrently.
type Bus struct {
	mu        sync.RWMutex
	nodes     map[string]*node
	queueSize int
}

// NewBus creates an in-process bus. A queueSize of zero or less selects
// DefaultQueueSize.
func NewBus(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bus{
		nodes:     make(map[string]*node),
		queueSize: queueSize,
	}
}

// Attach adds a node to the bus and starts its dispatch loop
func (b *Bus) Attach(ctx context.Context, id string) (bus.Node, error) {
	n := &node{
		bus:      b,
		id:       id,
		inbox:    make(chan bus.Message, b.queueSize),
		handlers: make(map[bus.MessageType]bus.Handler),
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	if _, exists := b.nodes[id]; exists {
		b.mu.Unlock()
		return nil, fmt.Errorf("node %q is already attached", id)
	}
	b.nodes[id] = n
	b.mu.Unlock()

	go n.dispatch()

	return n, nil
}

// node is one attached endpoint
type node struct {
	bus   *Bus
	id    string
	inbox chan bus.Message

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

// Broadcast delivers msg to every other node's inbox. Delivery to a node
// that closed mid-send is skipped.
func (n *node) Broadcast(ctx context.Context, msg bus.Message) error {
	select {
	case <-n.done:
		return bus.ErrClosed
	default:
	}

	msg.From = n.id

	n.bus.mu.RLock()
	peers := make([]*node, 0, len(n.bus.nodes))
	for _, peer := range n.bus.nodes {
		if peer.id == n.id {
			continue
		}
		peers = append(peers, peer)
	}
	n.bus.mu.RUnlock()

	for _, peer := range peers {
		select {
		case peer.inbox <- msg:
		case <-peer.done:
		case <-ctx.Done():
			return ctx.Err()
		}
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

// Close detaches the node and stops its dispatch loop
func (n *node) Close() error {
	n.closeOnce.Do(func() {
		n.bus.mu.Lock()
		delete(n.bus.nodes, n.id)
		n.bus.mu.Unlock()
		close(n.done)
	})
	return nil
}

// dispatch drains the inbox, one message at a time
func (n *node) dispatch() {
	for {
		select {
		case <-n.done:
			return
		case msg := <-n.inbox:
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
