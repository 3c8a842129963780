// Package memory is an in-process transport. Nodes attached to the same
// Network reach each other by address without touching the wire.
package memory

import (
	"context"
	"fmt"
	"sync"

	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/transport"
)

// Name is the protocol id endpoints use for this transport
const Name = "memory"

// Network connects memory transports by address
type Network struct {
	mu        sync.RWMutex
	listeners map[string]*Transport
}

// NewNetwork creates an empty network
func NewNetwork() *Network {
	return &Network{listeners: make(map[string]*Transport)}
}

// Transport creates a transport that listens on address once Listen is called
func (n *Network) Transport(address string, logger logging.Logger) *Transport {
	return &Transport{
		network: n,
		address: address,
		logger:  logging.Component(logger, "transport.memory").WithFields(logging.String("address", address)),
	}
}

func (n *Network) attach(t *Transport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if current, taken := n.listeners[t.address]; taken && !current.closed() {
		return errors.ConnectionError(fmt.Sprintf("address %s already in use", t.address), nil)
	}
	n.listeners[t.address] = t
	return nil
}

func (n *Network) detach(t *Transport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners[t.address] == t {
		delete(n.listeners, t.address)
	}
}

func (n *Network) lookup(address string) (*Transport, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	t, ok := n.listeners[address]
	return t, ok
}

// Transport is one node's attachment to a Network
type Transport struct {
	network *Network
	address string
	logger  logging.Logger

	mu       sync.RWMutex
	handler  transport.Handler
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// Name returns "memory"
func (t *Transport) Name() string { return Name }

// Address returns the address peers send to
func (t *Transport) Address() string { return t.address }

// Send hands a copy of msg to the listener at address. Each delivery runs on
// its own goroutine, so Send returns before the receiver has handled it.
func (t *Transport) Send(ctx context.Context, address string, msg *transport.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, ok := t.network.lookup(address)
	if !ok {
		return errors.ConnectionError(fmt.Sprintf("no listener at %s", address), nil)
	}
	return target.receive(clone(msg))
}

func (t *Transport) receive(msg *transport.Message) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.handler == nil || t.ctx.Err() != nil {
		return errors.ConnectionError(fmt.Sprintf("listener at %s is closed", t.address), nil)
	}

	handler, ctx := t.handler, t.ctx
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		if err := handler(ctx, msg); err != nil {
			t.logger.Warn("Inbound message handler failed",
				logging.String("kind", string(msg.Kind)),
				logging.String("from", msg.Header(transport.HeaderFrom)),
				logging.Err(err),
			)
		}
	}()
	return nil
}

// Listen attaches the transport to its network address
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.mu.Lock()
	if t.handler != nil {
		t.mu.Unlock()
		return errors.ConnectionError(fmt.Sprintf("already listening on %s", t.address), nil)
	}
	t.handler = handler
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	if err := t.network.attach(t); err != nil {
		t.mu.Lock()
		t.handler = nil
		t.cancel()
		t.mu.Unlock()
		return err
	}

	return nil
}

// closed reports whether the listen context is gone
func (t *Transport) closed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.handler == nil || t.ctx.Err() != nil
}

// Shutdown detaches from the network and waits for running handlers
func (t *Transport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	cancel := t.cancel
	t.handler, t.cancel = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	t.network.detach(t)

	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func clone(msg *transport.Message) *transport.Message {
	out := transport.NewMessage(msg.Kind, append([]byte(nil), msg.Body...))
	for k, v := range msg.Headers {
		out.Headers[k] = v
	}
	return out
}
