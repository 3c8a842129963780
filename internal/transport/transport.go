// Package transport defines the capability interface every wire transport
// implements, the message shape they carry and the registry the routing layer
// resolves them from by protocol name.
package transport

import (
	"context"

	"go.uber.org/multierr"
	"overlay-router/internal/common/registry"
)

// Kind tells the receiving node how to handle a message
type Kind string

const (
	// KindApplication is a raw application message for the local member
	KindApplication Kind = "application"
	// KindForward carries a forwarding envelope for the dispatcher
	KindForward Kind = "forward"
	// KindTableRequest asks the receiver for its routing table
	KindTableRequest Kind = "table-request"
	// KindTableResponse answers a table request
	KindTableResponse Kind = "table-response"
)

// Valid reports whether k is a known message kind
func (k Kind) Valid() bool {
	switch k {
	case KindApplication, KindForward, KindTableRequest, KindTableResponse:
		return true
	}
	return false
}

// Header names understood by every transport
const (
	HeaderCommunity     = "community"
	HeaderFrom          = "from"
	HeaderCorrelationID = "correlation-id"
	HeaderProtocol      = "protocol"
)

// Message is the unit a transport moves between members
type Message struct {
	Kind    Kind
	Headers map[string]string
	Body    []byte
}

// NewMessage creates a message of the given kind
func NewMessage(kind Kind, body []byte) *Message {
	return &Message{Kind: kind, Headers: make(map[string]string), Body: body}
}

// WithHeader sets a header and returns the message for chaining
func (m *Message) WithHeader(key, value string) *Message {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
	return m
}

// Header returns a header value or ""
func (m *Message) Header(key string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

// Handler consumes inbound messages
type Handler func(ctx context.Context, msg *Message) error

// Transport is a wire protocol able to reach endpoint addresses
type Transport interface {
	// Name is the protocol id endpoints refer to
	Name() string
	// Send delivers msg to address
	Send(ctx context.Context, address string, msg *Message) error
	// Listen starts accepting inbound messages and returns once the listener is up.
	// Inbound traffic is handed to handler until ctx is done or Shutdown is called.
	Listen(ctx context.Context, handler Handler) error
	// Shutdown stops listening and releases connections
	Shutdown(ctx context.Context) error
}

// Registry resolves transports by protocol name
type Registry struct {
	*registry.Registry[Transport]
}

// NewRegistry creates an empty transport registry
func NewRegistry(transports ...Transport) (*Registry, error) {
	r := &Registry{Registry: registry.New[Transport]()}
	for _, t := range transports {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ListenAll starts every registered transport with the same handler
func (r *Registry) ListenAll(ctx context.Context, handler Handler) error {
	for _, t := range r.All() {
		if err := t.Listen(ctx, handler); err != nil {
			return err
		}
	}
	return nil
}

// ShutdownAll stops every registered transport, combining their errors
func (r *Registry) ShutdownAll(ctx context.Context) error {
	var err error
	for _, t := range r.All() {
		err = multierr.Append(err, t.Shutdown(ctx))
	}
	return err
}
