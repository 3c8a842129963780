// Package overlay turns inbound transport messages into routing actions and
// runs the request/response exchange of routing tables between neighbours.
package overlay

import (
	"context"
	"fmt"
	"time"

	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/correlation"
	"overlay-router/internal/routing"
	"overlay-router/internal/transport"
)

// Node is the inbound side of one overlay member
type Node struct {
	manager    *routing.Manager
	engine     *routing.Engine
	dispatcher *routing.Dispatcher
	deliverer  routing.LocalDeliverer
	tables     *correlation.Correlator[[]byte]

	fetchTimeout time.Duration
	logger       logging.Logger
}

// Option configures a Node
type Option func(*Node)

// WithFetchTimeout bounds how long FetchTable waits for a reply
func WithFetchTimeout(timeout time.Duration) Option {
	return func(n *Node) { n.fetchTimeout = timeout }
}

// WithLogger sets the node logger
func WithLogger(logger logging.Logger) Option {
	return func(n *Node) { n.logger = logger }
}

// NewNode wires the routing components behind a transport handler
func NewNode(manager *routing.Manager, engine *routing.Engine, dispatcher *routing.Dispatcher, deliverer routing.LocalDeliverer, opts ...Option) *Node {
	n := &Node{
		manager:      manager,
		engine:       engine,
		dispatcher:   dispatcher,
		deliverer:    deliverer,
		tables:       correlation.New[[]byte](),
		fetchTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = logging.Component(n.logger, "overlay")
	return n
}

// Handle is the transport.Handler for every listener of this node
func (n *Node) Handle(ctx context.Context, msg *transport.Message) error {
	from := msg.Header(transport.HeaderFrom)
	if from != "" {
		ctx = logging.ContextWithMemberID(ctx, from)
	}

	switch msg.Kind {
	case transport.KindApplication:
		return n.deliverer.Deliver(ctx, msg.Header(transport.HeaderProtocol), msg.Body)

	case transport.KindForward:
		community := msg.Header(transport.HeaderCommunity)
		if community == "" {
			return errors.FormatError("forward message without arrival community", nil)
		}
		outcome, err := n.dispatcher.Dispatch(ctx, msg.Body, community)
		n.logger.WithContext(ctx).Debug("Dispatched envelope",
			logging.String("outcome", outcome.String()),
			logging.String("arrival_community", community),
		)
		return err

	case transport.KindTableRequest:
		return n.answerTableRequest(ctx, msg)

	case transport.KindTableResponse:
		id := msg.Header(transport.HeaderCorrelationID)
		if id == "" {
			return errors.FormatError("table response without correlation id", nil)
		}
		if !n.tables.Resolve(id, msg.Body) {
			n.logger.WithContext(ctx).Debug("Discarded late table response", logging.String("correlation_id", id))
		}
		return nil

	default:
		return errors.FormatError(fmt.Sprintf("unknown message kind %q", msg.Kind), nil)
	}
}

func (n *Node) answerTableRequest(ctx context.Context, msg *transport.Message) error {
	id := msg.Header(transport.HeaderCorrelationID)
	from := msg.Header(transport.HeaderFrom)
	community := msg.Header(transport.HeaderCommunity)
	if id == "" || from == "" || community == "" {
		return errors.FormatError("table request needs correlation id, sender and community", nil)
	}

	data, err := n.manager.MarshalTable()
	if err != nil {
		return err
	}

	reply := transport.NewMessage(transport.KindTableResponse, data).
		WithHeader(transport.HeaderCorrelationID, id)
	if err := n.engine.SendControl(ctx, reply, from, community); err != nil {
		return fmt.Errorf("reply to table request from %s: %w", from, err)
	}
	return nil
}

// FetchTable asks peerMemberID, reached inside communityID, for its routing
// table and waits for the correlated reply.
func (n *Node) FetchTable(ctx context.Context, peerMemberID, communityID string) ([]routing.Tuple, error) {
	id := correlation.NewID()
	waiter, err := n.tables.Register(id)
	if err != nil {
		return nil, err
	}

	request := transport.NewMessage(transport.KindTableRequest, nil).
		WithHeader(transport.HeaderCorrelationID, id)
	if err := n.engine.SendControl(logging.ContextWithCorrelationID(ctx, id), request, peerMemberID, communityID); err != nil {
		n.tables.Abandon(id)
		return nil, err
	}

	data, err := waiter.Wait(ctx, n.fetchTimeout)
	if err != nil {
		return nil, err
	}
	return n.manager.ImportTable(data)
}

// Send delivers an application message to endpoint, routing it when needed
func (n *Node) Send(ctx context.Context, message []byte, endpoint routing.Endpoint) error {
	return n.engine.Send(ctx, message, endpoint)
}

// PendingFetches is the number of table requests awaiting a reply
func (n *Node) PendingFetches() int {
	return n.tables.Pending()
}
