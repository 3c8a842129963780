package routing

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"overlay-router/internal/circuitbreaker"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/transport"
)

// Engine sends outbound application messages, directly or through gateways
type Engine struct {
	directory  Directory
	manager    *Manager
	controller *Controller
	transports TransportResolver
	breakers   *circuitbreaker.Manager
	logger     logging.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithBreakers guards every send with a per-target circuit breaker
func WithBreakers(breakers *circuitbreaker.Manager) EngineOption {
	return func(e *Engine) { e.breakers = breakers }
}

// WithEngineLogger sets the engine logger
func WithEngineLogger(logger logging.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an engine
func NewEngine(directory Directory, manager *Manager, controller *Controller, transports TransportResolver, opts ...EngineOption) *Engine {
	e := &Engine{
		directory:  directory,
		manager:    manager,
		controller: controller,
		transports: transports,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.Component(e.logger, "routing.engine")
	return e
}

// Send delivers message to endpoint. When the local node is a member of the
// endpoint's community the message goes straight to the endpoint; otherwise
// it is wrapped in an envelope and handed to the next-hop gateway.
func (e *Engine) Send(ctx context.Context, message []byte, endpoint Endpoint) error {
	local := e.directory.LocalMemberID()

	if lo.Contains(e.directory.CommunityIDs(), endpoint.CommunityID) {
		msg := transport.NewMessage(transport.KindApplication, message).
			WithHeader(transport.HeaderCommunity, endpoint.CommunityID).
			WithHeader(transport.HeaderFrom, local).
			WithHeader(transport.HeaderProtocol, endpoint.ProtocolID)
		return e.deliver(ctx, endpoint, msg)
	}

	hop, err := e.manager.NextHop(endpoint.CommunityID)
	if err != nil {
		return err
	}

	envelope := NewEnvelope(endpoint.MemberID, endpoint.ProtocolID, endpoint.CommunityID, message)
	envelope.OriginMemberID = local

	e.logger.Debug("Forwarding message through gateway",
		logging.String("envelope_id", envelope.ID),
		logging.String("destination", endpoint.MemberID),
		logging.String("gateway", hop.GatewayMemberID),
		logging.String("gateway_community", hop.GatewayCommunity),
		logging.Int("cost", hop.Cost),
	)
	return e.Forward(ctx, envelope, hop.GatewayMemberID, hop.Via(e.directory.CommunityIDs()))
}

// Forward sends envelope as a control message to memberID inside communityID.
// The receiving node sees communityID as the envelope's arrival community.
func (e *Engine) Forward(ctx context.Context, envelope *Envelope, memberID, communityID string) error {
	target, err := e.controller.SelectEndpoint(memberID, SelectOptions{
		CommunityID:           communityID,
		AllowDefaultCommunity: true,
		DirectOnly:            true,
	})
	if err != nil {
		return err
	}

	body, err := envelope.Encode()
	if err != nil {
		return err
	}

	msg := transport.NewMessage(transport.KindForward, body).
		WithHeader(transport.HeaderCommunity, communityID).
		WithHeader(transport.HeaderFrom, e.directory.LocalMemberID())
	return e.deliver(ctx, target, msg)
}

// SendControl sends a non-forward control message (table exchange) to
// memberID inside communityID.
func (e *Engine) SendControl(ctx context.Context, msg *transport.Message, memberID, communityID string) error {
	target, err := e.controller.SelectEndpoint(memberID, SelectOptions{
		CommunityID:           communityID,
		AllowDefaultCommunity: true,
		DirectOnly:            true,
	})
	if err != nil {
		return err
	}

	msg.WithHeader(transport.HeaderCommunity, communityID).
		WithHeader(transport.HeaderFrom, e.directory.LocalMemberID())
	return e.deliver(ctx, target, msg)
}

func (e *Engine) deliver(ctx context.Context, target Endpoint, msg *transport.Message) error {
	t, err := e.transports.Get(target.ProtocolID)
	if err != nil {
		return errors.CommunicationError(fmt.Sprintf("no transport for protocol %s", target.ProtocolID), err)
	}

	send := func(ctx context.Context) error {
		return t.Send(ctx, target.Address, msg)
	}
	if e.breakers != nil {
		err = e.breakers.Execute(ctx, target.ProtocolID+"|"+target.Address, send)
	} else {
		err = send(ctx)
	}
	if err == nil {
		return nil
	}

	if errors.IsType(err, errors.ErrTypeCommunication) {
		return err
	}
	return errors.CommunicationError(fmt.Sprintf("send to %s over %s failed", target.MemberID, target.ProtocolID), err).
		WithContext("address", target.Address).
		WithContext("kind", string(msg.Kind))
}
