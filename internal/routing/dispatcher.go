package routing

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/samber/lo"
	"overlay-router/internal/common/logging"
)

// ActionRoute is the authorization action checked before relaying an envelope
const ActionRoute = "routing.route"

// Outcome is the terminal state of one dispatched envelope
type Outcome int

const (
	OutcomeDropped Outcome = iota
	OutcomeDeliverLocal
	OutcomeForwardDirect
	OutcomeForwardViaNextHop
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDeliverLocal:
		return "deliver_local"
	case OutcomeForwardDirect:
		return "forward_direct"
	case OutcomeForwardViaNextHop:
		return "forward_via_nexthop"
	default:
		return "dropped"
	}
}

// Dispatcher handles forwarding envelopes received from other members
type Dispatcher struct {
	directory  Directory
	manager    *Manager
	forwarder  Forwarder
	authorizer Authorizer
	deliverer  LocalDeliverer
	seen       *lru.Cache[string, struct{}]
	maxHops    int
	metrics    *Metrics
	logger     logging.Logger
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithMaxHops drops envelopes that already travelled maxHops hops
func WithMaxHops(maxHops int) DispatcherOption {
	return func(d *Dispatcher) { d.maxHops = maxHops }
}

// WithReplayWindow drops envelopes whose id was among the last size ids seen
func WithReplayWindow(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size <= 0 {
			d.seen = nil
			return
		}
		d.seen, _ = lru.New[string, struct{}](size)
	}
}

// WithDispatcherMetrics records outcomes
func WithDispatcherMetrics(metrics *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = metrics }
}

// WithDispatcherLogger sets the dispatcher logger
func WithDispatcherLogger(logger logging.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// NewDispatcher creates a dispatcher
func NewDispatcher(directory Directory, manager *Manager, forwarder Forwarder, authorizer Authorizer, deliverer LocalDeliverer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		directory:  directory,
		manager:    manager,
		forwarder:  forwarder,
		authorizer: authorizer,
		deliverer:  deliverer,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.Component(d.logger, "routing.dispatcher")
	return d
}

// Dispatch decides what happens to an envelope that arrived through
// arrivalCommunity. Authorization denials and missing gateway pairings are
// not errors; they end in OutcomeDropped. Errors come from malformed
// envelopes, local delivery and the outbound send.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte, arrivalCommunity string) (Outcome, error) {
	envelope, err := DecodeEnvelope(data)
	if err != nil {
		d.drop(ctx, nil, arrivalCommunity, "malformed envelope")
		return OutcomeDropped, err
	}
	ctx = logging.ContextWithEnvelopeID(ctx, envelope.ID)

	if d.seen != nil && envelope.ID != "" {
		if seen, _ := d.seen.ContainsOrAdd(envelope.ID, struct{}{}); seen {
			d.drop(ctx, envelope, arrivalCommunity, "duplicate envelope")
			return OutcomeDropped, nil
		}
	}

	local := d.directory.LocalMemberID()
	if envelope.DestinationMemberID == local {
		d.metrics.observeDispatch(OutcomeDeliverLocal)
		return OutcomeDeliverLocal, d.deliverer.Deliver(ctx, envelope.ProtocolName, envelope.Payload)
	}

	if d.maxHops > 0 && envelope.Hops >= d.maxHops {
		d.drop(ctx, envelope, arrivalCommunity, "hop limit reached")
		return OutcomeDropped, nil
	}

	if lo.Contains(d.directory.CommunityIDs(), envelope.DestinationCommunity) &&
		d.authorizer.Validate(ctx, local, envelope.DestinationCommunity, ActionRoute) &&
		d.hasGateway(arrivalCommunity, envelope.DestinationCommunity) {
		d.metrics.observeDispatch(OutcomeForwardDirect)
		return OutcomeForwardDirect, d.forwarder.Forward(ctx, envelope.Rewrap(), envelope.DestinationMemberID, envelope.DestinationCommunity)
	}

	hop, ok := d.manager.LookupNextHop(envelope.DestinationCommunity)
	if !ok {
		d.drop(ctx, envelope, arrivalCommunity, "no route")
		return OutcomeDropped, nil
	}
	if !d.authorizer.Validate(ctx, local, hop.GatewayCommunity, ActionRoute) {
		d.drop(ctx, envelope, arrivalCommunity, "routing into gateway community denied")
		return OutcomeDropped, nil
	}
	if !d.hasGateway(arrivalCommunity, hop.GatewayCommunity) {
		d.drop(ctx, envelope, arrivalCommunity, "no gateway pairing")
		return OutcomeDropped, nil
	}

	d.metrics.observeDispatch(OutcomeForwardViaNextHop)
	return OutcomeForwardViaNextHop, d.forwarder.Forward(ctx, envelope.Rewrap(), hop.GatewayMemberID, hop.Via(d.directory.CommunityIDs()))
}

func (d *Dispatcher) hasGateway(source, destination string) bool {
	return lo.ContainsBy(d.directory.Gateways(), func(g Gateway) bool {
		return g.SourceCommunity == source && g.DestinationCommunity == destination
	})
}

func (d *Dispatcher) drop(ctx context.Context, envelope *Envelope, arrivalCommunity, reason string) {
	d.metrics.observeDispatch(OutcomeDropped)

	fields := []logging.Field{
		logging.String("reason", reason),
		logging.String("arrival_community", arrivalCommunity),
	}
	if envelope != nil {
		fields = append(fields,
			logging.String("destination", envelope.DestinationMemberID),
			logging.String("destination_community", envelope.DestinationCommunity),
			logging.Int("hops", envelope.Hops),
		)
	}
	d.logger.WithContext(ctx).Warn("Dropped forwarding envelope", fields...)
}
