package routing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"overlay-router/internal/transport"
)

// Entry is one path fact: from SourceCommunity, DestinationCommunity is
// reached through GatewayMemberID inside GatewayCommunity at Cost.
type Entry struct {
	ID                   string `json:"id"`
	SourceCommunity      string `json:"source_community"`
	DestinationCommunity string `json:"destination_community"`
	GatewayMemberID      string `json:"gateway_member_id"`
	GatewayCommunity     string `json:"gateway_community"`
	Cost                 int    `json:"cost"`
}

// NewEntry creates an entry with a fresh id
func NewEntry(source, destination, gatewayMemberID, gatewayCommunity string, cost int) Entry {
	return Entry{
		ID:                   uuid.NewString(),
		SourceCommunity:      source,
		DestinationCommunity: destination,
		GatewayMemberID:      gatewayMemberID,
		GatewayCommunity:     gatewayCommunity,
		Cost:                 cost,
	}
}

// Validate checks the fields every entry must carry
func (e Entry) Validate() error {
	switch {
	case e.SourceCommunity == "":
		return fmt.Errorf("%w: missing source community", ErrInvalidEntry)
	case e.DestinationCommunity == "":
		return fmt.Errorf("%w: missing destination community", ErrInvalidEntry)
	case e.GatewayMemberID == "":
		return fmt.Errorf("%w: missing gateway member", ErrInvalidEntry)
	case e.GatewayCommunity == "":
		return fmt.Errorf("%w: missing gateway community", ErrInvalidEntry)
	case e.Cost < 1:
		return fmt.Errorf("%w: cost %d below 1", ErrInvalidEntry, e.Cost)
	}
	return nil
}

// Tuple returns the exchange form of the entry
func (e Entry) Tuple() Tuple {
	return Tuple{
		Source:           e.SourceCommunity,
		Destination:      e.DestinationCommunity,
		GatewayCommunity: e.GatewayCommunity,
		GatewayMemberID:  e.GatewayMemberID,
		Cost:             e.Cost,
	}
}

func (e Entry) sameGateway(other Entry) bool {
	return e.GatewayMemberID == other.GatewayMemberID && e.GatewayCommunity == other.GatewayCommunity
}

func (e Entry) String() string {
	return fmt.Sprintf("%s->%s via %s@%s cost %d",
		e.SourceCommunity, e.DestinationCommunity, e.GatewayMemberID, e.GatewayCommunity, e.Cost)
}

// Tuple is an entry as exchanged with peers. It encodes as a 5-element JSON
// array, see codec.go.
type Tuple struct {
	Source           string
	Destination      string
	GatewayCommunity string
	GatewayMemberID  string
	Cost             int
}

// Hop is the result of a next-hop lookup
type Hop struct {
	SourceCommunity  string
	GatewayMemberID  string
	GatewayCommunity string
	Cost             int
}

// Via returns the community the gateway is reached in from the local node.
// Learned routes name the community the gateway bridges into, which the local
// node is usually not a member of; those go through the source community
// where the gateway is a direct neighbour.
func (h Hop) Via(localCommunities []string) string {
	if lo.Contains(localCommunities, h.GatewayCommunity) {
		return h.GatewayCommunity
	}
	return h.SourceCommunity
}

// Gateway means MemberID bridges SourceCommunity into DestinationCommunity
type Gateway struct {
	MemberID             string `json:"member_id" validate:"required"`
	SourceCommunity      string `json:"source_community" validate:"required"`
	DestinationCommunity string `json:"destination_community" validate:"required"`
}

// Endpoint is an address through which a member is reached inside a community
type Endpoint struct {
	ID           string `json:"id" validate:"required"`
	MemberID     string `json:"member_id" validate:"required"`
	CommunityID  string `json:"community_id" validate:"required"`
	ProtocolID   string `json:"protocol_id" validate:"required"`
	Address      string `json:"address" validate:"required"`
	CredentialID string `json:"credential_id,omitempty"`
}

// Directory exposes the community and gateway facts known to the local member
type Directory interface {
	LocalMemberID() string
	// CommunityIDs lists the communities the local member belongs to
	CommunityIDs() []string
	// Gateways lists the gateway records of the local member's communities
	Gateways() []Gateway
	// SourceGateways lists gateways whose source is communityID
	SourceGateways(communityID string) []Gateway
}

// EndpointDirectory looks up member endpoints. An empty communityID means any
// community; endpoints in excluded communities are left out.
type EndpointDirectory interface {
	EndpointsForMember(memberID, communityID string, excluded []string) []Endpoint
}

// Authorizer decides whether actor may perform action on a community
type Authorizer interface {
	Validate(ctx context.Context, actorMemberID, resourceCommunityID, action string) bool
}

// LocalDeliverer hands a payload addressed to the local member to the
// protocol-level handler registered for protocolName.
type LocalDeliverer interface {
	Deliver(ctx context.Context, protocolName string, payload []byte) error
}

// Store persists routing table entries
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Insert(ctx context.Context, entry Entry) error
	Update(ctx context.Context, old, updated Entry) error
	DeleteAll(ctx context.Context) error
}

// Locker serializes table rebuilds across nodes sharing a store
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// TransportResolver returns the transport bound to a protocol name
type TransportResolver interface {
	Get(name string) (transport.Transport, error)
}

// PeerTableFetcher retrieves a peer's exported table over the transport
type PeerTableFetcher interface {
	FetchTable(ctx context.Context, peerMemberID, communityID string) ([]Tuple, error)
}

// Forwarder hands an envelope to memberID inside communityID
type Forwarder interface {
	Forward(ctx context.Context, envelope *Envelope, memberID, communityID string) error
}
