package testutil

import (
	"overlay-router/internal/routing"
	"overlay-router/internal/transport/memory"
)

// LineFixture is four members on a line of three communities:
// A(C1) B(C1,C2) D(C2,C3) E(C3). B bridges C1 and C2 both ways, D bridges
// C2 into C3. Every endpoint uses the memory transport with the member id as
// address.
type LineFixture struct {
	Endpoints  []routing.Endpoint
	GatewayB12 routing.Gateway
	GatewayB21 routing.Gateway
	GatewayD23 routing.Gateway
}

// NewLineFixture returns the line topology facts
func NewLineFixture() *LineFixture {
	return &LineFixture{
		Endpoints: []routing.Endpoint{
			MemoryEndpoint("A", "C1"),
			MemoryEndpoint("B", "C1"),
			MemoryEndpoint("B", "C2"),
			MemoryEndpoint("D", "C2"),
			MemoryEndpoint("D", "C3"),
			MemoryEndpoint("E", "C3"),
		},
		GatewayB12: routing.Gateway{MemberID: "B", SourceCommunity: "C1", DestinationCommunity: "C2"},
		GatewayB21: routing.Gateway{MemberID: "B", SourceCommunity: "C2", DestinationCommunity: "C1"},
		GatewayD23: routing.Gateway{MemberID: "D", SourceCommunity: "C2", DestinationCommunity: "C3"},
	}
}

// Endpoint returns the fixture endpoint of member in community
func (f *LineFixture) Endpoint(memberID, communityID string) routing.Endpoint {
	for _, e := range f.Endpoints {
		if e.MemberID == memberID && e.CommunityID == communityID {
			return e
		}
	}
	panic("no fixture endpoint for " + memberID + "@" + communityID)
}

// MemoryEndpoint is member's memory-transport endpoint inside community
func MemoryEndpoint(memberID, communityID string) routing.Endpoint {
	return routing.Endpoint{
		ID:          memberID + "@" + communityID,
		MemberID:    memberID,
		CommunityID: communityID,
		ProtocolID:  memory.Name,
		Address:     memberID,
	}
}
