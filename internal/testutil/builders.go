package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"overlay-router/internal/directory"
	"overlay-router/internal/routing"
)

// TopologyBuilder helps build test topologies
type TopologyBuilder struct {
	topology directory.Topology
}

// NewTopologyBuilder starts a topology for member
func NewTopologyBuilder(memberID string) *TopologyBuilder {
	return &TopologyBuilder{topology: directory.Topology{MemberID: memberID}}
}

func (b *TopologyBuilder) WithCommunities(ids ...string) *TopologyBuilder {
	b.topology.Communities = append(b.topology.Communities, ids...)
	return b
}

// WithGateway records that member bridges source into destination
func (b *TopologyBuilder) WithGateway(memberID, source, destination string) *TopologyBuilder {
	b.topology.Gateways = append(b.topology.Gateways, routing.Gateway{
		MemberID:             memberID,
		SourceCommunity:      source,
		DestinationCommunity: destination,
	})
	return b
}

func (b *TopologyBuilder) WithGateways(gateways ...routing.Gateway) *TopologyBuilder {
	b.topology.Gateways = append(b.topology.Gateways, gateways...)
	return b
}

func (b *TopologyBuilder) WithEndpoints(endpoints ...routing.Endpoint) *TopologyBuilder {
	b.topology.Endpoints = append(b.topology.Endpoints, endpoints...)
	return b
}

func (b *TopologyBuilder) Build() directory.Topology {
	return b.topology
}

// Directory builds the topology into a directory, failing the test on error
func (b *TopologyBuilder) Directory(t testing.TB) *directory.Directory {
	t.Helper()
	dir, err := directory.New(b.topology)
	require.NoError(t, err)
	return dir
}

// EntryBuilder helps build routing entries
type EntryBuilder struct {
	entry routing.Entry
}

// NewEntryBuilder starts a cost-1 entry from source to destination through
// gateway inside source.
func NewEntryBuilder(source, destination, gateway string) *EntryBuilder {
	return &EntryBuilder{entry: routing.NewEntry(source, destination, gateway, source, 1)}
}

func (b *EntryBuilder) WithID(id string) *EntryBuilder {
	b.entry.ID = id
	return b
}

func (b *EntryBuilder) WithGatewayCommunity(community string) *EntryBuilder {
	b.entry.GatewayCommunity = community
	return b
}

func (b *EntryBuilder) WithCost(cost int) *EntryBuilder {
	b.entry.Cost = cost
	return b
}

func (b *EntryBuilder) Build() routing.Entry {
	return b.entry
}
