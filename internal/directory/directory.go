// Package directory serves the overlay topology from a static JSON document.
// It answers the membership, gateway and endpoint questions the routing
// layer asks and can be swapped atomically with Replace.
package directory

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/samber/lo"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/validation"
	"overlay-router/internal/routing"
)

// Topology is the bootstrap document
type Topology struct {
	MemberID    string             `json:"member_id" validate:"identifier"`
	Communities []string           `json:"communities" validate:"required,min=1,unique,dive,identifier"`
	Gateways    []routing.Gateway  `json:"gateways" validate:"dive"`
	Endpoints   []routing.Endpoint `json:"endpoints" validate:"dive"`
}

// Directory is a read-mostly, swappable view of a Topology
type Directory struct {
	mu          sync.RWMutex
	topology    Topology
	communities map[string]struct{}
	bySource    map[string][]routing.Gateway

	validator *validation.Validator
}

// New validates topology and builds a directory over it
func New(topology Topology) (*Directory, error) {
	d := &Directory{validator: validation.New()}
	if err := d.Replace(topology); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadFile reads a topology document from path
func LoadFile(path string) (*Directory, error) {
	topology, err := ReadTopology(path)
	if err != nil {
		return nil, err
	}
	return New(topology)
}

// ReadTopology parses the document at path without validating it
func ReadTopology(path string) (Topology, error) {
	var topology Topology

	data, err := os.ReadFile(path)
	if err != nil {
		return topology, errors.ConfigError(fmt.Sprintf("read topology %s: %v", path, err))
	}
	if err := json.Unmarshal(data, &topology); err != nil {
		return topology, errors.FormatError("topology is not valid JSON", err).WithContext("path", path)
	}
	return topology, nil
}

// Replace swaps in a new topology after validating it
func (d *Directory) Replace(topology Topology) error {
	if err := d.validator.Struct(topology); err != nil {
		return err
	}
	if err := checkEndpoints(topology); err != nil {
		return err
	}

	communities := make(map[string]struct{}, len(topology.Communities))
	for _, c := range topology.Communities {
		communities[c] = struct{}{}
	}
	gateways := lo.UniqBy(topology.Gateways, func(g routing.Gateway) routing.Gateway { return g })

	d.mu.Lock()
	defer d.mu.Unlock()

	topology.Communities = append([]string(nil), topology.Communities...)
	sort.Strings(topology.Communities)
	topology.Gateways = gateways
	d.topology = topology
	d.communities = communities
	d.bySource = lo.GroupBy(gateways, func(g routing.Gateway) string { return g.SourceCommunity })
	return nil
}

func checkEndpoints(topology Topology) error {
	ids := make(map[string]struct{}, len(topology.Endpoints))
	for _, e := range topology.Endpoints {
		if _, dup := ids[e.ID]; dup {
			return errors.ValidationError(fmt.Sprintf("duplicate endpoint id %s", e.ID))
		}
		ids[e.ID] = struct{}{}
	}
	return nil
}

// LocalMemberID returns the id of the member this node runs as
func (d *Directory) LocalMemberID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.topology.MemberID
}

// CommunityIDs returns the local member's communities in sorted order
func (d *Directory) CommunityIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.topology.Communities...)
}

// IsMember reports whether the local member belongs to communityID
func (d *Directory) IsMember(communityID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.communities[communityID]
	return ok
}

// Gateways returns every known gateway record
func (d *Directory) Gateways() []routing.Gateway {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]routing.Gateway(nil), d.topology.Gateways...)
}

// SourceGateways returns the gateways whose source community is communityID
func (d *Directory) SourceGateways(communityID string) []routing.Gateway {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]routing.Gateway(nil), d.bySource[communityID]...)
}

// EndpointsForMember returns the member's endpoints, optionally scoped to
// one community and never in an excluded community.
func (d *Directory) EndpointsForMember(memberID, communityID string, excluded []string) []routing.Endpoint {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return lo.Filter(d.topology.Endpoints, func(e routing.Endpoint, _ int) bool {
		if e.MemberID != memberID {
			return false
		}
		if communityID != "" && e.CommunityID != communityID {
			return false
		}
		return !lo.Contains(excluded, e.CommunityID)
	})
}

// Topology returns a copy of the current document
func (d *Directory) Topology() Topology {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t := d.topology
	t.Communities = append([]string(nil), t.Communities...)
	t.Gateways = append([]routing.Gateway(nil), t.Gateways...)
	t.Endpoints = append([]routing.Endpoint(nil), t.Endpoints...)
	return t
}
