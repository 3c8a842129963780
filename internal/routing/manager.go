package routing

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/logging"
)

// RebuildLockKey is the lock taken around Rebuild when a Locker is configured
const RebuildLockKey = "overlay:routing:rebuild"

// Manager is the single owner of the routing table. Persistence is optional
// and failures there are logged, never returned from routing operations.
type Manager struct {
	table     *Table
	directory Directory
	store     Store
	locker    Locker
	metrics   *Metrics
	logger    logging.Logger
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithStore persists every table change to store
func WithStore(store Store) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// WithLocker guards Rebuild with a distributed lock
func WithLocker(locker Locker) ManagerOption {
	return func(m *Manager) { m.locker = locker }
}

// WithMetrics records table size
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithLogger sets the manager logger
func WithLogger(logger logging.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a manager over an empty table
func NewManager(directory Directory, opts ...ManagerOption) *Manager {
	m := &Manager{
		table:     NewTable(),
		directory: directory,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.Component(m.logger, "routing.manager")
	return m
}

// Table exposes the managed table for read-only inspection
func (m *Manager) Table() *Table {
	return m.table
}

type addOptions struct {
	fromLoad          bool
	keepMoreExpensive bool
}

// AddOption adjusts a single AddEntry call
type AddOption func(*addOptions)

// FromLoad marks an entry read from the store; it is not written back
func FromLoad() AddOption {
	return func(o *addOptions) { o.fromLoad = true }
}

// KeepMoreExpensive inserts the entry even when its gateway pair is already
// known at a lower cost
func KeepMoreExpensive() AddOption {
	return func(o *addOptions) { o.keepMoreExpensive = true }
}

// AddEntry merges e into the table and reports whether the table changed.
// Invalid entries are logged and ignored.
func (m *Manager) AddEntry(ctx context.Context, e Entry, opts ...AddOption) bool {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := e.Validate(); err != nil {
		m.logger.Warn("Rejected routing entry", logging.Err(err), logging.String("entry", e.String()))
		return false
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	c := m.table.add(e, !o.keepMoreExpensive)
	if c.kind == unchanged {
		return false
	}
	m.metrics.setEntries(m.table.Len())

	if o.fromLoad || m.store == nil {
		return true
	}

	var err error
	switch c.kind {
	case inserted:
		err = m.store.Insert(ctx, c.new)
	case replaced:
		err = m.store.Update(ctx, c.old, c.new)
	}
	if err != nil {
		m.logger.Error("Failed to persist routing entry, keeping it in memory only", err,
			logging.String("entry", c.new.String()),
		)
	}
	return true
}

// LookupNextHopFrom returns the cheapest hop for (destination, source)
func (m *Manager) LookupNextHopFrom(destination, source string) (Hop, bool) {
	e, ok := m.table.best(destination, source)
	if !ok {
		return Hop{}, false
	}
	return Hop{
		SourceCommunity:  e.SourceCommunity,
		GatewayMemberID:  e.GatewayMemberID,
		GatewayCommunity: e.GatewayCommunity,
		Cost:             e.Cost,
	}, true
}

// LookupNextHop evaluates every local community as source and returns the
// cheapest hop. Equal costs go to the lexicographically smallest source.
func (m *Manager) LookupNextHop(destination string) (Hop, bool) {
	communities := m.directory.CommunityIDs()
	sort.Strings(communities)

	var best Hop
	found := false
	for _, source := range communities {
		hop, ok := m.LookupNextHopFrom(destination, source)
		if ok && (!found || hop.Cost < best.Cost) {
			best, found = hop, true
		}
	}
	return best, found
}

// NextHop is LookupNextHop failing with a no_route error
func (m *Manager) NextHop(destination string) (Hop, error) {
	hop, ok := m.LookupNextHop(destination)
	if !ok {
		return Hop{}, errors.NoRouteError(destination)
	}
	return hop, nil
}

// NextHopFrom is LookupNextHopFrom failing with a no_route error
func (m *Manager) NextHopFrom(destination, source string) (Hop, error) {
	hop, ok := m.LookupNextHopFrom(destination, source)
	if !ok {
		return Hop{}, errors.NoRouteError(destination).WithContext("source", source)
	}
	return hop, nil
}

// Recalculate adds the locally known topology to the table: a self route and
// one cost-1 entry per gateway out of each local community, then every cost-1
// route extended by one gateway of its destination at cost 2. It does not
// flush first. The number of entries added is returned.
func (m *Manager) Recalculate(ctx context.Context) (int, error) {
	local := m.directory.LocalMemberID()
	communities := m.directory.CommunityIDs()
	if len(communities) == 0 {
		return 0, ErrNoLocalCommunities
	}
	sort.Strings(communities)

	firstHop := make([]Entry, 0, len(communities))
	for _, c := range communities {
		firstHop = append(firstHop, NewEntry(c, c, local, c, 1))
	}
	for _, g := range m.directory.Gateways() {
		if lo.Contains(communities, g.SourceCommunity) {
			firstHop = append(firstHop, NewEntry(g.SourceCommunity, g.DestinationCommunity, g.MemberID, g.SourceCommunity, 1))
		}
	}

	added := 0
	for _, e := range firstHop {
		if m.AddEntry(ctx, e) {
			added++
		}
	}

	for _, e := range firstHop {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		if e.SourceCommunity == e.DestinationCommunity {
			continue
		}
		for _, g := range m.directory.SourceGateways(e.DestinationCommunity) {
			if g.DestinationCommunity == e.SourceCommunity || g.DestinationCommunity == e.DestinationCommunity {
				continue
			}
			second := NewEntry(e.SourceCommunity, g.DestinationCommunity, e.GatewayMemberID, e.GatewayCommunity, 2)
			if m.AddEntry(ctx, second) {
				added++
			}
		}
	}

	m.logger.Info("Routing table recalculated",
		logging.Int("added", added),
		logging.Int("entries", m.table.Len()),
	)
	return added, nil
}

// ApplyPeerTable extends the table with what peerMemberID can reach. Only
// local cost-1 entries are extended: for each one whose destination is a
// peer entry's source, a route to the peer entry's destination is added via
// the peer at the peer's cost plus one. Routes leading back to their own
// source are skipped. It returns the number of entries added or improved.
func (m *Manager) ApplyPeerTable(ctx context.Context, peerMemberID string, peerEntries []Tuple) int {
	neighbours := m.table.withCost(1)

	changed := 0
	for _, local := range neighbours {
		for _, p := range peerEntries {
			if p.Source != local.DestinationCommunity || p.Destination == local.SourceCommunity {
				continue
			}
			learned := NewEntry(local.SourceCommunity, p.Destination, peerMemberID, local.DestinationCommunity, p.Cost+1)
			if m.AddEntry(ctx, learned) {
				changed++
			}
		}
	}

	if changed > 0 {
		m.logger.Debug("Applied peer routing table",
			logging.String("peer", peerMemberID),
			logging.Int("peer_entries", len(peerEntries)),
			logging.Int("changed", changed),
		)
	}
	return changed
}

// Flush empties the table and the store
func (m *Manager) Flush(ctx context.Context) {
	m.table.clear()
	m.metrics.setEntries(0)

	if m.store == nil {
		return
	}
	if err := m.store.DeleteAll(ctx); err != nil {
		m.logger.Error("Failed to clear routing store", err)
	}
}

// Rebuild flushes and recalculates the table, holding the rebuild lock when
// a Locker is configured.
func (m *Manager) Rebuild(ctx context.Context) (int, error) {
	if m.locker != nil {
		release, err := m.locker.Acquire(ctx, RebuildLockKey)
		if err != nil {
			return 0, fmt.Errorf("acquire rebuild lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release rebuild lock", logging.Err(err))
			}
		}()
	}

	m.Flush(ctx)
	return m.Recalculate(ctx)
}

// LoadFromStore fills the table from the store without writing back
func (m *Manager) LoadFromStore(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}

	entries, err := m.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load routing entries: %w", err)
	}

	loaded := 0
	for _, e := range entries {
		if m.AddEntry(ctx, e, FromLoad()) {
			loaded++
		}
	}
	m.logger.Info("Routing table loaded from store", logging.Int("entries", loaded))
	return loaded, nil
}

// ExportTable returns the table in exchange form
func (m *Manager) ExportTable() []Tuple {
	return lo.Map(m.table.Entries(), func(e Entry, _ int) Tuple { return e.Tuple() })
}

// MarshalTable returns the encoded exchange form
func (m *Manager) MarshalTable() ([]byte, error) {
	return EncodeTable(m.ExportTable())
}

// ImportTable parses a peer's encoded table without touching the local one
func (m *Manager) ImportTable(data []byte) ([]Tuple, error) {
	return DecodeTable(data)
}
