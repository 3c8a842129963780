package routing

import (
	"context"
	"sync"

	"github.com/samber/lo"
	"overlay-router/internal/transport"
)

// MockDirectory is a fixed topology view
type MockDirectory struct {
	local       string
	communities []string
	gateways    []Gateway
	// sourceGateways overrides the gateways derived from the gateways field
	sourceGateways map[string][]Gateway
}

func (m *MockDirectory) LocalMemberID() string { return m.local }

func (m *MockDirectory) CommunityIDs() []string { return append([]string(nil), m.communities...) }

func (m *MockDirectory) Gateways() []Gateway { return m.gateways }

func (m *MockDirectory) SourceGateways(communityID string) []Gateway {
	if m.sourceGateways != nil {
		return m.sourceGateways[communityID]
	}
	return lo.Filter(m.gateways, func(g Gateway, _ int) bool { return g.SourceCommunity == communityID })
}

// MockEndpoints returns endpoints from a fixed list, honouring the filters
type MockEndpoints struct {
	endpoints []Endpoint
}

func (m *MockEndpoints) EndpointsForMember(memberID, communityID string, excluded []string) []Endpoint {
	return lo.Filter(m.endpoints, func(e Endpoint, _ int) bool {
		return e.MemberID == memberID &&
			(communityID == "" || e.CommunityID == communityID) &&
			!lo.Contains(excluded, e.CommunityID)
	})
}

// MockAuthorizer allows everything unless validateFunc says otherwise
type MockAuthorizer struct {
	validateFunc func(actor, community, action string) bool
}

func (m *MockAuthorizer) Validate(_ context.Context, actor, community, action string) bool {
	if m.validateFunc != nil {
		return m.validateFunc(actor, community, action)
	}
	return true
}

// MockDeliverer records local deliveries
type MockDeliverer struct {
	mu        sync.Mutex
	delivered []string
	err       error
}

func (m *MockDeliverer) Deliver(_ context.Context, protocolName string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, protocolName+":"+string(payload))
	return m.err
}

// MockForwarder records forwards
type MockForwarder struct {
	mu       sync.Mutex
	forwards []forwardCall
	err      error
}

type forwardCall struct {
	envelope  *Envelope
	member    string
	community string
}

func (m *MockForwarder) Forward(_ context.Context, envelope *Envelope, memberID, communityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forwards = append(m.forwards, forwardCall{envelope: envelope, member: memberID, community: communityID})
	return m.err
}

// MockStore keeps entries in memory and can fail on demand
type MockStore struct {
	mu        sync.Mutex
	entries   map[string]Entry
	inserts   int
	updates   int
	deletes   int
	failWith  error
	loadError error
}

func NewMockStore() *MockStore {
	return &MockStore{entries: make(map[string]Entry)}
}

func (m *MockStore) Load(context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadError != nil {
		return nil, m.loadError
	}
	return lo.Values(m.entries), nil
}

func (m *MockStore) Insert(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.failWith != nil {
		return m.failWith
	}
	m.entries[e.ID] = e
	return nil
}

func (m *MockStore) Update(_ context.Context, old, updated Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.failWith != nil {
		return m.failWith
	}
	delete(m.entries, old.ID)
	m.entries[updated.ID] = updated
	return nil
}

func (m *MockStore) DeleteAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.failWith != nil {
		return m.failWith
	}
	m.entries = make(map[string]Entry)
	return nil
}

// MockTransport records sent messages per address
type MockTransport struct {
	name    string
	mu      sync.Mutex
	sent    []sentMessage
	sendErr error
}

type sentMessage struct {
	address string
	msg     *transport.Message
}

func (m *MockTransport) Name() string { return m.name }

func (m *MockTransport) Send(_ context.Context, address string, msg *transport.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMessage{address: address, msg: msg})
	return nil
}

func (m *MockTransport) Listen(context.Context, transport.Handler) error { return nil }

func (m *MockTransport) Shutdown(context.Context) error { return nil }

func (m *MockTransport) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

// MockFetcher serves peer tables from a map
type MockFetcher struct {
	mu        sync.Mutex
	tables    map[string][]Tuple
	errs      map[string]error
	block     map[string]bool
	requested []Peer
}

func (m *MockFetcher) FetchTable(ctx context.Context, peerMemberID, communityID string) ([]Tuple, error) {
	m.mu.Lock()
	m.requested = append(m.requested, Peer{MemberID: peerMemberID, CommunityID: communityID})
	blocked := m.block[peerMemberID]
	err := m.errs[peerMemberID]
	table := m.tables[peerMemberID]
	m.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return table, nil
}

// checkInvariants fails when a bucket is unsorted or holds a duplicate gateway pair
func checkInvariants(t interface {
	Errorf(format string, args ...interface{})
}, table *Table) {
	table.mu.RLock()
	defer table.mu.RUnlock()

	for dst, sources := range table.buckets {
		for src, bucket := range sources {
			seen := map[string]bool{}
			for i, e := range bucket {
				if i > 0 && bucket[i-1].Cost > e.Cost {
					t.Errorf("bucket %s<-%s unsorted at %d", dst, src, i)
				}
				key := e.GatewayMemberID + "@" + e.GatewayCommunity
				if seen[key] {
					t.Errorf("bucket %s<-%s has duplicate gateway %s", dst, src, key)
				}
				seen[key] = true
			}
		}
	}
}
