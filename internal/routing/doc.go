// Package routing implements community-to-community routing for the overlay.
//
// Members belong to one or more communities; gateway members bridge a source
// community into a destination community. Every node keeps a routing table of
// path facts ("from community S, community D is reachable through gateway G in
// community GC at cost N") and uses it to forward application messages one hop
// at a time.
//
// # Components
//
//   - Table: the in-memory index destination -> source -> cost-ordered entries,
//     guarded by a single RWMutex.
//   - Manager: the only writer of the table. It applies the merge policy,
//     rebuilds the local 1-hop and 2-hop view from the directory, extends the
//     table from peer tables and exchanges the table in its wire form.
//   - Controller: picks the endpoint a member is reached through.
//   - Engine: outbound path. Delivers directly when the local node shares the
//     endpoint's community, otherwise wraps the message in an Envelope and hands
//     it to the next-hop gateway.
//   - Dispatcher: inbound path for envelopes. Decides between local delivery,
//     a direct forward, a forward to the next hop, or a drop.
//   - Updater: periodic gossip. Fetches the tables of neighbouring gateways
//     concurrently and merges them through the manager.
//
// # Merge policy
//
// Within one (destination, source) bucket entries are sorted by ascending
// cost and a (gateway member, gateway community) pair appears at most once.
// A cheaper entry for a known pair replaces the old one in place; a more
// expensive one is ignored.
//
// Peer tables are only ever extended from the local node's cost-1 entries,
// so a learned route never claims a cost below the local hop to the gateway
// plus the peer's reported cost.
//
// # Wire form
//
// The exported table is a JSON array of 5-element arrays:
//
//	[["C1","C2","C1","M001",1],["C1","C3","C2","M002",2]]
//
// holding source community, destination community, gateway community,
// gateway member and cost, in that order.
//
// # Usage
//
//	manager := routing.NewManager(directory, routing.WithStore(store))
//	if _, err := manager.Recalculate(ctx); err != nil {
//		return err
//	}
//	controller := routing.NewController(directory, endpoints, "default")
//	engine := routing.NewEngine(directory, manager, controller, transports)
//
//	endpoint, err := controller.SelectEndpoint("M042", routing.SelectOptions{})
//	if err != nil {
//		return err
//	}
//	return engine.Send(ctx, payload, endpoint)
package routing
