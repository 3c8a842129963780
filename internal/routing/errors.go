package routing

import "errors"

var (
	// ErrUpdaterRunning is returned when starting an updater that is already running
	ErrUpdaterRunning = errors.New("routing updater is already running")

	// ErrUpdaterStopped is returned when stopping an updater that is not running
	ErrUpdaterStopped = errors.New("routing updater is not running")

	// ErrInvalidEntry is returned for entries that break the table invariants
	ErrInvalidEntry = errors.New("invalid routing table entry")

	// ErrNoLocalCommunities is returned when the local member belongs to no community
	ErrNoLocalCommunities = errors.New("local member belongs to no community")
)
