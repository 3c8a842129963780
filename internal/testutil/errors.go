package testutil

import "errors"

// Common test errors
var (
	ErrPeerDown    = errors.New("peer down")
	ErrTestFailure = errors.New("test failure")
)
