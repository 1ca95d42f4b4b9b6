package routing

import "errors"

// Sentinel errors for the Router API (§6.2, §7).
var (
	ErrSameEndpoints    = errors.New("transitcore: start and destination are the same endpoint")
	ErrNoRoute          = errors.New("transitcore: no route found")
	ErrStoreUnavailable = errors.New("transitcore: store query failed")
)
