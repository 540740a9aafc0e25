package syncer

import "errors"

var (
	// ErrOffline aborts replay when the network monitor reports no connectivity.
	ErrOffline = errors.New("offline")
	// ErrRemoteWrite wraps a failed remote push or replay.
	ErrRemoteWrite = errors.New("remote write failed")
	// ErrQueueExhausted marks a mutation abandoned after its last retry.
	ErrQueueExhausted = errors.New("mutation abandoned after max retries")
)
