package service

import (
	"errors"

	"github.com/jaekwang-park/tasksync/internal/repository"
	"github.com/jaekwang-park/tasksync/internal/syncer"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrNoSession    = errors.New("no active session")

	// Sync and storage failures are passed through unchanged so callers can
	// match them with errors.Is against either package.
	ErrStoreUnavailable = repository.ErrStoreUnavailable
	ErrOffline          = syncer.ErrOffline
	ErrRemoteWrite      = syncer.ErrRemoteWrite
	ErrQueueExhausted   = syncer.ErrQueueExhausted
)
