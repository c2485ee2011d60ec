package shm

import "errors"

var (
	// ErrNotRunning is returned when no distributor is registered for a dataset.
	// Callers treat it as "absent", not as a failure.
	ErrNotRunning = errors.New("distributor not running")

	// ErrAttachFailure is returned when a registered segment cannot be mapped or
	// is shorter than its advertised size.
	ErrAttachFailure = errors.New("shared memory attach failed")

	// ErrCorruptPayload is returned when segment bytes do not decode.
	ErrCorruptPayload = errors.New("corrupt shared memory payload")

	// ErrAlreadyRunning is returned by Server.Start when a live owner holds the dataset.
	ErrAlreadyRunning = errors.New("distributor already running")

	// ErrInvalidDataset is returned for dataset names that cannot name a segment.
	ErrInvalidDataset = errors.New("invalid dataset name")
)
