package calendar

import "errors"

var (
	// ErrMissingEventID is returned when an update targets an event without an ID
	ErrMissingEventID = errors.New("event ID must be provided")

	// ErrMissingCorrelationKey is returned when a batch item has no key to
	// correlate its result with
	ErrMissingCorrelationKey = errors.New("batch item has no correlation key")

	// ErrDuplicateBatchKey is returned when two items of one batch share a key
	ErrDuplicateBatchKey = errors.New("duplicate batch key")

	// ErrBatchTooLarge is returned when a batch exceeds MaxBatchSize items
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrServiceClosed is returned by operations on a closed Service
	ErrServiceClosed = errors.New("calendar service is closed")
)

// MaxBatchSize is the largest number of calls Google accepts in one batch
const MaxBatchSize = 1000
