package ledger

import "errors"

var (
	// ErrDuplicateTrade indicates an import tried to insert a trade
	// whose external id already exists. This is a data-integrity fault
	// in the import source, not a retriable condition.
	ErrDuplicateTrade = errors.New("ledger: duplicate trade id")

	// ErrVersionConflict indicates an alert-state write lost an
	// optimistic-version race with an overlapping tick. The losing tick
	// must not fire the alert.
	ErrVersionConflict = errors.New("ledger: alert state version conflict")

	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("ledger: not found")
)
