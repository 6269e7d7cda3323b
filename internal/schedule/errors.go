package schedule

import "errors"

var (
	// ErrNotFound indicates no entry exists with the requested id.
	ErrNotFound = errors.New("entry not found")

	// ErrInvalidSchedule indicates the entry's parameters cannot produce a
	// valid schedule (past fire time, missing reset word, non-positive
	// interval).
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrWrongResetWord indicates a reset request carried a word that does
	// not exactly match the entry's reset word.
	ErrWrongResetWord = errors.New("wrong reset word")

	// ErrAlreadyTerminal indicates the entry is Sent or Cancelled and cannot
	// transition further.
	ErrAlreadyTerminal = errors.New("entry already terminal")

	// ErrNotSwitch indicates a reset was requested on an entry that is not a
	// dead-man's-switch.
	ErrNotSwitch = errors.New("entry is not a dead-man's-switch")
)
