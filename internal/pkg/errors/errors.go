package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrLockContention is returned when a per-feed lock could not be
	// acquired within its bounded timeout.
	ErrLockContention = errors.New("lock contention")
	// ErrDuplicateActivity is returned when an activity is appended to an
	// aggregated activity that already contains it.
	ErrDuplicateActivity = errors.New("duplicate activity")
	// ErrActivityNotFound is returned when removing an activity that is
	// not a member of the aggregated activity.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrEmptyAggregate is returned when an operation would leave an
	// aggregated activity without any members.
	ErrEmptyAggregate = errors.New("empty aggregated activity")
)
