package commission

import "errors"

var (
	// ErrBuyerNotFound is returned when the event's buyer does not exist.
	ErrBuyerNotFound = errors.New("buyer not found")

	// ErrEventNotFound is returned when no event matches the lookup.
	ErrEventNotFound = errors.New("event not found")

	// ErrEntryNotFound is returned when one or more ledger ids are unknown.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrDuplicateRef signals a uniqueness violation on external_ref.
	// The event recorder absorbs it as "already created".
	ErrDuplicateRef = errors.New("duplicate external ref")

	// ErrInvalidEventType is returned for an unknown event type string.
	ErrInvalidEventType = errors.New("invalid event type")

	// ErrInvalidAmount is returned when the event amount is not positive.
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrMissingRef is returned when the idempotency key is blank.
	ErrMissingRef = errors.New("external ref is required")

	// ErrInvalidAction is returned for an unknown ledger action string.
	ErrInvalidAction = errors.New("invalid ledger action")

	// ErrInvalidTransition is returned when the requested action is not
	// legal from the entries' current status.
	ErrInvalidTransition = errors.New("transition not allowed from current status")

	// ErrMixedStatuses rejects a batch whose entries do not all share the
	// same current status.
	ErrMixedStatuses = errors.New("selected entries have mixed statuses")

	// ErrStatusConflict is returned when the conditional bulk update
	// matched fewer rows than selected: a concurrent transition changed
	// state between read and write. Retryable after a refresh.
	ErrStatusConflict = errors.New("ledger state changed, please retry")

	ErrInternal = errors.New("internal error")
)
