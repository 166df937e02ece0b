package payout

import "errors"

var (
	// ErrRequestNotFound is returned when the payout request id is unknown.
	ErrRequestNotFound = errors.New("payout request not found")

	// ErrNotEnabled is returned when the requester is not an enabled affiliate.
	ErrNotEnabled = errors.New("affiliate program not enabled for this account")

	// ErrBelowMinimum is returned when the amount is under the payout floor.
	ErrBelowMinimum = errors.New("amount below minimum payout")

	// ErrInsufficientBalance is returned when the amount exceeds the
	// available balance computed at request time.
	ErrInsufficientBalance = errors.New("amount exceeds available balance")

	// ErrInvalidAmount is returned when the amount is not positive.
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrInvalidAction is returned for an unknown payout action string.
	ErrInvalidAction = errors.New("invalid payout action")

	// ErrInvalidTransition is returned when the requested action is not
	// legal from the request's current status.
	ErrInvalidTransition = errors.New("transition not allowed from current status")

	// ErrStatusConflict is returned when the conditional update matched no
	// row: a concurrent transition changed state between read and write.
	ErrStatusConflict = errors.New("payout state changed, please retry")

	ErrInternal = errors.New("internal error")
)
