package referral

import "errors"

var (
	// ErrProfileNotFound is returned when the member does not exist.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrCodeNotFound is returned when no member owns the referral code.
	ErrCodeNotFound = errors.New("referral code not found")

	// ErrSelfReferral is returned when a code resolves to the member itself.
	ErrSelfReferral = errors.New("cannot use own referral code")

	// ErrCircularReferral is returned when the code's owner already has
	// the member in its own upline, so binding would create a cycle.
	ErrCircularReferral = errors.New("referral would create a cycle")

	// ErrAlreadyBound is returned by the conditional bind when referred_by
	// was set between read and write. Callers treat it as "already bound,
	// read current state", not as a failure.
	ErrAlreadyBound = errors.New("referral already bound")

	// ErrCodeGeneration is returned when a unique referral code could not
	// be produced within the retry budget.
	ErrCodeGeneration = errors.New("failed to generate unique referral code")

	// ErrCodeTaken signals a uniqueness collision on referral_code insert.
	ErrCodeTaken = errors.New("referral code already taken")

	// ErrMalformedPath is returned when a stored referral path cannot be parsed.
	ErrMalformedPath = errors.New("malformed referral path")

	ErrInternal = errors.New("internal error")
)
