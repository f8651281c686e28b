package discovery

import "errors"

var (
	// ErrInvalidLimit is returned when a listing limit is not positive.
	ErrInvalidLimit = errors.New("limit must be positive")
	// ErrListingFailed wraps any error from the signature listing call.
	ErrListingFailed = errors.New("signature listing failed")
	// ErrRetriesExhausted is returned when a fetch is still rate limited after all retries.
	ErrRetriesExhausted = errors.New("rate limit retries exhausted")
	// ErrInvalidProfile is returned by Profile.Validate.
	ErrInvalidProfile = errors.New("invalid classifier profile")
)
