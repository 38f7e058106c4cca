package billing

import "errors"

// Error taxonomy surfaced by the billing core. Handlers map these to HTTP
// status codes; everything else is an internal error.
var (
	// ErrNotFound: customer or record absent.
	ErrNotFound = errors.New("not found")
	// ErrValidation: malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrAuthentication: bad webhook signature.
	ErrAuthentication = errors.New("authentication failed")
	// ErrExternalService: gateway call failed or timed out.
	ErrExternalService = errors.New("external service error")
	// ErrConflict: uniqueness violation. Surfaced internally, treated as
	// success-no-op by callers and never propagated over HTTP.
	ErrConflict = errors.New("conflict")
)
