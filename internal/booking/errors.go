package booking

import "errors"

// Error taxonomy surfaced by the orchestrator.  Handlers map these onto
// HTTP responses with errors.Is; the underlying cause stays wrapped for
// logging.
var (
	// ErrValidation marks bad input rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrAvailability marks a request the calendar cannot satisfy.  No
	// write was performed.
	ErrAvailability = errors.New("date unavailable")

	// ErrNotFound marks a missing reservation or payment record.
	ErrNotFound = errors.New("not found")

	// ErrForbidden marks an operation the actor may not perform, such as a
	// guest cancelling a reservation that is already paid.
	ErrForbidden = errors.New("forbidden")

	// ErrCheckoutFailed marks a gateway failure during charge creation.
	// The reservation is persisted and stays in PENDING_PAYMENT with no
	// payment link; RetryCheckout can re-request the charge later.
	ErrCheckoutFailed = errors.New("checkout failed")
)
