package vacation

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRange is returned when a booking's start date falls after its
	// end date.
	ErrInvalidRange = errors.New("start date cannot be later than end date")

	// ErrOverlap is returned when a new booking intersects an existing
	// vacation of the same user. Intervals are closed on both ends: a
	// vacation ending the day another starts is a conflict.
	ErrOverlap = errors.New("booked vacation intersects with an already existing vacation")

	// ErrInvalidDate is returned for dates that are not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidChannel is returned when a configured notifications channel
	// does not contain the bot identity.
	ErrInvalidChannel = errors.New("bot is not a member of the selected channel")
)

// IsValidation reports whether err should be surfaced to the end user as a
// rejection message. Validation failures are never retried.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidChannel)
}

// =============================================================================
// DELIVERY ERRORS - Outbound notification failures
// =============================================================================

// ErrDelivery marks a failed outbound notification. Deliveries are logged and
// reported but never retried: the triggering workflow step still completes.
var ErrDelivery = errors.New("notification delivery failed")

// DeliveryError carries the destination that could not be reached.
type DeliveryError struct {
	Destination string
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Destination, e.Err)
}

func (e *DeliveryError) Unwrap() error { return ErrDelivery }
