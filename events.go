package x402

import "time"

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	// PaymentEventAttempt indicates a payment is being attempted.
	PaymentEventAttempt PaymentEventType = "attempt"

	// PaymentEventSuccess indicates a payment succeeded.
	PaymentEventSuccess PaymentEventType = "success"

	// PaymentEventFailure indicates a payment failed.
	PaymentEventFailure PaymentEventType = "failure"
)

// PaymentEvent describes one step of a payment attempt's lifecycle, for
// logging and monitoring.
type PaymentEvent struct {
	// Type is the event type (attempt, success, failure).
	Type PaymentEventType

	// AttemptID uniquely identifies one payment attempt across its events.
	AttemptID string

	// Timestamp is when the event occurred.
	Timestamp time.Time

	// URL is the resource being paid for.
	URL string

	// Network is the blockchain network identifier.
	Network Network

	// Scheme is the payment scheme.
	Scheme string

	// Amount is the payment amount in base units.
	Amount string

	// Asset is the token address.
	Asset string

	// Recipient is the payment recipient address.
	Recipient string

	// Payer is the address that made the payment (set on success).
	Payer string

	// Transaction is the on-chain transaction signature (set on success).
	Transaction string

	// Error contains failure details (set on failure).
	Error error

	// Duration is the time taken since the attempt started.
	Duration time.Duration
}

// PaymentCallback handles payment events. Callbacks run synchronously inside
// the payment flow and should return quickly.
type PaymentCallback func(PaymentEvent)
