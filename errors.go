package x402

import (
	"errors"
	"fmt"
)

// ErrorKind classifies payment failures for programmatic handling. Display
// formatting is a presentation-layer concern; the core only carries the kind
// and a structured reason.
type ErrorKind string

const (
	// KindMalformedRequirements indicates the 402 body did not parse as a
	// valid payment-required response. Fatal, never retried.
	KindMalformedRequirements ErrorKind = "malformed_requirements"

	// KindUnsupportedRequirements indicates no accepts entry matched the
	// caller's scheme, network and spend policy. Fatal, never retried.
	KindUnsupportedRequirements ErrorKind = "unsupported_requirements"

	// KindRequirementExpired indicates the selected requirement's
	// maxTimeoutSeconds elapsed before the payment could be submitted.
	KindRequirementExpired ErrorKind = "requirement_expired"

	// KindInsufficientFunds indicates the payer cannot cover the required
	// amount. Detected before the signer gateway is invoked.
	KindInsufficientFunds ErrorKind = "insufficient_funds"

	// KindAnchorExpired indicates the transaction's lifetime anchor (recent
	// blockhash) expired before signing completed.
	KindAnchorExpired ErrorKind = "anchor_expired"

	// KindUserCancelled indicates the wallet reported a user rejection of
	// the signing prompt.
	KindUserCancelled ErrorKind = "user_cancelled"

	// KindPaymentRejected indicates the server answered the paid retry with
	// another 402. A payment was attempted and may have on-chain effects.
	KindPaymentRejected ErrorKind = "payment_rejected"

	// KindMalformedHeader indicates an X-PAYMENT-RESPONSE header that was
	// not valid base64 JSON.
	KindMalformedHeader ErrorKind = "malformed_header"

	// KindNetworkError indicates a transport-level failure.
	KindNetworkError ErrorKind = "network_error"

	// KindHTTPError indicates a non-402, non-2xx HTTP status. The status is
	// surfaced unchanged.
	KindHTTPError ErrorKind = "http_error"
)

// Sentinel errors returned by SignerGateway implementations.
var (
	// ErrSigningRejected is returned by a gateway when the user dismissed
	// the signing prompt. It is a distinct outcome, not a fault.
	ErrSigningRejected = errors.New("x402: signing rejected by wallet")

	// ErrAnchorExpired is returned by a gateway when the transaction's
	// recent blockhash expired before signing completed. The orchestrator
	// rebuilds with a fresh anchor exactly once.
	ErrAnchorExpired = errors.New("x402: transaction lifetime anchor expired")
)

// PaymentError is the structured error returned by all payment operations.
type PaymentError struct {
	// Kind is the failure classification.
	Kind ErrorKind

	// Message is the human-readable error message.
	Message string

	// Status holds the HTTP status for KindHTTPError.
	Status int

	// Attempted is true once a signed payment was submitted to the server.
	// Post-submission failures may have on-chain side effects even when the
	// request itself failed.
	Attempted bool

	// Details contains additional error context.
	Details map[string]interface{}

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional context to the error.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewPaymentError creates a new PaymentError.
func NewPaymentError(kind ErrorKind, message string, err error) *PaymentError {
	return &PaymentError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the ErrorKind of err, or "" when err is not a PaymentError.
func KindOf(err error) ErrorKind {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// PaymentAttempted reports whether a signed payment was submitted before the
// failure. Callers use this to distinguish "nothing happened" from "a payment
// may have on-chain side effects".
func PaymentAttempted(err error) bool {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Attempted
	}
	return false
}
