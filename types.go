// Package x402 implements the client side of the x402 payment protocol:
// it turns an HTTP 402 Payment Required response into a signed on-chain
// payment and re-submits the original request with proof of payment.
package x402

import (
	"fmt"
	"strings"
)

// ProtocolVersion is the x402 wire version this client speaks.
const ProtocolVersion = 1

// SchemeExact is the payment scheme implemented by this client: a transfer
// of exactly maxAmountRequired base units to the payTo address.
const SchemeExact = "exact"

// Header names used by the protocol.
const (
	HeaderPayment         = "X-PAYMENT"
	HeaderPaymentResponse = "X-PAYMENT-RESPONSE"
)

// Network represents a blockchain network identifier. Both simple names
// ("solana-devnet") and CAIP-2 identifiers ("solana:EtWT...") are accepted.
type Network string

// Parse splits a CAIP-2 network into namespace and reference components.
func (n Network) Parse() (namespace, reference string, err error) {
	parts := strings.Split(string(n), ":")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid network format: %s", n)
	}
	return parts[0], parts[1], nil
}

// Match checks if this network matches a pattern (supports wildcards)
// e.g. "solana:EtWT..." matches "solana:*" and vice versa.
func (n Network) Match(pattern Network) bool {
	if n == pattern {
		return true
	}

	nStr := string(n)
	patternStr := string(pattern)

	if strings.HasSuffix(patternStr, ":*") {
		prefix := strings.TrimSuffix(patternStr, "*")
		return strings.HasPrefix(nStr, prefix)
	}

	if strings.HasSuffix(nStr, ":*") {
		prefix := strings.TrimSuffix(nStr, "*")
		return strings.HasPrefix(patternStr, prefix)
	}

	return false
}

// PaymentRequirements is one entry of the server's 402 "accepts" list.
// Amounts are base-unit integers carried as decimal strings; they are never
// converted to native floats, to avoid precision loss on large values.
type PaymentRequirements struct {
	Scheme            string            `json:"scheme"`
	Network           Network           `json:"network"`
	MaxAmountRequired string            `json:"maxAmountRequired"`
	Resource          string            `json:"resource"`
	Description       string            `json:"description,omitempty"`
	MimeType          string            `json:"mimeType,omitempty"`
	PayTo             string            `json:"payTo"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds"`
	Asset             string            `json:"asset"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// FeePayer returns the designated gas sponsor from the extra field, or ""
// when the server did not provide one.
func (r PaymentRequirements) FeePayer() string {
	if r.Extra == nil {
		return ""
	}
	return r.Extra["feePayer"]
}

// PaymentRequired is the JSON body of a 402 response.
type PaymentRequired struct {
	X402Version int                   `json:"x402Version"`
	Error       string                `json:"error,omitempty"`
	Accepts     []PaymentRequirements `json:"accepts"`
}

// ExactPayload carries the base64-encoded, partially signed transaction for
// the exact scheme.
type ExactPayload struct {
	Transaction string `json:"transaction"`
}

// PaymentPayload is the value carried in the X-PAYMENT header (base64 of
// its JSON serialization). The embedded transaction must reference the exact
// payTo, asset and maxAmountRequired of the requirement it answers.
type PaymentPayload struct {
	X402Version int          `json:"x402Version"`
	Scheme      string       `json:"scheme"`
	Network     Network      `json:"network"`
	Payload     ExactPayload `json:"payload"`
}

// SettlementResponse is decoded from the X-PAYMENT-RESPONSE header. It is
// terminal: no further protocol steps follow it.
type SettlementResponse struct {
	Success     bool    `json:"success"`
	Transaction string  `json:"transaction"`
	Network     Network `json:"network"`
	Payer       string  `json:"payer,omitempty"`
	ErrorReason string  `json:"errorReason,omitempty"`
}

// ValidatePaymentRequirements performs structural validation on a single
// accepts entry.
func ValidatePaymentRequirements(r PaymentRequirements) error {
	if r.Scheme == "" {
		return fmt.Errorf("payment scheme is required")
	}
	if r.Network == "" {
		return fmt.Errorf("payment network is required")
	}
	if r.Asset == "" {
		return fmt.Errorf("payment asset is required")
	}
	if r.MaxAmountRequired == "" {
		return fmt.Errorf("payment amount is required")
	}
	if r.PayTo == "" {
		return fmt.Errorf("payment recipient is required")
	}
	return nil
}
