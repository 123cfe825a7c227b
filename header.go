package x402

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Header codec for the X-PAYMENT and X-PAYMENT-RESPONSE headers. Both carry
// UTF-8 JSON encoded with standard (not URL-safe) base64. Decoding failures
// are KindMalformedHeader, distinct from a malformed 402 body.

// EncodePaymentHeader encodes a payment payload into an X-PAYMENT value.
func EncodePaymentHeader(payload PaymentPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePaymentHeader decodes an X-PAYMENT header value.
func DecodePaymentHeader(header string) (PaymentPayload, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return PaymentPayload{}, NewPaymentError(KindMalformedHeader, "invalid base64 in payment header", err)
	}

	var payload PaymentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return PaymentPayload{}, NewPaymentError(KindMalformedHeader, "invalid JSON in payment header", err)
	}

	return payload, nil
}

// encodeTransactionBase64 encodes raw transaction bytes for embedding in an
// ExactPayload.
func encodeTransactionBase64(tx []byte) string {
	return base64.StdEncoding.EncodeToString(tx)
}

// EncodeSettlementHeader encodes a settlement response into an
// X-PAYMENT-RESPONSE value. Used by tests and server mocks.
func EncodeSettlementHeader(settlement SettlementResponse) (string, error) {
	data, err := json.Marshal(settlement)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settlement response: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeSettlementHeader decodes an X-PAYMENT-RESPONSE header value.
func DecodeSettlementHeader(header string) (SettlementResponse, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return SettlementResponse{}, NewPaymentError(KindMalformedHeader, "invalid base64 in settlement header", err)
	}

	var settlement SettlementResponse
	if err := json.Unmarshal(data, &settlement); err != nil {
		return SettlementResponse{}, NewPaymentError(KindMalformedHeader, "invalid JSON in settlement header", err)
	}

	return settlement, nil
}
