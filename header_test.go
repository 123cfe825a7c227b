package x402

import (
	"encoding/base64"
	"reflect"
	"testing"
)

func TestPaymentHeaderRoundTrip(t *testing.T) {
	payloads := []PaymentPayload{
		{
			X402Version: 1,
			Scheme:      SchemeExact,
			Network:     "solana-devnet",
			Payload:     ExactPayload{Transaction: "AQABAgME"},
		},
		{
			X402Version: 1,
			Scheme:      SchemeExact,
			Network:     "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp",
			Payload:     ExactPayload{Transaction: base64.StdEncoding.EncodeToString(make([]byte, 1232))},
		},
	}

	for _, payload := range payloads {
		encoded, err := EncodePaymentHeader(payload)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		decoded, err := DecodePaymentHeader(encoded)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}

		if !reflect.DeepEqual(payload, decoded) {
			t.Fatalf("round trip mismatch: %+v != %+v", payload, decoded)
		}
	}
}

func TestSettlementHeaderRoundTrip(t *testing.T) {
	settlement := SettlementResponse{
		Success:     true,
		Transaction: "sig123",
		Network:     "solana-devnet",
		Payer:       "payerAddr",
	}

	encoded, err := EncodeSettlementHeader(settlement)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := DecodeSettlementHeader(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded != settlement {
		t.Fatalf("round trip mismatch: %+v != %+v", settlement, decoded)
	}
}

func TestDecodePaymentHeaderRejectsInvalidBase64(t *testing.T) {
	_, err := DecodePaymentHeader("not-base64!!!")
	if err == nil {
		t.Fatal("expected error for invalid base64")
	}
	if KindOf(err) != KindMalformedHeader {
		t.Fatalf("expected malformed_header, got %s", KindOf(err))
	}
}

func TestDecodePaymentHeaderRejectsNonJSON(t *testing.T) {
	header := base64.StdEncoding.EncodeToString([]byte("this is not json"))
	_, err := DecodePaymentHeader(header)
	if err == nil {
		t.Fatal("expected error for non-JSON content")
	}
	if KindOf(err) != KindMalformedHeader {
		t.Fatalf("expected malformed_header, got %s", KindOf(err))
	}
}

func TestDecodeSettlementHeaderRejectsTruncated(t *testing.T) {
	settlement := SettlementResponse{Success: true, Transaction: "sig", Network: "solana"}
	encoded, err := EncodeSettlementHeader(settlement)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	_, err = DecodeSettlementHeader(encoded[:len(encoded)-4] + "%%%%")
	if err == nil {
		t.Fatal("expected error for corrupted header")
	}
	if KindOf(err) != KindMalformedHeader {
		t.Fatalf("expected malformed_header, got %s", KindOf(err))
	}
}

func TestMalformedHeaderDistinctFromMalformedRequirements(t *testing.T) {
	_, headerErr := DecodeSettlementHeader("%%%")
	_, reqErr := ParsePaymentRequired([]byte("{"))

	if KindOf(headerErr) == KindOf(reqErr) {
		t.Fatal("header and requirements errors must be distinct kinds")
	}
}
