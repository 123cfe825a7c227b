package svm

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	x402 "github.com/palisade-labs/x402-go"
)

// unsignedTransfer builds a serialized transaction with two required signers:
// the fee payer in slot 0 and the sender in slot 1.
func unsignedTransfer(t *testing.T, feePayer, from, to solana.PublicKey) []byte {
	t.Helper()

	ix := system.NewTransferInstruction(1000, from, to).Build()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		solana.Hash{0x01},
		solana.TransactionPayer(feePayer),
	)
	if err != nil {
		t.Fatalf("failed to build transaction: %v", err)
	}

	serialized, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to serialize transaction: %v", err)
	}
	return serialized
}

func TestLocalSignerSignsOwnSlotOnly(t *testing.T) {
	wallet := solana.NewWallet()
	feePayer := solana.NewWallet()
	recipient := solana.NewWallet()

	unsigned := unsignedTransfer(t, feePayer.PublicKey(), wallet.PublicKey(), recipient.PublicKey())

	signer := NewLocalSignerFromKey(wallet.PrivateKey)
	signed, err := signer.SignTransaction(context.Background(), unsigned)
	if err != nil {
		t.Fatalf("SignTransaction failed: %v", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(signed))
	if err != nil {
		t.Fatalf("failed to decode signed transaction: %v", err)
	}

	if len(tx.Signatures) != 2 {
		t.Fatalf("expected 2 signature slots, got %d", len(tx.Signatures))
	}
	if !tx.Signatures[0].IsZero() {
		t.Fatal("fee payer slot must stay empty for the facilitator")
	}
	if tx.Signatures[1].IsZero() {
		t.Fatal("payer slot must carry a signature")
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to serialize message: %v", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(wallet.PublicKey().Bytes()), message, tx.Signatures[1][:]) {
		t.Fatal("payer signature does not verify against the message")
	}
}

func TestLocalSignerAddress(t *testing.T) {
	wallet := solana.NewWallet()
	signer := NewLocalSignerFromKey(wallet.PrivateKey)
	if signer.Address() != wallet.PublicKey().String() {
		t.Fatalf("address mismatch: %s != %s", signer.Address(), wallet.PublicKey())
	}
}

func TestNewLocalSignerRejectsInvalidKey(t *testing.T) {
	if _, err := NewLocalSigner("not-a-key"); err == nil {
		t.Fatal("expected error for invalid private key")
	}
}

func TestLocalSignerRejectsGarbageTransaction(t *testing.T) {
	signer := NewLocalSignerFromKey(solana.NewWallet().PrivateKey)
	if _, err := signer.SignTransaction(context.Background(), []byte("not a transaction")); err == nil {
		t.Fatal("expected error for undecodable transaction")
	}
}

func TestCallbackSignerForwardsToWallet(t *testing.T) {
	address := solana.NewWallet().PublicKey().String()

	var received []byte
	signer, err := NewCallbackSigner(address, func(_ context.Context, unsigned []byte) ([]byte, error) {
		received = unsigned
		return append([]byte("signed:"), unsigned...), nil
	})
	if err != nil {
		t.Fatalf("NewCallbackSigner failed: %v", err)
	}

	if signer.Address() != address {
		t.Fatalf("address mismatch: %s != %s", signer.Address(), address)
	}

	signed, err := signer.SignTransaction(context.Background(), []byte("tx-bytes"))
	if err != nil {
		t.Fatalf("SignTransaction failed: %v", err)
	}
	if string(received) != "tx-bytes" {
		t.Fatalf("wallet received %q", received)
	}
	if string(signed) != "signed:tx-bytes" {
		t.Fatalf("unexpected signed bytes %q", signed)
	}
}

func TestCallbackSignerPropagatesRejection(t *testing.T) {
	signer, err := NewCallbackSigner(solana.NewWallet().PublicKey().String(), func(context.Context, []byte) ([]byte, error) {
		return nil, x402.ErrSigningRejected
	})
	if err != nil {
		t.Fatalf("NewCallbackSigner failed: %v", err)
	}

	_, err = signer.SignTransaction(context.Background(), []byte("tx"))
	if !errors.Is(err, x402.ErrSigningRejected) {
		t.Fatalf("expected ErrSigningRejected, got %v", err)
	}
}

func TestNewCallbackSignerValidation(t *testing.T) {
	if _, err := NewCallbackSigner("bad address", func(context.Context, []byte) ([]byte, error) { return nil, nil }); err == nil {
		t.Fatal("expected error for invalid address")
	}
	if _, err := NewCallbackSigner(solana.NewWallet().PublicKey().String(), nil); err == nil {
		t.Fatal("expected error for nil callback")
	}
}
