// Package svm provides Solana SignerGateway implementations. The gateway
// boundary is byte-oriented: it receives a serialized unsigned transaction
// and returns the serialized, partially signed transaction, leaving the fee
// payer's signature slot empty for the facilitator.
package svm

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
)

// SignFunc is the callback used by CallbackSigner to obtain a signed
// transaction from an external wallet. Implementations must return
// x402.ErrSigningRejected when the user dismisses the signing prompt.
type SignFunc func(ctx context.Context, unsignedTx []byte) ([]byte, error)

// CallbackSigner bridges to an external wallet. The wallet keeps the keys;
// this process only ever sees the public address and transaction bytes.
type CallbackSigner struct {
	address string
	sign    SignFunc
}

// NewCallbackSigner creates a gateway from a payer address and a signing
// callback.
func NewCallbackSigner(address string, sign SignFunc) (*CallbackSigner, error) {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return nil, fmt.Errorf("invalid payer address: %w", err)
	}
	if sign == nil {
		return nil, fmt.Errorf("sign callback is required")
	}
	return &CallbackSigner{address: address, sign: sign}, nil
}

// Address returns the payer's public address.
func (s *CallbackSigner) Address() string {
	return s.address
}

// SignTransaction forwards the unsigned transaction to the wallet callback.
func (s *CallbackSigner) SignTransaction(ctx context.Context, unsignedTx []byte) ([]byte, error) {
	return s.sign(ctx, unsignedTx)
}

// LocalSigner signs with an in-process private key. Intended for tests,
// examples and server-side agents; interactive wallets should use
// CallbackSigner so keys stay out of this process.
type LocalSigner struct {
	key solana.PrivateKey
}

// NewLocalSigner creates a signer from a base58-encoded private key.
func NewLocalSigner(privateKeyBase58 string) (*LocalSigner, error) {
	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &LocalSigner{key: key}, nil
}

// NewLocalSignerFromKey creates a signer from an existing private key.
func NewLocalSignerFromKey(key solana.PrivateKey) *LocalSigner {
	return &LocalSigner{key: key}
}

// Address returns the signer's public address.
func (s *LocalSigner) Address() string {
	return s.key.PublicKey().String()
}

// SignTransaction deserializes the transaction, adds this key's signature in
// its slot and reserializes. Other signature slots (the fee payer's) are
// left empty.
func (s *LocalSigner) SignTransaction(_ context.Context, unsignedTx []byte) ([]byte, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(unsignedTx))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	publicKey := s.key.PublicKey()
	if _, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(publicKey) {
			return &s.key
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	signedTx, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize signed transaction: %w", err)
	}

	return signedTx, nil
}
