package x402

import "context"

// SignerGateway is the external wallet boundary. The wallet holds the keys
// and performs signing outside this process; the core only ever handles the
// payer's public address and opaque transaction bytes.
//
// SignTransaction suspends until the wallet produces a signature or the user
// dismisses the prompt. Implementations must translate a user dismissal into
// ErrSigningRejected, never into a bare fault, and may return
// ErrAnchorExpired when the transaction's lifetime anchor lapsed while the
// prompt was open.
type SignerGateway interface {
	// Address returns the payer's public address.
	Address() string

	// SignTransaction signs a serialized unsigned transaction and returns
	// the serialized signed transaction.
	SignTransaction(ctx context.Context, unsignedTx []byte) ([]byte, error)
}

// SchemeBuilder constructs unsigned transactions satisfying a payment
// requirement on the networks it is registered for. Implementations live in
// mechanism packages (e.g. svm for Solana) and are registered on a Client.
type SchemeBuilder interface {
	// Scheme returns the scheme identifier this builder implements.
	Scheme() string

	// BuildTransaction produces a serialized unsigned transaction moving
	// exactly requirements.MaxAmountRequired base units of the asset to
	// PayTo, with fees paid by the requirement's designated fee payer.
	// The payer argument is the end user's public address.
	BuildTransaction(ctx context.Context, requirements PaymentRequirements, payer string) ([]byte, error)
}
