package svm

import (
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	x402 "github.com/palisade-labs/x402-go"
)

const (
	// blockhashAttempts bounds retries of the lifetime-anchor fetch before
	// the failure is surfaced as a network error.
	blockhashAttempts = 3

	// transferComputeUnits covers ComputeLimit + ComputePrice +
	// TransferChecked, with margin.
	transferComputeUnits uint32 = 6500

	// createATAComputeUnits is the additional budget when the destination
	// token account must be created.
	createATAComputeUnits uint32 = 25000

	// DefaultComputeUnitPrice is the priority fee in micro-lamports per
	// compute unit.
	DefaultComputeUnitPrice uint64 = 1000
)

// createIdempotentDiscriminator selects the CreateIdempotent variant of the
// associated token account program, which succeeds when the account already
// exists.
const createIdempotentDiscriminator = 1

// RPCClient is the subset of Solana RPC operations the builder needs.
// Injection point for tests.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// ExactBuilder implements x402.SchemeBuilder for Solana exact payments.
type ExactBuilder struct {
	rpcClient RPCClient
	rpcURL    string
}

// BuilderOption configures an ExactBuilder.
type BuilderOption func(*ExactBuilder)

// WithRPCClient injects a custom RPC client. Used by tests and callers with
// their own connection management.
func WithRPCClient(client RPCClient) BuilderOption {
	return func(b *ExactBuilder) {
		b.rpcClient = client
	}
}

// WithRPCURL overrides the network's default RPC endpoint.
func WithRPCURL(url string) BuilderOption {
	return func(b *ExactBuilder) {
		b.rpcURL = url
	}
}

// NewExactBuilder creates a Solana exact-scheme transaction builder.
func NewExactBuilder(opts ...BuilderOption) *ExactBuilder {
	b := &ExactBuilder{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register registers an exact builder on the client for all supported Solana
// networks.
func Register(client *x402.Client, opts ...BuilderOption) *ExactBuilder {
	builder := NewExactBuilder(opts...)
	for _, network := range Networks() {
		client.RegisterScheme(network, builder)
	}
	return builder
}

// Scheme returns the scheme identifier.
func (b *ExactBuilder) Scheme() string {
	return x402.SchemeExact
}

// BuildTransaction constructs a serialized unsigned transaction satisfying
// the requirement: an SPL TransferChecked of exactly MaxAmountRequired base
// units from the payer's associated token account to the recipient's, with
// compute-budget instructions and the requirement's feePayer as transaction
// fee payer. The destination token account is created idempotently, funded
// by the fee payer, when it does not exist yet.
//
// Insufficient payer balance is detected here, before the signer gateway
// ever sees the transaction.
func (b *ExactBuilder) BuildTransaction(ctx context.Context, requirements x402.PaymentRequirements, payer string) ([]byte, error) {
	if !IsValidNetwork(string(requirements.Network)) {
		return nil, x402.NewPaymentError(
			x402.KindUnsupportedRequirements,
			fmt.Sprintf("unsupported network: %s", requirements.Network),
			nil,
		)
	}

	amount, err := ParseBaseUnits(requirements.MaxAmountRequired)
	if err != nil {
		return nil, x402.NewPaymentError(x402.KindMalformedRequirements, "invalid payment amount", err)
	}

	payerKey, err := solana.PublicKeyFromBase58(payer)
	if err != nil {
		return nil, fmt.Errorf("invalid payer address: %w", err)
	}

	mintKey, err := solana.PublicKeyFromBase58(requirements.Asset)
	if err != nil {
		return nil, x402.NewPaymentError(x402.KindMalformedRequirements, "invalid asset address", err)
	}

	payToKey, err := solana.PublicKeyFromBase58(requirements.PayTo)
	if err != nil {
		return nil, x402.NewPaymentError(x402.KindMalformedRequirements, "invalid payTo address", err)
	}

	feePayerAddr := requirements.FeePayer()
	if feePayerAddr == "" {
		return nil, x402.NewPaymentError(
			x402.KindMalformedRequirements,
			"feePayer is required in requirements extra for Solana payments",
			nil,
		)
	}
	feePayerKey, err := solana.PublicKeyFromBase58(feePayerAddr)
	if err != nil {
		return nil, x402.NewPaymentError(x402.KindMalformedRequirements, "invalid feePayer address", err)
	}

	rpcClient, err := b.rpcFor(string(requirements.Network))
	if err != nil {
		return nil, err
	}

	// Mint account: token program and decimals.
	mintAccount, err := rpcClient.GetAccountInfo(ctx, mintKey)
	if err != nil || mintAccount == nil || mintAccount.Value == nil {
		if errors.Is(err, rpc.ErrNotFound) || err == nil {
			return nil, x402.NewPaymentError(x402.KindMalformedRequirements, "asset mint account not found", err)
		}
		return nil, x402.NewPaymentError(x402.KindNetworkError, "failed to fetch mint account", err)
	}

	tokenProgram := mintAccount.Value.Owner
	if !tokenProgram.Equals(solana.TokenProgramID) && !tokenProgram.Equals(solana.Token2022ProgramID) {
		return nil, x402.NewPaymentError(x402.KindMalformedRequirements, "asset was not created by a known token program", nil)
	}

	var mint token.Mint
	if err := bin.NewBinDecoder(mintAccount.Value.Data.GetBinary()).Decode(&mint); err != nil {
		return nil, x402.NewPaymentError(x402.KindMalformedRequirements, "failed to decode mint data", err)
	}

	sourceATA, _, err := solana.FindAssociatedTokenAddress(payerKey, mintKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive source token account: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(payToKey, mintKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive destination token account: %w", err)
	}

	// Balance pre-check. A missing source account means the payer holds
	// none of the asset.
	balance, err := rpcClient.GetTokenAccountBalance(ctx, sourceATA, rpc.CommitmentConfirmed)
	if err != nil || balance == nil || balance.Value == nil {
		return nil, x402.NewPaymentError(
			x402.KindInsufficientFunds,
			fmt.Sprintf("payer %s holds no token account for asset %s", payer, requirements.Asset),
			err,
		)
	}
	held, err := ParseBaseUnits(balance.Value.Amount)
	if err != nil && balance.Value.Amount != "0" {
		return nil, x402.NewPaymentError(x402.KindNetworkError, "unreadable token balance", err)
	}
	if held < amount {
		return nil, x402.NewPaymentError(
			x402.KindInsufficientFunds,
			fmt.Sprintf("balance %s is below required %s", balance.Value.Amount, requirements.MaxAmountRequired),
			nil,
		).WithDetails("balance", balance.Value.Amount).WithDetails("required", requirements.MaxAmountRequired)
	}

	// Destination account may need on-demand creation, funded by the fee
	// payer per the gasless settlement model.
	needCreate := false
	destAccount, err := rpcClient.GetAccountInfo(ctx, destATA)
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (destAccount == nil || destAccount.Value == nil)) {
		needCreate = true
	} else if err != nil {
		return nil, x402.NewPaymentError(x402.KindNetworkError, "failed to fetch destination token account", err)
	}

	blockhash, err := b.fetchBlockhash(ctx, rpcClient)
	if err != nil {
		return nil, err
	}

	computeUnits := transferComputeUnits
	if needCreate {
		computeUnits += createATAComputeUnits
	}

	cuLimit, err := computebudget.NewSetComputeUnitLimitInstructionBuilder().
		SetUnits(computeUnits).
		ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build compute limit instruction: %w", err)
	}

	cuPrice, err := computebudget.NewSetComputeUnitPriceInstructionBuilder().
		SetMicroLamports(DefaultComputeUnitPrice).
		ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build compute price instruction: %w", err)
	}

	instructions := []solana.Instruction{cuLimit, cuPrice}

	if needCreate {
		instructions = append(instructions, newCreateIdempotentATAInstruction(feePayerKey, payToKey, mintKey, destATA, tokenProgram))
	}

	transferIx, err := token.NewTransferCheckedInstructionBuilder().
		SetAmount(amount).
		SetDecimals(mint.Decimals).
		SetSourceAccount(sourceATA).
		SetMintAccount(mintKey).
		SetDestinationAccount(destATA).
		SetOwnerAccount(payerKey).
		ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer instruction: %w", err)
	}
	instructions = append(instructions, transferIx)

	builder := solana.NewTransactionBuilder().
		SetRecentBlockHash(blockhash).
		SetFeePayer(feePayerKey)
	for _, ix := range instructions {
		builder.AddInstruction(ix)
	}

	tx, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	serialized, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	return serialized, nil
}

// fetchBlockhash fetches the transaction lifetime anchor, retrying transient
// failures a bounded number of times.
func (b *ExactBuilder) fetchBlockhash(ctx context.Context, rpcClient RPCClient) (solana.Hash, error) {
	var lastErr error
	for attempt := 0; attempt < blockhashAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return solana.Hash{}, err
		}
		result, err := rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err == nil && result.Value != nil {
			return result.Value.Blockhash, nil
		}
		if err == nil {
			err = errors.New("empty blockhash response")
		}
		lastErr = err
	}
	return solana.Hash{}, x402.NewPaymentError(x402.KindNetworkError, "failed to fetch recent blockhash", lastErr).
		WithDetails("attempts", blockhashAttempts)
}

func (b *ExactBuilder) rpcFor(network string) (RPCClient, error) {
	if b.rpcClient != nil {
		return b.rpcClient, nil
	}

	url := b.rpcURL
	if url == "" {
		config, err := GetNetworkConfig(network)
		if err != nil {
			return nil, x402.NewPaymentError(x402.KindUnsupportedRequirements, "unknown network", err)
		}
		url = config.RPCURL
	}
	return rpc.New(url), nil
}

// newCreateIdempotentATAInstruction builds the associated-token-account
// CreateIdempotent instruction, with the fee payer funding the rent.
func newCreateIdempotentATAInstruction(fundingAccount, owner, mint, ata solana.PublicKey, tokenProgram solana.PublicKey) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(fundingAccount, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(tokenProgram, false, false),
	}
	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		accounts,
		[]byte{createIdempotentDiscriminator},
	)
}
