// Package svm implements the exact payment scheme for Solana: SPL token
// TransferChecked transactions with gasless settlement through a designated
// fee payer.
package svm

import (
	"fmt"

	"github.com/gagliardetto/solana-go/rpc"

	x402 "github.com/palisade-labs/x402-go"
)

// Simple network names used by the v1 wire format.
const (
	SolanaMainnet = "solana"
	SolanaDevnet  = "solana-devnet"
	SolanaTestnet = "solana-testnet"
)

// CAIP-2 identifiers (namespace:truncated-genesis-hash).
const (
	SolanaMainnetCAIP2 = "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
	SolanaDevnetCAIP2  = "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1"
	SolanaTestnetCAIP2 = "solana:4uhcVJyU9pJkvQyS88uRDiswHXSCkY3z"
)

// NetworkConfig describes one supported Solana cluster.
type NetworkConfig struct {
	Name   string
	CAIP2  string
	RPCURL string
}

var networkConfigs = map[string]NetworkConfig{
	SolanaMainnet: {Name: SolanaMainnet, CAIP2: SolanaMainnetCAIP2, RPCURL: rpc.MainNetBeta_RPC},
	SolanaDevnet:  {Name: SolanaDevnet, CAIP2: SolanaDevnetCAIP2, RPCURL: rpc.DevNet_RPC},
	SolanaTestnet: {Name: SolanaTestnet, CAIP2: SolanaTestnetCAIP2, RPCURL: rpc.TestNet_RPC},
}

func init() {
	// CAIP-2 aliases resolve to the same configs.
	for _, config := range []NetworkConfig{
		networkConfigs[SolanaMainnet],
		networkConfigs[SolanaDevnet],
		networkConfigs[SolanaTestnet],
	} {
		networkConfigs[config.CAIP2] = config
	}
}

// GetNetworkConfig returns the configuration for a network identified by
// either its simple name or its CAIP-2 identifier.
func GetNetworkConfig(network string) (NetworkConfig, error) {
	config, ok := networkConfigs[network]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("unsupported network: %s", network)
	}
	return config, nil
}

// IsValidNetwork reports whether the network is a supported Solana cluster.
func IsValidNetwork(network string) bool {
	_, ok := networkConfigs[network]
	return ok
}

// Networks returns all supported network identifiers, simple names first.
func Networks() []x402.Network {
	return []x402.Network{
		SolanaMainnet, SolanaDevnet, SolanaTestnet,
		SolanaMainnetCAIP2, SolanaDevnetCAIP2, SolanaTestnetCAIP2,
	}
}
