package svm

import "testing"

func TestGetNetworkConfigSimpleNames(t *testing.T) {
	for _, name := range []string{SolanaMainnet, SolanaDevnet, SolanaTestnet} {
		config, err := GetNetworkConfig(name)
		if err != nil {
			t.Fatalf("GetNetworkConfig(%q) failed: %v", name, err)
		}
		if config.Name != name {
			t.Fatalf("config name mismatch: %s != %s", config.Name, name)
		}
		if config.RPCURL == "" {
			t.Fatalf("missing RPC URL for %s", name)
		}
	}
}

func TestGetNetworkConfigCAIP2Aliases(t *testing.T) {
	byName, err := GetNetworkConfig(SolanaDevnet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byCAIP2, err := GetNetworkConfig(SolanaDevnetCAIP2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byName != byCAIP2 {
		t.Fatalf("CAIP-2 alias resolved to a different config: %+v != %+v", byCAIP2, byName)
	}
}

func TestIsValidNetwork(t *testing.T) {
	for _, network := range Networks() {
		if !IsValidNetwork(string(network)) {
			t.Fatalf("%s should be valid", network)
		}
	}
	for _, network := range []string{"", "ethereum", "base-sepolia", "solana-localnet"} {
		if IsValidNetwork(network) {
			t.Fatalf("%s should be invalid", network)
		}
	}
}
