package x402

import (
	"math/big"
	"testing"
	"time"
)

func requirement(network Network, amount string) PaymentRequirements {
	return PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           network,
		MaxAmountRequired: amount,
		Resource:          "https://example.com/resource",
		PayTo:             "recipientAddr",
		MaxTimeoutSeconds: 60,
		Asset:             "mintAddr",
	}
}

func TestSelectRequirementFirstMatch(t *testing.T) {
	accepts := []PaymentRequirements{
		requirement("solana", "100"),
		requirement("solana-devnet", "200"),
	}
	supported := []Network{"solana", "solana-devnet"}

	selected, err := SelectRequirement(accepts, time.Now(), supported, SelectionPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected.Network != "solana" {
		t.Fatalf("expected first entry, got %s", selected.Network)
	}
}

func TestSelectRequirementPreferredNetworkWinsTie(t *testing.T) {
	accepts := []PaymentRequirements{
		requirement("solana", "100"),
		requirement("solana-devnet", "200"),
	}
	supported := []Network{"solana", "solana-devnet"}

	selected, err := SelectRequirement(accepts, time.Now(), supported, SelectionPolicy{
		PreferredNetwork: "solana-devnet",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected.Network != "solana-devnet" {
		t.Fatalf("expected preferred network, got %s", selected.Network)
	}
}

func TestSelectRequirementSkipsUnsupportedScheme(t *testing.T) {
	permit := requirement("solana", "100")
	permit.Scheme = "permit"

	accepts := []PaymentRequirements{permit, requirement("solana", "200")}
	supported := []Network{"solana"}

	selected, err := SelectRequirement(accepts, time.Now(), supported, SelectionPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected.MaxAmountRequired != "200" {
		t.Fatalf("expected exact-scheme entry, got %+v", selected)
	}
}

func TestSelectRequirementEnforcesSpendCeiling(t *testing.T) {
	accepts := []PaymentRequirements{requirement("solana", "5000")}
	supported := []Network{"solana"}

	_, err := SelectRequirement(accepts, time.Now(), supported, SelectionPolicy{
		MaxBaseUnits: big.NewInt(4999),
	})
	if KindOf(err) != KindUnsupportedRequirements {
		t.Fatalf("expected unsupported_requirements, got %v", err)
	}

	selected, err := SelectRequirement(accepts, time.Now(), supported, SelectionPolicy{
		MaxBaseUnits: big.NewInt(5000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected.MaxAmountRequired != "5000" {
		t.Fatalf("unexpected selection: %+v", selected)
	}
}

func TestSelectRequirementCeilingAboveFloat53(t *testing.T) {
	// Amounts above 2^53 must compare exactly, not through float64.
	big1 := requirement("solana", "9007199254740993")
	accepts := []PaymentRequirements{big1}
	supported := []Network{"solana"}

	ceiling, _ := new(big.Int).SetString("9007199254740992", 10)
	_, err := SelectRequirement(accepts, time.Now(), supported, SelectionPolicy{MaxBaseUnits: ceiling})
	if KindOf(err) != KindUnsupportedRequirements {
		t.Fatalf("expected rejection of amount one above ceiling, got %v", err)
	}
}

func TestSelectRequirementRejectsExpired(t *testing.T) {
	expired := requirement("solana", "100")
	expired.MaxTimeoutSeconds = 30

	receivedAt := time.Now().Add(-time.Minute)
	supported := []Network{"solana"}

	_, err := SelectRequirement([]PaymentRequirements{expired}, receivedAt, supported, SelectionPolicy{})
	if KindOf(err) != KindUnsupportedRequirements {
		t.Fatalf("expected unsupported_requirements for expired entry, got %v", err)
	}
}

func TestSelectRequirementRejectsInvalidAmounts(t *testing.T) {
	for _, amount := range []string{"", "abc", "-5", "0", "1.5"} {
		accepts := []PaymentRequirements{requirement("solana", amount)}
		_, err := SelectRequirement(accepts, time.Now(), []Network{"solana"}, SelectionPolicy{})
		if err == nil {
			t.Fatalf("expected rejection of amount %q", amount)
		}
	}
}

func TestSelectRequirementWildcardNetworks(t *testing.T) {
	accepts := []PaymentRequirements{requirement("solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1", "100")}
	supported := []Network{"solana:*"}

	selected, err := SelectRequirement(accepts, time.Now(), supported, SelectionPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected.MaxAmountRequired != "100" {
		t.Fatalf("unexpected selection: %+v", selected)
	}
}

func TestSelectRequirementDeterministic(t *testing.T) {
	accepts := []PaymentRequirements{
		requirement("solana", "100"),
		requirement("solana-devnet", "100"),
		requirement("solana-testnet", "100"),
	}
	supported := []Network{"solana", "solana-devnet", "solana-testnet"}
	receivedAt := time.Now()

	first, err := SelectRequirement(accepts, receivedAt, supported, SelectionPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := SelectRequirement(accepts, receivedAt, supported, SelectionPolicy{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again.Network != first.Network {
			t.Fatalf("selection not deterministic: %s != %s", again.Network, first.Network)
		}
	}
}
