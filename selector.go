package x402

import (
	"math/big"
	"time"
)

// SelectionPolicy constrains which accepts entries the client is willing to
// pay. The zero value accepts any network the client has a builder for, with
// no spend ceiling.
type SelectionPolicy struct {
	// SupportedNetworks restricts selection to these networks. Wildcard
	// patterns ("solana:*") are honored. Empty means any registered network.
	SupportedNetworks []Network

	// PreferredNetwork wins ties when several entries are acceptable.
	PreferredNetwork Network

	// MaxBaseUnits is the caller's spend ceiling in asset base units.
	// Entries requiring more are rejected. Nil means no ceiling.
	MaxBaseUnits *big.Int

	// Now is the clock used for expiry checks. Nil means time.Now.
	Now func() time.Time
}

func (p SelectionPolicy) clock() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// SelectRequirement picks exactly one entry from accepts. It is deterministic
// and order-preserving: the first acceptable entry wins unless a later entry
// matches PreferredNetwork exactly. receivedAt is when the 402 was received;
// entries whose maxTimeoutSeconds already elapsed are rejected.
//
// supported is the set of networks the client can actually build transactions
// for (the registered builders); the policy further narrows it.
func SelectRequirement(accepts []PaymentRequirements, receivedAt time.Time, supported []Network, policy SelectionPolicy) (PaymentRequirements, error) {
	now := policy.clock()

	var candidates []PaymentRequirements
	for _, req := range accepts {
		if req.Scheme != SchemeExact {
			continue
		}
		if ValidatePaymentRequirements(req) != nil {
			continue
		}
		if !networkAllowed(req.Network, supported) {
			continue
		}
		if len(policy.SupportedNetworks) > 0 && !networkAllowed(req.Network, policy.SupportedNetworks) {
			continue
		}

		amount, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
		if !ok || amount.Sign() <= 0 {
			continue
		}
		if policy.MaxBaseUnits != nil && amount.Cmp(policy.MaxBaseUnits) > 0 {
			continue
		}

		if req.MaxTimeoutSeconds > 0 {
			deadline := receivedAt.Add(time.Duration(req.MaxTimeoutSeconds) * time.Second)
			if now.After(deadline) {
				continue
			}
		}

		candidates = append(candidates, req)
	}

	if len(candidates) == 0 {
		return PaymentRequirements{}, NewPaymentError(
			KindUnsupportedRequirements,
			"no acceptable payment requirements offered",
			nil,
		).WithDetails("offered", len(accepts))
	}

	if policy.PreferredNetwork != "" {
		for _, req := range candidates {
			if req.Network == policy.PreferredNetwork {
				return req, nil
			}
		}
	}

	return candidates[0], nil
}

func networkAllowed(network Network, allowed []Network) bool {
	for _, pattern := range allowed {
		if network.Match(pattern) {
			return true
		}
	}
	return false
}
