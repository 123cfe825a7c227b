package svm

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseBaseUnits parses a base-unit amount carried as a decimal string into
// a uint64. Amounts are parsed through big.Int so values above 2^53 survive
// without precision loss; anything non-integer, non-positive or beyond the
// uint64 range is rejected rather than rounded.
func ParseBaseUnits(amount string) (uint64, error) {
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return 0, fmt.Errorf("invalid amount %q: not a base-10 integer", amount)
	}
	if value.Sign() <= 0 {
		return 0, fmt.Errorf("invalid amount %q: must be positive", amount)
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("invalid amount %q: exceeds uint64 range", amount)
	}
	return value.Uint64(), nil
}

// ToBaseUnits converts a human-readable decimal amount ("1.5") into base
// units for an asset with the given decimal precision. Digits beyond the
// asset's precision are an error, never silently rounded.
func ToBaseUnits(amount string, decimals uint8) (uint64, error) {
	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	if strings.HasPrefix(whole, "-") {
		return 0, fmt.Errorf("invalid amount %q: must be positive", amount)
	}
	if len(frac) > int(decimals) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	if whole == "" {
		whole = "0"
	}

	frac = frac + strings.Repeat("0", int(decimals)-len(frac))

	value, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	if value.Sign() <= 0 {
		return 0, fmt.Errorf("invalid amount %q: must be positive", amount)
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("amount %q exceeds uint64 range in base units", amount)
	}
	return value.Uint64(), nil
}
