package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/shopspring/decimal"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// NormalizeAmount accepts exactly one of a base-unit integer or a decimal
// amount and returns both forms. Zero is rejected.
func NormalizeAmount(baseUnits, decimalAmount string, decimals int) (string, string, error) {
	baseUnits = strings.TrimSpace(baseUnits)
	decimalAmount = strings.TrimSpace(decimalAmount)
	if baseUnits != "" && decimalAmount != "" {
		return "", "", clierr.New(clierr.CodeUsage, "use either --amount or --amount-decimal, not both")
	}
	if baseUnits == "" && decimalAmount == "" {
		return "", "", clierr.New(clierr.CodeUsage, "amount is required")
	}
	if decimals < 0 {
		return "", "", clierr.New(clierr.CodeUsage, "decimals must be >= 0")
	}

	if baseUnits != "" {
		n, err := ParseBaseUnits(baseUnits)
		if err != nil {
			return "", "", err
		}
		return n.String(), FormatUnits(n, decimals), nil
	}

	n, err := ParseUnits(decimalAmount, decimals)
	if err != nil {
		return "", "", err
	}
	return n.String(), FormatUnits(n, decimals), nil
}

// ParseBaseUnits parses a positive base-unit integer.
func ParseBaseUnits(v string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
	if !ok {
		return nil, clierr.New(clierr.CodeUsage, "--amount must be a positive integer string")
	}
	if n.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeUsage, "--amount must be greater than zero")
	}
	return n, nil
}

// ParseUnits converts a decimal amount such as "0.0001" into base units.
func ParseUnits(v string, decimals int) (*big.Int, error) {
	v = strings.TrimSpace(v)
	if !decimalPattern.MatchString(v) {
		return nil, clierr.New(clierr.CodeUsage, "--amount-decimal must be in decimal form like 1.23")
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "invalid decimal amount", err)
	}
	if -d.Exponent() > int32(decimals) && !d.Equal(d.Truncate(int32(decimals))) {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("decimal precision exceeds token decimals (%d)", decimals))
	}
	n := d.Shift(int32(decimals)).BigInt()
	if n.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeUsage, "amount must be greater than zero")
	}
	return n, nil
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(n *big.Int, decimals int) string {
	if n == nil {
		return "0"
	}
	return decimal.NewFromBigInt(n, -int32(decimals)).String()
}

// FormatUnitsString is FormatUnits for base-unit strings from wire payloads.
// Unparseable input is returned unchanged.
func FormatUnitsString(baseUnits string, decimals int) string {
	n, ok := new(big.Int).SetString(strings.TrimSpace(baseUnits), 10)
	if !ok {
		return baseUnits
	}
	return FormatUnits(n, decimals)
}
