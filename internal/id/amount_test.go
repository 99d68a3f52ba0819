package id

import (
	"math/big"
	"testing"

	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
)

func TestNormalizeAmountBaseUnits(t *testing.T) {
	base, dec, err := NormalizeAmount("1000000", "", 6)
	if err != nil {
		t.Fatalf("NormalizeAmount failed: %v", err)
	}
	if base != "1000000" || dec != "1" {
		t.Fatalf("unexpected result: base=%s dec=%s", base, dec)
	}
}

func TestNormalizeAmountDecimal(t *testing.T) {
	base, dec, err := NormalizeAmount("", "1.25", 6)
	if err != nil {
		t.Fatalf("NormalizeAmount failed: %v", err)
	}
	if base != "1250000" || dec != "1.25" {
		t.Fatalf("unexpected result: base=%s dec=%s", base, dec)
	}

	base, dec, err = NormalizeAmount("", "0.0001", 18)
	if err != nil {
		t.Fatalf("NormalizeAmount failed: %v", err)
	}
	if base != "100000000000000" || dec != "0.0001" {
		t.Fatalf("unexpected result: base=%s dec=%s", base, dec)
	}
}

func TestNormalizeAmountValidation(t *testing.T) {
	if _, _, err := NormalizeAmount("10", "1", 6); err == nil {
		t.Fatal("expected mutual exclusivity error")
	}
	if _, _, err := NormalizeAmount("", "1.1234567", 6); err == nil {
		t.Fatal("expected precision error")
	}
	if _, _, err := NormalizeAmount("0", "", 6); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected zero amount to be a usage error, got %v", err)
	}
	if _, _, err := NormalizeAmount("", "-1", 6); err == nil {
		t.Fatal("expected negative decimal to be rejected")
	}
	if _, _, err := NormalizeAmount("", "1.500000", 6); err != nil {
		t.Fatalf("trailing zeros within precision should be accepted: %v", err)
	}
}

func TestFormatUnits(t *testing.T) {
	if got := FormatUnits(big.NewInt(0), 6); got != "0" {
		t.Fatalf("unexpected zero format: %s", got)
	}
	if got := FormatUnits(big.NewInt(100_000_000), 6); got != "100" {
		t.Fatalf("unexpected format: %s", got)
	}
	if got := FormatUnitsString("1500", 3); got != "1.5" {
		t.Fatalf("unexpected format: %s", got)
	}
	if got := FormatUnitsString("n/a", 3); got != "n/a" {
		t.Fatalf("expected passthrough, got %s", got)
	}
}
