package execution

import (
	"math/big"
	"testing"

	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
)

func TestParseGwei(t *testing.T) {
	cases := map[string]string{
		"1":    "1000000000",
		"0.5":  "500000000",
		"2.25": "2250000000",
	}
	for in, want := range cases {
		got, err := parseGwei(in)
		if err != nil {
			t.Fatalf("parseGwei(%q) failed: %v", in, err)
		}
		if got.String() != want {
			t.Fatalf("parseGwei(%q) = %s, want %s", in, got, want)
		}
	}
	for _, in := range []string{"", "abc", "-1", "0.0000000001"} {
		if _, err := parseGwei(in); err == nil {
			t.Fatalf("expected parseGwei(%q) to fail", in)
		}
	}
}

func TestResolveFeeCap(t *testing.T) {
	got, err := resolveFeeCap(big.NewInt(10), big.NewInt(3), "")
	if err != nil {
		t.Fatalf("resolveFeeCap failed: %v", err)
	}
	if got.Int64() != 23 {
		t.Fatalf("expected 2*base+tip = 23, got %s", got)
	}

	_, err = resolveFeeCap(big.NewInt(10), big.NewInt(2_000_000_000), "1")
	if !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error for fee cap below tip, got %v", err)
	}
}

func TestApplyGasMultiplier(t *testing.T) {
	if got := applyGasMultiplier(100_000, 1.5); got != 150_000 {
		t.Fatalf("unexpected gas %d", got)
	}
	if got := applyGasMultiplier(100_000, 0.5); got != 100_000 {
		t.Fatalf("multiplier below one must not shrink gas, got %d", got)
	}
}
