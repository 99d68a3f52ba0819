package registry

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
)

func TestDefaultRegistryKeysAreUnique(t *testing.T) {
	r := Default()
	seen := map[string]bool{}
	for _, d := range r.All() {
		key := fmt.Sprintf("%s@%d", d.ProtocolID, d.ChainID)
		if seen[key] {
			t.Fatalf("duplicate deployment %s on chain %d", d.ProtocolID, d.ChainID)
		}
		seen[key] = true
	}
	if len(seen) != len(deployments) {
		t.Fatalf("expected %d indexed deployments, got %d", len(deployments), len(seen))
	}
}

func TestNewRejectsDuplicateDeployment(t *testing.T) {
	d := deployments[0]
	_, err := New([]Deployment{d, d})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestNewRejectsInvalidDeployments(t *testing.T) {
	base := Deployment{
		ProtocolID:        "aave-v3",
		ChainID:           8453,
		Family:            FamilyLending,
		DepositContract:   aaveV3PoolBase,
		DepositFunction:   "supply(address,uint256,address,uint16)",
		InputToken:        usdcBase,
		InputTokenSymbol:  "USDC",
		InputDecimals:     6,
		OutputToken:       usdcBase,
		OutputTokenSymbol: "aBasUSDC",
		GasLimit:          300_000,
		RequiresApproval:  true,
	}
	if _, err := New([]Deployment{base}); err != nil {
		t.Fatalf("expected base deployment to validate: %v", err)
	}

	cases := map[string]func(d *Deployment){
		"unknown family":     func(d *Deployment) { d.Family = FamilyUnknown },
		"bad contract":       func(d *Deployment) { d.DepositContract = "pool" },
		"zero gas":           func(d *Deployment) { d.GasLimit = 0 },
		"missing symbol":     func(d *Deployment) { d.OutputTokenSymbol = "" },
		"native non-wrap":    func(d *Deployment) { d.InputToken = NativeTokenAddress },
		"wrap with erc20":    func(d *Deployment) { d.Family = FamilyWrap },
		"non-positive chain": func(d *Deployment) { d.ChainID = 0 },
	}
	for name, mutate := range cases {
		d := base
		mutate(&d)
		if _, err := New([]Deployment{d}); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	native := deployments[0]
	native.RequiresApproval = true
	if _, err := New([]Deployment{native}); err == nil {
		t.Fatal("expected native deployment requiring approval to be rejected")
	}
}

func TestLookups(t *testing.T) {
	r := Default()

	items, ok := r.Lookup("AAVE-V3")
	if !ok || len(items) < 2 {
		t.Fatalf("expected aave-v3 on several chains, got ok=%v len=%d", ok, len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i-1].ChainID >= items[i].ChainID {
			t.Fatalf("expected lookup ordered by chain id, got %d before %d", items[i-1].ChainID, items[i].ChainID)
		}
	}

	d, ok := r.LookupOnChain("weth", 8453)
	if !ok || d.Family != FamilyWrap {
		t.Fatalf("expected weth on base, got ok=%v %+v", ok, d)
	}

	if _, ok := r.LookupOnChain("weth", 999999); ok {
		t.Fatal("did not expect weth on unknown chain")
	}
	if _, ok := r.Lookup("does-not-exist"); ok {
		t.Fatal("did not expect unknown protocol")
	}

	onBase := r.ListForChain(8453)
	if len(onBase) == 0 {
		t.Fatal("expected deployments on base")
	}
	for _, d := range onBase {
		if d.ChainID != 8453 {
			t.Fatalf("unexpected chain %d in base listing", d.ChainID)
		}
	}
	if got := r.ListForChain(424242); len(got) != 0 {
		t.Fatalf("expected empty listing for unknown chain, got %d", len(got))
	}
}

func TestRequireReturnsRegistryMiss(t *testing.T) {
	r := Default()
	_, err := r.Require("compound-v3", 10)
	if !clierr.Is(err, clierr.CodeRegistryMiss) {
		t.Fatalf("expected registry miss, got %v", err)
	}
	if !strings.Contains(err.Error(), "available") {
		t.Fatalf("expected available chains in message, got %v", err)
	}
	if _, err := r.Require("compound-v3", 8453); err != nil {
		t.Fatalf("expected compound-v3 on base: %v", err)
	}
}

func TestABIConstantsParse(t *testing.T) {
	abis := []string{
		ERC20MinimalABI,
		WrappedNativeABI,
		LendingPoolABI,
		VaultABI,
		LedgerABI,
		MintABI,
		LiquidStakingABI,
	}
	for _, raw := range abis {
		if _, err := abi.JSON(strings.NewReader(raw)); err != nil {
			t.Fatalf("failed to parse abi json: %v", err)
		}
	}
}

func TestParseChain(t *testing.T) {
	c, err := ParseChain("arb")
	if err != nil || c.ID != 42161 {
		t.Fatalf("expected arbitrum from alias, got %+v err=%v", c, err)
	}
	c, err = ParseChain("8453")
	if err != nil || c.Slug != "base" {
		t.Fatalf("expected base from id, got %+v err=%v", c, err)
	}
	c, err = ParseChain("777777")
	if err != nil || !c.Synthesized || c.RPCURL != "" {
		t.Fatalf("expected synthesized chain, got %+v err=%v", c, err)
	}
	if _, err := ParseChain("atlantis"); err == nil {
		t.Fatal("expected unknown chain name to fail")
	}
}

func TestExplorerTxURL(t *testing.T) {
	if got := ExplorerTxURL(8453, "0xabc"); got != "https://basescan.org/tx/0xabc" {
		t.Fatalf("unexpected explorer url %q", got)
	}
	if got := ExplorerTxURL(777777, "0xabc"); got != "" {
		t.Fatalf("expected no explorer for synthesized chain, got %q", got)
	}
}

func TestIsNativeToken(t *testing.T) {
	for _, v := range []string{NativeTokenAddress, "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE", SolanaNativeTokenAddress} {
		if !IsNativeToken(v) {
			t.Fatalf("expected %s to be native", v)
		}
	}
	if IsNativeToken(usdcBase) || IsNativeToken("") {
		t.Fatal("did not expect erc20 or empty address to be native")
	}
}
