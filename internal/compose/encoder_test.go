package compose

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/registry"
)

var actor = common.HexToAddress("0x00000000000000000000000000000000000000AA")

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

func TestEveryDeploymentEncodes(t *testing.T) {
	for _, dep := range registry.Default().All() {
		call, err := Encode(dep, big.NewInt(1_000_000), actor)
		if err != nil {
			t.Fatalf("%s on %d: encode failed: %v", dep.ProtocolID, dep.ChainID, err)
		}
		if !bytes.Equal(call.CallData[:4], selector(dep.DepositFunction)) {
			t.Fatalf("%s on %d: selector mismatch for %s", dep.ProtocolID, dep.ChainID, dep.DepositFunction)
		}
		if call.GasLimit != dep.GasLimit {
			t.Fatalf("%s: unexpected gas limit %d", dep.ProtocolID, call.GasLimit)
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	for _, dep := range registry.Default().All() {
		a, err := Encode(dep, big.NewInt(42), actor)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		b, err := Encode(dep, big.NewInt(42), actor)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		if !bytes.Equal(a.CallData, b.CallData) || a.Value.Cmp(b.Value) != 0 {
			t.Fatalf("%s on %d: encoding is not deterministic", dep.ProtocolID, dep.ChainID)
		}
	}
}

func TestEncodeWrapCarriesValue(t *testing.T) {
	dep, ok := registry.Default().LookupOnChain("weth", 8453)
	if !ok {
		t.Fatal("expected weth on base")
	}
	amount := big.NewInt(100_000_000_000_000) // 0.0001 ETH
	call, err := Encode(dep, amount, actor)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.Equal(call.CallData, []byte{0xd0, 0xe3, 0x0d, 0xb0}) {
		t.Fatalf("expected bare deposit() selector, got %x", call.CallData)
	}
	if call.Value.Cmp(amount) != 0 {
		t.Fatalf("expected value %s, got %s", amount, call.Value)
	}
	if call.Target != common.HexToAddress("0x4200000000000000000000000000000000000006") {
		t.Fatalf("unexpected target %s", call.Target.Hex())
	}
}

func TestEncodeLendingSupplyArguments(t *testing.T) {
	dep, _ := registry.Default().LookupOnChain("aave-v3", 8453)
	call, err := Encode(dep, big.NewInt(100_000_000), actor)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.Equal(call.CallData[:4], []byte{0x61, 0x7b, 0xa0, 0x37}) {
		t.Fatalf("unexpected supply selector %x", call.CallData[:4])
	}
	args, err := lendingPoolABI.Methods["supply"].Inputs.Unpack(call.CallData[4:])
	if err != nil {
		t.Fatalf("unpack supply args: %v", err)
	}
	if args[0].(common.Address) != common.HexToAddress(dep.InputToken) {
		t.Fatalf("unexpected asset %v", args[0])
	}
	if args[1].(*big.Int).Cmp(big.NewInt(100_000_000)) != 0 {
		t.Fatalf("unexpected amount %v", args[1])
	}
	if args[2].(common.Address) != actor {
		t.Fatalf("expected onBehalfOf to be the actor, got %v", args[2])
	}
	if args[3].(uint16) != 0 {
		t.Fatalf("expected zero referral code, got %v", args[3])
	}
	if call.Value.Sign() != 0 {
		t.Fatalf("expected zero value for lending supply, got %s", call.Value)
	}
}

func TestEncodeFailures(t *testing.T) {
	dep, _ := registry.Default().LookupOnChain("moonwell", 8453)

	unknown := dep
	unknown.Family = registry.FamilyUnknown
	if _, err := Encode(unknown, big.NewInt(1), actor); !clierr.Is(err, clierr.CodeEncoding) {
		t.Fatalf("expected encoding error for unknown family, got %v", err)
	}

	mismatched := dep
	mismatched.DepositFunction = "mint()"
	if _, err := Encode(mismatched, big.NewInt(1), actor); !clierr.Is(err, clierr.CodeEncoding) {
		t.Fatalf("expected encoding error for mismatched signature, got %v", err)
	}

	if _, err := Encode(dep, big.NewInt(0), actor); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error for zero amount, got %v", err)
	}
	if _, err := Encode(dep, big.NewInt(1), common.Address{}); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error for zero actor, got %v", err)
	}
}

func TestComposeSetsApprovalAddress(t *testing.T) {
	dep, _ := registry.Default().LookupOnChain("compound-v3", 8453)
	action, call, err := Compose(dep, big.NewInt(5_000_000), actor)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if action.ToApprovalAddress != call.Target.Hex() {
		t.Fatalf("expected approval address %s, got %s", call.Target.Hex(), action.ToApprovalAddress)
	}
	if action.FromAmount != "5000000" || action.FromTokenAddress != dep.InputToken {
		t.Fatalf("unexpected composed action %+v", action)
	}
	if action.ToContractGasLimit != "200000" {
		t.Fatalf("unexpected gas limit %s", action.ToContractGasLimit)
	}

	wrap, _ := registry.Default().LookupOnChain("weth", 1)
	action, _, err = Compose(wrap, big.NewInt(1), actor)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if action.ToApprovalAddress != "" {
		t.Fatalf("did not expect approval address for native wrap, got %s", action.ToApprovalAddress)
	}
}

func TestAllowanceRoundTrip(t *testing.T) {
	spender := common.HexToAddress("0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE")
	data, err := ApproveCallData(spender, big.NewInt(7))
	if err != nil {
		t.Fatalf("pack approve: %v", err)
	}
	if !bytes.Equal(data[:4], selector("approve(address,uint256)")) {
		t.Fatalf("unexpected approve selector %x", data[:4])
	}
	raw := common.LeftPadBytes(big.NewInt(99).Bytes(), 32)
	v, err := DecodeAllowance(raw)
	if err != nil || v.Int64() != 99 {
		t.Fatalf("unexpected allowance %v err=%v", v, err)
	}
}
