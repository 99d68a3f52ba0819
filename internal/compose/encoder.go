package compose

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/model"
	"github.com/gabrielantonyxaviour/moltrades/internal/registry"
)

// ContractCallConfig is the exact call a deployment expects for one deposit.
type ContractCallConfig struct {
	Target      common.Address
	CallData    []byte
	GasLimit    uint64
	Value       *big.Int
	OutputToken string
}

func (c ContractCallConfig) CallDataHex() string {
	return hexutil.Encode(c.CallData)
}

type encodeFunc func(dep registry.Deployment, amount *big.Int, actor common.Address) ([]byte, error)

type familyEncoder struct {
	method string
	abi    abi.ABI
	encode encodeFunc
	// payable calls forward the amount as transaction value.
	payable bool
}

var (
	erc20ABI         = mustComposeABI(registry.ERC20MinimalABI)
	wrappedNativeABI = mustComposeABI(registry.WrappedNativeABI)
	lendingPoolABI   = mustComposeABI(registry.LendingPoolABI)
	vaultABI         = mustComposeABI(registry.VaultABI)
	ledgerABI        = mustComposeABI(registry.LedgerABI)
	mintABI          = mustComposeABI(registry.MintABI)
	liquidStakingABI = mustComposeABI(registry.LiquidStakingABI)
)

var encoders = map[registry.Family]familyEncoder{
	registry.FamilyWrap: {
		method:  "deposit",
		abi:     wrappedNativeABI,
		payable: true,
		encode: func(_ registry.Deployment, _ *big.Int, _ common.Address) ([]byte, error) {
			return wrappedNativeABI.Pack("deposit")
		},
	},
	registry.FamilyLending: {
		method: "supply",
		abi:    lendingPoolABI,
		encode: func(dep registry.Deployment, amount *big.Int, actor common.Address) ([]byte, error) {
			return lendingPoolABI.Pack("supply", common.HexToAddress(dep.InputToken), amount, actor, uint16(0))
		},
	},
	registry.FamilyVault: {
		method: "deposit",
		abi:    vaultABI,
		encode: func(_ registry.Deployment, amount *big.Int, actor common.Address) ([]byte, error) {
			return vaultABI.Pack("deposit", amount, actor)
		},
	},
	registry.FamilyLedger: {
		method: "supply",
		abi:    ledgerABI,
		encode: func(dep registry.Deployment, amount *big.Int, _ common.Address) ([]byte, error) {
			return ledgerABI.Pack("supply", common.HexToAddress(dep.InputToken), amount)
		},
	},
	registry.FamilyMint: {
		method: "mint",
		abi:    mintABI,
		encode: func(_ registry.Deployment, amount *big.Int, _ common.Address) ([]byte, error) {
			return mintABI.Pack("mint", amount)
		},
	},
	registry.FamilyLiquidStaking: {
		method: "wrap",
		abi:    liquidStakingABI,
		encode: func(_ registry.Deployment, amount *big.Int, _ common.Address) ([]byte, error) {
			return liquidStakingABI.Pack("wrap", amount)
		},
	},
}

// Encode builds the deposit call for dep. The result depends only on its
// inputs.
func Encode(dep registry.Deployment, amount *big.Int, actor common.Address) (ContractCallConfig, error) {
	enc, ok := encoders[dep.Family]
	if !ok {
		return ContractCallConfig{}, clierr.New(clierr.CodeEncoding, fmt.Sprintf("no encoder for protocol family %s (protocol %s)", dep.Family, dep.ProtocolID))
	}
	if amount == nil || amount.Sign() <= 0 {
		return ContractCallConfig{}, clierr.New(clierr.CodeUsage, "amount must be greater than zero")
	}
	if actor == (common.Address{}) {
		return ContractCallConfig{}, clierr.New(clierr.CodeUsage, "actor address is required")
	}
	if !common.IsHexAddress(dep.DepositContract) {
		return ContractCallConfig{}, clierr.New(clierr.CodeEncoding, fmt.Sprintf("invalid deposit contract %q for %s", dep.DepositContract, dep.ProtocolID))
	}
	if method, ok := enc.abi.Methods[enc.method]; !ok || method.Sig != dep.DepositFunction {
		return ContractCallConfig{}, clierr.New(clierr.CodeEncoding, fmt.Sprintf("deployment %s declares %s but family %s encodes %s", dep.ProtocolID, dep.DepositFunction, dep.Family, method.Sig))
	}

	data, err := enc.encode(dep, new(big.Int).Set(amount), actor)
	if err != nil {
		return ContractCallConfig{}, clierr.Wrap(clierr.CodeEncoding, fmt.Sprintf("pack %s calldata", dep.DepositFunction), err)
	}
	value := new(big.Int)
	if enc.payable {
		value.Set(amount)
	}
	return ContractCallConfig{
		Target:      common.HexToAddress(dep.DepositContract),
		CallData:    data,
		GasLimit:    dep.GasLimit,
		Value:       value,
		OutputToken: dep.OutputToken,
	}, nil
}

// Compose encodes the call and wraps it into the unit sent to the quote
// service.
func Compose(dep registry.Deployment, amount *big.Int, actor common.Address) (model.ComposedAction, ContractCallConfig, error) {
	call, err := Encode(dep, amount, actor)
	if err != nil {
		return model.ComposedAction{}, ContractCallConfig{}, err
	}
	action := model.ComposedAction{
		FromAmount:           amount.String(),
		FromTokenAddress:     dep.InputToken,
		ToContractAddress:    call.Target.Hex(),
		ToContractCallData:   call.CallDataHex(),
		ToContractGasLimit:   strconv.FormatUint(call.GasLimit, 10),
		ContractOutputsToken: call.OutputToken,
	}
	if dep.RequiresApproval {
		action.ToApprovalAddress = call.Target.Hex()
	}
	return action, call, nil
}

// ApproveCallData packs approve(spender, amount) for the source token.
func ApproveCallData(spender common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", spender, amount)
}

func AllowanceCallData(owner, spender common.Address) ([]byte, error) {
	return erc20ABI.Pack("allowance", owner, spender)
}

func DecodeAllowance(raw []byte) (*big.Int, error) {
	out, err := erc20ABI.Unpack("allowance", raw)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty allowance response")
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance type %T", out[0])
	}
	return v, nil
}

func mustComposeABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
