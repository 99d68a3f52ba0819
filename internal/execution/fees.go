package execution

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/gabrielantonyxaviour/moltrades/internal/chains"
	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
)

var (
	fallbackTipCap  = big.NewInt(2_000_000_000)
	fallbackBaseFee = big.NewInt(1_000_000_000)
)

type fees struct {
	tipCap *big.Int
	feeCap *big.Int
}

func resolveFees(ctx context.Context, client chains.Client, opts Options) (fees, error) {
	tipCap, err := resolveTipCap(ctx, client, opts.MaxPriorityFeeGwei)
	if err != nil {
		return fees{}, err
	}
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return fees{}, clierr.Wrap(clierr.CodeUnavailable, "fetch latest header", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = fallbackBaseFee
	}
	feeCap, err := resolveFeeCap(baseFee, tipCap, opts.MaxFeeGwei)
	if err != nil {
		return fees{}, err
	}
	return fees{tipCap: tipCap, feeCap: feeCap}, nil
}

func resolveTipCap(ctx context.Context, client chains.Client, overrideGwei string) (*big.Int, error) {
	if strings.TrimSpace(overrideGwei) != "" {
		v, err := parseGwei(overrideGwei)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "parse --max-priority-fee-gwei", err)
		}
		return v, nil
	}
	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil || tipCap == nil {
		return new(big.Int).Set(fallbackTipCap), nil
	}
	return tipCap, nil
}

// resolveFeeCap defaults to 2*baseFee + tip.
func resolveFeeCap(baseFee, tipCap *big.Int, overrideGwei string) (*big.Int, error) {
	if strings.TrimSpace(overrideGwei) != "" {
		v, err := parseGwei(overrideGwei)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "parse --max-fee-gwei", err)
		}
		if v.Cmp(tipCap) < 0 {
			return nil, clierr.New(clierr.CodeUsage, "--max-fee-gwei must be >= --max-priority-fee-gwei")
		}
		return v, nil
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	return feeCap.Add(feeCap, tipCap), nil
}

func parseGwei(v string) (*big.Int, error) {
	clean := strings.TrimSpace(v)
	if clean == "" {
		return nil, fmt.Errorf("empty gwei value")
	}
	rat, ok := new(big.Rat).SetString(clean)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", v)
	}
	if rat.Sign() < 0 {
		return nil, fmt.Errorf("value must be non-negative")
	}
	rat.Mul(rat, big.NewRat(1_000_000_000, 1))
	if !rat.IsInt() {
		return nil, fmt.Errorf("value must resolve to an integer wei amount")
	}
	return new(big.Int).Set(rat.Num()), nil
}

func applyGasMultiplier(gas uint64, multiplier float64) uint64 {
	if multiplier <= 1 {
		return gas
	}
	return uint64(float64(gas) * multiplier)
}
