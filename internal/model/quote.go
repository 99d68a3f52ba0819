package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ComposedAction is one destination contract call handed to the route
// composition service. Field names follow the LI.FI contractCalls payload.
type ComposedAction struct {
	FromAmount           string `json:"fromAmount"`
	FromTokenAddress     string `json:"fromTokenAddress"`
	ToContractAddress    string `json:"toContractAddress"`
	ToContractCallData   string `json:"toContractCallData"`
	ToContractGasLimit   string `json:"toContractGasLimit"`
	ToApprovalAddress    string `json:"toApprovalAddress,omitempty"`
	ContractOutputsToken string `json:"contractOutputsToken,omitempty"`
}

type TransactionRequest struct {
	To       string `json:"to"`
	From     string `json:"from,omitempty"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasLimit uint64 `json:"gas_limit"`
	ChainID  int64  `json:"chain_id"`
}

type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	ChainID  int64  `json:"chain_id"`
	PriceUSD string `json:"price_usd,omitempty"`
}

type CostItem struct {
	Name      string `json:"name,omitempty"`
	Amount    string `json:"amount"`
	AmountUSD string `json:"amount_usd"`
	Token     Token  `json:"token"`
}

type Estimate struct {
	FromAmount               string     `json:"from_amount"`
	ToAmount                 string     `json:"to_amount"`
	ToAmountMin              string     `json:"to_amount_min"`
	ApprovalAddress          string     `json:"approval_address,omitempty"`
	ExecutionDurationSeconds float64    `json:"execution_duration_seconds"`
	GasCosts                 []CostItem `json:"gas_costs,omitempty"`
	FeeCosts                 []CostItem `json:"fee_costs,omitempty"`
}

type Step struct {
	Type        string `json:"type"`
	Tool        string `json:"tool"`
	FromChainID int64  `json:"from_chain_id"`
	ToChainID   int64  `json:"to_chain_id"`
	FromToken   Token  `json:"from_token"`
	ToToken     Token  `json:"to_token"`
	ToAmount    string `json:"to_amount,omitempty"`
}

// Quote is a route and price snapshot. It is requested fresh for every
// execution attempt and must not be reused.
type Quote struct {
	ID                 string             `json:"id"`
	SourceChain        int64              `json:"source_chain"`
	DestChain          int64              `json:"dest_chain"`
	FromToken          Token              `json:"from_token"`
	ToToken            Token              `json:"to_token"`
	FromAddress        string             `json:"from_address"`
	TransactionRequest TransactionRequest `json:"transaction_request"`
	Estimate           Estimate           `json:"estimate"`
	Tool               string             `json:"tool"`
	IncludedSteps      []Step             `json:"included_steps,omitempty"`
}

func (q Quote) TotalGasUSD() decimal.Decimal {
	return sumUSD(q.Estimate.GasCosts)
}

func (q Quote) TotalFeeUSD() decimal.Decimal {
	return sumUSD(q.Estimate.FeeCosts)
}

func (q Quote) ApprovalRequired() bool {
	return strings.TrimSpace(q.Estimate.ApprovalAddress) != ""
}

func (q Quote) IsCrossChain() bool {
	return q.SourceChain != q.DestChain
}

// sumUSD skips line items without a parseable USD amount.
func sumUSD(items []CostItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		v, err := decimal.NewFromString(strings.TrimSpace(item.AmountUSD))
		if err != nil {
			continue
		}
		total = total.Add(v)
	}
	return total
}

// QuoteSummary is the part of a quote kept in the execution journal.
type QuoteSummary struct {
	ID              string `json:"id"`
	Tool            string `json:"tool"`
	SourceChain     int64  `json:"source_chain"`
	DestChain       int64  `json:"dest_chain"`
	FromToken       string `json:"from_token"`
	ToToken         string `json:"to_token"`
	FromAmount      string `json:"from_amount"`
	ToAmount        string `json:"to_amount"`
	ToAmountMin     string `json:"to_amount_min"`
	ApprovalAddress string `json:"approval_address,omitempty"`
	GasUSD          string `json:"gas_usd"`
	FeeUSD          string `json:"fee_usd"`
}

func (q Quote) Summary() QuoteSummary {
	return QuoteSummary{
		ID:              q.ID,
		Tool:            q.Tool,
		SourceChain:     q.SourceChain,
		DestChain:       q.DestChain,
		FromToken:       q.FromToken.Address,
		ToToken:         q.ToToken.Address,
		FromAmount:      q.Estimate.FromAmount,
		ToAmount:        q.Estimate.ToAmount,
		ToAmountMin:     q.Estimate.ToAmountMin,
		ApprovalAddress: q.Estimate.ApprovalAddress,
		GasUSD:          q.TotalGasUSD().StringFixed(2),
		FeeUSD:          q.TotalFeeUSD().StringFixed(2),
	}
}
