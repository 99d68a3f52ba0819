package lifi

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/model"
	"github.com/gabrielantonyxaviour/moltrades/internal/registry"
)

type tokenJSON struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	ChainID  int64  `json:"chainId"`
	PriceUSD string `json:"priceUSD"`
}

func (t tokenJSON) toModel() model.Token {
	return model.Token{Address: t.Address, Symbol: t.Symbol, Decimals: t.Decimals, ChainID: t.ChainID, PriceUSD: t.PriceUSD}
}

type costJSON struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Amount    string    `json:"amount"`
	AmountUSD string    `json:"amountUSD"`
	Token     tokenJSON `json:"token"`
}

func costsToModel(items []costJSON) []model.CostItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]model.CostItem, 0, len(items))
	for _, item := range items {
		out = append(out, model.CostItem{
			Name:      firstNonEmpty(item.Name, item.Type),
			Amount:    item.Amount,
			AmountUSD: item.AmountUSD,
			Token:     item.Token.toModel(),
		})
	}
	return out
}

type actionJSON struct {
	FromChainID int64     `json:"fromChainId"`
	ToChainID   int64     `json:"toChainId"`
	FromToken   tokenJSON `json:"fromToken"`
	ToToken     tokenJSON `json:"toToken"`
	FromAddress string    `json:"fromAddress"`
}

type estimateJSON struct {
	FromAmount        string     `json:"fromAmount"`
	ToAmount          string     `json:"toAmount"`
	ToAmountMin       string     `json:"toAmountMin"`
	ApprovalAddress   string     `json:"approvalAddress"`
	ExecutionDuration float64    `json:"executionDuration"`
	GasCosts          []costJSON `json:"gasCosts"`
	FeeCosts          []costJSON `json:"feeCosts"`
}

type stepJSON struct {
	Type     string       `json:"type"`
	Tool     string       `json:"tool"`
	Action   actionJSON   `json:"action"`
	Estimate estimateJSON `json:"estimate"`
}

type quoteResponse struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Tool        string       `json:"tool"`
	Action      actionJSON   `json:"action"`
	Estimate    estimateJSON `json:"estimate"`
	ToolDetails struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"toolDetails"`
	IncludedSteps      []stepJSON `json:"includedSteps"`
	TransactionRequest struct {
		To       string `json:"to"`
		From     string `json:"from"`
		Data     string `json:"data"`
		Value    string `json:"value"`
		ChainID  int64  `json:"chainId"`
		GasLimit string `json:"gasLimit"`
	} `json:"transactionRequest"`
}

// normalizeQuote validates the executable part of a response. For a Solana
// source the transaction data is a serialized base64 transaction and has no
// target address.
func normalizeQuote(resp quoteResponse, fromChain, toChain int64, fromAddress string) (model.Quote, error) {
	tx := resp.TransactionRequest
	if strings.TrimSpace(tx.Data) == "" {
		return model.Quote{}, clierr.New(clierr.CodeQuote, "quote response missing executable transaction payload")
	}
	if tx.ChainID != 0 && fromChain != registry.SolanaChainID && tx.ChainID != fromChain {
		return model.Quote{}, clierr.New(clierr.CodeQuote, fmt.Sprintf("quote transaction targets chain %d, expected %d", tx.ChainID, fromChain))
	}

	out := model.Quote{
		ID:          resp.ID,
		SourceChain: fromChain,
		DestChain:   toChain,
		FromToken:   resp.Action.FromToken.toModel(),
		ToToken:     resp.Action.ToToken.toModel(),
		FromAddress: firstNonEmpty(resp.Action.FromAddress, fromAddress),
		Tool:        firstNonEmpty(resp.Tool, resp.ToolDetails.Key),
		Estimate: model.Estimate{
			FromAmount:               resp.Estimate.FromAmount,
			ToAmount:                 resp.Estimate.ToAmount,
			ToAmountMin:              resp.Estimate.ToAmountMin,
			ApprovalAddress:          strings.TrimSpace(resp.Estimate.ApprovalAddress),
			ExecutionDurationSeconds: resp.Estimate.ExecutionDuration,
			GasCosts:                 costsToModel(resp.Estimate.GasCosts),
			FeeCosts:                 costsToModel(resp.Estimate.FeeCosts),
		},
		TransactionRequest: model.TransactionRequest{
			From:    tx.From,
			Data:    strings.TrimSpace(tx.Data),
			ChainID: fromChain,
		},
	}

	if fromChain != registry.SolanaChainID {
		if !common.IsHexAddress(tx.To) {
			return model.Quote{}, clierr.New(clierr.CodeQuote, fmt.Sprintf("quote transaction has invalid target %q", tx.To))
		}
		calldata, err := hexutil.Decode(out.TransactionRequest.Data)
		if err != nil {
			return model.Quote{}, clierr.Wrap(clierr.CodeQuote, "quote transaction data is not valid hex", err)
		}
		if len(calldata) == 0 {
			return model.Quote{}, clierr.New(clierr.CodeQuote, "quote transaction data is empty")
		}
		if out.Estimate.ApprovalAddress != "" && !common.IsHexAddress(out.Estimate.ApprovalAddress) {
			return model.Quote{}, clierr.New(clierr.CodeQuote, fmt.Sprintf("quote returned invalid approval address %q", out.Estimate.ApprovalAddress))
		}
		out.TransactionRequest.To = common.HexToAddress(tx.To).Hex()
		value, err := parseQuantity(tx.Value)
		if err != nil {
			return model.Quote{}, clierr.Wrap(clierr.CodeQuote, "parse transaction value", err)
		}
		gas, err := parseQuantity(tx.GasLimit)
		if err != nil || !gas.IsUint64() {
			return model.Quote{}, clierr.Wrap(clierr.CodeQuote, "parse transaction gas limit", err)
		}
		out.TransactionRequest.Value = value.String()
		out.TransactionRequest.GasLimit = gas.Uint64()
	}

	for _, step := range resp.IncludedSteps {
		out.IncludedSteps = append(out.IncludedSteps, model.Step{
			Type:        step.Type,
			Tool:        step.Tool,
			FromChainID: step.Action.FromChainID,
			ToChainID:   step.Action.ToChainID,
			FromToken:   step.Action.FromToken.toModel(),
			ToToken:     step.Action.ToToken.toModel(),
			ToAmount:    step.Estimate.ToAmount,
		})
	}
	return out, nil
}

type transferJSON struct {
	TxHash  string    `json:"txHash"`
	Amount  string    `json:"amount"`
	Token   tokenJSON `json:"token"`
	ChainID int64     `json:"chainId"`
}

func (t transferJSON) toModel() model.TransferInfo {
	return model.TransferInfo{TxHash: t.TxHash, Amount: t.Amount, Token: t.Token.toModel(), ChainID: t.ChainID}
}

type statusResponse struct {
	Status           string       `json:"status"`
	Substatus        string       `json:"substatus"`
	SubstatusMessage string       `json:"substatusMessage"`
	Tool             string       `json:"tool"`
	Sending          transferJSON `json:"sending"`
	Receiving        transferJSON `json:"receiving"`
}

func (s statusResponse) toModel() model.StatusResponse {
	return model.StatusResponse{
		Status:           strings.ToUpper(strings.TrimSpace(s.Status)),
		Substatus:        strings.ToUpper(strings.TrimSpace(s.Substatus)),
		SubstatusMessage: s.SubstatusMessage,
		Tool:             s.Tool,
		Sending:          s.Sending.toModel(),
		Receiving:        s.Receiving.toModel(),
	}
}
