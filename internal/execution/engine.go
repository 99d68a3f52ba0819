package execution

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gabrielantonyxaviour/moltrades/internal/chains"
	"github.com/gabrielantonyxaviour/moltrades/internal/compose"
	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/execution/signer"
	"github.com/gabrielantonyxaviour/moltrades/internal/metrics"
	"github.com/gabrielantonyxaviour/moltrades/internal/model"
	"github.com/gabrielantonyxaviour/moltrades/internal/registry"
	"github.com/rs/zerolog"
)

// ClientSource hands out write clients by chain id. *chains.Manager
// satisfies it.
type ClientSource interface {
	WriteClient(ctx context.Context, chainID int64) (chains.Client, error)
}

type Options struct {
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
	SubmitTimeout       time.Duration
	GasMultiplier       float64
	MaxFeeGwei          string
	MaxPriorityFeeGwei  string
}

func DefaultOptions() Options {
	return Options{
		ReceiptPollInterval: 2 * time.Second,
		ReceiptTimeout:      2 * time.Minute,
		SubmitTimeout:       30 * time.Second,
		GasMultiplier:       1.2,
	}
}

type Engine struct {
	clients  ClientSource
	txSigner signer.Signer
	nonces   *NonceLocker
	observer Observer
	opts     Options
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

type EngineOption func(*Engine)

func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithNonceLocker shares a locker between engines that may sign for the same
// address.
func WithNonceLocker(l *NonceLocker) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.nonces = l
		}
	}
}

func WithOptions(opts Options) EngineOption {
	return func(e *Engine) {
		defaults := DefaultOptions()
		if opts.ReceiptPollInterval <= 0 {
			opts.ReceiptPollInterval = defaults.ReceiptPollInterval
		}
		if opts.ReceiptTimeout <= 0 {
			opts.ReceiptTimeout = defaults.ReceiptTimeout
		}
		if opts.SubmitTimeout <= 0 {
			opts.SubmitTimeout = defaults.SubmitTimeout
		}
		if opts.GasMultiplier <= 0 {
			opts.GasMultiplier = defaults.GasMultiplier
		}
		e.opts = opts
	}
}

func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

func NewEngine(clients ClientSource, txSigner signer.Signer, opts ...EngineOption) *Engine {
	e := &Engine{
		clients:  clients,
		txSigner: txSigner,
		nonces:   NewNonceLocker(),
		observer: nopObserver{},
		opts:     DefaultOptions(),
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one attempt of a quote: optional approval, the quoted
// transaction, and its receipt. A cross-chain quote ends PENDING; the bridge
// leg is resolved separately and merged with ApplyOutcome.
func (e *Engine) Execute(ctx context.Context, quote model.Quote) (model.ExecutionResult, error) {
	start := e.now()
	result := model.ExecutionResult{
		Status:      model.ExecutionFailed,
		SourceChain: quote.SourceChain,
		DestChain:   quote.DestChain,
	}
	if quote.IsCrossChain() {
		result.Bridge = quote.Tool
	}
	e.emit(Event{Kind: EventState, State: StateStart, ChainID: quote.SourceChain})

	err := e.execute(ctx, quote, &result)
	result.DurationSeconds = e.now().Sub(start).Seconds()
	result.ExplorerLinks = explorerLinks(result)
	if err != nil {
		typed, ok := clierr.As(err)
		if !ok {
			typed = clierr.Wrap(clierr.CodeInternal, "execute quote", err)
			err = typed
		}
		if typed.TxHash == "" {
			typed.TxHash = firstNonEmpty(result.SourceTxHash, result.ApprovalTxHash)
		}
		result.Status = model.ExecutionFailed
		result.Error = err.Error()
		e.emit(Event{Kind: EventError, State: StateFailed, ChainID: quote.SourceChain, TxHash: typed.TxHash, Err: err})
		e.metrics.IncExecution(string(result.Status))
		e.log.Warn().Err(err).Str("code", typed.Code.Name()).Int64("chain_id", quote.SourceChain).Msg("execution failed")
		return result, err
	}

	if quote.IsCrossChain() {
		result.Status = model.ExecutionPending
		e.emit(Event{Kind: EventState, State: StatePending, ChainID: quote.SourceChain, TxHash: result.SourceTxHash})
	} else {
		result.Status = model.ExecutionDone
		result.ContractCallSucceeded = true
		e.emit(Event{Kind: EventState, State: StateDone, ChainID: quote.SourceChain, TxHash: result.SourceTxHash})
	}
	e.metrics.IncExecution(string(result.Status))
	e.log.Info().Str("status", string(result.Status)).Str("tx_hash", result.SourceTxHash).Int64("chain_id", quote.SourceChain).Msg("source transaction confirmed")
	return result, nil
}

func (e *Engine) execute(ctx context.Context, quote model.Quote, result *model.ExecutionResult) error {
	if e.txSigner == nil {
		return clierr.New(clierr.CodeSigner, "no signer configured")
	}
	txReq := quote.TransactionRequest
	if txReq.ChainID != 0 && txReq.ChainID != quote.SourceChain {
		return clierr.New(clierr.CodeSubmissionFailed, fmt.Sprintf("quote transaction targets chain %d, expected %d", txReq.ChainID, quote.SourceChain))
	}
	if !common.IsHexAddress(txReq.To) {
		return clierr.New(clierr.CodeSubmissionFailed, fmt.Sprintf("quote transaction has invalid target %q", txReq.To))
	}
	data, err := hexutil.Decode(strings.TrimSpace(txReq.Data))
	if err != nil {
		return clierr.Wrap(clierr.CodeSubmissionFailed, "decode transaction data", err)
	}
	value := new(big.Int)
	if strings.TrimSpace(txReq.Value) != "" {
		if _, ok := value.SetString(strings.TrimSpace(txReq.Value), 10); !ok {
			return clierr.New(clierr.CodeSubmissionFailed, fmt.Sprintf("invalid transaction value %q", txReq.Value))
		}
	}
	from := e.txSigner.Address()
	if quote.FromAddress != "" && common.IsHexAddress(quote.FromAddress) && common.HexToAddress(quote.FromAddress) != from {
		return clierr.New(clierr.CodeSigner, fmt.Sprintf("quote was built for %s but signer is %s", quote.FromAddress, from.Hex()))
	}

	client, err := e.clients.WriteClient(ctx, quote.SourceChain)
	if err != nil {
		return err
	}

	unlock := e.nonces.Lock(quote.SourceChain, from)
	defer unlock()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return clierr.Wrap(clierr.CodeSubmissionFailed, "read chain id", err)
	}
	if chainID.Int64() != quote.SourceChain {
		return clierr.New(clierr.CodeSubmissionFailed, fmt.Sprintf("rpc endpoint serves chain %d, expected %d", chainID.Int64(), quote.SourceChain))
	}

	if quote.ApprovalRequired() && !registry.IsNativeToken(quote.FromToken.Address) {
		e.emit(Event{Kind: EventState, State: StateApproving, Step: StepApproval, ChainID: quote.SourceChain})
		hash, err := e.ensureAllowance(ctx, client, chainID, quote)
		result.ApprovalTxHash = hash
		if err != nil {
			return err
		}
	}

	e.emit(Event{Kind: EventState, State: StateSubmitting, Step: StepMain, ChainID: quote.SourceChain})
	target := common.HexToAddress(txReq.To)
	tx, err := e.submit(ctx, client, chainID, call{to: target, data: data, value: value, gas: txReq.GasLimit})
	if err != nil {
		e.metrics.IncTransaction(string(StepMain), "rejected")
		return clierr.Wrap(clierr.CodeSubmissionFailed, "submit transaction", err)
	}
	hash := tx.Hash().Hex()
	result.SourceTxHash = hash
	e.emit(Event{Kind: EventSubmitted, Step: StepMain, ChainID: quote.SourceChain, TxHash: hash})

	e.emit(Event{Kind: EventState, State: StateConfirming, Step: StepMain, ChainID: quote.SourceChain, TxHash: hash})
	receipt, err := e.awaitReceipt(ctx, client, tx.Hash(), StepMain)
	if err != nil {
		e.metrics.IncTransaction(string(StepMain), "timeout")
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		e.metrics.IncTransaction(string(StepMain), "reverted")
		msg := "transaction reverted on-chain"
		if reason := e.revertReason(ctx, client, from, target, data, value, receipt.BlockNumber); reason != "" {
			msg += ": " + reason
		}
		return clierr.New(clierr.CodeExecutionReverted, msg).WithTxHash(hash)
	}
	e.metrics.IncTransaction(string(StepMain), "confirmed")
	e.emit(Event{Kind: EventConfirmed, Step: StepMain, ChainID: quote.SourceChain, TxHash: hash})
	return nil
}

// ensureAllowance approves the quote's spender for exactly fromAmount when
// the current allowance is short. It returns the approval hash if one was
// sent.
func (e *Engine) ensureAllowance(ctx context.Context, client chains.Client, chainID *big.Int, quote model.Quote) (string, error) {
	if !common.IsHexAddress(quote.FromToken.Address) || !common.IsHexAddress(quote.Estimate.ApprovalAddress) {
		return "", clierr.New(clierr.CodeApprovalFailed, "quote has invalid token or approval address")
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(quote.Estimate.FromAmount), 10)
	if !ok || amount.Sign() <= 0 {
		return "", clierr.New(clierr.CodeApprovalFailed, fmt.Sprintf("quote has invalid fromAmount %q", quote.Estimate.FromAmount))
	}
	token := common.HexToAddress(quote.FromToken.Address)
	spender := common.HexToAddress(quote.Estimate.ApprovalAddress)
	owner := e.txSigner.Address()

	input, err := compose.AllowanceCallData(owner, spender)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "pack allowance call", err)
	}
	raw, err := client.CallContract(ctx, ethereum.CallMsg{From: owner, To: &token, Data: input}, nil)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeApprovalFailed, "read allowance", err)
	}
	allowance, err := compose.DecodeAllowance(raw)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeApprovalFailed, "decode allowance", err)
	}
	if allowance.Cmp(amount) >= 0 {
		e.log.Debug().Str("token", token.Hex()).Str("allowance", allowance.String()).Msg("allowance sufficient")
		return "", nil
	}

	approveData, err := compose.ApproveCallData(spender, amount)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "pack approve call", err)
	}
	tx, err := e.submit(ctx, client, chainID, call{to: token, data: approveData, value: new(big.Int)})
	if err != nil {
		e.metrics.IncTransaction(string(StepApproval), "rejected")
		return "", clierr.Wrap(clierr.CodeApprovalFailed, "submit approval", err)
	}
	hash := tx.Hash().Hex()
	e.emit(Event{Kind: EventSubmitted, Step: StepApproval, ChainID: chainID.Int64(), TxHash: hash})
	receipt, err := e.awaitReceipt(ctx, client, tx.Hash(), StepApproval)
	if err != nil {
		e.metrics.IncTransaction(string(StepApproval), "timeout")
		return hash, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		e.metrics.IncTransaction(string(StepApproval), "reverted")
		return hash, clierr.New(clierr.CodeApprovalFailed, "approval transaction reverted").WithTxHash(hash)
	}
	e.metrics.IncTransaction(string(StepApproval), "confirmed")
	e.emit(Event{Kind: EventConfirmed, Step: StepApproval, ChainID: chainID.Int64(), TxHash: hash})
	return hash, nil
}

type call struct {
	to    common.Address
	data  []byte
	value *big.Int
	gas   uint64
}

// submit signs and broadcasts one transaction. Every error it returns happened
// before the transaction reached the network.
func (e *Engine) submit(ctx context.Context, client chains.Client, chainID *big.Int, c call) (*types.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.SubmitTimeout)
	defer cancel()

	from := e.txSigner.Address()
	gas := c.gas
	if gas == 0 {
		estimated, err := client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &c.to, Value: c.value, Data: c.data})
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
		gas = applyGasMultiplier(estimated, e.opts.GasMultiplier)
	}
	fee, err := resolveFees(ctx, client, e.opts)
	if err != nil {
		return nil, err
	}
	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: fee.tipCap,
		GasFeeCap: fee.feeCap,
		Gas:       gas,
		To:        &c.to,
		Value:     c.value,
		Data:      c.data,
	})
	signed, err := e.txSigner.SignTx(chainID, tx)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "sign transaction", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("broadcast transaction: %w", err)
	}
	e.log.Debug().Str("tx_hash", signed.Hash().Hex()).Uint64("nonce", nonce).Uint64("gas", gas).Msg("transaction broadcast")
	return signed, nil
}

// awaitReceipt polls until the receipt is available. Transient RPC errors are
// ignored until ReceiptTimeout.
func (e *Engine) awaitReceipt(ctx context.Context, client chains.Client, hash common.Hash, step Step) (*types.Receipt, error) {
	what := "transaction receipt"
	if step == StepApproval {
		what = "approval receipt"
	}
	waitCtx, cancel := context.WithTimeout(ctx, e.opts.ReceiptTimeout)
	defer cancel()
	ticker := time.NewTicker(e.opts.ReceiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := client.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			e.log.Debug().Err(err).Str("tx_hash", hash.Hex()).Msg("receipt query failed")
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, clierr.Wrap(clierr.CodeCancelled, "stopped waiting for "+what, ctx.Err()).WithTxHash(hash.Hex())
			}
			return nil, clierr.Wrap(clierr.CodeConfirmationTimeout, "timed out waiting for "+what, waitCtx.Err()).WithTxHash(hash.Hex())
		case <-ticker.C:
		}
	}
}

// revertReason replays the call at the receipt's block. Nodes return the
// revert string in the error message.
func (e *Engine) revertReason(ctx context.Context, client chains.Client, from, to common.Address, data []byte, value, block *big.Int) string {
	ctx, cancel := context.WithTimeout(ctx, e.opts.SubmitTimeout)
	defer cancel()
	_, err := client.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data, Value: value}, block)
	if err == nil {
		return ""
	}
	return strings.TrimPrefix(err.Error(), "execution reverted: ")
}

func (e *Engine) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	e.observer.OnEvent(ev)
}

// ApplyOutcome merges a resolved bridge leg into a PENDING result. A
// non-terminal outcome leaves the result unchanged.
func ApplyOutcome(result model.ExecutionResult, outcome model.BridgeOutcome) model.ExecutionResult {
	switch outcome.Status {
	case model.BridgeStatusDone:
		result.Status = model.ExecutionDone
		result.DestinationTxHash = outcome.DestinationTxHash
		result.ContractCallSucceeded = outcome.ContractCallSucceeded()
	case model.BridgeStatusFailed:
		result.Status = model.ExecutionFailed
		result.ContractCallSucceeded = false
		if result.Error == "" {
			result.Error = "bridge reported FAILED"
		}
	default:
		return result
	}
	result.DurationSeconds += outcome.ElapsedSeconds
	result.ExplorerLinks = explorerLinks(result)
	return result
}

func explorerLinks(result model.ExecutionResult) []model.ExplorerLink {
	var links []model.ExplorerLink
	add := func(chainID int64, hash string) {
		if url := registry.ExplorerTxURL(chainID, hash); url != "" {
			links = append(links, model.ExplorerLink{ChainID: chainID, TxHash: hash, URL: url})
		}
	}
	add(result.SourceChain, result.ApprovalTxHash)
	add(result.SourceChain, result.SourceTxHash)
	add(result.DestChain, result.DestinationTxHash)
	return links
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
