package solana

import (
	"context"
	"fmt"
	"strings"
	"time"

	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/id"
	"github.com/gabrielantonyxaviour/moltrades/internal/metrics"
	"github.com/gabrielantonyxaviour/moltrades/internal/model"
	"github.com/gabrielantonyxaviour/moltrades/internal/providers/lifi"
	"github.com/gabrielantonyxaviour/moltrades/internal/registry"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
)

// Quoter is the transfer quote call of *lifi.Client.
type Quoter interface {
	QuoteTransfer(ctx context.Context, in lifi.TransferQuoteInput) (model.Quote, error)
}

// Submitter is satisfied by *RPC.
type Submitter interface {
	SendTransaction(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error)
	SignatureStatus(ctx context.Context, sig solanago.Signature) (*rpc.SignatureStatusesResult, error)
}

// TransferRequest moves tokens from Solana to an EVM chain. Amount is in
// base units of FromToken.
type TransferRequest struct {
	ToChain      int64
	FromToken    string
	ToToken      string
	Amount       string
	FromAddress  string
	ToAddress    string
	Slippage     float64
	AllowBridges []string
	DenyBridges  []string
}

type Adapter struct {
	quoter          Quoter
	rpc             Submitter
	keypair         *Keypair
	submitTimeout   time.Duration
	confirmInterval time.Duration
	confirmTimeout  time.Duration
	metrics         *metrics.Metrics
	log             zerolog.Logger
}

type Option func(*Adapter)

func WithSubmitTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.submitTimeout = d
		}
	}
}

func WithConfirmation(interval, timeout time.Duration) Option {
	return func(a *Adapter) {
		if interval > 0 {
			a.confirmInterval = interval
		}
		if timeout > 0 {
			a.confirmTimeout = timeout
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

// NewAdapter builds a Solana source adapter. rpc and keypair may be nil for
// quote-only use.
func NewAdapter(quoter Quoter, rpc Submitter, keypair *Keypair, opts ...Option) *Adapter {
	a := &Adapter{
		quoter:          quoter,
		rpc:             rpc,
		keypair:         keypair,
		submitTimeout:   30 * time.Second,
		confirmInterval: 2 * time.Second,
		confirmTimeout:  90 * time.Second,
		log:             zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Quote(ctx context.Context, req TransferRequest) (model.Quote, error) {
	if err := a.validate(&req); err != nil {
		return model.Quote{}, err
	}
	return a.quoter.QuoteTransfer(ctx, lifi.TransferQuoteInput{
		FromChain:    registry.SolanaChainID,
		ToChain:      req.ToChain,
		FromToken:    req.FromToken,
		ToToken:      req.ToToken,
		FromAmount:   req.Amount,
		FromAddress:  req.FromAddress,
		ToAddress:    req.ToAddress,
		Slippage:     req.Slippage,
		AllowBridges: req.AllowBridges,
		DenyBridges:  req.DenyBridges,
	})
}

func (a *Adapter) validate(req *TransferRequest) error {
	if req.ToChain == registry.SolanaChainID {
		return clierr.New(clierr.CodeUnsupportedRoute, "destination must be an EVM chain")
	}
	if c, ok := registry.ChainByID(req.ToChain); ok && !c.EVM {
		return clierr.New(clierr.CodeUnsupportedRoute, fmt.Sprintf("destination %s is not an EVM chain", c.Name))
	}
	if req.ToChain <= 0 {
		return clierr.New(clierr.CodeUsage, "destination chain is required")
	}
	if strings.TrimSpace(req.FromAddress) == "" && a.keypair != nil {
		req.FromAddress = a.keypair.Address()
	}
	if !id.IsSolanaAddress(req.FromAddress) {
		return clierr.New(clierr.CodeUnsupportedRoute, fmt.Sprintf("source address %q is not a Solana address", req.FromAddress))
	}
	if !id.IsEVMAddress(req.ToAddress) {
		return clierr.New(clierr.CodeUnsupportedRoute, fmt.Sprintf("destination address %q is not an EVM address", req.ToAddress))
	}
	if strings.TrimSpace(req.FromToken) == "" || strings.TrimSpace(req.ToToken) == "" {
		return clierr.New(clierr.CodeUsage, "source and destination tokens are required")
	}
	if _, err := id.ParseBaseUnits(req.Amount); err != nil {
		return err
	}
	return nil
}

// Execute signs the quoted Solana transaction, submits it and waits for
// cluster confirmation. The result is PENDING; the bridge leg is resolved
// with the status poller.
func (a *Adapter) Execute(ctx context.Context, quote model.Quote) (model.ExecutionResult, error) {
	result := model.ExecutionResult{
		Status:      model.ExecutionFailed,
		SourceChain: quote.SourceChain,
		DestChain:   quote.DestChain,
		Bridge:      quote.Tool,
	}
	start := time.Now()
	err := a.execute(ctx, quote, &result)
	result.DurationSeconds = time.Since(start).Seconds()
	if url := registry.ExplorerTxURL(registry.SolanaChainID, result.SourceTxHash); url != "" {
		result.ExplorerLinks = []model.ExplorerLink{{ChainID: registry.SolanaChainID, TxHash: result.SourceTxHash, URL: url}}
	}
	if err != nil {
		result.Error = err.Error()
		a.metrics.IncExecution(string(model.ExecutionFailed))
		a.log.Warn().Err(err).Str("signature", result.SourceTxHash).Msg("solana execution failed")
		return result, err
	}
	result.Status = model.ExecutionPending
	a.metrics.IncExecution(string(result.Status))
	a.log.Info().Str("signature", result.SourceTxHash).Msg("solana transaction confirmed")
	return result, nil
}

func (a *Adapter) execute(ctx context.Context, quote model.Quote, result *model.ExecutionResult) error {
	if quote.SourceChain != registry.SolanaChainID {
		return clierr.New(clierr.CodeUnsupportedRoute, fmt.Sprintf("quote source chain %d is not Solana", quote.SourceChain))
	}
	if a.keypair == nil {
		return clierr.New(clierr.CodeSigner, "no solana keypair configured")
	}
	if a.rpc == nil {
		return clierr.New(clierr.CodeUnavailable, "no solana rpc configured")
	}
	if quote.FromAddress != "" && quote.FromAddress != a.keypair.Address() {
		return clierr.New(clierr.CodeSigner, fmt.Sprintf("quote was built for %s but keypair is %s", quote.FromAddress, a.keypair.Address()))
	}

	tx, err := decodeTransaction(quote.TransactionRequest.Data)
	if err != nil {
		return clierr.Wrap(clierr.CodeSubmissionFailed, "decode serialized solana transaction", err)
	}
	if err := signTransaction(tx, a.keypair); err != nil {
		return clierr.Wrap(clierr.CodeSigner, "sign solana transaction", err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, a.submitTimeout)
	sig, err := a.rpc.SendTransaction(submitCtx, tx)
	cancel()
	if err != nil {
		a.metrics.IncTransaction("solana", "rejected")
		return clierr.Wrap(clierr.CodeSubmissionFailed, "send solana transaction", err)
	}
	// The fee payer signature names the transaction on chain.
	if sig == (solanago.Signature{}) {
		sig = tx.Signatures[0]
	}
	result.SourceTxHash = sig.String()
	return a.confirm(ctx, sig)
}

func (a *Adapter) confirm(ctx context.Context, sig solanago.Signature) error {
	hash := sig.String()
	waitCtx, cancel := context.WithTimeout(ctx, a.confirmTimeout)
	defer cancel()
	ticker := time.NewTicker(a.confirmInterval)
	defer ticker.Stop()
	for {
		status, err := a.rpc.SignatureStatus(waitCtx, sig)
		switch {
		case err != nil:
			a.log.Debug().Err(err).Str("signature", hash).Msg("signature status query failed")
		case status == nil:
		case statusFailed(status):
			a.metrics.IncTransaction("solana", "reverted")
			return clierr.New(clierr.CodeExecutionReverted, fmt.Sprintf("solana transaction failed: %v", status.Err)).WithTxHash(hash)
		case statusConfirmed(status):
			a.metrics.IncTransaction("solana", "confirmed")
			return nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return clierr.Wrap(clierr.CodeCancelled, "stopped waiting for solana confirmation", ctx.Err()).WithTxHash(hash)
			}
			a.metrics.IncTransaction("solana", "timeout")
			return clierr.Wrap(clierr.CodeConfirmationTimeout, "timed out waiting for solana confirmation", waitCtx.Err()).WithTxHash(hash)
		case <-ticker.C:
		}
	}
}
