package app

import (
	"context"
	"strings"
	"time"

	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/execution"
	"github.com/gabrielantonyxaviour/moltrades/internal/logging"
	"github.com/gabrielantonyxaviour/moltrades/internal/model"
	"github.com/gabrielantonyxaviour/moltrades/internal/policy"
	"github.com/gabrielantonyxaviour/moltrades/internal/registry"
	"github.com/gabrielantonyxaviour/moltrades/internal/schema"
	"github.com/gabrielantonyxaviour/moltrades/internal/solana"
	"github.com/spf13/cobra"
)

const solanaTransferProtocol = "solana-transfer"

type transferFlags struct {
	toChain      string
	fromToken    string
	toToken      string
	amount       string
	fromAddress  string
	toAddress    string
	slippage     float64
	allowBridges string
	denyBridges  string
}

func (f *transferFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.toChain, "to-chain", "", "Destination EVM chain")
	cmd.Flags().StringVar(&f.fromToken, "from-token", registry.SolanaNativeTokenAddress, "Source SPL token mint (defaults to SOL)")
	cmd.Flags().StringVar(&f.toToken, "to-token", "", "Destination token address")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount in base units of the source token")
	cmd.Flags().StringVar(&f.fromAddress, "from-address", "", "Solana sender (defaults to the configured keypair)")
	cmd.Flags().StringVar(&f.toAddress, "to-address", "", "EVM recipient")
	cmd.Flags().Float64Var(&f.slippage, "slippage", 0, "Max slippage as a fraction (defaults to config)")
	cmd.Flags().StringVar(&f.allowBridges, "allow-bridges", "", "Only use these bridges (comma-separated)")
	cmd.Flags().StringVar(&f.denyBridges, "deny-bridges", "", "Never use these bridges (comma-separated)")
	_ = cmd.MarkFlagRequired("to-chain")
	_ = cmd.MarkFlagRequired("to-token")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("to-address")
}

func (s *runtimeState) transferRequest(f transferFlags) (solana.TransferRequest, error) {
	c, err := parseChainArg(f.toChain)
	if err != nil {
		return solana.TransferRequest{}, err
	}
	slippage := f.slippage
	if slippage <= 0 {
		slippage = s.settings.Slippage
	}
	return solana.TransferRequest{
		ToChain:      c.ID,
		FromToken:    strings.TrimSpace(f.fromToken),
		ToToken:      strings.TrimSpace(f.toToken),
		Amount:       strings.TrimSpace(f.amount),
		FromAddress:  strings.TrimSpace(f.fromAddress),
		ToAddress:    strings.TrimSpace(f.toAddress),
		Slippage:     slippage,
		AllowBridges: splitCSV(f.allowBridges),
		DenyBridges:  splitCSV(f.denyBridges),
	}, nil
}

func (s *runtimeState) solanaQuote(ctx context.Context, adapter *solana.Adapter, req solana.TransferRequest) (model.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()
	started := time.Now()
	quote, err := adapter.Quote(ctx, req)
	s.captureDiagnostics(nil, []model.ProviderStatus{providerStatus("lifi", started, err)})
	return quote, err
}

func (s *runtimeState) newSolanaCommand() *cobra.Command {
	root := &cobra.Command{Use: "solana", Short: "Solana source leg into an EVM chain"}

	var quoteFlags transferFlags
	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a transfer from Solana to an EVM chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := s.transferRequest(quoteFlags)
			if err != nil {
				return err
			}
			var kp *solana.Keypair
			if req.FromAddress == "" {
				if kp, err = solana.KeypairFromEnv(); err != nil {
					return err
				}
			}
			adapter := solana.NewAdapter(s.quoteClient(), nil, kp, solana.WithLogger(logging.Component(s.log, "solana")))
			quote, err := s.solanaQuote(cmd.Context(), adapter, req)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), map[string]any{
				"summary": quote.Summary(),
				"quote":   quote,
			}, nil, s.lastProviders)
		},
	}
	quoteFlags.register(quoteCmd)
	root.AddCommand(quoteCmd)

	var runFlags transferFlags
	var yes, wait bool
	var pollInterval, pollTimeout time.Duration
	runCmd := &cobra.Command{
		Use:         "run",
		Short:       "Quote, sign and submit a transfer from Solana",
		Annotations: map[string]string{schema.AnnotationSigning: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := trimRootPath(cmd.CommandPath())
			if err := policy.CheckConfirmed(path, yes); err != nil {
				return err
			}
			req, err := s.transferRequest(runFlags)
			if err != nil {
				return err
			}
			kp, err := solana.KeypairFromEnv()
			if err != nil {
				return err
			}
			if req.FromAddress != "" && req.FromAddress != kp.Address() {
				return clierr.New(clierr.CodeSigner, "--from-address does not match the configured solana keypair")
			}
			journal, err := s.openJournal()
			if err != nil {
				return err
			}
			rpc, err := solana.NewRPC(s.settings.SolanaRPCURL)
			if err != nil {
				return err
			}
			defer rpc.Close()

			adapter := solana.NewAdapter(s.quoteClient(), rpc, kp,
				solana.WithSubmitTimeout(s.settings.SubmitTimeout),
				solana.WithConfirmation(s.settings.ReceiptPollInterval, s.settings.ReceiptTimeout),
				solana.WithMetrics(s.metrics),
				solana.WithLogger(logging.Component(s.log, "solana")),
			)
			quote, err := s.solanaQuote(cmd.Context(), adapter, req)
			if err != nil {
				return err
			}
			rec := execution.NewRecord(solanaTransferProtocol, req.ToChain, quote)
			result, execErr := adapter.Execute(cmd.Context(), quote)
			rec.SetResult(result)
			if err := journal.Save(rec); err != nil {
				s.log.Error().Err(err).Str("execution_id", rec.ID).Msg("journal write failed")
			}
			if execErr != nil {
				return execErr
			}
			if wait && rec.StatusKey != nil {
				if err := s.resolveBridge(cmd.Context(), journal, &rec, pollInterval, pollTimeout); err != nil {
					return err
				}
			}
			return s.emitSuccess(path, rec, nil, s.lastProviders)
		},
	}
	runFlags.register(runCmd)
	runCmd.Flags().BoolVar(&yes, "yes", false, "Confirm signing and broadcasting")
	runCmd.Flags().BoolVar(&wait, "wait", false, "Poll the bridge leg until it is final")
	runCmd.Flags().DurationVar(&pollInterval, "interval", 0, "Bridge status poll interval (defaults to config)")
	runCmd.Flags().DurationVar(&pollTimeout, "poll-timeout", 0, "Bridge status poll timeout (defaults to config)")
	root.AddCommand(runCmd)

	return root
}
