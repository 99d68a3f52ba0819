package app

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gabrielantonyxaviour/moltrades/internal/compose"
	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/execution"
	"github.com/gabrielantonyxaviour/moltrades/internal/execution/signer"
	"github.com/gabrielantonyxaviour/moltrades/internal/id"
	"github.com/gabrielantonyxaviour/moltrades/internal/logging"
	"github.com/gabrielantonyxaviour/moltrades/internal/model"
	"github.com/gabrielantonyxaviour/moltrades/internal/policy"
	"github.com/gabrielantonyxaviour/moltrades/internal/providers/lifi"
	"github.com/gabrielantonyxaviour/moltrades/internal/registry"
	"github.com/gabrielantonyxaviour/moltrades/internal/schema"
	"github.com/spf13/cobra"
)

// actionFlags are shared by encode, quote and execute.
type actionFlags struct {
	protocol      string
	chain         string
	amount        string
	amountDecimal string
	actor         string
}

func (f *actionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.protocol, "protocol", "", "Protocol id (see protocols list)")
	cmd.Flags().StringVar(&f.chain, "chain", "", "Deployment chain id or slug")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Deposit amount in base units of the input token")
	cmd.Flags().StringVar(&f.amountDecimal, "amount-decimal", "", "Deposit amount in decimal units of the input token")
	_ = cmd.MarkFlagRequired("protocol")
	_ = cmd.MarkFlagRequired("chain")
}

type resolvedAction struct {
	Deployment registry.Deployment
	Amount     *big.Int
	AmountInfo model.AmountInfo
}

func (f actionFlags) resolve() (resolvedAction, error) {
	c, err := parseChainArg(f.chain)
	if err != nil {
		return resolvedAction{}, err
	}
	dep, err := registry.Default().Require(f.protocol, c.ID)
	if err != nil {
		return resolvedAction{}, err
	}
	base, dec, err := id.NormalizeAmount(f.amount, f.amountDecimal, dep.InputDecimals)
	if err != nil {
		return resolvedAction{}, err
	}
	amount, err := id.ParseBaseUnits(base)
	if err != nil {
		return resolvedAction{}, err
	}
	return resolvedAction{
		Deployment: dep,
		Amount:     amount,
		AmountInfo: model.AmountInfo{AmountBaseUnits: base, AmountDecimal: dec, Decimals: dep.InputDecimals},
	}, nil
}

func parseActor(v, flag string) (common.Address, error) {
	if !id.IsEVMAddress(v) {
		return common.Address{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("--%s must be an EVM address", flag))
	}
	return common.HexToAddress(v), nil
}

type callOutput struct {
	Target      string `json:"target"`
	CallData    string `json:"call_data"`
	GasLimit    uint64 `json:"gas_limit"`
	Value       string `json:"value"`
	OutputToken string `json:"output_token,omitempty"`
}

func newCallOutput(c compose.ContractCallConfig) callOutput {
	value := "0"
	if c.Value != nil {
		value = c.Value.String()
	}
	return callOutput{
		Target:      c.Target.Hex(),
		CallData:    c.CallDataHex(),
		GasLimit:    c.GasLimit,
		Value:       value,
		OutputToken: c.OutputToken,
	}
}

type encodeOutput struct {
	Deployment registry.Deployment  `json:"deployment"`
	Amount     model.AmountInfo     `json:"amount"`
	Call       callOutput           `json:"call"`
	Action     model.ComposedAction `json:"composed_action"`
}

func (s *runtimeState) newEncodeCommand() *cobra.Command {
	var flags actionFlags
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode the deposit call of a deployment without quoting",
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := flags.resolve()
			if err != nil {
				return err
			}
			actor, err := parseActor(flags.actor, "actor")
			if err != nil {
				return err
			}
			composed, call, err := compose.Compose(action.Deployment, action.Amount, actor)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), encodeOutput{
				Deployment: action.Deployment,
				Amount:     action.AmountInfo,
				Call:       newCallOutput(call),
				Action:     composed,
			}, nil, nil)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.actor, "actor", "", "Address credited by the deposit")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

// routeFlags select the source of funds and the route.
type routeFlags struct {
	fromChain    string
	fromToken    string
	fromAddress  string
	slippage     float64
	allowBridges string
	denyBridges  string
}

func (f *routeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.fromChain, "from-chain", "", "Source chain (defaults to --chain)")
	cmd.Flags().StringVar(&f.fromToken, "from-token", "", "Source token address (defaults to the input token on the same chain)")
	cmd.Flags().StringVar(&f.fromAddress, "from-address", "", "Address paying on the source chain")
	cmd.Flags().Float64Var(&f.slippage, "slippage", 0, "Max slippage as a fraction (defaults to config)")
	cmd.Flags().StringVar(&f.allowBridges, "allow-bridges", "", "Only use these bridges (comma-separated)")
	cmd.Flags().StringVar(&f.denyBridges, "deny-bridges", "", "Never use these bridges (comma-separated)")
}

type quoteOutput struct {
	Deployment registry.Deployment  `json:"deployment"`
	Amount     model.AmountInfo     `json:"amount"`
	Action     model.ComposedAction `json:"composed_action"`
	Summary    model.QuoteSummary   `json:"summary"`
	Quote      model.Quote          `json:"quote"`
}

// requestQuote composes the deployment call for actor and asks the
// composition service for a route funded from route.fromChain.
func (s *runtimeState) requestQuote(ctx context.Context, action resolvedAction, actor common.Address, route routeFlags) (quoteOutput, error) {
	dep := action.Deployment
	fromChain := dep.ChainID
	if strings.TrimSpace(route.fromChain) != "" {
		c, err := parseChainArg(route.fromChain)
		if err != nil {
			return quoteOutput{}, err
		}
		fromChain = c.ID
	}
	fromToken := strings.TrimSpace(route.fromToken)
	if fromToken == "" {
		if fromChain != dep.ChainID {
			return quoteOutput{}, clierr.New(clierr.CodeUsage, "--from-token is required when --from-chain differs from --chain")
		}
		fromToken = dep.InputToken
	}
	if !id.IsEVMAddress(route.fromAddress) {
		return quoteOutput{}, clierr.New(clierr.CodeUsage, "--from-address must be an EVM address")
	}
	slippage := route.slippage
	if slippage <= 0 {
		slippage = s.settings.Slippage
	}

	composed, _, err := compose.Compose(dep, action.Amount, actor)
	if err != nil {
		return quoteOutput{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()
	started := time.Now()
	quote, err := s.quoteClient().QuoteAction(ctx, lifi.ActionQuoteInput{
		FromChain:    fromChain,
		FromToken:    fromToken,
		FromAddress:  route.fromAddress,
		ToChain:      dep.ChainID,
		Actions:      []model.ComposedAction{composed},
		Slippage:     slippage,
		AllowBridges: splitCSV(route.allowBridges),
		DenyBridges:  splitCSV(route.denyBridges),
	})
	s.captureDiagnostics(nil, []model.ProviderStatus{providerStatus("lifi", started, err)})
	if err != nil {
		return quoteOutput{}, err
	}
	return quoteOutput{
		Deployment: dep,
		Amount:     action.AmountInfo,
		Action:     composed,
		Summary:    quote.Summary(),
		Quote:      quote,
	}, nil
}

func (s *runtimeState) newQuoteCommand() *cobra.Command {
	var flags actionFlags
	var route routeFlags
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a route that funds a deployment deposit",
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := flags.resolve()
			if err != nil {
				return err
			}
			actorArg := firstNonEmpty(flags.actor, route.fromAddress)
			actor, err := parseActor(actorArg, "actor")
			if err != nil {
				return err
			}
			data, err := s.requestQuote(cmd.Context(), action, actor, route)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil, s.lastProviders)
		},
	}
	flags.register(cmd)
	route.register(cmd)
	cmd.Flags().StringVar(&flags.actor, "actor", "", "Address credited by the deposit (defaults to --from-address)")
	_ = cmd.MarkFlagRequired("from-address")
	return cmd
}

func (s *runtimeState) newExecuteCommand() *cobra.Command {
	var flags actionFlags
	var route routeFlags
	var yes, wait bool
	var pollInterval, pollTimeout time.Duration
	cmd := &cobra.Command{
		Use:         "execute",
		Short:       "Quote, sign and submit a deployment deposit",
		Annotations: map[string]string{schema.AnnotationSigning: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := trimRootPath(cmd.CommandPath())
			if err := policy.CheckConfirmed(path, yes); err != nil {
				return err
			}
			action, err := flags.resolve()
			if err != nil {
				return err
			}
			txSigner, err := signer.NewLocalSignerFromEnv(s.settings.KeySource)
			if err != nil {
				return err
			}
			signerAddr := txSigner.Address().Hex()
			if route.fromAddress == "" {
				route.fromAddress = signerAddr
			} else if !strings.EqualFold(route.fromAddress, signerAddr) {
				return clierr.New(clierr.CodeSigner, fmt.Sprintf("--from-address %s does not match signer %s", route.fromAddress, signerAddr))
			}
			actor, err := parseActor(firstNonEmpty(flags.actor, signerAddr), "actor")
			if err != nil {
				return err
			}
			journal, err := s.openJournal()
			if err != nil {
				return err
			}

			quoted, err := s.requestQuote(cmd.Context(), action, actor, route)
			if err != nil {
				return err
			}
			rec := execution.NewRecord(action.Deployment.ProtocolID, action.Deployment.ChainID, quoted.Quote)
			engine := execution.NewEngine(s.chainManager(), txSigner,
				execution.WithOptions(s.engineOptions()),
				execution.WithObserver(s.eventLogger(rec.ID)),
				execution.WithNonceLocker(s.runner.nonces),
				execution.WithMetrics(s.metrics),
				execution.WithLogger(logging.Component(s.log, "engine")),
			)
			result, execErr := engine.Execute(cmd.Context(), quoted.Quote)
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
	flags.register(cmd)
	route.register(cmd)
	cmd.Flags().StringVar(&flags.actor, "actor", "", "Address credited by the deposit (defaults to the signer)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm signing and broadcasting")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll the bridge leg until it is final")
	cmd.Flags().DurationVar(&pollInterval, "interval", 0, "Bridge status poll interval (defaults to config)")
	cmd.Flags().DurationVar(&pollTimeout, "poll-timeout", 0, "Bridge status poll timeout (defaults to config)")
	return cmd
}

func (s *runtimeState) engineOptions() execution.Options {
	return execution.Options{
		ReceiptPollInterval: s.settings.ReceiptPollInterval,
		ReceiptTimeout:      s.settings.ReceiptTimeout,
		SubmitTimeout:       s.settings.SubmitTimeout,
		GasMultiplier:       s.settings.GasMultiplier,
		MaxFeeGwei:          s.settings.MaxFeeGwei,
		MaxPriorityFeeGwei:  s.settings.MaxPriorityFeeGwei,
	}
}

// eventLogger reports engine progress on stderr so stdout keeps a single
// envelope.
func (s *runtimeState) eventLogger(executionID string) execution.Observer {
	log := logging.Component(s.log, "events").With().Str("execution_id", executionID).Logger()
	return execution.ObserverFunc(func(ev execution.Event) {
		entry := log.Info()
		if ev.Kind == execution.EventError {
			entry = log.Warn().Err(ev.Err)
		}
		entry.Str("kind", string(ev.Kind)).
			Str("state", string(ev.State)).
			Str("step", string(ev.Step)).
			Int64("chain_id", ev.ChainID).
			Str("tx_hash", ev.TxHash).
			Msg("execution event")
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
