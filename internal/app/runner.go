package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gabrielantonyxaviour/moltrades/internal/bridge"
	"github.com/gabrielantonyxaviour/moltrades/internal/chains"
	"github.com/gabrielantonyxaviour/moltrades/internal/config"
	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/execution"
	"github.com/gabrielantonyxaviour/moltrades/internal/httpx"
	"github.com/gabrielantonyxaviour/moltrades/internal/logging"
	"github.com/gabrielantonyxaviour/moltrades/internal/metrics"
	"github.com/gabrielantonyxaviour/moltrades/internal/model"
	"github.com/gabrielantonyxaviour/moltrades/internal/out"
	"github.com/gabrielantonyxaviour/moltrades/internal/policy"
	"github.com/gabrielantonyxaviour/moltrades/internal/providers/lifi"
	"github.com/gabrielantonyxaviour/moltrades/internal/version"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
	// dial replaces the ethclient dialer of the chain client manager.
	dial chains.Dialer
	// nonces is shared by every engine this runner builds.
	nonces *execution.NonceLocker
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
		nonces: execution.NewNonceLocker(),
	}
}

type runtimeState struct {
	runner        *Runner
	flags         config.GlobalFlags
	settings      config.Settings
	root          *cobra.Command
	lastCommand   string
	lastWarnings  []string
	lastProviders []model.ProviderStatus

	log        zerolog.Logger
	metrics    *metrics.Metrics
	metricsSrv *http.Server
	quoter     *lifi.Client
	chains     *chains.Manager
	journal    *execution.Store
}

func (r *Runner) Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := &runtimeState{runner: r, log: zerolog.Nop()}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := normalizeRunError(root.ExecuteContext(ctx))
	defer state.close()
	if err == nil {
		return 0
	}
	state.renderError(err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Compose, quote and execute cross-chain DeFi actions",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.log = logging.New(s.runner.stderr, settings.LogLevel, false)
			s.metrics = metrics.New()

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}
			if settings.MetricsAddr != "" && s.metricsSrv == nil {
				return s.startMetricsServer(settings.MetricsAddr)
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	pf := cmd.PersistentFlags()
	pf.BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	pf.BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	pf.StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated, dotted paths allowed)")
	pf.BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	pf.StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	pf.StringVar(&s.flags.Timeout, "timeout", "", "Quote request timeout")
	pf.IntVar(&s.flags.Retries, "retries", -1, "Retries per status request")
	pf.StringVar(&s.flags.LogLevel, "log-level", "", "Log level on stderr (debug|info|warn|error|off)")
	pf.StringVar(&s.flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")
	pf.StringArrayVar(&s.flags.RPC, "rpc", nil, "RPC override as chain=url (repeatable)")
	pf.StringArrayVar(&s.flags.WriteRPC, "write-rpc", nil, "Write RPC override as chain=url (repeatable)")
	pf.StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newChainsCommand())
	cmd.AddCommand(s.newProtocolsCommand())
	cmd.AddCommand(s.newEncodeCommand())
	cmd.AddCommand(s.newQuoteCommand())
	cmd.AddCommand(s.newExecuteCommand())
	cmd.AddCommand(s.newStatusCommand())
	cmd.AddCommand(s.newExecutionsCommand())
	cmd.AddCommand(s.newSolanaCommand())
	return cmd
}

func (s *runtimeState) startMetricsServer(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return clierr.Wrap(clierr.CodeUsage, "listen on metrics address", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	s.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	return nil
}

func (s *runtimeState) close() {
	if s.journal != nil {
		_ = s.journal.Close()
	}
	if s.chains != nil {
		s.chains.Close()
	}
	if s.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.metricsSrv.Shutdown(ctx)
	}
}

// quoteClient builds the LI.FI client on first use. Quotes go through a
// transport with no retries; status queries use the configured retries.
func (s *runtimeState) quoteClient() *lifi.Client {
	if s.quoter != nil {
		return s.quoter
	}
	quoteHTTP := httpx.New(s.settings.Timeout, 0).WithRateLimit(s.settings.LiFiRateLimit, s.settings.LiFiRateBurst)
	statusHTTP := httpx.New(s.settings.StatusRequestTimeout, s.settings.Retries).WithRateLimit(s.settings.LiFiRateLimit, s.settings.LiFiRateBurst)
	s.quoter = lifi.New(quoteHTTP,
		lifi.WithBaseURL(s.settings.LiFiBaseURL),
		lifi.WithAPIKey(s.settings.LiFiAPIKey),
		lifi.WithIntegrator(s.settings.LiFiIntegrator),
		lifi.WithStatusHTTP(statusHTTP),
		lifi.WithMetrics(s.metrics),
		lifi.WithLogger(s.log),
	)
	return s.quoter
}

func (s *runtimeState) chainManager() *chains.Manager {
	if s.chains != nil {
		return s.chains
	}
	opts := []chains.Option{
		chains.WithRPCOverrides(s.settings.RPCOverrides),
		chains.WithWriteRPCOverrides(s.settings.WriteRPCOverrides),
		chains.WithGenericRPCTemplate(s.settings.GenericRPCTemplate),
		chains.WithLogger(s.log),
	}
	if s.runner.dial != nil {
		opts = append(opts, chains.WithDialer(s.runner.dial))
	}
	s.chains = chains.NewManager(opts...)
	return s.chains
}

func (s *runtimeState) openJournal() (*execution.Store, error) {
	if s.journal != nil {
		return s.journal, nil
	}
	store, err := execution.OpenStore(s.settings.JournalPath, s.settings.JournalLockPath)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open execution journal", err)
	}
	s.journal = store
	return store, nil
}

func (s *runtimeState) newPoller(interval, timeout time.Duration) *bridge.Poller {
	if interval <= 0 {
		interval = s.settings.BridgePollInterval
	}
	if timeout <= 0 {
		timeout = s.settings.BridgePollTimeout
	}
	return bridge.NewPoller(s.quoteClient(),
		bridge.WithInterval(interval),
		bridge.WithTimeout(timeout),
		bridge.WithRequestTimeout(s.settings.StatusRequestTimeout),
		bridge.WithMetrics(s.metrics),
		bridge.WithLogger(logging.Component(s.log, "poller")),
	)
}

func (s *runtimeState) renderOptions() out.Options {
	mode := s.settings.OutputMode
	if mode == "" {
		mode = out.ModeJSON
	}
	return out.Options{Mode: mode, Select: s.settings.SelectFields, ResultsOnly: s.settings.ResultsOnly}
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string, providers []model.ProviderStatus) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: uuid.NewString(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Providers: providers,
		},
	}
	return out.Render(s.runner.stdout, env, s.renderOptions())
}

// renderError writes the error envelope to stderr. Field selection and
// results-only never apply to errors.
func (s *runtimeState) renderError(err error) {
	commandPath := s.lastCommand
	if commandPath == "" {
		commandPath = version.CLIName
	}
	body := &model.ErrorBody{
		Code:    clierr.ExitCode(err),
		Type:    clierr.CodeInternal.Name(),
		Message: err.Error(),
	}
	if cErr, ok := clierr.As(err); ok {
		body.Type = cErr.Code.Name()
		body.Message = cErr.Message
		if cErr.Cause != nil {
			body.Message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		body.TxHash = cErr.TxHash
	}

	opts := s.renderOptions()
	opts.Select = nil
	opts.ResultsOnly = false
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  false,
		Data:     []any{},
		Error:    body,
		Warnings: s.lastWarnings,
		Meta: model.EnvelopeMeta{
			RequestID: uuid.NewString(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Providers: s.lastProviders,
		},
	}
	_ = out.Render(s.runner.stderr, env, opts)
}

func (s *runtimeState) captureDiagnostics(warnings []string, providers []model.ProviderStatus) {
	s.lastWarnings = append([]string(nil), warnings...)
	s.lastProviders = append([]model.ProviderStatus(nil), providers...)
}

func providerStatus(name string, started time.Time, err error) model.ProviderStatus {
	return model.ProviderStatus{Name: name, Status: statusFromErr(err), LatencyMS: time.Since(started).Milliseconds()}
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		norm := strings.ToLower(strings.TrimSpace(part))
		if norm != "" {
			out = append(out, norm)
		}
	}
	return out
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func statusFromErr(err error) string {
	if err == nil {
		return "ok"
	}
	switch clierr.CodeOf(err) {
	case clierr.CodeAuth:
		return "auth_error"
	case clierr.CodeRateLimited:
		return "rate_limited"
	case clierr.CodeUnavailable:
		return "unavailable"
	case clierr.CodeUnsupportedRoute:
		return "no_route"
	default:
		return "error"
	}
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
