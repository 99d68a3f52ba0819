package app

import (
	"context"
	"strings"
	"time"

	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/execution"
	"github.com/gabrielantonyxaviour/moltrades/internal/id"
	"github.com/gabrielantonyxaviour/moltrades/internal/model"
	"github.com/spf13/cobra"
)

// resolveBridge polls the pending leg of rec and journals the outcome, also
// when polling ends in an error.
func (s *runtimeState) resolveBridge(ctx context.Context, journal *execution.Store, rec *execution.Record, interval, timeout time.Duration) error {
	started := time.Now()
	outcome, err := s.newPoller(interval, timeout).Poll(ctx, *rec.StatusKey)
	s.captureDiagnostics(nil, append(s.lastProviders, providerStatus("lifi-status", started, err)))
	if outcome.Cycles > 0 {
		rec.SetOutcome(outcome)
		rec.SetResult(execution.ApplyOutcome(rec.Result, outcome))
		if saveErr := journal.Save(*rec); saveErr != nil {
			s.log.Error().Err(saveErr).Str("execution_id", rec.ID).Msg("journal write failed")
		}
	}
	return err
}

func (s *runtimeState) newStatusCommand() *cobra.Command {
	var executionID, txHash, bridgeName, fromChain, toChain string
	var interval, timeout time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Poll a pending bridge leg until it is final",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := trimRootPath(cmd.CommandPath())
			if strings.TrimSpace(executionID) != "" {
				if txHash != "" {
					return clierr.New(clierr.CodeUsage, "use either --execution-id or --tx-hash")
				}
				if !id.IsExecutionID(executionID) {
					return clierr.New(clierr.CodeUsage, "invalid --execution-id")
				}
				journal, err := s.openJournal()
				if err != nil {
					return err
				}
				rec, err := journal.Get(executionID)
				if err != nil {
					return err
				}
				if rec.StatusKey == nil || rec.Result.Status.Terminal() {
					return s.emitSuccess(path, rec, []string{"execution has no pending bridge leg"}, nil)
				}
				if err := s.resolveBridge(cmd.Context(), journal, &rec, interval, timeout); err != nil {
					return err
				}
				return s.emitSuccess(path, rec, nil, s.lastProviders)
			}

			key, err := statusKeyFromFlags(txHash, bridgeName, fromChain, toChain)
			if err != nil {
				return err
			}
			started := time.Now()
			outcome, err := s.newPoller(interval, timeout).Poll(cmd.Context(), key)
			s.captureDiagnostics(nil, []model.ProviderStatus{providerStatus("lifi-status", started, err)})
			if err != nil {
				return err
			}
			return s.emitSuccess(path, outcome, nil, s.lastProviders)
		},
	}
	cmd.Flags().StringVar(&executionID, "execution-id", "", "Journaled execution to resume")
	cmd.Flags().StringVar(&txHash, "tx-hash", "", "Source transaction hash")
	cmd.Flags().StringVar(&bridgeName, "bridge", "", "Bridge tool reported by the quote")
	cmd.Flags().StringVar(&fromChain, "from-chain", "", "Source chain")
	cmd.Flags().StringVar(&toChain, "to-chain", "", "Destination chain")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Poll interval (defaults to config)")
	cmd.Flags().DurationVar(&timeout, "poll-timeout", 0, "Poll timeout (defaults to config)")
	return cmd
}

func statusKeyFromFlags(txHash, bridgeName, fromChain, toChain string) (model.StatusKey, error) {
	if strings.TrimSpace(txHash) == "" {
		return model.StatusKey{}, clierr.New(clierr.CodeUsage, "--execution-id or --tx-hash is required")
	}
	key := model.StatusKey{TxHash: strings.TrimSpace(txHash), Bridge: strings.TrimSpace(bridgeName)}
	if fromChain != "" {
		c, err := parseChainArg(fromChain)
		if err != nil {
			return model.StatusKey{}, err
		}
		key.FromChain = c.ID
	}
	if toChain != "" {
		c, err := parseChainArg(toChain)
		if err != nil {
			return model.StatusKey{}, err
		}
		key.ToChain = c.ID
	}
	return key, nil
}

func (s *runtimeState) newExecutionsCommand() *cobra.Command {
	root := &cobra.Command{Use: "executions", Short: "Execution journal"}

	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List journaled executions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := s.openJournal()
			if err != nil {
				return err
			}
			records, err := journal.List(status, limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "list executions", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), records, nil, nil)
		},
	}
	list.Flags().StringVar(&status, "status", "", "Filter by status (DONE|PENDING|FAILED)")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum records to return")
	root.AddCommand(list)

	get := &cobra.Command{
		Use:   "get <execution-id>",
		Short: "Show one journaled execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !id.IsExecutionID(args[0]) {
				return clierr.New(clierr.CodeUsage, "invalid execution id")
			}
			journal, err := s.openJournal()
			if err != nil {
				return err
			}
			rec, err := journal.Get(args[0])
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), rec, nil, nil)
		},
	}
	root.AddCommand(get)

	return root
}
