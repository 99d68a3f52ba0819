package app

import (
	"context"
	"fmt"
	"strings"

	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/registry"
	"github.com/gabrielantonyxaviour/moltrades/internal/schema"
	"github.com/gabrielantonyxaviour/moltrades/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.Build(s.root, strings.Join(args, " "))
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil, nil)
		},
	}
}

func (s *runtimeState) newChainsCommand() *cobra.Command {
	root := &cobra.Command{Use: "chains", Short: "Supported chains and RPC health"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List chains with a static definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), registry.Chains(), nil, nil)
		},
	}
	root.AddCommand(list)

	var chainArgs []string
	check := &cobra.Command{
		Use:   "check",
		Short: "Verify that RPC endpoints answer with the expected chain id",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := checkTargets(chainArgs)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), s.settings.Timeout)
			defer cancel()
			health := s.chainManager().Verify(ctx, ids...)
			var warnings []string
			for _, h := range health {
				if !h.OK {
					warnings = append(warnings, fmt.Sprintf("chain %d: %s", h.ChainID, h.Error))
				}
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), health, warnings, nil)
		},
	}
	check.Flags().StringSliceVar(&chainArgs, "chain", nil, "Chain id or slug (repeatable, defaults to every EVM chain)")
	root.AddCommand(check)

	return root
}

func checkTargets(chainArgs []string) ([]int64, error) {
	if len(chainArgs) == 0 {
		var ids []int64
		for _, c := range registry.Chains() {
			if c.EVM {
				ids = append(ids, c.ID)
			}
		}
		return ids, nil
	}
	ids := make([]int64, 0, len(chainArgs))
	for _, arg := range chainArgs {
		c, err := parseChainArg(arg)
		if err != nil {
			return nil, err
		}
		if !c.EVM {
			return nil, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("%s has no EVM rpc to check", c.Name))
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (s *runtimeState) newProtocolsCommand() *cobra.Command {
	root := &cobra.Command{Use: "protocols", Short: "Protocol deployment registry"}

	var listChain string
	list := &cobra.Command{
		Use:   "list",
		Short: "List protocol deployments",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.Default()
			if strings.TrimSpace(listChain) == "" {
				return s.emitSuccess(trimRootPath(cmd.CommandPath()), reg.All(), nil, nil)
			}
			c, err := parseChainArg(listChain)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), reg.ListForChain(c.ID), nil, nil)
		},
	}
	list.Flags().StringVar(&listChain, "chain", "", "Only deployments on this chain")
	root.AddCommand(list)

	var showChain string
	show := &cobra.Command{
		Use:   "show <protocol>",
		Short: "Show the deployments of one protocol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.Default()
			if strings.TrimSpace(showChain) != "" {
				c, err := parseChainArg(showChain)
				if err != nil {
					return err
				}
				dep, err := reg.Require(args[0], c.ID)
				if err != nil {
					return err
				}
				return s.emitSuccess(trimRootPath(cmd.CommandPath()), dep, nil, nil)
			}
			deps, ok := reg.Lookup(args[0])
			if !ok {
				return clierr.New(clierr.CodeRegistryMiss, fmt.Sprintf("unknown protocol %q", args[0]))
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), deps, nil, nil)
		},
	}
	show.Flags().StringVar(&showChain, "chain", "", "Deployment chain")
	root.AddCommand(show)

	return root
}

func parseChainArg(v string) (registry.Chain, error) {
	c, err := registry.ParseChain(v)
	if err != nil {
		return registry.Chain{}, clierr.Wrap(clierr.CodeUsage, "parse chain", err)
	}
	return c, nil
}
