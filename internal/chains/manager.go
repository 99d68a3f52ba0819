package chains

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/registry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Client is the part of *ethclient.Client the execution path uses.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Dialer opens a client for an RPC endpoint.
type Dialer func(ctx context.Context, rpcURL string) (Client, error)

func dialEthclient(ctx context.Context, rpcURL string) (Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Pair holds the read and write clients of one chain. Write is the same
// client as Read unless a dedicated write endpoint is configured.
type Pair struct {
	Chain registry.Chain
	Read  Client
	Write Client
}

type Manager struct {
	mu             sync.Mutex
	pairs          map[int64]*Pair
	rpcOverrides   map[int64]string
	writeOverrides map[int64]string
	genericRPC     string
	dial           Dialer
	log            zerolog.Logger
}

type Option func(*Manager)

func WithRPCOverrides(overrides map[int64]string) Option {
	return func(m *Manager) {
		for id, url := range overrides {
			if strings.TrimSpace(url) != "" {
				m.rpcOverrides[id] = strings.TrimSpace(url)
			}
		}
	}
}

func WithWriteRPCOverrides(overrides map[int64]string) Option {
	return func(m *Manager) {
		for id, url := range overrides {
			if strings.TrimSpace(url) != "" {
				m.writeOverrides[id] = strings.TrimSpace(url)
			}
		}
	}
}

// WithGenericRPCTemplate sets the fmt template, taking the chain id, used for
// chains without a static definition. An empty template disables synthesis.
func WithGenericRPCTemplate(tmpl string) Option {
	return func(m *Manager) { m.genericRPC = strings.TrimSpace(tmpl) }
}

func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dial = d
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log.With().Str("component", "chains").Logger() }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		pairs:          map[int64]*Pair{},
		rpcOverrides:   map[int64]string{},
		writeOverrides: map[int64]string{},
		genericRPC:     registry.DefaultGenericRPCTemplate,
		dial:           dialEthclient,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve returns the chain metadata the manager would use for chainID:
// configured override, then the static table, then a synthesized definition.
func (m *Manager) Resolve(chainID int64) (registry.Chain, error) {
	if chainID <= 0 {
		return registry.Chain{}, clierr.New(clierr.CodeUsage, "chain id must be positive")
	}
	if chainID == registry.SolanaChainID {
		return registry.Chain{}, clierr.New(clierr.CodeUnsupported, "solana has no EVM client; use the solana adapter")
	}
	chain, known := registry.ChainByID(chainID)
	if override, ok := m.rpcOverrides[chainID]; ok {
		if !known {
			chain = registry.SynthesizeChain(chainID, override)
		}
		chain.RPCURL = override
		return chain, nil
	}
	if known && chain.RPCURL != "" {
		return chain, nil
	}
	if m.genericRPC == "" || !strings.Contains(m.genericRPC, "%d") {
		return registry.Chain{}, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("no rpc definition for chain %d", chainID))
	}
	return registry.SynthesizeChain(chainID, fmt.Sprintf(m.genericRPC, chainID)), nil
}

// Pair returns the cached client pair for chainID, dialing it on first use.
// Concurrent callers share one pair.
func (m *Manager) Pair(ctx context.Context, chainID int64) (*Pair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pairs[chainID]; ok {
		return p, nil
	}

	chain, err := m.Resolve(chainID)
	if err != nil {
		return nil, err
	}
	read, err := m.dial(ctx, chain.RPCURL)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("connect rpc for chain %d", chainID), err)
	}
	write := read
	if url, ok := m.writeOverrides[chainID]; ok && url != chain.RPCURL {
		write, err = m.dial(ctx, url)
		if err != nil {
			read.Close()
			return nil, clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("connect write rpc for chain %d", chainID), err)
		}
	}
	p := &Pair{Chain: chain, Read: read, Write: write}
	m.pairs[chainID] = p
	m.log.Debug().Int64("chain_id", chainID).Bool("synthesized", chain.Synthesized).Msg("created chain client pair")
	return p, nil
}

func (m *Manager) ReadClient(ctx context.Context, chainID int64) (Client, error) {
	p, err := m.Pair(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return p.Read, nil
}

func (m *Manager) WriteClient(ctx context.Context, chainID int64) (Client, error) {
	p, err := m.Pair(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return p.Write, nil
}

type Health struct {
	ChainID  int64  `json:"chain_id"`
	Name     string `json:"name"`
	RPCURL   string `json:"rpc_url"`
	Reported int64  `json:"reported_chain_id"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// Verify checks concurrently that every endpoint answers with the chain id it
// is configured for. Per-chain failures are reported in the result.
func (m *Manager) Verify(ctx context.Context, chainIDs ...int64) []Health {
	out := make([]Health, len(chainIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, chainID := range chainIDs {
		g.Go(func() error {
			h := Health{ChainID: chainID}
			defer func() { out[i] = h }()
			p, err := m.Pair(gctx, chainID)
			if err != nil {
				h.Error = err.Error()
				return nil
			}
			h.Name, h.RPCURL = p.Chain.Name, p.Chain.RPCURL
			reported, err := p.Read.ChainID(gctx)
			if err != nil {
				h.Error = err.Error()
				return nil
			}
			h.Reported = reported.Int64()
			h.OK = h.Reported == chainID
			if !h.OK {
				h.Error = fmt.Sprintf("endpoint reports chain %d", h.Reported)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Close releases every cached connection.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.pairs {
		if p.Write != p.Read {
			p.Write.Close()
		}
		p.Read.Close()
		delete(m.pairs, id)
	}
}
