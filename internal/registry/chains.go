package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SolanaChainID is the numeric id the composition service uses for Solana.
const SolanaChainID int64 = 1151111081099710

const (
	NativeTokenAddress       = "0x0000000000000000000000000000000000000000"
	nativeTokenSentinel      = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
	SolanaNativeTokenAddress = "11111111111111111111111111111111"
)

type Chain struct {
	ID           int64  `json:"chain_id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	NativeSymbol string `json:"native_symbol"`
	RPCURL       string `json:"rpc_url"`
	ExplorerURL  string `json:"explorer_url,omitempty"`
	EVM          bool   `json:"evm"`
	Synthesized  bool   `json:"synthesized,omitempty"`
}

var chains = []Chain{
	{ID: 1, Name: "Ethereum", Slug: "ethereum", NativeSymbol: "ETH", RPCURL: "https://eth.llamarpc.com", ExplorerURL: "https://etherscan.io", EVM: true},
	{ID: 10, Name: "Optimism", Slug: "optimism", NativeSymbol: "ETH", RPCURL: "https://mainnet.optimism.io", ExplorerURL: "https://optimistic.etherscan.io", EVM: true},
	{ID: 56, Name: "BNB Smart Chain", Slug: "bsc", NativeSymbol: "BNB", RPCURL: "https://bsc-dataseed.binance.org", ExplorerURL: "https://bscscan.com", EVM: true},
	{ID: 100, Name: "Gnosis", Slug: "gnosis", NativeSymbol: "XDAI", RPCURL: "https://rpc.gnosischain.com", ExplorerURL: "https://gnosisscan.io", EVM: true},
	{ID: 137, Name: "Polygon", Slug: "polygon", NativeSymbol: "POL", RPCURL: "https://polygon-rpc.com", ExplorerURL: "https://polygonscan.com", EVM: true},
	{ID: 146, Name: "Sonic", Slug: "sonic", NativeSymbol: "S", RPCURL: "https://rpc.soniclabs.com", ExplorerURL: "https://sonicscan.org", EVM: true},
	{ID: 252, Name: "Fraxtal", Slug: "fraxtal", NativeSymbol: "FRXETH", RPCURL: "https://rpc.frax.com", ExplorerURL: "https://fraxscan.com", EVM: true},
	{ID: 324, Name: "zkSync Era", Slug: "zksync", NativeSymbol: "ETH", RPCURL: "https://mainnet.era.zksync.io", ExplorerURL: "https://explorer.zksync.io", EVM: true},
	{ID: 480, Name: "World Chain", Slug: "worldchain", NativeSymbol: "ETH", RPCURL: "https://worldchain-mainnet.g.alchemy.com/public", ExplorerURL: "https://worldscan.org", EVM: true},
	{ID: 5000, Name: "Mantle", Slug: "mantle", NativeSymbol: "MNT", RPCURL: "https://rpc.mantle.xyz", ExplorerURL: "https://mantlescan.xyz", EVM: true},
	{ID: 8453, Name: "Base", Slug: "base", NativeSymbol: "ETH", RPCURL: "https://mainnet.base.org", ExplorerURL: "https://basescan.org", EVM: true},
	{ID: 42161, Name: "Arbitrum One", Slug: "arbitrum", NativeSymbol: "ETH", RPCURL: "https://arb1.arbitrum.io/rpc", ExplorerURL: "https://arbiscan.io", EVM: true},
	{ID: 42220, Name: "Celo", Slug: "celo", NativeSymbol: "CELO", RPCURL: "https://forno.celo.org", ExplorerURL: "https://celoscan.io", EVM: true},
	{ID: 43114, Name: "Avalanche C-Chain", Slug: "avalanche", NativeSymbol: "AVAX", RPCURL: "https://api.avax.network/ext/bc/C/rpc", ExplorerURL: "https://snowtrace.io", EVM: true},
	{ID: 57073, Name: "Ink", Slug: "ink", NativeSymbol: "ETH", RPCURL: "https://rpc-gel.inkonchain.com", ExplorerURL: "https://explorer.inkonchain.com", EVM: true},
	{ID: 59144, Name: "Linea", Slug: "linea", NativeSymbol: "ETH", RPCURL: "https://rpc.linea.build", ExplorerURL: "https://lineascan.build", EVM: true},
	{ID: 80094, Name: "Berachain", Slug: "berachain", NativeSymbol: "BERA", RPCURL: "https://rpc.berachain.com", ExplorerURL: "https://berascan.com", EVM: true},
	{ID: 81457, Name: "Blast", Slug: "blast", NativeSymbol: "ETH", RPCURL: "https://rpc.blast.io", ExplorerURL: "https://blastscan.io", EVM: true},
	{ID: 167000, Name: "Taiko", Slug: "taiko", NativeSymbol: "ETH", RPCURL: "https://rpc.mainnet.taiko.xyz", ExplorerURL: "https://taikoscan.io", EVM: true},
	{ID: 534352, Name: "Scroll", Slug: "scroll", NativeSymbol: "ETH", RPCURL: "https://rpc.scroll.io", ExplorerURL: "https://scrollscan.com", EVM: true},
	{ID: SolanaChainID, Name: "Solana", Slug: "solana", NativeSymbol: "SOL", RPCURL: SolanaMainnetRPCURL, ExplorerURL: "https://solscan.io", EVM: false},
}

var chainAliases = map[string]string{
	"eth":     "ethereum",
	"mainnet": "ethereum",
	"op":      "optimism",
	"bnb":     "bsc",
	"xdai":    "gnosis",
	"matic":   "polygon",
	"arb":     "arbitrum",
	"avax":    "avalanche",
	"sol":     "solana",
}

var (
	chainsByID   = map[int64]Chain{}
	chainsBySlug = map[string]Chain{}
)

func init() {
	for _, c := range chains {
		chainsByID[c.ID] = c
		chainsBySlug[c.Slug] = c
	}
}

func ChainByID(chainID int64) (Chain, bool) {
	c, ok := chainsByID[chainID]
	return c, ok
}

func ChainBySlug(slug string) (Chain, bool) {
	key := strings.ToLower(strings.TrimSpace(slug))
	if alias, ok := chainAliases[key]; ok {
		key = alias
	}
	c, ok := chainsBySlug[key]
	return c, ok
}

// Chains returns the static chain table ordered by chain id.
func Chains() []Chain {
	out := make([]Chain, len(chains))
	copy(out, chains)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ParseChain accepts a numeric chain id, a slug, an alias or a display name.
// Numeric ids without a static definition are synthesized with an empty RPC so
// the chain client manager can decide how to reach them.
func ParseChain(input string) (Chain, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Chain{}, fmt.Errorf("chain is required")
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n <= 0 {
			return Chain{}, fmt.Errorf("chain id must be positive")
		}
		if c, ok := ChainByID(n); ok {
			return c, nil
		}
		return SynthesizeChain(n, ""), nil
	}
	if c, ok := ChainBySlug(raw); ok {
		return c, nil
	}
	for _, c := range chains {
		if strings.EqualFold(c.Name, raw) {
			return c, nil
		}
	}
	return Chain{}, fmt.Errorf("unknown chain %q", raw)
}

// SynthesizeChain builds minimal metadata for a chain outside the static table.
func SynthesizeChain(chainID int64, rpcURL string) Chain {
	return Chain{
		ID:          chainID,
		Name:        fmt.Sprintf("chain-%d", chainID),
		Slug:        fmt.Sprintf("chain-%d", chainID),
		RPCURL:      rpcURL,
		EVM:         chainID != SolanaChainID,
		Synthesized: true,
	}
}

// ExplorerTxURL is for display only. It returns "" when the chain has no
// known explorer.
func ExplorerTxURL(chainID int64, txHash string) string {
	hash := strings.TrimSpace(txHash)
	if hash == "" {
		return ""
	}
	c, ok := ChainByID(chainID)
	if !ok || c.ExplorerURL == "" {
		return ""
	}
	return strings.TrimSuffix(c.ExplorerURL, "/") + "/tx/" + hash
}

func IsNativeToken(address string) bool {
	v := strings.ToLower(strings.TrimSpace(address))
	return v == NativeTokenAddress || v == nativeTokenSentinel || v == strings.ToLower(SolanaNativeTokenAddress)
}
