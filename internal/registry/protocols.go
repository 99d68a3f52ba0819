package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
)

// Family groups protocols that share one deposit call shape. Forks of a lending
// protocol belong to the lending family of their origin.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyWrap
	FamilyLending
	FamilyVault
	FamilyLedger
	FamilyMint
	FamilyLiquidStaking
)

var familyNames = map[Family]string{
	FamilyWrap:          "wrap",
	FamilyLending:       "lending",
	FamilyVault:         "vault",
	FamilyLedger:        "ledger",
	FamilyMint:          "mint",
	FamilyLiquidStaking: "liquid_staking",
}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(f))
}

func (f Family) Known() bool {
	_, ok := familyNames[f]
	return ok
}

func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

type Deployment struct {
	ProtocolID        string `json:"protocol_id"`
	ChainID           int64  `json:"chain_id"`
	Family            Family `json:"family"`
	DepositContract   string `json:"deposit_contract"`
	DepositFunction   string `json:"deposit_function"`
	InputToken        string `json:"input_token"`
	InputTokenSymbol  string `json:"input_token_symbol"`
	InputDecimals     int    `json:"input_decimals"`
	OutputToken       string `json:"output_token"`
	OutputTokenSymbol string `json:"output_token_symbol"`
	GasLimit          uint64 `json:"gas_limit"`
	RequiresApproval  bool   `json:"requires_approval"`
}

type deploymentKey struct {
	protocolID string
	chainID    int64
}

// Registry is an immutable catalog of protocol deployments. All lookups are
// pure and report a miss instead of failing.
type Registry struct {
	byKey      map[deploymentKey]Deployment
	byProtocol map[string][]Deployment
	byChain    map[int64][]Deployment
	all        []Deployment
}

// New validates the table and indexes it. The input slice is copied.
func New(deployments []Deployment) (*Registry, error) {
	r := &Registry{
		byKey:      make(map[deploymentKey]Deployment, len(deployments)),
		byProtocol: map[string][]Deployment{},
		byChain:    map[int64][]Deployment{},
	}
	for i, d := range deployments {
		d.ProtocolID = normalizeProtocolID(d.ProtocolID)
		if err := validateDeployment(d); err != nil {
			return nil, fmt.Errorf("deployment %d (%s on %d): %w", i, d.ProtocolID, d.ChainID, err)
		}
		key := deploymentKey{protocolID: d.ProtocolID, chainID: d.ChainID}
		if _, exists := r.byKey[key]; exists {
			return nil, fmt.Errorf("duplicate deployment %s on chain %d", d.ProtocolID, d.ChainID)
		}
		r.byKey[key] = d
		r.byProtocol[d.ProtocolID] = append(r.byProtocol[d.ProtocolID], d)
		r.byChain[d.ChainID] = append(r.byChain[d.ChainID], d)
		r.all = append(r.all, d)
	}
	for _, items := range r.byProtocol {
		sort.Slice(items, func(i, j int) bool { return items[i].ChainID < items[j].ChainID })
	}
	for _, items := range r.byChain {
		sort.Slice(items, func(i, j int) bool { return items[i].ProtocolID < items[j].ProtocolID })
	}
	sort.Slice(r.all, func(i, j int) bool {
		if r.all[i].ProtocolID == r.all[j].ProtocolID {
			return r.all[i].ChainID < r.all[j].ChainID
		}
		return r.all[i].ProtocolID < r.all[j].ProtocolID
	})
	return r, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the built-in catalog. The static table is checked on first
// use and an invalid table panics, since it can only be fixed in code.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := New(deployments)
		if err != nil {
			panic(fmt.Sprintf("invalid built-in protocol registry: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Lookup returns every deployment of a protocol, ordered by chain id.
func (r *Registry) Lookup(protocolID string) ([]Deployment, bool) {
	items := r.byProtocol[normalizeProtocolID(protocolID)]
	if len(items) == 0 {
		return nil, false
	}
	return append([]Deployment(nil), items...), true
}

func (r *Registry) LookupOnChain(protocolID string, chainID int64) (Deployment, bool) {
	d, ok := r.byKey[deploymentKey{protocolID: normalizeProtocolID(protocolID), chainID: chainID}]
	return d, ok
}

func (r *Registry) ListForChain(chainID int64) []Deployment {
	return append([]Deployment(nil), r.byChain[chainID]...)
}

// Require is LookupOnChain for callers that treat a miss as fatal.
func (r *Registry) Require(protocolID string, chainID int64) (Deployment, error) {
	d, ok := r.LookupOnChain(protocolID, chainID)
	if ok {
		return d, nil
	}
	if items, found := r.Lookup(protocolID); found {
		chainIDs := make([]string, 0, len(items))
		for _, item := range items {
			chainIDs = append(chainIDs, fmt.Sprintf("%d", item.ChainID))
		}
		return Deployment{}, clierr.New(clierr.CodeRegistryMiss, fmt.Sprintf("protocol %q is not deployed on chain %d (available: %s)", protocolID, chainID, strings.Join(chainIDs, ",")))
	}
	return Deployment{}, clierr.New(clierr.CodeRegistryMiss, fmt.Sprintf("unknown protocol %q", protocolID))
}

func (r *Registry) All() []Deployment {
	return append([]Deployment(nil), r.all...)
}

func (r *Registry) Protocols() []string {
	out := make([]string, 0, len(r.byProtocol))
	for id := range r.byProtocol {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func validateDeployment(d Deployment) error {
	if d.ProtocolID == "" {
		return fmt.Errorf("missing protocol id")
	}
	if d.ChainID <= 0 {
		return fmt.Errorf("chain id must be positive")
	}
	if !d.Family.Known() {
		return fmt.Errorf("unknown protocol family %s", d.Family)
	}
	if !isHexAddress(d.DepositContract) {
		return fmt.Errorf("invalid deposit contract %q", d.DepositContract)
	}
	if strings.TrimSpace(d.DepositFunction) == "" {
		return fmt.Errorf("missing deposit function")
	}
	if !isHexAddress(d.InputToken) || !isHexAddress(d.OutputToken) {
		return fmt.Errorf("invalid token address")
	}
	if d.InputTokenSymbol == "" || d.OutputTokenSymbol == "" {
		return fmt.Errorf("missing token symbol")
	}
	if d.InputDecimals < 0 || d.InputDecimals > 36 {
		return fmt.Errorf("invalid input decimals %d", d.InputDecimals)
	}
	if d.GasLimit == 0 {
		return fmt.Errorf("gas limit must be positive")
	}
	native := IsNativeToken(d.InputToken)
	if native != (d.Family == FamilyWrap) {
		return fmt.Errorf("native input token is only valid for the wrap family")
	}
	if native && d.RequiresApproval {
		return fmt.Errorf("native input cannot require approval")
	}
	return nil
}

func isHexAddress(v string) bool {
	return common.IsHexAddress(strings.TrimSpace(v)) && strings.HasPrefix(strings.TrimSpace(v), "0x")
}

func normalizeProtocolID(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
