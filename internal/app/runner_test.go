package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gabrielantonyxaviour/moltrades/internal/chains"
	"github.com/gabrielantonyxaviour/moltrades/internal/execution"
	"github.com/gabrielantonyxaviour/moltrades/internal/model"
)

const (
	testKeyHex  = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	lifiDiamond = "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE"
	actorAddr   = "0x00000000000000000000000000000000000000AA"
)

// isolate points every path and endpoint at the test and silences logs so
// stderr carries only the error envelope.
func isolate(t *testing.T, lifiURL string) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(tmp, "state"))
	t.Setenv("MOLTRADES_LOG_LEVEL", "off")
	t.Setenv("MOLTRADES_LIFI_BASE_URL", lifiURL)
	t.Setenv("MOLTRADES_LIFI_RATE_LIMIT", "0")
	t.Setenv("MOLTRADES_RECEIPT_POLL_INTERVAL", "10ms")
	for _, name := range []string{"MOLTRADES_PRIVATE_KEY", "MOLTRADES_PRIVATE_KEY_FILE", "MOLTRADES_KEYSTORE_PATH", "MOLTRADES_ENABLE_COMMANDS", "MOLTRADES_RPC_URLS", "MOLTRADES_OUTPUT"} {
		t.Setenv(name, "")
	}
	return tmp
}

func run(t *testing.T, r *Runner, args ...string) (int, []byte, []byte) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	r.stdout, r.stderr = &stdout, &stderr
	code := r.Run(args)
	return code, stdout.Bytes(), stderr.Bytes()
}

func decodeErrorEnvelope(t *testing.T, raw []byte) model.Envelope {
	t.Helper()
	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to parse error envelope: %v output=%s", err, raw)
	}
	if env.Success || env.Error == nil {
		t.Fatalf("expected failed envelope, got %s", raw)
	}
	return env
}

func TestTrimRootPath(t *testing.T) {
	if got := trimRootPath("moltrades executions list"); got != "executions list" {
		t.Fatalf("unexpected trim result: %s", got)
	}
}

func TestSplitCSV(t *testing.T) {
	items := splitCSV("Across, stargate ,")
	if len(items) != 2 || items[0] != "across" || items[1] != "stargate" {
		t.Fatalf("unexpected split: %#v", items)
	}
}

func TestRunnerChainsList(t *testing.T) {
	isolate(t, "http://127.0.0.1:1")
	code, stdout, stderr := run(t, NewRunner(), "chains", "list", "--results-only")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr)
	}
	var out []map[string]any
	if err := json.Unmarshal(stdout, &out); err != nil {
		t.Fatalf("failed to parse output json: %v output=%s", err, stdout)
	}
	found := false
	for _, c := range out {
		if c["chain_id"] == float64(8453) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected base in chain list: %s", stdout)
	}
}

func TestRunnerProtocolsShowRegistryMiss(t *testing.T) {
	isolate(t, "http://127.0.0.1:1")
	code, stdout, stderr := run(t, NewRunner(), "protocols", "show", "aave-v3", "--chain", "optimism", "--results-only")
	if code != 0 {
		t.Fatalf("expected aave-v3 on optimism, got %d stderr=%s", code, stderr)
	}
	var dep map[string]any
	if err := json.Unmarshal(stdout, &dep); err != nil || dep["family"] != "lending" {
		t.Fatalf("unexpected deployment %s (%v)", stdout, err)
	}

	code, _, stderr = run(t, NewRunner(), "protocols", "show", "aave-v3", "--chain", "1151111081099710", "--results-only")
	if code != 20 {
		t.Fatalf("expected exit 20, got %d stderr=%s", code, stderr)
	}
	env := decodeErrorEnvelope(t, stderr)
	if env.Error.Type != "registry_miss" || env.Meta.Command != "protocols show" {
		t.Fatalf("unexpected error envelope %+v", env)
	}
}

func TestRunnerEncodeWrapIsDeterministic(t *testing.T) {
	isolate(t, "http://127.0.0.1:1")
	args := []string{"encode", "--protocol", "weth", "--chain", "base", "--amount-decimal", "0.0001", "--actor", actorAddr, "--results-only"}
	code, first, stderr := run(t, NewRunner(), args...)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr)
	}
	_, second, _ := run(t, NewRunner(), args...)
	if !bytes.Equal(first, second) {
		t.Fatalf("encoding is not deterministic:\n%s\n%s", first, second)
	}
	var out encodeOutput
	if err := json.Unmarshal(first, &out); err != nil {
		t.Fatalf("decode encode output: %v", err)
	}
	if out.Call.CallData != "0xd0e30db0" || out.Call.Value != "100000000000000" {
		t.Fatalf("unexpected wrap call %+v", out.Call)
	}
	if out.Amount.AmountBaseUnits != "100000000000000" || out.Amount.Decimals != 18 {
		t.Fatalf("unexpected amount %+v", out.Amount)
	}
}

func TestRunnerEnableCommandsBlocks(t *testing.T) {
	isolate(t, "http://127.0.0.1:1")
	code, _, stderr := run(t, NewRunner(), "--enable-commands", "chains,protocols", "executions", "list")
	if code != 14 {
		t.Fatalf("expected exit 14, got %d stderr=%s", code, stderr)
	}
	if env := decodeErrorEnvelope(t, stderr); env.Error.Type != "command_blocked" {
		t.Fatalf("unexpected error type %q", env.Error.Type)
	}
}

func TestRunnerExecuteRequiresYes(t *testing.T) {
	isolate(t, "http://127.0.0.1:1")
	code, _, stderr := run(t, NewRunner(), "execute", "--protocol", "weth", "--chain", "base", "--amount", "1")
	if code != 2 {
		t.Fatalf("expected usage exit without --yes, got %d stderr=%s", code, stderr)
	}
}

func TestRunnerQuoteNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"No available quotes for the requested transfer","code":1002}`))
	}))
	defer srv.Close()
	isolate(t, srv.URL)

	code, stdout, stderr := run(t, NewRunner(), "quote", "--protocol", "aave-v3", "--chain", "base",
		"--from-chain", "arbitrum", "--from-token", "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		"--from-address", actorAddr, "--amount-decimal", "100")
	if code != 23 {
		t.Fatalf("expected exit 23, got %d stdout=%s stderr=%s", code, stdout, stderr)
	}
	env := decodeErrorEnvelope(t, stderr)
	if len(env.Meta.Providers) != 1 || env.Meta.Providers[0].Status != "no_route" {
		t.Fatalf("expected provider status in error meta, got %+v", env.Meta.Providers)
	}
}

func TestRunnerQuoteComposesDeposit(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = fmt.Fprintf(w, `{
			"id": "q-1",
			"tool": "across",
			"estimate": {"fromAmount": "100250000", "toAmount": "100000000", "toAmountMin": "99500000", "approvalAddress": %q,
				"gasCosts": [{"amountUSD": "0.40"}], "feeCosts": [{"amountUSD": "0.25"}]},
			"transactionRequest": {"to": %q, "data": "0xdeadbeef", "value": "0x0", "gasLimit": "0x7a120", "chainId": 42161}
		}`, lifiDiamond, lifiDiamond)
	}))
	defer srv.Close()
	isolate(t, srv.URL)

	code, stdout, stderr := run(t, NewRunner(), "quote", "--protocol", "aave-v3", "--chain", "base",
		"--from-chain", "arbitrum", "--from-token", "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		"--from-address", actorAddr, "--amount-decimal", "100", "--allow-bridges", "across", "--results-only")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr)
	}
	var out quoteOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		t.Fatalf("decode quote output: %v", err)
	}
	if out.Summary.Tool != "across" || out.Summary.GasUSD != "0.40" || out.Summary.FeeUSD != "0.25" {
		t.Fatalf("unexpected summary %+v", out.Summary)
	}
	if out.Quote.SourceChain != 42161 || out.Quote.DestChain != 8453 {
		t.Fatalf("unexpected quote chains %+v", out.Quote)
	}
	calls, ok := body["contractCalls"].([]any)
	if !ok || len(calls) != 1 {
		t.Fatalf("expected one contract call, got %v", body["contractCalls"])
	}
	call := calls[0].(map[string]any)
	if call["fromAmount"] != "100000000" || call["toApprovalAddress"] == "" {
		t.Fatalf("unexpected contract call %v", call)
	}
	if body["toChain"] != float64(8453) || body["fromChain"] != float64(42161) {
		t.Fatalf("unexpected chains in request %v", body)
	}
}

type fakeChain struct {
	mu   sync.Mutex
	sent []*types.Transaction
}

func (f *fakeChain) dial(context.Context, string) (chains.Client, error) { return f, nil }

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) { return big.NewInt(8453), nil }
func (f *fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(10), BaseFee: big.NewInt(1_000_000_000)}, nil
}
func (f *fakeChain) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return make([]byte, 32), nil
}
func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) { return 50_000, nil }
func (f *fakeChain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}
func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}
func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}
func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash, BlockNumber: big.NewInt(11)}, nil
		}
	}
	return nil, ethereum.NotFound
}
func (f *fakeChain) Close() {}

func TestRunnerExecuteSameChainWrapIsJournaled(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	signerAddr := crypto.PubkeyToAddress(key.PublicKey)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{
			"id": "q-wrap",
			"tool": "custom",
			"estimate": {"fromAmount": "100000000000000", "toAmount": "100000000000000", "toAmountMin": "100000000000000"},
			"transactionRequest": {"to": %q, "data": "0x1794958f", "value": "0x5af3107a4000", "gasLimit": "0x30d40", "chainId": 8453}
		}`, lifiDiamond)
	}))
	defer srv.Close()
	isolate(t, srv.URL)
	t.Setenv("MOLTRADES_PRIVATE_KEY", testKeyHex)

	chain := &fakeChain{}
	r := NewRunner()
	r.dial = chain.dial
	code, stdout, stderr := run(t, r, "execute", "--protocol", "weth", "--chain", "base", "--amount-decimal", "0.0001", "--yes", "--results-only")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr)
	}
	var rec execution.Record
	if err := json.Unmarshal(stdout, &rec); err != nil {
		t.Fatalf("decode record: %v output=%s", err, stdout)
	}
	if rec.Result.Status != model.ExecutionDone || !rec.Result.ContractCallSucceeded {
		t.Fatalf("expected DONE with contract call, got %+v", rec.Result)
	}
	if rec.StatusKey != nil {
		t.Fatalf("same-chain execution must not have a bridge leg: %+v", rec.StatusKey)
	}
	if len(chain.sent) != 1 {
		t.Fatalf("expected one transaction, got %d", len(chain.sent))
	}
	tx := chain.sent[0]
	if tx.Value().String() != "100000000000000" || *tx.To() != common.HexToAddress(lifiDiamond) {
		t.Fatalf("unexpected transaction to=%s value=%s", tx.To().Hex(), tx.Value())
	}
	if rec.Result.SourceTxHash != tx.Hash().Hex() {
		t.Fatalf("result hash %s does not match sent tx %s", rec.Result.SourceTxHash, tx.Hash().Hex())
	}
	if rec.Quote.ID != "q-wrap" {
		t.Fatalf("unexpected journaled quote %+v", rec.Quote)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(8453)), tx)
	if err != nil || sender != signerAddr {
		t.Fatalf("unexpected sender %s (%v)", sender.Hex(), err)
	}

	code, stdout, stderr = run(t, NewRunner(), "executions", "list", "--status", "done", "--results-only")
	if code != 0 {
		t.Fatalf("executions list failed: %d %s", code, stderr)
	}
	var listed []execution.Record
	if err := json.Unmarshal(stdout, &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != rec.ID {
		t.Fatalf("expected the execution in the journal, got %s", stdout)
	}
}

func TestRunnerExecuteRejectsForeignFromAddress(t *testing.T) {
	isolate(t, "http://127.0.0.1:1")
	t.Setenv("MOLTRADES_PRIVATE_KEY", testKeyHex)
	code, _, stderr := run(t, NewRunner(), "execute", "--protocol", "weth", "--chain", "base", "--amount", "1", "--from-address", actorAddr, "--yes")
	if code != 30 {
		t.Fatalf("expected signer error, got %d stderr=%s", code, stderr)
	}
}

func TestRunnerStatusResumesJournaledExecution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" || r.URL.Query().Get("txHash") != "0xsource" || r.URL.Query().Get("bridge") != "stargate" {
			t.Errorf("unexpected status request %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`{"status":"DONE","substatus":"COMPLETED","receiving":{"txHash":"0xdest","chainId":8453}}`))
	}))
	defer srv.Close()
	tmp := isolate(t, srv.URL)

	store, err := execution.OpenStore(filepath.Join(tmp, "state", "moltrades", "executions.db"), filepath.Join(tmp, "state", "moltrades", "executions.lock"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	rec := execution.NewRecord("aave-v3", 8453, model.Quote{ID: "q-1", SourceChain: 42161, DestChain: 8453, Tool: "stargate"})
	rec.SetResult(model.ExecutionResult{Status: model.ExecutionPending, SourceChain: 42161, DestChain: 8453, Bridge: "stargate", SourceTxHash: "0xsource"})
	if err := store.Save(rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = store.Close()

	code, stdout, stderr := run(t, NewRunner(), "status", "--execution-id", rec.ID, "--interval", "10ms", "--results-only")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr)
	}
	var got execution.Record
	if err := json.Unmarshal(stdout, &got); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if got.Result.Status != model.ExecutionDone || got.Result.DestinationTxHash != "0xdest" || !got.Result.ContractCallSucceeded {
		t.Fatalf("unexpected resumed result %+v", got.Result)
	}
	if got.Outcome == nil || got.Outcome.Cycles != 1 {
		t.Fatalf("unexpected outcome %+v", got.Outcome)
	}

	code, stdout, _ = run(t, NewRunner(), "executions", "get", rec.ID, "--select", "result.status", "--results-only")
	if code != 0 {
		t.Fatalf("executions get failed: %d", code)
	}
	var projected map[string]any
	if err := json.Unmarshal(stdout, &projected); err != nil || projected["result.status"] != "DONE" {
		t.Fatalf("journal not updated: %s (%v)", stdout, err)
	}
}

func TestRunnerStatusBridgeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"FAILED","substatusMessage":"slippage exceeded"}`))
	}))
	defer srv.Close()
	isolate(t, srv.URL)

	code, _, stderr := run(t, NewRunner(), "status", "--tx-hash", "0xabc", "--bridge", "across", "--from-chain", "arbitrum", "--to-chain", "base")
	if code != 28 {
		t.Fatalf("expected exit 28, got %d stderr=%s", code, stderr)
	}
	env := decodeErrorEnvelope(t, stderr)
	if env.Error.TxHash != "0xabc" || env.Error.Type != "bridge_failed" {
		t.Fatalf("unexpected error body %+v", env.Error)
	}
}

func TestRunnerSchemaMarksSigningCommands(t *testing.T) {
	isolate(t, "http://127.0.0.1:1")
	code, stdout, stderr := run(t, NewRunner(), "schema", "execute", "--results-only")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr)
	}
	var out map[string]any
	if err := json.Unmarshal(stdout, &out); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if out["signing"] != true || out["path"] != "moltrades execute" {
		t.Fatalf("unexpected schema %s", stdout)
	}
}
