package execution

import (
	"path/filepath"
	"testing"

	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/id"
	"github.com/gabrielantonyxaviour/moltrades/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "executions.db"), filepath.Join(dir, "executions.lock"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreSaveGetList(t *testing.T) {
	store := openTestStore(t)

	quote := model.Quote{ID: "q-1", Tool: "across", SourceChain: 42161, DestChain: 8453}
	rec := NewRecord("aave-v3", 8453, quote)
	if !id.IsExecutionID(rec.ID) {
		t.Fatalf("unexpected record id %q", rec.ID)
	}
	rec.SetResult(model.ExecutionResult{
		Status:       model.ExecutionPending,
		SourceChain:  42161,
		DestChain:    8453,
		Bridge:       "across",
		SourceTxHash: "0xabc",
	})
	if rec.StatusKey == nil || rec.StatusKey.Bridge != "across" || rec.StatusKey.TxHash != "0xabc" {
		t.Fatalf("expected status key for pending bridge leg, got %+v", rec.StatusKey)
	}
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Protocol != "aave-v3" || got.Quote.ID != "q-1" || got.Result.Status != model.ExecutionPending {
		t.Fatalf("unexpected record: %+v", got)
	}

	pending, err := store.List("pending", 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending record, got %d", len(pending))
	}

	got.SetOutcome(model.BridgeOutcome{Status: model.BridgeStatusDone, DestinationTxHash: "0xdef"})
	got.SetResult(ApplyOutcome(got.Result, *got.Outcome))
	if err := store.Save(got); err != nil {
		t.Fatalf("Save update failed: %v", err)
	}
	done, err := store.List(string(model.ExecutionDone), 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(done) != 1 || done[0].Result.DestinationTxHash != "0xdef" {
		t.Fatalf("expected one done record, got %+v", done)
	}
	pending, err = store.List(string(model.ExecutionPending), 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending records, got %d", len(pending))
	}
}

func TestStoreSameChainRecordHasNoStatusKey(t *testing.T) {
	rec := NewRecord("weth", 8453, model.Quote{SourceChain: 8453, DestChain: 8453})
	rec.SetResult(model.ExecutionResult{Status: model.ExecutionDone, SourceChain: 8453, DestChain: 8453, SourceTxHash: "0x1"})
	if rec.StatusKey != nil {
		t.Fatalf("expected no status key, got %+v", rec.StatusKey)
	}
}

func TestStoreGetMissingRecord(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get("exec_missing")
	if !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestStoreSaveRequiresID(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(Record{}); err == nil {
		t.Fatal("expected missing id error")
	}
}
