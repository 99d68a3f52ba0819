package execution

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/id"
	"github.com/gabrielantonyxaviour/moltrades/internal/model"
	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Record is one journaled execution attempt. StatusKey is set once a bridge
// leg exists so polling can be resumed by id.
type Record struct {
	ID              string                `json:"id"`
	Protocol        string                `json:"protocol,omitempty"`
	DeploymentChain int64                 `json:"deployment_chain,omitempty"`
	Quote           model.QuoteSummary    `json:"quote"`
	Result          model.ExecutionResult `json:"result"`
	StatusKey       *model.StatusKey      `json:"status_key,omitempty"`
	Outcome         *model.BridgeOutcome  `json:"outcome,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func NewRecord(protocol string, deploymentChain int64, quote model.Quote) Record {
	now := time.Now().UTC()
	return Record{
		ID:              id.NewExecutionID(),
		Protocol:        protocol,
		DeploymentChain: deploymentChain,
		Quote:           quote.Summary(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// SetResult stores an engine result and derives the status key for PENDING
// cross-chain attempts.
func (r *Record) SetResult(result model.ExecutionResult) {
	r.Result = result
	if result.SourceTxHash != "" && result.Bridge != "" && result.SourceChain != result.DestChain {
		key := result.StatusKey()
		r.StatusKey = &key
	}
	r.UpdatedAt = time.Now().UTC()
}

func (r *Record) SetOutcome(outcome model.BridgeOutcome) {
	r.Outcome = &outcome
	r.UpdatedAt = time.Now().UTC()
}

type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create execution journal directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create execution lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open execution journal: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS executions (
			execution_id TEXT PRIMARY KEY,
			protocol TEXT NOT NULL,
			status TEXT NOT NULL,
			source_chain INTEGER NOT NULL,
			dest_chain INTEGER NOT NULL,
			source_tx_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_executions_status_updated ON executions(status, updated_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init execution schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(rec Record) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("save execution: missing id")
	}
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock execution journal: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock execution journal: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}
	status := string(rec.Result.Status)
	if status == "" {
		status = string(model.ExecutionPending)
	}

	_, err = s.db.Exec(`
		INSERT INTO executions (execution_id, protocol, status, source_chain, dest_chain, source_tx_hash, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(execution_id) DO UPDATE SET
			protocol=excluded.protocol,
			status=excluded.status,
			source_chain=excluded.source_chain,
			dest_chain=excluded.dest_chain,
			source_tx_hash=excluded.source_tx_hash,
			updated_at=excluded.updated_at,
			payload=excluded.payload
	`, rec.ID, rec.Protocol, status, rec.Result.SourceChain, rec.Result.DestChain, rec.Result.SourceTxHash,
		rec.CreatedAt.Unix(), rec.UpdatedAt.Unix(), payload)
	if err != nil {
		return fmt.Errorf("save execution: %w", err)
	}
	return nil
}

func (s *Store) Get(executionID string) (Record, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM executions WHERE execution_id = ?", executionID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("execution not found: %s", executionID))
		}
		return Record{}, fmt.Errorf("read execution: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("decode execution payload: %w", err)
	}
	return rec, nil
}

// List returns the most recently updated records, optionally filtered by
// result status.
func (s *Store) List(status string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "" {
		rows, err = s.db.Query("SELECT payload FROM executions ORDER BY updated_at DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query("SELECT payload FROM executions WHERE status = ? ORDER BY updated_at DESC LIMIT ?", status, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}
		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode execution row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution rows: %w", err)
	}
	return records, nil
}
